package ndv

import (
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Iron-Ham/ndvlink/internal/errors"
	"github.com/Iron-Ham/ndvlink/internal/logging"
)

// ClientConfig holds configuration for a Client.
type ClientConfig struct {
	// PageLimit caps the follow-up page requests per listing (default: 1000).
	PageLimit int
	// ConnectRetries is how many times a network-class connect failure is
	// retried. Authentication failures are never retried.
	ConnectRetries int
	// Backoff spaces out connect retries.
	Backoff BackoffConfig
}

// DefaultClientConfig returns sensible defaults for a Client.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		PageLimit: DefaultPageLimit,
		Backoff:   DefaultBackoff(),
	}
}

// Client is the serializing facade over one transport connection. Every
// public method holds the same mutex for its full duration, pagination
// included, so exactly one protocol exchange is in flight at a time.
type Client struct {
	mu sync.Mutex

	transport Transport
	session   *Session
	areas     *AreaResolver
	config    ClientConfig
	logger    *logging.Logger

	sleep func(time.Duration)
	rng   *rand.Rand
}

// NewClient creates a disconnected Client over t.
func NewClient(t Transport, config ClientConfig, logger *logging.Logger) *Client {
	logger = logging.OrNop(logger)
	if config.PageLimit <= 0 {
		config.PageLimit = DefaultPageLimit
	}
	return &Client{
		transport: t,
		session:   NewSession(t, logger),
		config:    config,
		logger:    logger,
		sleep:     time.Sleep,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Connect opens the connection, retrying network failures as configured.
// Resolution caches from a previous connection are discarded.
func (c *Client) Connect(params ConnectParams) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.areas = nil

	var err error
	for attempt := 0; ; attempt++ {
		err = c.session.Connect(params)
		if err == nil || !errors.IsNetworkFailure(err) || attempt >= c.config.ConnectRetries {
			break
		}
		delay := c.config.Backoff.Delay(attempt+1, c.rng)
		c.logger.Info("retrying connect", "attempt", attempt+1, "delay", delay.String())
		c.sleep(delay)
	}
	if err != nil {
		return err
	}

	state := c.session.State()
	c.areas = NewAreaResolver(c.transport.StorageAreas, c.logger.WithSession(state.ID))
	return nil
}

// Disconnect closes the connection. It is idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.session.Disconnect()
	c.areas = nil
}

// Close implements io.Closer. Disconnect failures are logged, never returned.
func (c *Client) Close() error {
	c.Disconnect()
	return nil
}

// Session returns a snapshot of the connection state.
func (c *Client) Session() SessionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State()
}

// requireConnected must be called with c.mu held.
func (c *Client) requireConnected() error {
	if !c.session.Connected() || c.areas == nil {
		return errors.ErrNotConnected
	}
	return nil
}

func (c *Client) log() *logging.Logger {
	return c.logger.WithSession(c.session.State().ID)
}

// StorageAreas returns the storage areas advertised by the server.
func (c *Client) StorageAreas() ([]StorageArea, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnected(); err != nil {
		return nil, err
	}
	return c.areas.Areas(), nil
}

// GlobalArea returns the area used for listings and as the content fallback.
func (c *Client) GlobalArea() (StorageArea, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnected(); err != nil {
		return StorageArea{}, false, err
	}
	area, ok := c.areas.Global()
	return area, ok, nil
}

// ResolveArea returns the area a read or write of obj would target.
func (c *Client) ResolveArea(obj ObjectInfo) (StorageArea, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnected(); err != nil {
		return StorageArea{}, err
	}
	return c.areas.ForObject(obj)
}

// listingArea must be called with c.mu held. Listings tolerate the server
// default area, so a missing area list degrades to it.
func (c *Client) listingArea() StorageArea {
	if area, ok := c.areas.Global(); ok {
		return area
	}
	c.log().Warn("listing with server default area")
	return StorageArea{Kind: KindUserLibrary}
}

func normalizeLibrary(library string) string {
	return strings.ToUpper(strings.TrimSpace(library))
}

// WalkLibraries hands each page of library names matching filter to fn
// until fn returns false or the listing ends.
func (c *Client) WalkLibraries(filter string, fn func([]string) bool) (PageResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireConnected(); err != nil {
		return PageResult{}, err
	}

	area := c.listingArea()
	res, err := Paginate(
		func() Step[string] { return stepOf(c.transport.LibrariesFirst(area, filter)) },
		func() Step[string] { return stepOf(c.transport.LibrariesNext()) },
		c.config.PageLimit,
		fn,
	)
	if err != nil {
		return res, errors.NewProtocolError("library listing failed", err).
			WithOp("list-libraries").WithArea(area.DatabaseID, area.FileNumber)
	}
	c.warnTruncated(res, "libraries", "")
	return res, nil
}

// ListLibraries returns every library name matching filter.
func (c *Client) ListLibraries(filter string) ([]string, error) {
	var libs []string
	_, err := c.WalkLibraries(filter, func(page []string) bool {
		libs = append(libs, page...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return libs, nil
}

// WalkObjects hands each page of objects in library matching filter to fn
// until fn returns false or the listing ends. It logs on to library first
// when needed.
func (c *Client) WalkObjects(library, filter string, fn func([]ObjectInfo) bool) (PageResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	library = normalizeLibrary(library)
	if err := c.requireConnected(); err != nil {
		return PageResult{}, err
	}
	if err := c.session.EnsureLibrary(library); err != nil {
		return PageResult{}, err
	}

	area := c.listingArea()
	res, err := Paginate(
		func() Step[ObjectInfo] { return stepOf(c.transport.ObjectsFirst(area, library, filter)) },
		func() Step[ObjectInfo] { return stepOf(c.transport.ObjectsNext()) },
		c.config.PageLimit,
		fn,
	)
	if err != nil {
		return res, errors.NewProtocolError("object listing failed", err).
			WithOp("list-objects").WithLibrary(library).WithArea(area.DatabaseID, area.FileNumber)
	}
	c.warnTruncated(res, "objects", library)
	return res, nil
}

// ListObjects returns every object in library matching filter.
func (c *Client) ListObjects(library, filter string) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	_, err := c.WalkObjects(library, filter, func(page []ObjectInfo) bool {
		objects = append(objects, page...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return objects, nil
}

func (c *Client) warnTruncated(res PageResult, what, library string) {
	if res.Truncated {
		c.log().Warn("page limit reached, listing may be incomplete", "listing", what, "library", library,
			"limit", c.config.PageLimit, "items", res.Items)
	}
}

// LookupObject finds name in library through an object listing so the
// result carries the object's own area coordinates. When typ is known only
// an object of that type matches.
func (c *Client) LookupObject(library, name string, typ ObjectType) (ObjectInfo, error) {
	library = normalizeLibrary(library)

	var found ObjectInfo
	var ok bool
	_, err := c.WalkObjects(library, name, func(page []ObjectInfo) bool {
		for _, obj := range page {
			if strings.EqualFold(obj.Name, name) && (typ == TypeUnknown || obj.Type == typ) {
				found, ok = obj, true
				return false
			}
		}
		return true
	})
	if err != nil {
		return ObjectInfo{}, err
	}
	if !ok {
		return ObjectInfo{}, errors.NewNotFoundError("object", library+"/"+name).WithCause(errors.ErrObjectNotFound)
	}
	return found, nil
}

// contentArea runs the shared preconditions of ReadSource and WriteSource:
// connected, logged on to library, area resolved. Must be called with c.mu held.
func (c *Client) contentArea(library string, obj ObjectInfo) (StorageArea, error) {
	if err := c.requireConnected(); err != nil {
		return StorageArea{}, err
	}
	if err := c.session.EnsureLibrary(library); err != nil {
		return StorageArea{}, err
	}
	area, err := c.areas.ForObject(obj)
	if err != nil {
		var resErr *errors.ResolutionError
		if errors.As(err, &resErr) {
			resErr.WithLibrary(library)
		}
		return StorageArea{}, err
	}
	return area, nil
}

// withTransaction opens a transaction, runs fn and always closes it. A
// failing close is logged and never masks fn's result.
func (c *Client) withTransaction(fn func(tx Transaction) error) error {
	tx, err := c.transport.BeginTransaction()
	if err != nil {
		return err
	}
	defer func() {
		if cerr := tx.Close(); cerr != nil {
			c.log().Warn("closing transaction failed", "error", cerr.Error())
		}
	}()
	return fn(tx)
}

// ReadSource returns the source of obj in library as one string with lines
// joined by "\n".
func (c *Client) ReadSource(library string, obj ObjectInfo) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	library = normalizeLibrary(library)
	area, err := c.contentArea(library, obj)
	if err != nil {
		return "", err
	}

	var lines []string
	err = c.withTransaction(func(tx Transaction) error {
		var rerr error
		lines, rerr = tx.ReadSource(area, library, obj)
		return rerr
	})
	if err != nil {
		return "", errors.NewProtocolError("read source failed", err).WithOp("read").
			WithLibrary(library).WithObject(obj.FileName()).WithArea(area.DatabaseID, area.FileNumber)
	}

	c.log().Debug("source read", "library", library, "object", obj.FileName(), "lines", len(lines), "area", area.String())
	return strings.Join(lines, "\n"), nil
}

// WriteSource saves text as the source of obj in library. The text is split
// on "\n" keeping trailing empty lines, so a final newline round-trips.
func (c *Client) WriteSource(library string, obj ObjectInfo, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	library = normalizeLibrary(library)
	area, err := c.contentArea(library, obj)
	if err != nil {
		return err
	}

	lines := strings.Split(text, "\n")
	if err := c.session.Codepage().CheckLines(lines); err != nil {
		return errors.NewProtocolError("source not sent", err).WithOp("write").
			WithLibrary(library).WithObject(obj.FileName())
	}

	err = c.withTransaction(func(tx Transaction) error {
		return tx.WriteSource(area, library, obj, lines, 0)
	})
	if err != nil {
		return errors.NewProtocolError("write source failed", err).WithOp("write").
			WithLibrary(library).WithObject(obj.FileName()).WithArea(area.DatabaseID, area.FileNumber)
	}

	c.log().Info("source written", "library", library, "object", obj.FileName(), "lines", len(lines), "area", area.String())
	return nil
}
