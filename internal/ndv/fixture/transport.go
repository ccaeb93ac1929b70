package fixture

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/ndvlink/internal/logging"
	"github.com/Iron-Ham/ndvlink/internal/ndv"
)

// Name is the name the fixture transport registers under.
const Name = "fixture"

func init() {
	ndv.RegisterTransport(Name, Open)
}

// Transport serves a Document as if it were a development server. Writes
// are kept in memory and written back to the fixture file on Disconnect.
type Transport struct {
	mu sync.Mutex

	doc    *Document
	path   string
	fs     afero.Fs
	logger *logging.Logger

	connected bool
	user      string
	library   string
	refused   int
	dirty     bool

	pendingLibs    []string
	pendingObjects []ndv.ObjectInfo
}

// Open loads the fixture named by opts.Fixture.
func Open(opts ndv.TransportOptions) (ndv.Transport, error) {
	if opts.Fixture == "" {
		return nil, fmt.Errorf("fixture transport requires a fixture file (server.fixture)")
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	data, err := afero.ReadFile(fs, opts.Fixture)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture: %w", err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}

	t := New(doc, opts.Logger)
	t.path = opts.Fixture
	t.fs = fs
	return t, nil
}

// New serves doc without a backing file.
func New(doc *Document, logger *logging.Logger) *Transport {
	return &Transport{
		doc:    doc,
		logger: logging.OrNop(logger).With("transport", Name),
	}
}

// Document returns the served document including unsaved writes.
func (t *Transport) Document() *Document {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.doc
}

func (t *Transport) failure(code ndv.ErrorCode, format string, args ...any) error {
	return &ndv.TransportError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (t *Transport) Connect(params ndv.ConnectParams) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.doc.Host != "" && !strings.EqualFold(t.doc.Host, params.Host) {
		return &net.DNSError{Err: "no such host", Name: params.Host, IsNotFound: true}
	}
	if t.refused < t.doc.RefuseConnects {
		t.refused++
		return &net.OpError{Op: "dial", Net: "tcp", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}
	}
	if len(t.doc.Codepages) > 0 && !slices.ContainsFunc(t.doc.Codepages, func(cp string) bool {
		return strings.EqualFold(cp, params.ClientCodepage)
	}) {
		return t.failure(ndv.CodeCodepageMismatch, "client codepage %s not supported", params.ClientCodepage)
	}
	if len(t.doc.Users) > 0 {
		password, ok := t.doc.Users[params.User]
		if !ok || password != params.Password {
			return t.failure(ndv.CodeAuthFailed, "invalid user id or password")
		}
	}

	t.connected = true
	t.user = params.User
	t.library = ""
	t.logger.Debug("fixture connected", "user", params.User, "codepage", params.ClientCodepage)
	return nil
}

func (t *Transport) Logon(library string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return t.failure(ndv.CodeUnknown, "not connected")
	}
	lib := t.doc.library(library)
	if lib == nil {
		return t.failure(ndv.CodeLibraryNotFound, "library %s does not exist", library)
	}
	t.library = lib.Name
	return nil
}

// Disconnect ends the connection and saves pending writes to the fixture file.
func (t *Transport) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.connected = false
	t.library = ""
	t.pendingLibs = nil
	t.pendingObjects = nil

	if !t.dirty || t.path == "" {
		return nil
	}
	data, err := t.doc.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode fixture: %w", err)
	}
	if err := afero.WriteFile(t.fs, t.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save fixture: %w", err)
	}
	t.dirty = false
	t.logger.Debug("fixture saved", "path", t.path)
	return nil
}

func (t *Transport) StorageAreas() ([]ndv.StorageArea, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil, t.failure(ndv.CodeUnknown, "not connected")
	}
	return t.doc.storageAreas(), nil
}

func matches(filter, name string) bool {
	if filter == "" {
		filter = "*"
	}
	ok, err := doublestar.Match(strings.ToUpper(filter), strings.ToUpper(name))
	return err == nil && ok
}

// nextPage pops one page off pending, or reports the end of the listing the
// way the document asks for.
func nextPage[T any](t *Transport, pending *[]T) ([]T, error) {
	if len(*pending) == 0 {
		*pending = nil
		if t.doc.EndOfData == EndWithEmpty {
			return nil, nil
		}
		return nil, &ndv.TransportError{Code: ndv.CodeEndOfData, Number: 3, Message: "end of data"}
	}
	n := min(t.doc.pageSize(), len(*pending))
	page := slices.Clone((*pending)[:n])
	*pending = (*pending)[n:]
	return page, nil
}

func (t *Transport) LibrariesFirst(area ndv.StorageArea, filter string) ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil, t.failure(ndv.CodeUnknown, "not connected")
	}
	t.pendingLibs = nil
	for _, lib := range t.doc.Libraries {
		if matches(filter, lib.Name) {
			t.pendingLibs = append(t.pendingLibs, strings.ToUpper(lib.Name))
		}
	}
	return nextPage(t, &t.pendingLibs)
}

func (t *Transport) LibrariesNext() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return nextPage(t, &t.pendingLibs)
}

func (t *Transport) ObjectsFirst(area ndv.StorageArea, library, filter string) ([]ndv.ObjectInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil, t.failure(ndv.CodeUnknown, "not connected")
	}
	lib := t.doc.library(library)
	if lib == nil {
		return nil, t.failure(ndv.CodeLibraryNotFound, "library %s does not exist", library)
	}
	t.pendingObjects = nil
	for _, obj := range lib.Objects {
		if matches(filter, obj.Name) {
			t.pendingObjects = append(t.pendingObjects, obj.info(lib))
		}
	}
	return nextPage(t, &t.pendingObjects)
}

func (t *Transport) ObjectsNext() ([]ndv.ObjectInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return nextPage(t, &t.pendingObjects)
}

func (t *Transport) BeginTransaction() (ndv.Transaction, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.connected {
		return nil, t.failure(ndv.CodeUnknown, "not connected")
	}
	return &transaction{t: t}, nil
}

type transaction struct {
	t      *Transport
	closed bool
}

// locate checks the content preconditions the real server enforces.
func (tx *transaction) locate(area ndv.StorageArea, library string) (*Library, error) {
	t := tx.t
	if tx.closed {
		return nil, t.failure(ndv.CodeUnknown, "transaction closed")
	}
	if !t.connected {
		return nil, t.failure(ndv.CodeUnknown, "not connected")
	}
	if !strings.EqualFold(t.library, library) {
		return nil, t.failure(ndv.CodeUnknown, "not logged on to library %s", library)
	}
	if area.IsDefault() {
		return nil, &ndv.TransportError{Code: ndv.CodeFileNotOpen, Number: 3017, Message: "file not open"}
	}
	lib := t.doc.library(library)
	if lib == nil {
		return nil, t.failure(ndv.CodeLibraryNotFound, "library %s does not exist", library)
	}
	return lib, nil
}

func (tx *transaction) ReadSource(area ndv.StorageArea, library string, obj ndv.ObjectInfo) ([]string, error) {
	t := tx.t
	t.mu.Lock()
	defer t.mu.Unlock()

	lib, err := tx.locate(area, library)
	if err != nil {
		return nil, err
	}
	stored := lib.object(obj.Name, obj.Type)
	if stored == nil {
		return nil, &ndv.TransportError{Code: ndv.CodeRecordNotFound, Number: 82, Message: "object " + obj.Name + " not found"}
	}
	if dbid, fnr := stored.home(lib); dbid != area.DatabaseID || fnr != area.FileNumber {
		return nil, &ndv.TransportError{Code: ndv.CodeRecordNotFound, Number: 3113,
			Message: fmt.Sprintf("record not found in %d/%d", area.DatabaseID, area.FileNumber)}
	}
	return strings.Split(stored.Source, "\n"), nil
}

func (tx *transaction) WriteSource(area ndv.StorageArea, library string, obj ndv.ObjectInfo, lines []string, flags ndv.UploadFlags) error {
	t := tx.t
	t.mu.Lock()
	defer t.mu.Unlock()

	lib, err := tx.locate(area, library)
	if err != nil {
		return err
	}

	stored := lib.object(obj.Name, obj.Type)
	if stored == nil {
		if !t.doc.advertises(area.DatabaseID, area.FileNumber) {
			return &ndv.TransportError{Code: ndv.CodeRecordNotFound, Number: 3113,
				Message: fmt.Sprintf("area %d/%d not available", area.DatabaseID, area.FileNumber)}
		}
		stored = &Object{Name: strings.ToUpper(obj.Name), Type: obj.Type.Extension()}
		if area.DatabaseID != lib.DBID || area.FileNumber != lib.FNR {
			stored.DBID, stored.FNR = area.DatabaseID, area.FileNumber
		}
		lib.Objects = append(lib.Objects, stored)
	} else if dbid, fnr := stored.home(lib); dbid != area.DatabaseID || fnr != area.FileNumber {
		return &ndv.TransportError{Code: ndv.CodeRecordNotFound, Number: 3113,
			Message: fmt.Sprintf("record not found in %d/%d", area.DatabaseID, area.FileNumber)}
	}

	stored.Source = strings.Join(lines, "\n")
	stored.User = t.user
	stored.Date = time.Now().UTC().Truncate(time.Second)
	t.dirty = true
	t.logger.Debug("fixture source stored", "library", lib.Name, "object", stored.Name, "lines", len(lines), "flags", int(flags))
	return nil
}

func (tx *transaction) Close() error {
	if tx.closed {
		return fmt.Errorf("transaction already closed")
	}
	tx.closed = true
	return nil
}
