package ndv

import (
	"fmt"
	"slices"
	"sync"

	"github.com/spf13/afero"

	"github.com/Iron-Ham/ndvlink/internal/errors"
	"github.com/Iron-Ham/ndvlink/internal/logging"
)

const (
	// DefaultPort is the conventional development server port.
	DefaultPort = 2700
	// DefaultParameters requests ICU conversion with the German/Austrian
	// EBCDIC code page on the server side.
	DefaultParameters = "CFICU=ON,CP=IBM01141"
	// DefaultClientCodepage is the single-byte codepage announced for the client.
	DefaultClientCodepage = "windows-1252"
)

// ConnectParams are handed to the transport on connect. ClientCodepage is
// always an explicit single-byte codepage; no process-wide default is
// consulted.
type ConnectParams struct {
	Host           string
	Port           int
	User           string
	Password       string
	Parameters     string
	ClientCodepage string
}

// UploadFlags modify a source upload. A plain save uses none.
type UploadFlags uint8

const (
	UploadCatalog UploadFlags = 1 << iota
	UploadStow
)

// Transport is the vendor client. Implementations are not required to be
// safe for concurrent use; Client never calls one from two goroutines at once.
//
// The listing calls follow a first/next idiom. The transport signals the end
// of a listing either with an empty page or with a *TransportError whose Code
// is CodeEndOfData.
type Transport interface {
	Connect(params ConnectParams) error
	Logon(library string) error
	Disconnect() error

	StorageAreas() ([]StorageArea, error)

	LibrariesFirst(area StorageArea, filter string) ([]string, error)
	LibrariesNext() ([]string, error)

	ObjectsFirst(area StorageArea, library, filter string) ([]ObjectInfo, error)
	ObjectsNext() ([]ObjectInfo, error)

	BeginTransaction() (Transaction, error)
}

// Transaction is the per-call context for content operations. It must be
// closed on every exit path.
type Transaction interface {
	ReadSource(area StorageArea, library string, obj ObjectInfo) ([]string, error)
	WriteSource(area StorageArea, library string, obj ObjectInfo, lines []string, flags UploadFlags) error
	Close() error
}

// ErrorCode classifies a TransportError.
type ErrorCode int

const (
	CodeUnknown ErrorCode = iota
	// CodeEndOfData is not a failure: the listing has no further pages.
	CodeEndOfData
	CodeAuthFailed
	CodeFileNotOpen
	CodeRecordNotFound
	CodeCodepageMismatch
	CodeLibraryNotFound
)

var codeNames = map[ErrorCode]string{
	CodeUnknown:          "unknown",
	CodeEndOfData:        "end of data",
	CodeAuthFailed:       "authentication failed",
	CodeFileNotOpen:      "file not open",
	CodeRecordNotFound:   "record not found",
	CodeCodepageMismatch: "codepage mismatch",
	CodeLibraryNotFound:  "library not found",
}

func (c ErrorCode) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("code(%d)", int(c))
}

// TransportError is the error type raised by transports. Number carries the
// server's own message number when one was returned.
type TransportError struct {
	Code    ErrorCode
	Number  int
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Number != 0 {
		msg = fmt.Sprintf("NAT%04d %s", e.Number, msg)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsEndOfData reports whether err is the transport's end-of-listing signal.
func IsEndOfData(err error) bool {
	var te *TransportError
	return errors.As(err, &te) && te.Code == CodeEndOfData
}

// TransportOptions configure a transport created from the registry.
type TransportOptions struct {
	// Fixture is the document served by the fixture transport.
	Fixture string
	// Fs is the filesystem fixtures are read from and written back to
	// (default: the OS filesystem).
	Fs     afero.Fs
	Logger *logging.Logger
}

// TransportFactory creates a Transport.
type TransportFactory func(opts TransportOptions) (Transport, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]TransportFactory{}
)

// RegisterTransport makes a transport available by name. It panics when the
// name is registered twice.
func RegisterTransport(name string, factory TransportFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("ndv: RegisterTransport factory is nil")
	}
	if _, dup := registry[name]; dup {
		panic("ndv: RegisterTransport called twice for " + name)
	}
	registry[name] = factory
}

// NewTransport creates the transport registered under name.
func NewTransport(name string, opts TransportOptions) (Transport, error) {
	registryMu.RLock()
	factory, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown transport %q (available: %v)", name, Transports())
	}
	return factory(opts)
}

// Transports returns the sorted names of registered transports.
func Transports() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
