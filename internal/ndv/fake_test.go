package ndv

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// fakeTransport is a scripted Transport. It records every call and flags
// overlapping calls, which Client must never produce.
type fakeTransport struct {
	inFlight   atomic.Int32
	overlapped atomic.Bool

	mu    sync.Mutex
	calls []string

	connectErrs   []error
	logonErr      error
	disconnectErr error

	areas    []StorageArea
	areasErr error

	libPages []page[string]
	objPages []page[ObjectInfo]
	libIdx   int
	objIdx   int

	// listed records the area handed to the last first-page call.
	listed StorageArea

	sources  map[string][]string
	readErr  error
	writeErr error
	closeErr error
	written  []string
	target   StorageArea
	openTx   int

	delay time.Duration
}

type page[T any] struct {
	items []T
	err   error
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{sources: make(map[string][]string)}
}

func (f *fakeTransport) enter(call string) func() {
	if f.inFlight.Add(1) > 1 {
		f.overlapped.Store(true)
	}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { f.inFlight.Add(-1) }
}

func (f *fakeTransport) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeTransport) Connect(params ConnectParams) error {
	defer f.enter("connect " + params.User + " " + params.ClientCodepage)()
	if len(f.connectErrs) > 0 {
		err := f.connectErrs[0]
		f.connectErrs = f.connectErrs[1:]
		return err
	}
	return nil
}

func (f *fakeTransport) Logon(library string) error {
	defer f.enter("logon " + library)()
	return f.logonErr
}

func (f *fakeTransport) Disconnect() error {
	defer f.enter("disconnect")()
	return f.disconnectErr
}

func (f *fakeTransport) StorageAreas() ([]StorageArea, error) {
	defer f.enter("areas")()
	return f.areas, f.areasErr
}

func (f *fakeTransport) LibrariesFirst(area StorageArea, filter string) ([]string, error) {
	defer f.enter("libs-first " + filter)()
	f.listed = area
	f.libIdx = 0
	return f.librariesNext()
}

func (f *fakeTransport) LibrariesNext() ([]string, error) {
	defer f.enter("libs-next")()
	return f.librariesNext()
}

func (f *fakeTransport) librariesNext() ([]string, error) {
	if f.libIdx >= len(f.libPages) {
		return nil, &TransportError{Code: CodeEndOfData}
	}
	p := f.libPages[f.libIdx]
	f.libIdx++
	return p.items, p.err
}

func (f *fakeTransport) ObjectsFirst(area StorageArea, library, filter string) ([]ObjectInfo, error) {
	defer f.enter("objs-first " + library + " " + filter)()
	f.listed = area
	f.objIdx = 0
	return f.objectsNext()
}

func (f *fakeTransport) ObjectsNext() ([]ObjectInfo, error) {
	defer f.enter("objs-next")()
	return f.objectsNext()
}

func (f *fakeTransport) objectsNext() ([]ObjectInfo, error) {
	if f.objIdx >= len(f.objPages) {
		return nil, &TransportError{Code: CodeEndOfData}
	}
	p := f.objPages[f.objIdx]
	f.objIdx++
	return p.items, p.err
}

func (f *fakeTransport) BeginTransaction() (Transaction, error) {
	defer f.enter("begin")()
	f.openTx++
	return &fakeTx{f: f}, nil
}

type fakeTx struct {
	f *fakeTransport
}

func sourceKey(library string, obj ObjectInfo) string {
	return library + "/" + obj.Name
}

func (tx *fakeTx) ReadSource(area StorageArea, library string, obj ObjectInfo) ([]string, error) {
	defer tx.f.enter("read " + sourceKey(library, obj))()
	tx.f.target = area
	if tx.f.readErr != nil {
		return nil, tx.f.readErr
	}
	lines, ok := tx.f.sources[sourceKey(library, obj)]
	if !ok {
		return nil, &TransportError{Code: CodeRecordNotFound, Message: fmt.Sprintf("%s not found", obj.Name)}
	}
	return lines, nil
}

func (tx *fakeTx) WriteSource(area StorageArea, library string, obj ObjectInfo, lines []string, _ UploadFlags) error {
	defer tx.f.enter("write " + sourceKey(library, obj))()
	tx.f.target = area
	if tx.f.writeErr != nil {
		return tx.f.writeErr
	}
	tx.f.sources[sourceKey(library, obj)] = append([]string(nil), lines...)
	tx.f.written = append([]string(nil), lines...)
	return nil
}

func (tx *fakeTx) Close() error {
	defer tx.f.enter("close-tx")()
	tx.f.openTx--
	return tx.f.closeErr
}
