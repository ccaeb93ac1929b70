package ndv

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"slices"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/sourcegraph/conc"

	ndverrors "github.com/Iron-Ham/ndvlink/internal/errors"
	"github.com/Iron-Ham/ndvlink/internal/logging"
)

var (
	userArea    = StorageArea{DatabaseID: 10, FileNumber: 32, Kind: KindUserLibrary}
	primaryArea = StorageArea{DatabaseID: 5, FileNumber: 7, Kind: KindPrimaryLibrary}
)

func newConnectedClient(t *testing.T, f *fakeTransport, cfg ClientConfig) *Client {
	t.Helper()
	c := NewClient(f, cfg, nil)
	c.sleep = func(time.Duration) {}
	if err := c.Connect(connectParams()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return c
}

func TestClient_RequiresConnection(t *testing.T) {
	c := NewClient(newFakeTransport(), DefaultClientConfig(), nil)
	obj := ObjectInfo{Name: "P1"}

	checks := map[string]error{}
	_, checks["StorageAreas"] = c.StorageAreas()
	_, checks["ListLibraries"] = c.ListLibraries("*")
	_, checks["ListObjects"] = c.ListObjects("LIB", "*")
	_, checks["ReadSource"] = c.ReadSource("LIB", obj)
	checks["WriteSource"] = c.WriteSource("LIB", obj, "x")
	_, checks["ResolveArea"] = c.ResolveArea(obj)
	_, checks["LookupObject"] = c.LookupObject("LIB", "P1", TypeUnknown)

	for op, err := range checks {
		if !errors.Is(err, ndverrors.ErrNotConnected) {
			t.Errorf("%s: err = %v, want ErrNotConnected", op, err)
		}
	}
}

func TestClient_ListLibraries(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{primaryArea, userArea}
	f.libPages = []page[string]{
		{items: []string{"ABAK-T", "ABAK-U"}},
		{items: []string{"SYSTEM"}},
		{items: []string{"TEST1", "TEST2"}},
	}
	c := newConnectedClient(t, f, DefaultClientConfig())

	libs, err := c.ListLibraries("*")
	if err != nil {
		t.Fatalf("ListLibraries failed: %v", err)
	}
	want := []string{"ABAK-T", "ABAK-U", "SYSTEM", "TEST1", "TEST2"}
	if !slices.Equal(libs, want) {
		t.Errorf("libs = %v, want %v", libs, want)
	}
	if f.listed != userArea {
		t.Errorf("listed with %v, want global user-library area", f.listed)
	}
	if n := f.count("libs-next"); n != 3 {
		t.Errorf("next called %d times, want 3", n)
	}
}

func TestClient_ListLibrariesPageLimit(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{userArea}
	for i := range 10 {
		f.libPages = append(f.libPages, page[string]{items: []string{fmt.Sprintf("LIB%d", i)}})
	}

	var buf bytes.Buffer
	c := NewClient(f, ClientConfig{PageLimit: 2}, logging.NewWriterLogger(&buf, logging.LevelWarn))
	if err := c.Connect(connectParams()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	libs, err := c.ListLibraries("*")
	if err != nil {
		t.Fatalf("ListLibraries failed: %v", err)
	}
	if len(libs) != 3 {
		t.Errorf("got %d libraries, want 3 (first page + 2 follow-ups)", len(libs))
	}
	if !strings.Contains(buf.String(), "page limit") {
		t.Errorf("truncation not logged: %s", buf.String())
	}
}

func TestClient_ListLibrariesFailure(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{userArea}
	f.libPages = []page[string]{
		{items: []string{"A"}},
		{err: &TransportError{Code: CodeUnknown, Message: "socket reset"}},
	}
	c := newConnectedClient(t, f, DefaultClientConfig())

	_, err := c.ListLibraries("*")
	var pe *ndverrors.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProtocolError", err)
	}
	if pe.Op != "list-libraries" || !pe.HasArea() {
		t.Errorf("missing context: %v", pe)
	}
}

func TestClient_ListingWithoutAreasUsesDefault(t *testing.T) {
	f := newFakeTransport()
	f.libPages = []page[string]{{items: []string{"A"}}}
	c := newConnectedClient(t, f, DefaultClientConfig())

	libs, err := c.ListLibraries("")
	if err != nil {
		t.Fatalf("ListLibraries failed: %v", err)
	}
	if len(libs) != 1 {
		t.Errorf("libs = %v", libs)
	}
	if !f.listed.IsDefault() {
		t.Errorf("listed with %v, want server default area", f.listed)
	}
}

func TestClient_ListObjectsLogsOn(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{userArea}
	f.objPages = []page[ObjectInfo]{
		{items: []ObjectInfo{{Name: "P1", Type: TypeProgram}}},
		{items: []ObjectInfo{{Name: "N1", Type: TypeSubprogram}}},
	}
	c := newConnectedClient(t, f, DefaultClientConfig())

	for range 2 {
		objs, err := c.ListObjects("abak-t", "*")
		if err != nil {
			t.Fatalf("ListObjects failed: %v", err)
		}
		if len(objs) != 2 {
			t.Errorf("got %d objects, want 2", len(objs))
		}
	}
	if n := f.count("logon ABAK-T"); n != 1 {
		t.Errorf("logon ABAK-T sent %d times, want 1", n)
	}
	if c.Session().Library != "ABAK-T" {
		t.Errorf("Library = %q", c.Session().Library)
	}
}

func TestClient_WalkObjectsStops(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{userArea}
	f.objPages = []page[ObjectInfo]{
		{items: []ObjectInfo{{Name: "P1"}}},
		{items: []ObjectInfo{{Name: "P2"}}},
		{items: []ObjectInfo{{Name: "P3"}}},
	}
	c := newConnectedClient(t, f, DefaultClientConfig())

	res, err := c.WalkObjects("LIB", "*", func([]ObjectInfo) bool { return false })
	if err != nil {
		t.Fatalf("WalkObjects failed: %v", err)
	}
	if !res.Stopped || res.Items != 1 {
		t.Errorf("res = %+v, want stopped after one item", res)
	}
	if f.count("objs-next") != 0 {
		t.Error("next page requested after consumer stopped")
	}
}

func TestClient_ReadSourceTargetsObjectArea(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{userArea, primaryArea}
	f.sources["ABAK-T/#BHOBICP"] = []string{"DEFINE DATA", "END-DEFINE", "END"}
	c := newConnectedClient(t, f, DefaultClientConfig())

	obj := ObjectInfo{Name: "#BHOBICP", Type: TypeProgram, DatabaseID: 5, FileNumber: 7}
	text, err := c.ReadSource("ABAK-T", obj)
	if err != nil {
		t.Fatalf("ReadSource failed: %v", err)
	}
	if text != "DEFINE DATA\nEND-DEFINE\nEND" {
		t.Errorf("text = %q", text)
	}
	if f.target != primaryArea {
		t.Errorf("read from %v, want %v", f.target, primaryArea)
	}
	if f.openTx != 0 {
		t.Errorf("%d transactions left open", f.openTx)
	}
}

func TestClient_ReadSourceFallsBackToGlobal(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{primaryArea, userArea}
	f.sources["LIB/P1"] = []string{"END"}
	c := newConnectedClient(t, f, DefaultClientConfig())

	if _, err := c.ReadSource("LIB", ObjectInfo{Name: "P1"}); err != nil {
		t.Fatalf("ReadSource failed: %v", err)
	}
	if f.target != userArea {
		t.Errorf("read from %v, want global %v", f.target, userArea)
	}
}

func TestClient_ReadSourceWithoutAreas(t *testing.T) {
	f := newFakeTransport()
	c := newConnectedClient(t, f, DefaultClientConfig())

	_, err := c.ReadSource("LIB", ObjectInfo{Name: "P1"})
	if !errors.Is(err, ndverrors.ErrNoStorageArea) {
		t.Fatalf("err = %v, want ErrNoStorageArea", err)
	}
	var re *ndverrors.ResolutionError
	if !errors.As(err, &re) || re.Library != "LIB" {
		t.Errorf("resolution error lacks library: %v", err)
	}
	if f.count("begin") != 0 {
		t.Error("transaction begun without an area")
	}
}

func TestClient_ReadSourceFailure(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{userArea}
	f.readErr = &TransportError{Code: CodeFileNotOpen, Number: 3017, Message: "file not open"}
	f.closeErr = errors.New("close failed")
	c := newConnectedClient(t, f, DefaultClientConfig())

	_, err := c.ReadSource("LIB", ObjectInfo{Name: "P1", Type: TypeProgram})
	var pe *ndverrors.ProtocolError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProtocolError", err)
	}
	if pe.Op != "read" || pe.Object != "P1.NSP" || pe.DatabaseID != 10 || pe.FileNumber != 32 {
		t.Errorf("context = %+v", pe)
	}
	if !errors.Is(err, f.readErr) {
		t.Error("read error masked by close error")
	}
	if f.openTx != 0 {
		t.Error("transaction not closed on failure")
	}
}

func TestClient_WriteReadRoundTrip(t *testing.T) {
	texts := []string{
		"WRITE 'HELLO'\nEND",
		"WRITE 'HELLO'\nEND\n",
		"\n\n* comment\n\n",
		"",
		"DEFINE DATA LOCAL\n1 #X (A10)\nEND-DEFINE\n\nEND\n",
	}

	for i, text := range texts {
		t.Run(fmt.Sprintf("case%d", i), func(t *testing.T) {
			f := newFakeTransport()
			f.areas = []StorageArea{userArea}
			c := newConnectedClient(t, f, DefaultClientConfig())
			obj := ObjectInfo{Name: "ROUND", Type: TypeProgram}

			if err := c.WriteSource("lib", obj, text); err != nil {
				t.Fatalf("WriteSource failed: %v", err)
			}
			if want := strings.Count(text, "\n") + 1; len(f.written) != want {
				t.Errorf("sent %d lines, want %d", len(f.written), want)
			}
			got, err := c.ReadSource("LIB", obj)
			if err != nil {
				t.Fatalf("ReadSource failed: %v", err)
			}
			if got != text {
				t.Errorf("round trip = %q, want %q", got, text)
			}
		})
	}
}

func TestClient_WriteSourceRejectsUnrepresentable(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{userArea}
	c := NewClient(f, DefaultClientConfig(), nil)
	params := connectParams()
	params.ClientCodepage = "ISO-8859-1"
	if err := c.Connect(params); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	err := c.WriteSource("LIB", ObjectInfo{Name: "EURO"}, "* ok\nWRITE '€'")
	if !errors.Is(err, ndverrors.ErrUnrepresentableText) {
		t.Fatalf("err = %v, want ErrUnrepresentableText", err)
	}
	if f.count("begin") != 0 {
		t.Error("unrepresentable text reached the transport")
	}
}

func TestClient_LookupObject(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{userArea}
	f.objPages = []page[ObjectInfo]{
		{items: []ObjectInfo{
			{Name: "MENU", Type: TypeMap, DatabaseID: 5, FileNumber: 7},
			{Name: "MENU", Type: TypeProgram, DatabaseID: 5, FileNumber: 7},
		}},
	}
	c := newConnectedClient(t, f, DefaultClientConfig())

	obj, err := c.LookupObject("sys", "menu", TypeProgram)
	if err != nil {
		t.Fatalf("LookupObject failed: %v", err)
	}
	if obj.Type != TypeProgram || !obj.HasArea() {
		t.Errorf("obj = %+v", obj)
	}

	obj, err = c.LookupObject("SYS", "MENU", TypeUnknown)
	if err != nil || obj.Type != TypeMap {
		t.Errorf("untyped lookup = %+v, %v; want first match", obj, err)
	}

	_, err = c.LookupObject("SYS", "MENU", TypeDialog)
	if !errors.Is(err, ndverrors.ErrObjectNotFound) {
		t.Errorf("err = %v, want ErrObjectNotFound", err)
	}
}

func TestClient_ConnectRetriesNetworkFailures(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}

	f := newFakeTransport()
	f.connectErrs = []error{refused, refused}
	c := NewClient(f, ClientConfig{ConnectRetries: 2, Backoff: BackoffConfig{InitialDelay: time.Second, Multiplier: 2}}, nil)
	var delays []time.Duration
	c.sleep = func(d time.Duration) { delays = append(delays, d) }

	if err := c.Connect(connectParams()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if !slices.Equal(delays, []time.Duration{time.Second, 2 * time.Second}) {
		t.Errorf("delays = %v", delays)
	}
	if f.count("connect") != 3 {
		t.Errorf("connect attempts = %d, want 3", f.count("connect"))
	}
}

func TestClient_ConnectGivesUpAfterRetries(t *testing.T) {
	refused := &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}

	f := newFakeTransport()
	f.connectErrs = []error{refused, refused, refused}
	c := NewClient(f, ClientConfig{ConnectRetries: 1}, nil)
	c.sleep = func(time.Duration) {}

	err := c.Connect(connectParams())
	if !ndverrors.IsNetworkFailure(err) {
		t.Fatalf("err = %v, want network failure", err)
	}
	if f.count("connect") != 2 {
		t.Errorf("connect attempts = %d, want 2", f.count("connect"))
	}
}

func TestClient_ConnectNeverRetriesAuthFailures(t *testing.T) {
	f := newFakeTransport()
	f.connectErrs = []error{&TransportError{Code: CodeAuthFailed}}
	c := NewClient(f, ClientConfig{ConnectRetries: 5}, nil)
	c.sleep = func(time.Duration) { t.Error("slept before retrying an auth failure") }

	err := c.Connect(connectParams())
	if !ndverrors.IsAuthFailure(err) {
		t.Fatalf("err = %v, want auth failure", err)
	}
	if f.count("connect") != 1 {
		t.Errorf("connect attempts = %d, want 1", f.count("connect"))
	}
}

func TestClient_ReconnectResetsCaches(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{userArea}
	c := newConnectedClient(t, f, DefaultClientConfig())

	for range 3 {
		if _, err := c.ListLibraries("*"); err != nil {
			t.Fatalf("ListLibraries failed: %v", err)
		}
	}
	if f.count("areas") != 1 {
		t.Errorf("areas fetched %d times in one session, want 1", f.count("areas"))
	}

	f.areas = []StorageArea{primaryArea}
	if err := c.Connect(connectParams()); err != nil {
		t.Fatalf("reconnect failed: %v", err)
	}
	area, ok, err := c.GlobalArea()
	if err != nil || !ok {
		t.Fatalf("GlobalArea = %v, %v, %v", area, ok, err)
	}
	if area != primaryArea {
		t.Errorf("stale global area %v after reconnect", area)
	}
	if f.count("areas") != 2 {
		t.Errorf("areas fetched %d times, want 2", f.count("areas"))
	}
}

func TestClient_ReconnectBadCodepage(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{userArea}
	c := newConnectedClient(t, f, DefaultClientConfig())

	params := connectParams()
	params.ClientCodepage = "utf-8"
	if err := c.Connect(params); !errors.Is(err, ndverrors.ErrUnsupportedCodepage) {
		t.Fatalf("err = %v, want ErrUnsupportedCodepage", err)
	}
	if c.Session().Connected {
		t.Error("client reports connected after a rejected reconnect")
	}
	if f.count("disconnect") != 1 {
		t.Errorf("disconnect sent %d times, want 1", f.count("disconnect"))
	}
	if f.count("connect") != 1 {
		t.Errorf("connect sent %d times, want 1", f.count("connect"))
	}
	if _, err := c.StorageAreas(); !errors.Is(err, ndverrors.ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestClient_DisconnectIsIdempotent(t *testing.T) {
	f := newFakeTransport()
	f.disconnectErr = errors.New("broken pipe")
	c := newConnectedClient(t, f, DefaultClientConfig())

	c.Disconnect()
	if err := c.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
	if c.Session().Connected {
		t.Error("still connected")
	}
	if f.count("disconnect") != 1 {
		t.Errorf("disconnect sent %d times, want 1", f.count("disconnect"))
	}
	if _, err := c.StorageAreas(); !errors.Is(err, ndverrors.ErrNotConnected) {
		t.Errorf("err = %v after disconnect, want ErrNotConnected", err)
	}
}

func TestClient_SerializesConcurrentCallers(t *testing.T) {
	f := newFakeTransport()
	f.areas = []StorageArea{userArea}
	f.libPages = []page[string]{{items: []string{"A"}}, {items: []string{"B"}}}
	f.objPages = []page[ObjectInfo]{{items: []ObjectInfo{{Name: "P1"}}}}
	f.delay = time.Millisecond
	c := newConnectedClient(t, f, DefaultClientConfig())

	var wg conc.WaitGroup
	for i := range 24 {
		wg.Go(func() {
			lib := fmt.Sprintf("LIB%d", i%3)
			obj := ObjectInfo{Name: fmt.Sprintf("P%d", i)}
			switch i % 4 {
			case 0:
				_, _ = c.ListLibraries("*")
			case 1:
				_, _ = c.ListObjects(lib, "*")
			case 2:
				_ = c.WriteSource(lib, obj, "END")
			default:
				_, _ = c.ReadSource(lib, obj)
			}
		})
	}
	wg.Wait()

	if f.overlapped.Load() {
		t.Error("transport calls overlapped")
	}
}
