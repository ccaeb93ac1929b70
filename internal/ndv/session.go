package ndv

import (
	"net"
	"os"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/Iron-Ham/ndvlink/internal/errors"
	"github.com/Iron-Ham/ndvlink/internal/logging"
)

// Session owns the transport handle and the state of one connection:
// connect, logon, disconnect and classification of connect failures.
// It is not synchronized; Client serializes access to it.
type Session struct {
	transport Transport
	logger    *logging.Logger

	state    SessionState
	codepage Codepage
}

// NewSession creates a disconnected Session over t.
func NewSession(t Transport, logger *logging.Logger) *Session {
	return &Session{
		transport: t,
		logger:    logging.OrNop(logger),
	}
}

// normalizeParams fills defaults and upper-cases the user id.
func normalizeParams(p ConnectParams) ConnectParams {
	p.Host = strings.TrimSpace(p.Host)
	p.User = strings.ToUpper(strings.TrimSpace(p.User))
	if p.Port <= 0 {
		p.Port = DefaultPort
	}
	if p.Parameters == "" {
		p.Parameters = DefaultParameters
	}
	if strings.TrimSpace(p.ClientCodepage) == "" {
		p.ClientCodepage = DefaultClientCodepage
	}
	return p
}

// Connect opens the transport. An already open connection is closed first,
// even when the new parameters are then rejected.
// The client codepage is resolved and passed explicitly in the parameters.
func (s *Session) Connect(params ConnectParams) error {
	params = normalizeParams(params)

	// A failed reconnect must not leave the previous connection open.
	if s.state.Connected {
		s.Disconnect()
	}

	cp, err := ResolveCodepage(params.ClientCodepage)
	if err != nil {
		return err
	}
	params.ClientCodepage = cp.Name

	log := s.logger.WithHost(params.Host, params.Port).With("user", params.User)
	log.Debug("connecting", "codepage", cp.Name, "parameters", params.Parameters)

	if err := s.transport.Connect(params); err != nil {
		connErr := classifyConnectError(err, params)
		log.Warn("connect failed", "error", connErr.Error())
		return connErr
	}

	s.codepage = cp
	s.state = SessionState{
		ID:        uuid.NewString(),
		Host:      params.Host,
		Port:      params.Port,
		User:      params.User,
		Connected: true,
	}
	log.Info("connected", "session_id", s.state.ID)
	return nil
}

// classifyConnectError tells a rejected logon from an unreachable server by
// inspecting the transport's cause. Anything else is a protocol failure.
func classifyConnectError(err error, params ConnectParams) error {
	switch {
	case isNetworkCause(err):
		return errors.NewConnectionError(errors.ConnectionNetwork, "cannot reach development server", err).
			WithHost(params.Host).WithPort(params.Port)
	case isAuthCause(err):
		return errors.NewConnectionError(errors.ConnectionAuth, "credentials rejected", err).
			WithHost(params.Host).WithUser(params.User)
	default:
		return errors.NewProtocolError("connect failed", err).WithOp("connect")
	}
}

func isNetworkCause(err error) bool {
	var opErr *net.OpError
	var dnsErr *net.DNSError
	if errors.As(err, &opErr) || errors.As(err, &dnsErr) {
		return true
	}
	for _, target := range []error{
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.ETIMEDOUT,
		os.ErrDeadlineExceeded,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// authWords are fragments of server messages that reject credentials when
// the transport does not set CodeAuthFailed itself.
var authWords = []string{"password", "user id", "userid", "not authorized", "logon denied", "authentication"}

func isAuthCause(err error) bool {
	var te *TransportError
	if !errors.As(err, &te) {
		return false
	}
	if te.Code == CodeAuthFailed {
		return true
	}
	msg := strings.ToLower(te.Message)
	for _, w := range authWords {
		if strings.Contains(msg, w) {
			return true
		}
	}
	return false
}

// Logon switches the active library.
func (s *Session) Logon(library string) error {
	if !s.state.Connected {
		return errors.ErrNotConnected
	}

	if err := s.transport.Logon(library); err != nil {
		return errors.NewProtocolError("logon failed", err).WithOp("logon").WithLibrary(library)
	}

	s.logger.WithSession(s.state.ID).Debug("logged on", "library", library, "previous", s.state.Library)
	s.state.Library = library
	return nil
}

// EnsureLibrary logs on to library unless it is already the active one.
func (s *Session) EnsureLibrary(library string) error {
	if !s.state.Connected {
		return errors.ErrNotConnected
	}
	if s.state.Library == library {
		return nil
	}
	return s.Logon(library)
}

// Disconnect closes the transport. It is idempotent and always leaves the
// session disconnected; a failing transport disconnect is only logged.
func (s *Session) Disconnect() {
	if !s.state.Connected {
		return
	}

	log := s.logger.WithSession(s.state.ID)
	defer func() {
		s.state = SessionState{}
		s.codepage = Codepage{}
	}()

	if err := s.transport.Disconnect(); err != nil {
		log.Warn("disconnect failed", "error", err.Error())
	}
	log.Info("disconnected")
}

// Connected reports whether the session is open.
func (s *Session) Connected() bool {
	return s.state.Connected
}

// State returns a snapshot of the session.
func (s *Session) State() SessionState {
	return s.state
}

// Codepage returns the negotiated client codepage.
func (s *Session) Codepage() Codepage {
	return s.codepage
}
