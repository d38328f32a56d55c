package echotest

import (
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"echoline/internal/shared/logger"
)

// Mode selects how the server answers what it reads.
type Mode string

const (
	// ModeEcho writes back exactly the bytes that were read, as they are read.
	ModeEcho Mode = "echo"
	// ModeTruncate reads one chunk, echoes at most TruncateBytes of it and
	// closes, so the peer observes a reply shorter than its message. A
	// non-positive TruncateBytes consumes the chunk and closes without
	// echoing anything.
	ModeTruncate Mode = "truncate"
	// ModeDouble echoes every chunk twice, producing more bytes than the
	// peer asked for.
	ModeDouble Mode = "double"
	// ModePartial echoes at most TruncateBytes of the first chunk, then
	// keeps the connection open without ever replying again, so the peer
	// ends up holding a prefix when its own deadline fires.
	ModePartial Mode = "partial"
	// ModeSilent consumes input and never answers, keeping the connection
	// open until the peer gives up.
	ModeSilent Mode = "silent"
)

// Config controls the behavior of a Server.
type Config struct {
	Mode          Mode
	TruncateBytes int           // reply budget for ModeTruncate and ModePartial
	Delay         time.Duration // optional pause before each reply
}

// Server is a controllable echo counterpart for the client. Each accepted
// connection is answered according to the configured Mode.
type Server struct {
	conf     Config
	listener net.Listener
	log      zerolog.Logger

	closeOnce sync.Once
	waitGroup sync.WaitGroup
}

// New creates a Server with the given behavior. An empty Mode means ModeEcho.
func New(conf Config) *Server {
	if conf.Mode == "" {
		conf.Mode = ModeEcho
	}
	return &Server{
		conf: conf,
		log:  logger.WithComponent("echotest"),
	}
}

// InitializeListener binds listenAddr and prepares serving without blocking.
// Port 0 picks a free port; the actually bound address is returned.
func (s *Server) InitializeListener(listenAddr string) (net.Addr, error) {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, fmt.Errorf("echo server failed to listen on %s: %w", listenAddr, err)
	}
	s.listener = listener
	s.log.Info().
		Str("listen_addr", listener.Addr().String()).
		Str("mode", string(s.conf.Mode)).
		Msg("echo server is listening")
	return listener.Addr(), nil
}

// Serve runs the blocking accept loop. Must be called after InitializeListener.
func (s *Server) Serve() {
	if s.listener == nil {
		s.log.Error().Msg("Serve() called before InitializeListener()")
		return
	}
	s.waitGroup.Add(1)
	s.acceptLoop()
}

// Start wraps InitializeListener and a background accept loop. The loop is
// registered with the wait group before the goroutine launches, so a Close
// right after Start still waits for it.
func (s *Server) Start(listenAddr string) (net.Addr, error) {
	addr, err := s.InitializeListener(listenAddr)
	if err != nil {
		return nil, err
	}
	s.waitGroup.Add(1)
	go s.acceptLoop()
	return addr, nil
}

// Addr returns the bound address, or nil before InitializeListener.
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close shuts the listener and waits for in-flight handlers. Safe to call
// more than once.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		if s.listener != nil {
			s.listener.Close()
		}
		s.waitGroup.Wait()
		s.log.Debug().Msg("echo server has been shut down")
	})
}

func (s *Server) acceptLoop() {
	defer s.waitGroup.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if opErr, ok := err.(*net.OpError); ok && strings.Contains(opErr.Err.Error(), "use of closed network connection") {
				s.log.Debug().Msg("echo server listener is closing")
				return
			}
			s.log.Warn().Err(err).Msg("echo server failed to accept connection")
			continue
		}
		s.waitGroup.Add(1)
		go s.handleConnection(conn)
	}
}

func (s *Server) handleConnection(conn net.Conn) {
	defer s.waitGroup.Done()
	defer conn.Close()

	traceID := uuid.NewString()
	l := s.log.With().
		Str("trace_id", traceID).
		Str("client_addr", conn.RemoteAddr().String()).
		Logger()
	l.Debug().Msg("accepted connection")

	switch s.conf.Mode {
	case ModeTruncate:
		s.handleTruncate(conn, l)
	case ModePartial:
		s.handlePartial(conn, l)
	default:
		s.handleStream(conn, l)
	}
	l.Debug().Msg("connection finished")
}

// handleStream serves the chunk-at-a-time modes until the peer closes.
func (s *Server) handleStream(conn net.Conn, l zerolog.Logger) {
	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			if writeErr := s.reply(conn, buf[:n]); writeErr != nil {
				l.Warn().Err(writeErr).Msg("failed to write echo reply")
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				l.Debug().Err(err).Msg("read ended")
			}
			return
		}
	}
}

func (s *Server) reply(conn net.Conn, chunk []byte) error {
	if s.conf.Delay > 0 {
		time.Sleep(s.conf.Delay)
	}
	switch s.conf.Mode {
	case ModeSilent:
		return nil
	case ModeDouble:
		if _, err := conn.Write(chunk); err != nil {
			return err
		}
		_, err := conn.Write(chunk)
		return err
	default:
		_, err := conn.Write(chunk)
		return err
	}
}

// handleTruncate consumes one whole chunk so the close is a clean FIN rather
// than a reset, but echoes at most the configured budget of it.
func (s *Server) handleTruncate(conn net.Conn, l zerolog.Logger) {
	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	if n == 0 {
		if err != nil && err != io.EOF {
			l.Debug().Err(err).Msg("read ended before any data")
		}
		return
	}

	budget := s.conf.TruncateBytes
	if budget > n {
		budget = n
	}
	if budget <= 0 {
		return
	}
	if s.conf.Delay > 0 {
		time.Sleep(s.conf.Delay)
	}
	if _, err := conn.Write(buf[:budget]); err != nil {
		l.Warn().Err(err).Msg("failed to write truncated reply")
	}
}

// handlePartial answers the first chunk with at most the configured budget,
// then goes silent while holding the connection open until the peer closes.
func (s *Server) handlePartial(conn net.Conn, l zerolog.Logger) {
	buf := make([]byte, 64*1024)
	n, err := conn.Read(buf)
	if n == 0 {
		if err != nil && err != io.EOF {
			l.Debug().Err(err).Msg("read ended before any data")
		}
		return
	}

	budget := s.conf.TruncateBytes
	if budget > n {
		budget = n
	}
	if budget > 0 {
		if s.conf.Delay > 0 {
			time.Sleep(s.conf.Delay)
		}
		if _, err := conn.Write(buf[:budget]); err != nil {
			l.Warn().Err(err).Msg("failed to write partial reply")
			return
		}
	}

	// Consume anything further without replying.
	for {
		if _, err := conn.Read(buf); err != nil {
			return
		}
	}
}
