package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Versifine/motor/internal/agent"
	"github.com/Versifine/motor/internal/config"
	"github.com/Versifine/motor/internal/event"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 5 * time.Second
	outQueueSize = 64
)

// Server accepts host engine connections. Every connection gets its own
// agent session, torn down when the connection closes.
type Server struct {
	cfg *config.Config
	bus *event.Bus
	log *slog.Logger

	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
	latest   *session
	wg       sync.WaitGroup
}

func NewServer(cfg *config.Config, bus *event.Bus) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Server{
		cfg: cfg,
		bus: bus,
		log: slog.Default().With("component", "bridge"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  16 * 1024,
			WriteBufferSize: 16 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
	}
}

func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Listen.Host, strconv.Itoa(s.cfg.Listen.Port))
}

// ListenAndServe serves the bridge endpoint until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Listen.Path, s.Handler())

	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Bridge listening", "addr", srv.Addr, "path", s.cfg.Listen.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		s.closeSessions()
		s.wg.Wait()
		return err
	case err := <-errCh:
		s.closeSessions()
		s.wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("bridge server: %w", err)
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			s.log.Warn("Upgrade failed", "remote", r.RemoteAddr, "error", err)
			return
		}
		s.wg.Add(1)
		defer s.wg.Done()
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		sess := newSession(ctx, conn, s.cfg, s.bus)
		s.track(sess)
		defer s.untrack(sess)

		s.log.Info("Host connected", "remote", r.RemoteAddr, "session", sess.agent.ID())
		sess.run(ctx, cancel)
		s.log.Info("Host disconnected", "remote", r.RemoteAddr, "session", sess.agent.ID())
	}
}

// Latest returns the agent of the most recent live connection.
func (s *Server) Latest() *agent.Agent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.latest == nil {
		return nil
	}
	return s.latest.agent
}

func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) track(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.agent.ID()] = sess
	s.latest = sess
}

func (s *Server) untrack(sess *session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sess.agent.ID())
	if s.latest == sess {
		s.latest = nil
		for _, other := range s.sessions {
			s.latest = other
			break
		}
	}
}

func (s *Server) closeSessions() {
	s.mu.Lock()
	sessions := make([]*session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		_ = sess.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		_ = sess.conn.Close()
	}
}
