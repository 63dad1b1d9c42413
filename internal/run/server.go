package run

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"interviewer/internal/config"
	"interviewer/internal/control"
	"interviewer/internal/session"
	"interviewer/internal/tui"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Session is the part of the session controller the server drives.
type Session interface {
	Run(ctx context.Context) error
	Down()
	Up()
	Leave()
	PlayLatest()
	Snapshot() session.UIState
}

// Server runs one interview session with its control socket and metrics.
type Server struct {
	cfg       *config.Config
	logger    *logrus.Logger
	startedAt time.Time
	session   Session

	turnsMu sync.Mutex
	turns   []control.Turn

	metrics metrics
}

// Serve runs a session until interrupted. With interactive set, the terminal
// UI drives the session and quitting it ends the run.
func Serve(cfg *config.Config, logger *logrus.Logger, interactive bool) error {
	if err := config.MustStatePaths(cfg); err != nil {
		return err
	}
	// Write pid file.
	if err := os.WriteFile(cfg.Paths.PidPath, []byte(fmt.Sprintf("%d", os.Getpid())), 0o644); err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(cfg.Paths.PidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("remove pid file: %v", err)
		}
	}()
	// Ensure socket removed
	if err := os.Remove(cfg.Paths.SocketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debugf("remove stale socket: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		startedAt: time.Now(),
		turns:     make([]control.Turn, 0, cfg.UI.HistoryTail),
	}
	p := buildPipeline(ctx, cfg, logger, &srv.metrics, srv.recordTurn)
	defer p.release()
	srv.session = p.session

	// Control socket
	ln, err := net.Listen("unix", cfg.Paths.SocketPath)
	if err != nil {
		return fmt.Errorf("control listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.session.Run(gctx) })
	g.Go(func() error { return srv.controlLoop(gctx, ln) })

	// Metrics server
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			srv.metricsServe(gctx.Done(), cfg.Metrics.Addr, logger)
			return nil
		})
	}

	if interactive {
		g.Go(func() error {
			defer cancel()
			return tui.Run(gctx, srv.session, tui.Options{
				In:       os.Stdin,
				Out:      os.Stdout,
				Refresh:  time.Duration(cfg.UI.RefreshMS) * time.Millisecond,
				Snapshot: srv.session.Snapshot,
				Logger:   logger,
			})
		})
	}

	// Handle signals
	g.Go(func() error {
		sigCh := make(chan os.Signal, 2)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigCh)
		select {
		case s := <-sigCh:
			logger.Infof("received signal %s, shutting down", s)
			cancel()
		case <-gctx.Done():
		}
		return nil
	})

	logger.Infof("session ready; control socket %s", cfg.Paths.SocketPath)
	return g.Wait()
}

// recordTurn keeps the status tail and appends to the turn log.
func (s *Server) recordTurn(t session.Turn) {
	entry := control.Turn{
		SessionID:  t.SessionID,
		Transcript: t.Transcript,
		Reply:      t.Reply,
		AudioURL:   t.AudioURL,
		Timestamp:  t.Timestamp,
	}
	s.turnsMu.Lock()
	defer s.turnsMu.Unlock()
	s.turns = append(s.turns, entry)
	if tail := s.cfg.UI.HistoryTail; tail > 0 && len(s.turns) > tail {
		s.turns = s.turns[len(s.turns)-tail:]
	}
	if s.cfg.Paths.TurnsPath == "" {
		return
	}
	f, err := os.OpenFile(s.cfg.Paths.TurnsPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		s.logger.Warnf("open turn log: %v", err)
		return
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "%s\t%s\t%s\t%s\n",
		entry.Timestamp.Format(time.RFC3339), entry.SessionID, oneLine(entry.Transcript), oneLine(entry.Reply)); err != nil {
		s.logger.Warnf("write turn log: %v", err)
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func (s *Server) controlLoop(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.logger.Errorf("control accept: %v", err)
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() {
		if err := conn.Close(); err != nil && ctx.Err() == nil {
			s.logger.Warnf("control connection close: %v", err)
		}
	}()
	sc := bufio.NewScanner(conn)
	if !sc.Scan() {
		return
	}
	var req control.Request
	if err := json.Unmarshal(sc.Bytes(), &req); err != nil {
		_ = json.NewEncoder(conn).Encode(control.SimpleResponse{OK: false, Message: "bad request"})
		return
	}
	_ = json.NewEncoder(conn).Encode(s.dispatch(req))
}

func (s *Server) dispatch(req control.Request) any {
	ok := func(msg string) control.SimpleResponse { return control.SimpleResponse{OK: true, Message: msg} }
	switch req.Op {
	case control.OpStatus:
		return control.Status{
			Running:   true,
			UptimeSec: time.Since(s.startedAt).Seconds(),
			State:     s.session.Snapshot(),
			Turns:     s.copyTurns(),
		}
	case control.OpHealth:
		return ok("ok")
	case control.OpDown:
		if !s.session.Snapshot().MicReady {
			return control.SimpleResponse{OK: false, Message: "no microphone stream"}
		}
		// Gestures are queued on the session loop; status reports the outcome.
		s.session.Down()
		return ok("recording requested")
	case control.OpUp:
		s.session.Up()
		return ok("stop requested")
	case control.OpLeave:
		s.session.Leave()
		return ok("stop requested")
	case control.OpPlay:
		s.session.PlayLatest()
		return ok("play requested")
	default:
		return control.SimpleResponse{OK: false, Message: fmt.Sprintf("unknown op %q", req.Op)}
	}
}

func (s *Server) copyTurns() []control.Turn {
	s.turnsMu.Lock()
	defer s.turnsMu.Unlock()
	out := make([]control.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}
