package playback

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/google/shlex"
	"github.com/sirupsen/logrus"
)

// CommandHandle plays the fetched reply with an external player such as
// ffplay or afplay. The {file} placeholder receives the local path.
type CommandHandle struct {
	argv        []string
	fetch       *fetcher
	logger      *logrus.Logger
	timeout     time.Duration
	CrossOrigin string

	mu      sync.Mutex
	src     string
	local   string
	cmd     *exec.Cmd
	cancel  context.CancelFunc
	playing bool
}

// ParsePlayerCommand splits a player command line and checks for {file}.
func ParsePlayerCommand(raw string) ([]string, error) {
	argv, err := shlex.Split(raw)
	if err != nil {
		return nil, fmt.Errorf("parse playback.command: %w", err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("playback.command is empty")
	}
	hasFile := false
	for _, a := range argv {
		if strings.Contains(a, "{file}") {
			hasFile = true
		}
	}
	if !hasFile {
		argv = append(argv, "{file}")
	}
	return argv, nil
}

// NewCommandHandle builds a handle for src. timeout bounds one playback.
func NewCommandHandle(src, command, cacheDir string, timeout time.Duration, logger *logrus.Logger) (*CommandHandle, error) {
	argv, err := ParsePlayerCommand(command)
	if err != nil {
		return nil, err
	}
	return &CommandHandle{
		argv:        argv,
		fetch:       newFetcher(cacheDir, timeout, CrossOriginAnonymous),
		logger:      logger,
		timeout:     timeout,
		CrossOrigin: CrossOriginAnonymous,
		src:         src,
	}, nil
}

func (h *CommandHandle) SetSource(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.src = url
	h.local = ""
}

// Load stops any current playback and fetches the source.
func (h *CommandHandle) Load(ctx context.Context) error {
	h.mu.Lock()
	h.stopLocked()
	src := h.src
	h.mu.Unlock()

	local, err := h.fetch.fetch(ctx, src)
	if err != nil {
		return err
	}
	h.mu.Lock()
	if h.src == src {
		h.local = local
	}
	h.mu.Unlock()
	return nil
}

// Play starts the player and returns once it is running.
func (h *CommandHandle) Play(ctx context.Context) error {
	h.mu.Lock()
	needLoad := h.local == ""
	h.mu.Unlock()
	if needLoad {
		if err := h.Load(ctx); err != nil {
			return err
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()

	args := make([]string, len(h.argv))
	for i, a := range h.argv {
		args[i] = strings.ReplaceAll(a, "{file}", h.local)
	}
	var runCtx context.Context
	var cancel context.CancelFunc
	if h.timeout > 0 {
		runCtx, cancel = context.WithTimeout(context.Background(), h.timeout)
	} else {
		runCtx, cancel = context.WithCancel(context.Background())
	}
	cmd := exec.CommandContext(runCtx, args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start player: %w", err)
	}
	h.cmd, h.cancel, h.playing = cmd, cancel, true
	go func() {
		err := cmd.Wait()
		cancel()
		h.mu.Lock()
		if h.cmd == cmd {
			h.playing = false
			h.cmd = nil
		}
		h.mu.Unlock()
		if err != nil && runCtx.Err() == nil {
			h.logger.Warnf("player exited: %v", err)
		}
	}()
	return nil
}

func (h *CommandHandle) Playing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.playing
}

// Stop ends the running player, if any.
func (h *CommandHandle) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
}

func (h *CommandHandle) stopLocked() {
	if h.cancel != nil {
		h.cancel()
		h.cancel = nil
	}
	h.cmd = nil
	h.playing = false
}

func (h *CommandHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stopLocked()
	return nil
}
