package tui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"interviewer/internal/session"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Gestures is what key presses drive.
type Gestures interface {
	Down()
	Up()
	Leave()
	PlayLatest()
}

// Keys maps key bytes to gestures. Terminals report no key release, so the
// space bar toggles between down and up.
type Keys struct {
	g     Gestures
	held  bool
	since time.Time
	now   func() time.Time
}

// holdGrace is how long a hold may go unconfirmed by the session state.
const holdGrace = 500 * time.Millisecond

func NewKeys(g Gestures) *Keys {
	return &Keys{g: g, now: time.Now}
}

// Handle applies one key and reports whether the UI should quit.
func (k *Keys) Handle(b byte) (quit bool) {
	switch b {
	case ' ':
		if k.held {
			k.g.Up()
		} else {
			k.g.Down()
			k.since = k.now()
		}
		k.held = !k.held
	case 0x1b: // esc
		if k.held {
			k.g.Leave()
			k.held = false
		}
	case 'p', 'P':
		k.g.PlayLatest()
	case 'q', 'Q', 0x03, 0x04: // ctrl-c, ctrl-d
		if k.held {
			k.g.Leave()
			k.held = false
		}
		return true
	}
	return false
}

// Sync drops a stale hold when the session is no longer recording, e.g.
// after a rejected start.
func (k *Keys) Sync(s session.UIState) {
	if s.Recording || !k.held {
		return
	}
	if s.Phase != "recording" && s.Phase != "finalizing" && k.now().Sub(k.since) > holdGrace {
		k.held = false
	}
}

// Options configures Run.
type Options struct {
	In       *os.File
	Out      io.Writer
	Refresh  time.Duration
	Snapshot func() session.UIState
	Logger   *logrus.Logger
}

// Run redraws on state changes and feeds keys to g until ctx is done or the
// user quits. The terminal is put in raw mode when In is a TTY.
func Run(ctx context.Context, g Gestures, opts Options) error {
	if opts.Refresh <= 0 {
		opts.Refresh = 50 * time.Millisecond
	}
	fd := int(opts.In.Fd())
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			return fmt.Errorf("raw mode: %w", err)
		}
		defer func() { _ = term.Restore(fd, old) }()
	} else if opts.Logger != nil {
		opts.Logger.Warn("stdin is not a terminal; keys are line buffered")
	}

	keys := make(chan byte, 16)
	go func() {
		buf := make([]byte, 1)
		for {
			n, err := opts.In.Read(buf)
			if err != nil {
				close(keys)
				return
			}
			if n == 1 {
				select {
				case keys <- buf[0]:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	k := NewKeys(g)
	ticker := time.NewTicker(opts.Refresh)
	defer ticker.Stop()
	var last session.UIState
	drawn := false
	draw := func() {
		s := opts.Snapshot()
		k.Sync(s)
		if drawn && s == last {
			return
		}
		last, drawn = s, true
		fmt.Fprint(opts.Out, "\x1b[H\x1b[2J"+Render(s))
	}
	draw()
	for {
		select {
		case <-ctx.Done():
			return nil
		case b, ok := <-keys:
			if !ok {
				return nil
			}
			if k.Handle(b) {
				return nil
			}
		case <-ticker.C:
			draw()
		}
	}
}
