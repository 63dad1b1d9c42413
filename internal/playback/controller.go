// Package playback plays synthesized replies through one reusable output handle.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// ErrNothingToPlay is returned when no reply audio has been resolved yet.
var ErrNothingToPlay = errors.New("no assistant audio available to play")

// Handle is a reusable audio output. Its source is swapped, never recreated.
type Handle interface {
	SetSource(url string)
	Load(ctx context.Context) error
	Play(ctx context.Context) error
	Playing() bool
	Stop()
	Close() error
}

// Factory creates the handle on first use.
type Factory func(url string) (Handle, error)

// Controller owns the single output handle for a session.
type Controller struct {
	factory Factory
	logger  *logrus.Logger

	mu     sync.Mutex
	latest string

	playMu  sync.Mutex
	handle  Handle
	created int
}

func NewController(factory Factory, logger *logrus.Logger) *Controller {
	return &Controller{factory: factory, logger: logger}
}

// SetLatest records the newest resolved reply URL.
func (c *Controller) SetLatest(url string) {
	c.mu.Lock()
	c.latest = url
	c.mu.Unlock()
}

// Latest returns the newest resolved reply URL.
func (c *Controller) Latest() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest
}

// PlayLatest plays the newest reply. The first call constructs the handle;
// later calls swap its source and reload before playing.
func (c *Controller) PlayLatest(ctx context.Context) error {
	url := c.Latest()
	if url == "" {
		return ErrNothingToPlay
	}

	c.playMu.Lock()
	defer c.playMu.Unlock()
	if c.handle == nil {
		h, err := c.factory(url)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		c.handle = h
		c.created++
	} else {
		c.handle.SetSource(url)
		if err := c.handle.Load(ctx); err != nil {
			return fmt.Errorf("load %s: %w", url, err)
		}
	}
	if err := c.handle.Play(ctx); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	c.logger.Debugf("playing %s", url)
	return nil
}

// Playing reports whether the handle is currently producing audio.
func (c *Controller) Playing() bool {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	return c.handle != nil && c.handle.Playing()
}

// Stop silences the handle without releasing it.
func (c *Controller) Stop() {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	if c.handle != nil {
		c.handle.Stop()
	}
}

// Constructed is how many handles have been created; at most one.
func (c *Controller) Constructed() int {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	return c.created
}

// Close releases the handle.
func (c *Controller) Close() error {
	c.playMu.Lock()
	defer c.playMu.Unlock()
	if c.handle == nil {
		return nil
	}
	err := c.handle.Close()
	c.handle = nil
	return err
}
