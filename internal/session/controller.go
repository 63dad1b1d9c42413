// Package session drives one push-to-talk conversation: capture on gesture
// down, finalize on gesture up, upload, then play the spoken reply.
//
// All session state lives on a single event-loop goroutine. Sink callbacks,
// level frames, upload replies and playback results are posted to that loop
// as events, so chunk concatenation always completes before the upload for
// that recording is dispatched.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"interviewer/internal/level"
	"interviewer/internal/playback"
	"interviewer/internal/recorder"
	"interviewer/internal/upload"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Uploader submits a finalized recording.
type Uploader interface {
	Upload(ctx context.Context, art recorder.Artifact) (*upload.Result, error)
}

// Player plays the newest reply through a reusable output.
type Player interface {
	SetLatest(url string)
	PlayLatest(ctx context.Context) error
	Stop()
	Close() error
}

// SinkFactory builds the capture sink with the controller's event handlers.
type SinkFactory func(h recorder.Handlers) (recorder.Sink, error)

// Options wires a Controller. NewSink is nil when no microphone is available.
type Options struct {
	NewSink      SinkFactory
	Sampler      level.Sampler
	Frames       level.Scheduler
	Uploader     Uploader
	Player       Player
	Logger       *logrus.Logger
	Observer     Observer
	DefaultMime  string
	CameraDevice string
	OnChange     func(UIState)
	OnTurn       func(Turn)
	NewID        func() string
}

// maxDeferred bounds the gestures queued behind a finalizing recording.
const maxDeferred = 32

// Controller is the recording session state machine.
type Controller struct {
	opts     Options
	logger   *logrus.Logger
	observer Observer

	events chan func()
	done   chan struct{}
	ctx    context.Context
	wg     sync.WaitGroup

	sink      recorder.Sink
	monitor   *level.Monitor
	phase     Phase
	recording bool
	chunks    []recorder.Chunk
	sessionID string
	// gestures that arrived while the previous recording was finalizing
	deferred []func()

	seq      uint64
	applied  uint64
	voiced   uint64
	inflight int

	state    UIState
	snapshot atomic.Pointer[UIState]
}

// New performs setup: the sink is built once here, which arms the controller
// when a microphone stream exists.
func New(opts Options) *Controller {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if opts.Frames == nil {
		opts.Frames = level.FrameScheduler{}
	}
	c := &Controller{
		opts:     opts,
		logger:   opts.Logger,
		observer: opts.Observer,
		events:   make(chan func(), 256),
		done:     make(chan struct{}),
		ctx:      context.Background(),
	}
	if opts.Sampler != nil {
		c.monitor = level.NewMonitor(opts.Sampler, loopScheduler{c: c, frames: opts.Frames})
	}
	if opts.NewSink != nil {
		sink, err := opts.NewSink(recorder.Handlers{
			Data: func(ch recorder.Chunk) { c.post(func() { c.onData(ch) }) },
			Stop: func() { c.post(c.onStop) },
		})
		if err != nil {
			c.logger.Errorf("capture sink: %v", err)
		} else {
			c.sink = sink
			c.phase = PhaseArmed
			c.logger.Infof("recorder ready (mime %q)", sink.MimeType())
		}
	}
	c.state.MicReady = c.sink != nil
	c.state.CameraReady = opts.CameraDevice != ""
	c.state.CameraDevice = opts.CameraDevice
	c.publish()
	return c
}

// Run processes events until ctx is done, then tears the session down.
func (c *Controller) Run(ctx context.Context) error {
	c.ctx = ctx
	defer c.teardown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-c.events:
			fn()
			c.publish()
		}
	}
}

func (c *Controller) teardown() {
	close(c.done)
	if c.monitor != nil {
		c.monitor.Stop()
	}
	if c.recording && c.sink != nil {
		_ = c.sink.Stop()
		c.recording = false
	}
	c.wg.Wait()
	if c.opts.Player != nil {
		if err := c.opts.Player.Close(); err != nil {
			c.logger.Warnf("close player: %v", err)
		}
	}
}

// Down starts a recording (mouse-down, touch-start, key press).
func (c *Controller) Down() { c.post(c.handleDown) }

// Up stops the recording (mouse-up, touch-end, key release).
func (c *Controller) Up() { c.post(c.handleUp) }

// Leave is the pointer leaving the control; it stops like Up.
func (c *Controller) Leave() { c.post(c.handleUp) }

// PlayLatest is the manual play control.
func (c *Controller) PlayLatest() { c.post(c.handlePlay) }

// Snapshot returns the last published state.
func (c *Controller) Snapshot() UIState {
	return *c.snapshot.Load()
}

func (c *Controller) post(fn func()) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.events <- fn:
		return true
	case <-c.done:
		return false
	}
}

func (c *Controller) publish() {
	s := c.state
	s.Phase = c.phase.String()
	c.snapshot.Store(&s)
	if c.opts.OnChange != nil {
		c.opts.OnChange(s)
	}
}

func (c *Controller) setError(msg string) {
	c.state.Error = msg
}

func (c *Controller) handleDown() {
	if c.sink == nil {
		c.logger.Debug("mic down ignored: no capture sink")
		return
	}
	if c.phase == PhaseFinalizing {
		c.deferGesture(c.handleDown)
		return
	}
	if c.phase == PhaseRecording {
		c.logger.Debug("mic down ignored while recording")
		return
	}
	if err := c.sink.Start(); err != nil {
		c.logger.Errorf("start capture: %v", err)
		c.setError(err.Error())
		return
	}
	c.recording = true
	c.phase = PhaseRecording
	c.sessionID = c.opts.NewID()
	c.chunks = nil
	c.state.Recording = true
	c.observer.Recorded()
	c.logger.WithField("session", c.sessionID).Debug("recording started")
	if c.monitor != nil {
		c.monitor.Start(func() bool { return c.recording }, func(v float64) { c.state.Level = v })
	}
}

func (c *Controller) handleUp() {
	if c.phase == PhaseFinalizing && len(c.deferred) > 0 {
		c.deferGesture(c.handleUp)
		return
	}
	if c.sink == nil || !c.recording {
		return
	}
	c.recording = false
	c.state.Recording = false
	c.state.Level = 0
	c.phase = PhaseFinalizing
	if err := c.sink.Stop(); err != nil {
		c.logger.Errorf("stop capture: %v", err)
		c.setError(err.Error())
		c.phase = PhaseIdle
		c.deferred = nil
	}
}

func (c *Controller) deferGesture(fn func()) {
	if len(c.deferred) >= maxDeferred {
		c.logger.Warn("too many gestures while finalizing; dropping")
		return
	}
	c.deferred = append(c.deferred, fn)
}

// replayDeferred runs queued gestures until one starts finalizing again.
func (c *Controller) replayDeferred() {
	for len(c.deferred) > 0 && c.phase != PhaseFinalizing {
		fn := c.deferred[0]
		c.deferred = c.deferred[1:]
		fn()
	}
}

func (c *Controller) onData(ch recorder.Chunk) {
	if len(ch.Data) > 0 {
		c.chunks = append(c.chunks, ch)
	}
}

// onStop finalizes once the sink guarantees no more chunks will arrive.
func (c *Controller) onStop() {
	defer c.replayDeferred()
	if c.phase != PhaseFinalizing {
		c.logger.Warnf("stop event while %s; dropping %d chunks", c.phase, len(c.chunks))
		c.chunks = nil
		return
	}
	art := recorder.Finalize(c.chunks, c.sink.MimeType(), c.opts.DefaultMime)
	art.SessionID = c.sessionID
	c.chunks = nil
	c.phase = PhaseIdle
	if len(art.Data) == 0 {
		c.logger.WithField("session", art.SessionID).Info("no audio captured; skipping upload")
		c.setError(MsgNoSpeech)
		return
	}
	c.dispatch(art)
}

func (c *Controller) dispatch(art recorder.Artifact) {
	c.seq++
	seq := c.seq
	c.inflight++
	c.state.Busy = true
	c.state.Error = ""
	c.state.AssistantText = ""
	c.logger.WithFields(logrus.Fields{"session": art.SessionID, "bytes": len(art.Data), "type": art.Type}).Info("uploading recording")

	ctx := c.ctx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		res, err := c.opts.Uploader.Upload(ctx, art)
		c.post(func() { c.onUploaded(seq, art.SessionID, res, err) })
	}()
}

func (c *Controller) settle() {
	c.inflight--
	c.state.Busy = c.inflight > 0
}

func (c *Controller) onUploaded(seq uint64, sessionID string, res *upload.Result, err error) {
	log := c.logger.WithField("session", sessionID)
	if seq < c.applied {
		c.settle()
		log.Info("dropping reply superseded by a newer recording")
		return
	}
	c.applied = seq
	if err != nil {
		c.settle()
		c.observer.UploadFailed()
		log.Errorf("error processing recorded audio: %v", err)
		c.setError(err.Error())
		return
	}
	c.observer.Uploaded()
	if res.AudioURL == "" || c.opts.Player == nil {
		c.settle()
		if c.voiced != 0 {
			c.silence()
		}
		c.applyReply(sessionID, res)
		return
	}

	c.voiced = seq
	c.opts.Player.SetLatest(res.AudioURL)
	ctx := c.ctx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		perr := c.opts.Player.PlayLatest(ctx)
		c.post(func() { c.onAutoplay(seq, sessionID, res, perr) })
	}()
}

// onAutoplay publishes the reply whether or not playback started; a blocked
// start is advisory, not a pipeline failure.
func (c *Controller) onAutoplay(seq uint64, sessionID string, res *upload.Result, err error) {
	c.settle()
	if seq < c.applied {
		// A newer text-only reply owns the turn; its stop may have run first.
		if err == nil && c.voiced == seq {
			c.silence()
		}
		return
	}
	c.applyReply(sessionID, res)
	if err != nil {
		c.observer.PlaybackBlocked()
		c.logger.WithField("session", sessionID).Warnf("failed to play reply: %v", err)
		c.setError(MsgPlaybackBlocked)
		return
	}
	c.observer.Played()
}

// silence stops the output off the loop; a fetch in progress holds the player.
func (c *Controller) silence() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.opts.Player.Stop()
	}()
}

func (c *Controller) applyReply(sessionID string, res *upload.Result) {
	c.state.AssistantText = res.Text
	c.state.Transcript = res.Transcript
	if res.AudioURL != "" {
		c.state.AudioURL = res.AudioURL
	}
	if c.opts.OnTurn != nil {
		c.opts.OnTurn(Turn{
			SessionID:  sessionID,
			Transcript: res.Transcript,
			Reply:      res.Text,
			AudioURL:   res.AudioURL,
			Timestamp:  timeNow(),
		})
	}
}

func (c *Controller) handlePlay() {
	c.state.Error = ""
	if c.opts.Player == nil {
		c.setError(MsgNothingToPlay)
		return
	}
	ctx := c.ctx
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		err := c.opts.Player.PlayLatest(ctx)
		c.post(func() { c.onManualPlay(err) })
	}()
}

func (c *Controller) onManualPlay(err error) {
	switch {
	case err == nil:
		c.observer.Played()
	case errors.Is(err, playback.ErrNothingToPlay):
		c.setError(MsgNothingToPlay)
	default:
		c.logger.Errorf("play failed: %v", err)
		c.setError(fmt.Sprintf("%s: %v", MsgPlaybackFailed, err))
	}
}

// loopScheduler runs level frames on the event loop.
type loopScheduler struct {
	c      *Controller
	frames level.Scheduler
}

func (s loopScheduler) Schedule(fn func()) func() {
	return s.frames.Schedule(func() { s.c.post(fn) })
}
