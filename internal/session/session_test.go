package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"interviewer/internal/level"
	"interviewer/internal/logging"
	"interviewer/internal/playback"
	"interviewer/internal/recorder"
	"interviewer/internal/upload"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	h      recorder.Handlers
	mime   string
	chunks [][]byte

	mu     sync.Mutex
	starts int
	stops  int
}

func (s *fakeSink) MimeType() string { return s.mime }

func (s *fakeSink) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.starts++
	return nil
}

func (s *fakeSink) Stop() error {
	s.mu.Lock()
	s.stops++
	s.mu.Unlock()
	go func() {
		for _, c := range s.chunks {
			s.h.Data(recorder.Chunk{Data: c, Type: "audio/webm;codecs=opus"})
		}
		s.h.Stop()
	}()
	return nil
}

func (s *fakeSink) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts, s.stops
}

type fakeUploader struct {
	mu   sync.Mutex
	arts []recorder.Artifact
	fn   func(n int, art recorder.Artifact) (*upload.Result, error)
}

func (u *fakeUploader) Upload(_ context.Context, art recorder.Artifact) (*upload.Result, error) {
	u.mu.Lock()
	u.arts = append(u.arts, art)
	n := len(u.arts)
	u.mu.Unlock()
	if u.fn == nil {
		return &upload.Result{Text: "ok"}, nil
	}
	return u.fn(n, art)
}

func (u *fakeUploader) artifacts() []recorder.Artifact {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]recorder.Artifact(nil), u.arts...)
}

type fakePlayer struct {
	mu     sync.Mutex
	latest string
	plays  []string
	stops  int
	err    error
	closed bool
}

func (p *fakePlayer) SetLatest(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.latest = url
}

func (p *fakePlayer) PlayLatest(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == "" {
		return playback.ErrNothingToPlay
	}
	p.plays = append(p.plays, p.latest)
	return p.err
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
}

func (p *fakePlayer) stopped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stops
}

func (p *fakePlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePlayer) played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.plays...)
}

type constSampler float64

func (s constSampler) Level() float64 { return float64(s) }

type countingObserver struct {
	recorded, uploaded, failed, played, blocked atomic.Int32
}

func (o *countingObserver) Recorded()        { o.recorded.Add(1) }
func (o *countingObserver) Uploaded()        { o.uploaded.Add(1) }
func (o *countingObserver) UploadFailed()    { o.failed.Add(1) }
func (o *countingObserver) Played()          { o.played.Add(1) }
func (o *countingObserver) PlaybackBlocked() { o.blocked.Add(1) }

type harness struct {
	c      *Controller
	sink   *fakeSink
	up     *fakeUploader
	player *fakePlayer
	obs    *countingObserver
	cancel context.CancelFunc
	done   chan struct{}
}

func newHarness(t *testing.T, withSink bool, mutate func(*Options)) *harness {
	t.Helper()
	h := &harness{
		sink:   &fakeSink{chunks: [][]byte{[]byte("ab"), {}, []byte("cd")}},
		up:     &fakeUploader{},
		player: &fakePlayer{},
		obs:    &countingObserver{},
		done:   make(chan struct{}),
	}
	opts := Options{
		Uploader:    h.up,
		Player:      h.player,
		Logger:      logging.NewTestLogger(),
		Observer:    h.obs,
		DefaultMime: "audio/webm",
		Sampler:     constSampler(0.5),
		Frames:      level.FrameScheduler{Interval: 2 * time.Millisecond},
	}
	if withSink {
		opts.NewSink = func(hd recorder.Handlers) (recorder.Sink, error) {
			h.sink.h = hd
			return h.sink, nil
		}
	}
	if mutate != nil {
		mutate(&opts)
	}
	h.c = New(opts)
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() {
		defer close(h.done)
		_ = h.c.Run(ctx)
	}()
	t.Cleanup(h.stop)
	return h
}

func (h *harness) stop() {
	h.cancel()
	<-h.done
}

func (h *harness) waitIdle(t *testing.T) UIState {
	t.Helper()
	var s UIState
	require.Eventually(t, func() bool {
		s = h.c.Snapshot()
		return s.Phase != PhaseFinalizing.String() && !s.Busy
	}, 2*time.Second, 5*time.Millisecond)
	return s
}

func TestSetupArmsWithSink(t *testing.T) {
	h := newHarness(t, true, func(o *Options) { o.CameraDevice = "/dev/video0" })
	s := h.c.Snapshot()
	assert.Equal(t, "armed", s.Phase)
	assert.True(t, s.MicReady)
	assert.True(t, s.CameraReady)
	assert.Equal(t, "/dev/video0", s.CameraDevice)
	assert.False(t, s.Recording)
}

func TestDownUpProducesOneArtifact(t *testing.T) {
	var turns []Turn
	var mu sync.Mutex
	h := newHarness(t, true, func(o *Options) {
		o.NewID = func() string { return "sess-1" }
		o.OnTurn = func(tr Turn) { mu.Lock(); turns = append(turns, tr); mu.Unlock() }
	})
	h.up.fn = func(int, recorder.Artifact) (*upload.Result, error) {
		return &upload.Result{Text: "Nice answer.", Transcript: "hello"}, nil
	}

	h.c.Down()
	require.Eventually(t, func() bool { return h.c.Snapshot().Recording }, time.Second, 2*time.Millisecond)
	h.c.Up()

	require.Eventually(t, func() bool { return len(h.up.artifacts()) == 1 }, 2*time.Second, 5*time.Millisecond)
	s := h.waitIdle(t)

	art := h.up.artifacts()[0]
	assert.Equal(t, []byte("abcd"), art.Data)
	assert.Equal(t, "audio/webm;codecs=opus", art.Type)
	assert.Equal(t, "voice.webm", art.Filename)
	assert.Equal(t, "sess-1", art.SessionID)

	assert.Equal(t, "Nice answer.", s.AssistantText)
	assert.Equal(t, "hello", s.Transcript)
	assert.Empty(t, s.Error)
	assert.Empty(t, h.player.played())
	assert.EqualValues(t, 1, h.obs.recorded.Load())
	assert.EqualValues(t, 1, h.obs.uploaded.Load())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, turns, 1)
	assert.Equal(t, "sess-1", turns[0].SessionID)
}

func TestOverlappingDownIsIgnored(t *testing.T) {
	h := newHarness(t, true, nil)
	h.c.Down()
	h.c.Down()
	h.c.Up()
	h.c.Up()
	h.c.Leave()
	require.Eventually(t, func() bool { return len(h.up.artifacts()) == 1 }, 2*time.Second, 5*time.Millisecond)
	h.waitIdle(t)
	starts, stops := h.sink.counts()
	assert.Equal(t, 1, starts)
	assert.Equal(t, 1, stops)
}

func TestBackToBackPairsEachProduceAnArtifact(t *testing.T) {
	ids := 0
	h := newHarness(t, true, func(o *Options) {
		o.NewID = func() string { ids++; return string(rune('a' + ids - 1)) }
	})
	for i := 0; i < 3; i++ {
		h.c.Down()
		h.c.Up()
	}
	require.Eventually(t, func() bool { return len(h.up.artifacts()) == 3 }, 2*time.Second, 5*time.Millisecond)
	h.waitIdle(t)

	starts, stops := h.sink.counts()
	assert.Equal(t, 3, starts)
	assert.Equal(t, 3, stops)
	assert.EqualValues(t, 3, h.obs.recorded.Load())
	var sessions []string
	for _, art := range h.up.artifacts() {
		assert.Equal(t, []byte("abcd"), art.Data)
		sessions = append(sessions, art.SessionID)
	}
	assert.ElementsMatch(t, []string{"a", "b", "c"}, sessions)
}

func TestReleaseWhileFinalizingWithoutPressIsIgnored(t *testing.T) {
	h := newHarness(t, true, nil)
	h.c.Down()
	h.c.Up()
	h.c.Leave()
	require.Eventually(t, func() bool { return len(h.up.artifacts()) == 1 }, 2*time.Second, 5*time.Millisecond)
	h.waitIdle(t)
	time.Sleep(20 * time.Millisecond)
	starts, _ := h.sink.counts()
	assert.Equal(t, 1, starts)
	assert.False(t, h.c.Snapshot().Recording)
}

func TestLeaveStopsLikeUp(t *testing.T) {
	h := newHarness(t, true, nil)
	h.c.Down()
	h.c.Leave()
	require.Eventually(t, func() bool { return len(h.up.artifacts()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestLevelIsZeroAfterStop(t *testing.T) {
	h := newHarness(t, true, nil)
	h.c.Down()
	require.Eventually(t, func() bool { return h.c.Snapshot().Level > 0 }, time.Second, 2*time.Millisecond)
	assert.InDelta(t, 0.5, h.c.Snapshot().Level, 1e-9)

	h.c.Up()
	require.Eventually(t, func() bool { return !h.c.Snapshot().Recording }, time.Second, 2*time.Millisecond)
	assert.Zero(t, h.c.Snapshot().Level)
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, h.c.Snapshot().Level)
}

func TestNoSinkIgnoresGestures(t *testing.T) {
	h := newHarness(t, false, nil)
	h.c.Down()
	h.c.Up()
	h.c.Leave()
	time.Sleep(20 * time.Millisecond)
	s := h.c.Snapshot()
	assert.Equal(t, "idle", s.Phase)
	assert.False(t, s.MicReady)
	assert.False(t, s.Recording)
	assert.Empty(t, h.up.artifacts())
}

func TestSinkFactoryErrorLeavesIdle(t *testing.T) {
	h := newHarness(t, false, func(o *Options) {
		o.NewSink = func(recorder.Handlers) (recorder.Sink, error) { return nil, errors.New("no encoder") }
	})
	assert.Equal(t, "idle", h.c.Snapshot().Phase)
	assert.False(t, h.c.Snapshot().MicReady)
}

func TestUploadFailureSetsError(t *testing.T) {
	h := newHarness(t, true, nil)
	h.up.fn = func(int, recorder.Artifact) (*upload.Result, error) {
		return nil, &upload.Error{Status: 500, Message: "boom"}
	}
	h.c.Down()
	h.c.Up()
	require.Eventually(t, func() bool { return h.c.Snapshot().Error != "" }, 2*time.Second, 5*time.Millisecond)
	s := h.waitIdle(t)
	assert.Equal(t, "boom", s.Error)
	assert.Empty(t, s.AssistantText)
	assert.EqualValues(t, 1, h.obs.failed.Load())
}

func TestEmptyRecordingSkipsUpload(t *testing.T) {
	h := newHarness(t, true, nil)
	h.sink.chunks = nil
	h.c.Down()
	h.c.Up()
	require.Eventually(t, func() bool { return h.c.Snapshot().Error == MsgNoSpeech }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, h.up.artifacts())
}

func TestReplyWithAudioAutoplays(t *testing.T) {
	h := newHarness(t, true, nil)
	h.up.fn = func(int, recorder.Artifact) (*upload.Result, error) {
		return &upload.Result{Text: "Great.", AudioURL: "http://h/voice/a.mp3?t=1"}, nil
	}
	h.c.Down()
	h.c.Up()
	require.Eventually(t, func() bool { return len(h.player.played()) == 1 }, 2*time.Second, 5*time.Millisecond)
	s := h.waitIdle(t)
	assert.Equal(t, "Great.", s.AssistantText)
	assert.Equal(t, "http://h/voice/a.mp3?t=1", s.AudioURL)
	assert.Empty(t, s.Error)
	assert.EqualValues(t, 1, h.obs.played.Load())
}

func TestBlockedAutoplayStillShowsReply(t *testing.T) {
	h := newHarness(t, true, nil)
	h.player.err = errors.New("autoplay blocked")
	h.up.fn = func(int, recorder.Artifact) (*upload.Result, error) {
		return &upload.Result{Text: "Great.", AudioURL: "http://h/a.mp3"}, nil
	}
	h.c.Down()
	h.c.Up()
	require.Eventually(t, func() bool { return h.c.Snapshot().Error == MsgPlaybackBlocked }, 2*time.Second, 5*time.Millisecond)
	s := h.waitIdle(t)
	assert.Equal(t, "Great.", s.AssistantText)
	assert.Equal(t, "http://h/a.mp3", s.AudioURL)
	assert.EqualValues(t, 1, h.obs.blocked.Load())
}

func TestManualPlayWithoutReply(t *testing.T) {
	h := newHarness(t, true, nil)
	h.c.PlayLatest()
	require.Eventually(t, func() bool { return h.c.Snapshot().Error == MsgNothingToPlay }, time.Second, 2*time.Millisecond)
}

func TestManualPlayFailure(t *testing.T) {
	h := newHarness(t, true, nil)
	h.player.SetLatest("http://h/a.mp3")
	h.player.err = errors.New("device gone")
	h.c.PlayLatest()
	require.Eventually(t, func() bool { return h.c.Snapshot().Error == MsgPlaybackFailed+": device gone" }, time.Second, 2*time.Millisecond)
}

func TestStaleReplyIsDropped(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, true, nil)
	h.up.fn = func(n int, _ recorder.Artifact) (*upload.Result, error) {
		if n == 1 {
			<-release
			return &upload.Result{Text: "first"}, nil
		}
		return &upload.Result{Text: "second"}, nil
	}
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	h.c.Down()
	h.c.Up()
	require.Eventually(t, func() bool { return len(h.up.artifacts()) == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.c.Snapshot().Phase == "idle" }, time.Second, 2*time.Millisecond)
	assert.True(t, h.c.Snapshot().Busy)

	h.c.Down()
	h.c.Up()
	require.Eventually(t, func() bool { return h.c.Snapshot().AssistantText == "second" }, 2*time.Second, 5*time.Millisecond)
	assert.True(t, h.c.Snapshot().Busy)

	unblock()
	s := h.waitIdle(t)
	assert.Equal(t, "second", s.AssistantText)
}

func TestNewerTextReplySilencesOlderAudio(t *testing.T) {
	h := newHarness(t, true, nil)
	h.up.fn = func(n int, _ recorder.Artifact) (*upload.Result, error) {
		if n == 1 {
			return &upload.Result{Text: "first", AudioURL: "http://h/1.mp3"}, nil
		}
		return &upload.Result{Text: "second"}, nil
	}
	h.c.Down()
	h.c.Up()
	require.Eventually(t, func() bool { return len(h.player.played()) == 1 }, 2*time.Second, 5*time.Millisecond)
	h.waitIdle(t)
	assert.Zero(t, h.player.stopped())

	h.c.Down()
	h.c.Up()
	require.Eventually(t, func() bool { return h.c.Snapshot().AssistantText == "second" }, 2*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return h.player.stopped() > 0 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, []string{"http://h/1.mp3"}, h.player.played())
}

func TestSupersededReplyAudioIsNotPlayed(t *testing.T) {
	release := make(chan struct{})
	h := newHarness(t, true, nil)
	h.up.fn = func(n int, _ recorder.Artifact) (*upload.Result, error) {
		if n == 1 {
			<-release
			return &upload.Result{Text: "first", AudioURL: "http://h/1.mp3"}, nil
		}
		return &upload.Result{Text: "second"}, nil
	}
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	h.c.Down()
	h.c.Up()
	require.Eventually(t, func() bool { return len(h.up.artifacts()) == 1 }, 2*time.Second, 5*time.Millisecond)
	h.c.Down()
	h.c.Up()
	require.Eventually(t, func() bool { return h.c.Snapshot().AssistantText == "second" }, 2*time.Second, 5*time.Millisecond)

	unblock()
	s := h.waitIdle(t)
	assert.Equal(t, "second", s.AssistantText)
	assert.Empty(t, s.AudioURL)
	assert.Empty(t, h.player.played())
}

func TestTeardownClosesPlayer(t *testing.T) {
	h := newHarness(t, true, nil)
	h.c.Down()
	h.stop()
	h.player.mu.Lock()
	defer h.player.mu.Unlock()
	assert.True(t, h.player.closed)
}
