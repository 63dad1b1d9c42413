package media

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"interviewer/internal/config"
	"interviewer/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMic struct {
	err   error
	stops atomic.Int32
}

func (f *fakeMic) Open(context.Context) (*AudioStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return NewAudioStream("fake", 16000, 1, func() error {
		f.stops.Add(1)
		return nil
	}), nil
}

type fakeCamera struct {
	err error
}

func (f fakeCamera) Open(context.Context) (*VideoStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return NewVideoStream("/dev/fake0", nil), nil
}

type countingTap struct {
	frames atomic.Int32
}

func (c *countingTap) WritePCM([]int16) { c.frames.Add(1) }

func TestAdapterAcquiresIndependently(t *testing.T) {
	mic := &fakeMic{}
	a := NewAdapter(mic, fakeCamera{err: errors.New("permission denied")}, logging.NewTestLogger())
	a.Acquire(context.Background())

	require.NotNil(t, a.Audio(), "mic should survive camera failure")
	assert.Nil(t, a.Video())

	a = NewAdapter(&fakeMic{err: errors.New("no device")}, fakeCamera{}, logging.NewTestLogger())
	a.Acquire(context.Background())
	assert.Nil(t, a.Audio())
	require.NotNil(t, a.Video(), "camera should survive mic failure")
	assert.Equal(t, "/dev/fake0", a.Video().Device())
}

func TestAdapterReleaseStopsTracksOnce(t *testing.T) {
	mic := &fakeMic{}
	a := NewAdapter(mic, fakeCamera{}, logging.NewTestLogger())
	a.Acquire(context.Background())

	a.Release()
	a.Release()
	_ = a.Audio().Stop()

	assert.EqualValues(t, 1, mic.stops.Load())
}

func TestAdapterNilSourcesDegrade(t *testing.T) {
	a := NewAdapter(nil, nil, logging.NewTestLogger())
	a.Acquire(context.Background())
	assert.Nil(t, a.Audio())
	assert.Nil(t, a.Video())
	a.Release()
}

func TestAudioStreamTaps(t *testing.T) {
	s := NewAudioStream("fake", 16000, 1, nil)
	tap := &countingTap{}
	remove := s.AddTap(tap)
	s.Publish(make([]int16, 10))
	remove()
	s.Publish(make([]int16, 10))
	assert.EqualValues(t, 1, tap.frames.Load())
}

func TestCaptureArgsExpandsPlaceholders(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Audio.CaptureCommand = `arecord -D "{device}" -r {rate} -c {channels}`
	cfg.Audio.DeviceName = "hw:1,0"

	argv, err := CaptureArgs(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"arecord", "-D", "hw:1,0", "-r", "16000", "-c", "1"}, argv)

	cfg.Audio.CaptureCommand = "   "
	_, err = CaptureArgs(cfg)
	assert.Error(t, err)
}

func TestNewCameraSourceDisabled(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Camera.Enabled = false
	assert.Nil(t, NewCameraSource(cfg))
}

func TestDeviceCameraMissingDevice(t *testing.T) {
	cam := deviceCamera{path: t.TempDir() + "/video9"}
	_, err := cam.Open(context.Background())
	assert.Error(t, err)
}

func TestCommandMicRejectsEmptyFrames(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Audio.CaptureCommand = "true"
	cfg.Audio.FrameMS = 0

	_, err = (&commandMic{cfg: cfg, logger: logging.NewTestLogger()}).Open(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "holds no samples")
}
