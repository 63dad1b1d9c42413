package run

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
)

// metrics counts pipeline events; it is the session's Observer.
type metrics struct {
	recordings      atomic.Int64
	uploads         atomic.Int64
	uploadFailures  atomic.Int64
	playbacks       atomic.Int64
	playbackBlocked atomic.Int64
}

func (m *metrics) Recorded()        { m.recordings.Add(1) }
func (m *metrics) Uploaded()        { m.uploads.Add(1) }
func (m *metrics) UploadFailed()    { m.uploadFailures.Add(1) }
func (m *metrics) Played()          { m.playbacks.Add(1) }
func (m *metrics) PlaybackBlocked() { m.playbackBlocked.Add(1) }

func (m *metrics) write(w io.Writer) {
	fmt.Fprintf(w, "interviewer_recordings_total %d\n", m.recordings.Load())
	fmt.Fprintf(w, "interviewer_uploads_total %d\n", m.uploads.Load())
	fmt.Fprintf(w, "interviewer_upload_failures_total %d\n", m.uploadFailures.Load())
	fmt.Fprintf(w, "interviewer_playbacks_total %d\n", m.playbacks.Load())
	fmt.Fprintf(w, "interviewer_playback_blocked_total %d\n", m.playbackBlocked.Load())
}

func (s *Server) metricsServe(ctxDone <-chan struct{}, addr string, logger interface {
	Infof(string, ...any)
	Warnf(string, ...any)
}) {
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		s.metrics.write(w)
	})
	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		<-ctxDone
		_ = server.Close()
	}()
	logger.Infof("metrics listening on http://%s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warnf("metrics server: %v", err)
	}
}
