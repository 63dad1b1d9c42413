// Package upload submits finalized recordings to the interview backend.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"interviewer/internal/recorder"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// FieldName is the multipart field carrying the recording.
const FieldName = "audio"

// Response is the backend's success body.
type Response struct {
	TTSFile           string `json:"tts_file"`
	AssistantResponse string `json:"assistant_response"`
	TeacherText       string `json:"teacher_text"`
	Message           string `json:"message"`
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// Error is a non-2xx reply from the backend.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string { return e.Message }

// Result is an interpreted response. AudioURL is absolute and cache-busted,
// or empty when the backend returned no speech.
type Result struct {
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
}

// Client posts recordings to {baseURL}{path}.
type Client struct {
	baseURL string
	path    string
	http    *resty.Client
	logger  *logrus.Logger
	now     func() time.Time
}

// NewClient builds a client; timeout <= 0 disables the request timeout.
func NewClient(baseURL, path string, timeout time.Duration, logger *logrus.Logger) *Client {
	hc := resty.New().SetHeader("Accept", "application/json")
	if timeout > 0 {
		hc.SetTimeout(timeout)
	}
	if path == "" {
		path = "/api/upload"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		path:    "/" + strings.TrimLeft(path, "/"),
		http:    hc,
		logger:  logger,
		now:     time.Now,
	}
}

// BaseURL is the configured backend origin.
func (c *Client) BaseURL() string { return c.baseURL }

// Upload sends one artifact and interprets the reply.
func (c *Client) Upload(ctx context.Context, art recorder.Artifact) (*Result, error) {
	filename := art.Filename
	if filename == "" {
		filename = "voice" + recorder.Extension(art.Type)
	}
	req := c.http.R().
		SetContext(ctx).
		SetMultipartField(FieldName, filename, art.Type, bytes.NewReader(art.Data))
	if art.SessionID != "" {
		req.SetHeader("X-Request-ID", art.SessionID)
	}

	started := c.now()
	resp, err := req.Post(c.baseURL + c.path)
	if err != nil {
		return nil, fmt.Errorf("upload: %w", err)
	}
	c.logger.WithFields(logrus.Fields{
		"status":   resp.StatusCode(),
		"bytes":    len(art.Data),
		"session":  art.SessionID,
		"duration": c.now().Sub(started).Round(time.Millisecond),
	}).Debug("upload finished")

	if !resp.IsSuccess() {
		msg := ErrorMessage(resp.StatusCode(), resp.Body())
		c.logger.Errorf("upload failed: %d %s", resp.StatusCode(), msg)
		return nil, &Error{Status: resp.StatusCode(), Message: msg}
	}

	var body Response
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("parse upload response: %w", err)
	}
	res := &Result{Text: body.AssistantResponse, Transcript: body.TeacherText}
	if body.TTSFile != "" {
		res.AudioURL = CacheBust(ResolveURL(c.baseURL, body.TTSFile), c.now())
	}
	return res, nil
}

// ErrorMessage extracts message (or error) from a failure body, falling back
// to a generic message carrying the status code.
func ErrorMessage(status int, body []byte) string {
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		if eb.Message != "" {
			return eb.Message
		}
		if eb.Error != "" {
			return eb.Error
		}
	}
	return fmt.Sprintf("Upload failed (%d)", status)
}

// ResolveURL returns ref unchanged when it carries an http(s) scheme,
// otherwise joins it onto base.
func ResolveURL(base, ref string) string {
	lower := strings.ToLower(ref)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return ref
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
}

// CacheBust appends t=<unix-ms> so repeated fetches of the same path are fresh.
func CacheBust(u string, now time.Time) string {
	sep := "?"
	if strings.Contains(u, "?") {
		sep = "&"
	}
	return u + sep + "t=" + strconv.FormatInt(now.UnixMilli(), 10)
}
