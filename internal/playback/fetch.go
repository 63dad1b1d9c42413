package playback

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// CrossOriginAnonymous fetches media without cookies or credentials, so
// replies served from another origin than the upload endpoint still play.
const CrossOriginAnonymous = "anonymous"

// fetcher downloads reply audio into a cache directory.
type fetcher struct {
	http     *resty.Client
	cacheDir string
}

func newFetcher(cacheDir string, timeout time.Duration, crossOrigin string) *fetcher {
	hc := resty.New()
	if crossOrigin == CrossOriginAnonymous {
		hc.SetCookieJar(nil)
	}
	if timeout > 0 {
		hc.SetTimeout(timeout)
	}
	return &fetcher{http: hc, cacheDir: cacheDir}
}

// fetch stores src under the cache dir and returns the local path. Each
// handle writes to the same file, so replies never accumulate.
func (f *fetcher) fetch(ctx context.Context, src string) (string, error) {
	if err := os.MkdirAll(f.cacheDir, 0o755); err != nil {
		return "", err
	}
	dest := filepath.Join(f.cacheDir, "reply"+extensionFor(src))
	tmp := dest + ".part"
	resp, err := f.http.R().SetContext(ctx).SetOutput(tmp).Get(src)
	if err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("fetch audio: %w", err)
	}
	if resp.IsError() {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("fetch audio: %s", resp.Status())
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", err
	}
	return dest, nil
}

func extensionFor(src string) string {
	p := src
	if u, err := url.Parse(src); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(path.Ext(p))
	switch ext {
	case ".mp3", ".wav", ".ogg", ".webm", ".m4a", ".flac":
		return ext
	default:
		return ".audio"
	}
}
