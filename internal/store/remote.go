package store

import (
	"context"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fiscal-cli/internal/resilience"
)

var httpClient = &http.Client{Timeout: 60 * time.Second}

func isRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// download GETs url, retrying transient failures. The caller closes the body.
func download(ctx context.Context, url string) (io.ReadCloser, error) {
	p := resilience.DefaultPolicy()
	p.OnRetry = resilience.LogRetry("store download")

	return resilience.Call(ctx, p, func(ctx context.Context) (io.ReadCloser, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, eris.Wrap(err, "store: build request")
		}
		req.Header.Set("User-Agent", "fiscal-cli/1.0")

		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, eris.Wrapf(err, "store: download %s", url)
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close() //nolint:errcheck
			err := eris.Errorf("store: download %s: status %d", url, resp.StatusCode)
			if resilience.IsTransientHTTPStatus(resp.StatusCode) {
				return nil, resilience.NewTransientError(err, resp.StatusCode)
			}
			return nil, err
		}
		return resp.Body, nil
	})
}

// downloadTemp saves url to a temp file and returns its path.
func downloadTemp(ctx context.Context, url, pattern string) (string, error) {
	body, err := download(ctx, url)
	if err != nil {
		return "", err
	}
	defer body.Close() //nolint:errcheck

	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", eris.Wrap(err, "store: create temp file")
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()           //nolint:errcheck
		os.Remove(f.Name()) //nolint:errcheck
		return "", eris.Wrapf(err, "store: save %s", url)
	}
	if err := f.Close(); err != nil {
		return "", eris.Wrap(err, "store: close temp file")
	}
	return f.Name(), nil
}
