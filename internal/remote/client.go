// Package remote fetches the bytes behind image references and feed URLs.
//
// References may be http(s) URLs, file:// URLs or filesystem paths. HTTP
// requests go through a retrying client that backs off on connection errors
// and 5xx responses; every read is capped so a misbehaving server cannot
// exhaust memory.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// DefaultMaxBytes caps a single response or file read.
const DefaultMaxBytes int64 = 20 << 20

// ErrTooLarge is returned when a body exceeds the configured cap.
var ErrTooLarge = errors.New("response too large")

var (
	defaultClient     *retryablehttp.Client
	defaultClientOnce sync.Once
)

// DefaultClient returns a shared client with two retries and a 10 second
// timeout that does not log.
func DefaultClient() *retryablehttp.Client {
	defaultClientOnce.Do(func() {
		defaultClient = NewHTTPClient(2, 10*time.Second, nil)
	})
	return defaultClient
}

// NewHTTPClient returns a retrying client. Retry attempts are logged at
// debug level through logger; a nil logger silences the client.
func NewHTTPClient(retries int, timeout time.Duration, logger *slog.Logger) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.RetryMax = retries
	c.RetryWaitMin = 500 * time.Millisecond
	c.RetryWaitMax = 5 * time.Second
	c.HTTPClient.Timeout = timeout
	// Hand the last response back after retries so callers see its status.
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if logger != nil {
		c.Logger = retryLogger{logger}
	} else {
		c.Logger = nil
	}
	return c
}

// retryLogger routes the client's chatter to debug level; the caller logs
// the final outcome itself.
type retryLogger struct{ l *slog.Logger }

func (r retryLogger) Error(msg string, kv ...any) { r.l.Warn("http: "+msg, kv...) }
func (r retryLogger) Info(msg string, kv ...any)  { r.l.Debug("http: "+msg, kv...) }
func (r retryLogger) Debug(msg string, kv ...any) { r.l.Debug("http: "+msg, kv...) }
func (r retryLogger) Warn(msg string, kv ...any)  { r.l.Debug("http: "+msg, kv...) }

// Get downloads url and returns its body. Non-200 responses fail. Bodies
// longer than maxBytes wrap [ErrTooLarge]; maxBytes <= 0 means
// [DefaultMaxBytes].
func Get(ctx context.Context, client *retryablehttp.Client, url string, maxBytes int64) ([]byte, error) {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return Do(client, req, maxBytes)
}

// Do sends req and returns the body of a 200 response, capped like [Get].
func Do(client *retryablehttp.Client, req *retryablehttp.Request, maxBytes int64) ([]byte, error) {
	if client == nil {
		client = DefaultClient()
	}
	where := req.Method + " " + req.URL.Redacted()

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", where, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, &StatusError{Op: where, Code: resp.StatusCode, Body: string(snippet)}
	}

	body, err := readCapped(resp.Body, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", where, err)
	}
	return body, nil
}

// StatusError reports a non-200 HTTP response.
type StatusError struct {
	Op   string
	Code int
	Body string // start of the response body, for diagnostics
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: status %d", e.Op, e.Code)
}

func readCapped(r io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > maxBytes {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrTooLarge, maxBytes)
	}
	return body, nil
}
