package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
)

const maxBodyBytes = 32 << 20

// RetryPolicy controls how often and how patiently a fetch is repeated.
// Transport errors and responses whose status is in StatusForcelist are retried.
type RetryPolicy struct {
	Total           int
	BackoffFactor   time.Duration
	BackoffMax      time.Duration
	StatusForcelist []int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		Total:           2,
		BackoffFactor:   500 * time.Millisecond,
		BackoffMax:      2 * time.Minute,
		StatusForcelist: []int{429, 500, 502, 503, 504},
	}
}

// Backoff is the pause before the n-th retry (1-based). The first retry is
// immediate, later ones double from BackoffFactor.
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n <= 1 || p.BackoffFactor <= 0 {
		return 0
	}
	d := p.BackoffFactor << (n - 1)
	if p.BackoffMax > 0 && (d > p.BackoffMax || d <= 0) {
		d = p.BackoffMax
	}
	return d
}

func (p RetryPolicy) retryStatus(code int) bool {
	return slices.Contains(p.StatusForcelist, code)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string // after redirects
}

func (r *Response) ContentType() string {
	return r.Header.Get("Content-Type")
}

// Fetcher issues a GET and returns the whole response.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Response, error)
}

type ClientOptions struct {
	Timeout         time.Duration
	MaxRedirects    int
	MaxConnsPerHost int
	Retry           RetryPolicy
}

// HTTPClient is a Fetcher with retries. It is safe for concurrent use.
type HTTPClient struct {
	Client *http.Client
	Retry  RetryPolicy
	Log    *zap.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

func NewHTTPClient(opts ClientOptions, log *zap.Logger) *HTTPClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if opts.MaxConnsPerHost > 0 {
		tr.MaxIdleConnsPerHost = opts.MaxConnsPerHost
	}
	maxRedirects := opts.MaxRedirects
	return &HTTPClient{
		Client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: tr,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("exceeded %d redirects", maxRedirects)
				}
				return nil
			},
		},
		Retry: opts.Retry,
		Log:   log,
		sleep: sleepCtx,
	}
}

func (c *HTTPClient) Fetch(ctx context.Context, url string) (*Response, error) {
	for retry := 0; ; retry++ {
		resp, err := c.once(ctx, url)
		if !c.shouldRetry(ctx, resp, err) || retry >= c.Retry.Total {
			return resp, err
		}

		wait := c.Retry.Backoff(retry + 1)
		fields := []zap.Field{
			zap.String("url", url),
			zap.Int("retry", retry+1),
			zap.Duration("backoff", wait),
		}
		if err != nil {
			fields = append(fields, zap.Error(err))
		} else {
			fields = append(fields, zap.Int("status", resp.StatusCode))
		}
		c.Log.Debug("tile_fetch_retry", fields...)

		if serr := c.sleep(ctx, wait); serr != nil {
			if err == nil {
				return resp, nil
			}
			return nil, err
		}
	}
}

func (c *HTTPClient) shouldRetry(ctx context.Context, resp *Response, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if err != nil {
		return true
	}
	return c.Retry.retryStatus(resp.StatusCode)
}

func (c *HTTPClient) once(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		URL:        resp.Request.URL.String(),
	}, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsTimeout reports whether err came from a deadline or a timed out connection.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "Client.Timeout exceeded")
}
