package core

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"easypce-backend/lib/restyutil"
	"easypce-backend/lib/telemetry"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// ErrTransport marks failures worth retrying: the network, a timeout or
// the upstream server itself (5xx, 429).
var ErrTransport = errors.New("transport failure")

// ErrNotFound is returned for 404 and 410 responses. Clients turn it into
// an empty result.
var ErrNotFound = errors.New("resource not found")

type StatusError struct {
	Method string
	Url    string
	Code   int
}

func (e StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Url, e.Code)
}

type ClientOptions struct {
	// defaults to 30 seconds
	Timeout time.Duration
	// zero disables pacing
	RequestsPerSecond float64
	CloudflareBypass  bool
	// optional, full request/response dumps are written here
	Output     restyutil.InstrumentOutput
	TracerName string
}

type Client struct {
	Http    *resty.Client
	limiter *rate.Limiter
}

func NewClient(opts ClientOptions) *Client {
	client := resty.New()
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("user-agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36")

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second * 30
	}
	client.SetTimeout(timeout)

	c := &Client{Http: client}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
		client.OnBeforeRequest(c.pace)
	}

	tracerName := opts.TracerName
	if tracerName == "" {
		tracerName = "easypce.lib.scrapers.http"
	}
	restyutil.InstrumentClient(client, telemetry.Tracer(tracerName), opts.Output)

	return c
}

func (c *Client) pace(_ *resty.Client, req *resty.Request) error {
	return c.limiter.Wait(req.Context())
}

// Get issues a single GET request to an absolute url and classifies the
// outcome, a nil error always means a 2xx or 3xx response.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (*resty.Response, error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrTransport, endpoint, err)
	}
	return res, classify(res)
}

func classify(res *resty.Response) error {
	code := res.StatusCode()
	if code < 400 {
		return nil
	}
	statusErr := StatusError{
		Method: res.Request.Method,
		Url:    res.Request.URL,
		Code:   code,
	}
	switch {
	case code == http.StatusNotFound, code == http.StatusGone:
		return fmt.Errorf("%w: %w", ErrNotFound, statusErr)
	case code == http.StatusTooManyRequests, code >= 500:
		return fmt.Errorf("%w: %w", ErrTransport, statusErr)
	}
	return statusErr
}

// IsRetryable reports whether err is a transport failure that was not
// caused by the caller giving up.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrTransport)
}
