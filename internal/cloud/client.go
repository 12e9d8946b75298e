package cloud

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// Retry and backoff constants.
const (
	baseBackoff    = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFraction = 0.25
	userAgent      = "rmcloud-upload/0.1"
)

// maxErrorBody caps how much of an error response body is kept for logs.
const maxErrorBody = 512

// authMode is the credential attached to the next request.
type authMode int

const (
	authNone authMode = iota
	authDevice
	authSession
)

func (m authMode) String() string {
	switch m {
	case authDevice:
		return "device"
	case authSession:
		return "session"
	default:
		return "none"
	}
}

// Options configures a Client. Zero values select production endpoints and
// no transport retries.
type Options struct {
	StorageURL string
	WebappURL  string
	MaxRetries int

	// UserToken seeds the session token, skipping the first exchange.
	UserToken string
}

// Default production endpoints.
const (
	DefaultStorageURL = "https://document-storage-production-dot-remarkable-production.appspot.com"
	DefaultWebappURL  = "https://webapp-production-dot-remarkable-production.appspot.com"
)

// Client talks to the token and document-storage endpoints. It is not safe
// for concurrent use: the auth mode is per-client state set right before an
// authenticated request and cleared right after it.
type Client struct {
	storageURL string
	webappURL  string
	maxRetries int
	httpClient *http.Client
	logger     *slog.Logger

	deviceToken *oauth2.Token
	userToken   *oauth2.Token

	auth          authMode
	sessionClears int

	// sleepFunc is called to wait between retries. Tests override it.
	sleepFunc func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client for the device identified by deviceToken.
// httpClient should carry a timeout; a timed-out request is reported as
// ErrTimeout.
func NewClient(deviceToken string, httpClient *http.Client, opts Options, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		storageURL:  strings.TrimRight(orDefault(opts.StorageURL, DefaultStorageURL), "/"),
		webappURL:   strings.TrimRight(orDefault(opts.WebappURL, DefaultWebappURL), "/"),
		maxRetries:  max(opts.MaxRetries, 0),
		httpClient:  httpClient,
		logger:      logger,
		deviceToken: bearer(deviceToken),
		sleepFunc:   timeSleep,
	}

	if opts.UserToken != "" {
		c.userToken = bearer(opts.UserToken)
	}

	return c
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}

func bearer(token string) *oauth2.Token {
	return &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
}

// HasSessionToken reports whether a session token is held.
func (c *Client) HasSessionToken() bool {
	return c.userToken != nil && c.userToken.AccessToken != ""
}

// setAuth selects the credential for the following request.
func (c *Client) setAuth(mode authMode) {
	c.auth = mode
}

// clearAuth drops the request credential. It reports whether a credential
// was set.
func (c *Client) clearAuth() bool {
	if c.auth == authNone {
		return false
	}

	if c.auth == authSession {
		c.sessionClears++
	}

	c.auth = authNone

	return true
}

// do executes a request with the current auth mode, retrying throttling and
// server errors up to maxRetries times. Every final response is returned to
// the caller regardless of status; the caller closes the body.
func (c *Client) do(ctx context.Context, method, target string, body []byte, contentType string) (*http.Response, error) {
	var attempt int
	for {
		resp, err := c.doOnce(ctx, method, target, body, contentType)
		if err != nil {
			return nil, c.classifyTransportError(ctx, method, target, err)
		}

		if !isRetryable(resp.StatusCode) || attempt >= c.maxRetries {
			c.logger.Debug("request completed",
				slog.String("method", method),
				slog.String("url", redactURL(target)),
				slog.Int("status", resp.StatusCode),
				slog.String("auth", c.auth.String()),
			)

			return resp, nil
		}

		drain(resp)

		backoff := c.retryBackoff(resp, attempt)
		c.logger.Warn("retrying after HTTP error",
			slog.String("method", method),
			slog.String("url", redactURL(target)),
			slog.Int("status", resp.StatusCode),
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", backoff),
		)

		if err := c.sleepFunc(ctx, backoff); err != nil {
			return nil, fmt.Errorf("cloud: request canceled: %w", err)
		}

		attempt++
	}
}

// doOnce executes a single HTTP request (no retry).
func (c *Client) doOnce(ctx context.Context, method, target string, body []byte, contentType string) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rdr)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", redactURLError(err))
	}

	switch c.auth {
	case authDevice:
		c.deviceToken.SetAuthHeader(req)
	case authSession:
		if c.userToken != nil {
			c.userToken.SetAuthHeader(req)
		}
	case authNone:
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	return c.httpClient.Do(req)
}

// classifyTransportError turns client-side timeouts into ErrTimeout. A
// canceled parent context and every other network error stay fatal. The
// request URL in the returned error is redacted.
func (c *Client) classifyTransportError(ctx context.Context, method, target string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("cloud: request canceled: %w", ctx.Err())
	}

	if isTimeout(err) {
		c.logger.Warn("request timed out",
			slog.String("method", method),
			slog.String("url", redactURL(target)),
		)

		return fmt.Errorf("%w: %s %s", ErrTimeout, method, redactURL(target))
	}

	return fmt.Errorf("cloud: %s %s: %w", method, redactURL(target), redactURLError(err))
}

// classifyBodyError is classifyTransportError for failures while reading a
// response body: the client timeout also covers the body.
func (c *Client) classifyBodyError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("cloud: reading %s: %w", op, ctx.Err())
	}

	if isTimeout(err) {
		c.logger.Warn("response body timed out", slog.String("op", op))
		return fmt.Errorf("%w: reading %s", ErrTimeout, op)
	}

	return fmt.Errorf("cloud: reading %s: %w", op, redactURLError(err))
}

func isTimeout(err error) bool {
	var netErr net.Error

	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}

// redactURLError rebuilds a *url.Error with its query string removed.
func redactURLError(err error) error {
	var uerr *url.Error
	if !errors.As(err, &uerr) {
		return err
	}

	return &url.Error{Op: uerr.Op, URL: redactURL(uerr.URL), Err: uerr.Err}
}

// retryBackoff returns the backoff duration for a retryable response.
// For 429 responses with a Retry-After header, that value is used.
func (c *Client) retryBackoff(resp *http.Response, attempt int) time.Duration {
	if resp.StatusCode == http.StatusTooManyRequests {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if seconds, err := strconv.Atoi(ra); err == nil && seconds > 0 {
				return time.Duration(seconds) * time.Second
			}
		}
	}

	return calcBackoff(attempt)
}

// calcBackoff computes exponential backoff with ±25% jitter.
func calcBackoff(attempt int) time.Duration {
	backoff := float64(baseBackoff) * math.Pow(backoffFactor, float64(attempt))
	if backoff > float64(maxBackoff) {
		backoff = float64(maxBackoff)
	}

	jitter := backoff * jitterFraction * (rand.Float64()*2 - 1) //nolint:gosec // jitter does not need crypto rand
	backoff += jitter

	return time.Duration(backoff)
}

// timeSleep waits for the given duration or until the context is canceled.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// drain discards and closes a response body so the connection is reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

// readErrorBody returns a bounded, trimmed copy of an error response body.
func readErrorBody(resp *http.Response) string {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return "(failed to read response body)"
	}

	return strings.TrimSpace(string(data))
}

// redactURL strips the query string, which carries the signature on
// pre-signed blob URLs.
func redactURL(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		return raw[:i]
	}

	return raw
}
