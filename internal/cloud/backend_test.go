package cloud

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testLogger returns a debug-level logger that writes to t.Log.
func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(&testLogWriter{t: t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// testLogWriter adapts testing.T to io.Writer for slog.
type testLogWriter struct {
	t *testing.T
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))

	return len(p), nil
}

// noopSleep is a sleep function that returns immediately, for fast tests.
func noopSleep(_ context.Context, _ time.Duration) error {
	return nil
}

const (
	testDeviceToken  = "ABC123"
	testSessionToken = "SESSXYZ"
	blobPath         = "/blob/abc"
	blobPlaceholder  = "{{BLOB}}"
)

// recordedCall is one request seen by the fake backend.
type recordedCall struct {
	Method string
	Path   string
	Auth   string
	Body   []byte
}

// fakeBackend serves the token, upload-request, blob and update-status
// endpoints on one httptest server. Status queues default to 200 once empty.
type fakeBackend struct {
	srv *httptest.Server

	mu             sync.Mutex
	calls          []recordedCall
	sessionToken   string
	tokenStatuses  []int
	uploadStatuses []int
	uploadBody     string
	blobStatus     int
	nameStatus     int
	uploadDelay    time.Duration
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()

	fb := &fakeBackend{
		sessionToken: testSessionToken,
		uploadBody:   `{"Success": true, "BlobURLPut": "` + blobPlaceholder + `"}`,
		blobStatus:   http.StatusOK,
		nameStatus:   http.StatusOK,
	}
	fb.srv = httptest.NewServer(http.HandlerFunc(fb.serve))
	t.Cleanup(fb.srv.Close)

	return fb
}

func (fb *fakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	fb.mu.Lock()
	fb.calls = append(fb.calls, recordedCall{
		Method: r.Method,
		Path:   r.URL.Path,
		Auth:   r.Header.Get("Authorization"),
		Body:   body,
	})

	var status int
	var reply string
	var delay time.Duration

	switch r.URL.Path {
	case pathNewUserToken:
		status = nextStatus(&fb.tokenStatuses)
		reply = fb.sessionToken
	case pathUploadRequest:
		status = nextStatus(&fb.uploadStatuses)
		reply = strings.ReplaceAll(fb.uploadBody, blobPlaceholder, fb.srv.URL+blobPath+"?signature=s3cr3t")
		delay = fb.uploadDelay
	case blobPath:
		status = fb.blobStatus
	case pathUpdateStatus:
		status = fb.nameStatus
	default:
		status = http.StatusNotFound
	}
	fb.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	w.WriteHeader(status)

	if status == http.StatusOK && reply != "" {
		_, _ = w.Write([]byte(reply))
	}
}

func nextStatus(q *[]int) int {
	if len(*q) == 0 {
		return http.StatusOK
	}

	s := (*q)[0]
	*q = (*q)[1:]

	return s
}

// paths returns the request paths in arrival order.
func (fb *fakeBackend) paths() []string {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	out := make([]string, len(fb.calls))
	for i, c := range fb.calls {
		out[i] = c.Path
	}

	return out
}

// callsTo returns the recorded calls for one path.
func (fb *fakeBackend) callsTo(path string) []recordedCall {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	var out []recordedCall
	for _, c := range fb.calls {
		if c.Path == path {
			out = append(out, c)
		}
	}

	return out
}

// newTestClient creates a Client pointing both endpoints at the fake backend
// with instant retry sleeps.
func newTestClient(t *testing.T, fb *fakeBackend, opts Options) *Client {
	t.Helper()

	opts.StorageURL = fb.srv.URL
	opts.WebappURL = fb.srv.URL

	c := NewClient(testDeviceToken, &http.Client{Timeout: 5 * time.Second}, opts, testLogger(t))
	c.sleepFunc = noopSleep

	return c
}

// writeTestFile creates a file with the given content in a temp dir.
func writeTestFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	return path
}
