//go:build integration

package integration

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	httpadapter "github.com/jsamuelsen/quotesync/internal/adapters/http"
	"github.com/jsamuelsen/quotesync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotesync/internal/bootstrap"
	"github.com/jsamuelsen/quotesync/internal/platform/config"
)

// remoteAPI is a posts API double. Tests swap the GET payload, add latency,
// or make it fail, and inspect the headers it received.
type remoteAPI struct {
	*httptest.Server

	mu      sync.Mutex
	posts   string
	status  int
	delay   time.Duration
	headers []http.Header
	posted  int
}

func newRemoteAPI() *remoteAPI {
	r := &remoteAPI{posts: `[]`, status: http.StatusOK}
	r.Server = httptest.NewServer(http.HandlerFunc(r.serve))

	return r
}

func (r *remoteAPI) serve(w http.ResponseWriter, req *http.Request) {
	r.mu.Lock()
	r.headers = append(r.headers, req.Header.Clone())
	status, posts, delay := r.status, r.posts, r.delay
	if req.Method == http.MethodPost && status < http.StatusBadRequest {
		r.posted++
	}
	r.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return
		}
	}

	if status >= http.StatusBadRequest {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	if req.Method == http.MethodPost {
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":101,"userId":1,"title":"echo","body":"echo"}`)

		return
	}

	_, _ = io.WriteString(w, posts)
}

func (r *remoteAPI) setPosts(body string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.posts = body
}

func (r *remoteAPI) setStatus(status int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status = status
}

func (r *remoteAPI) setDelay(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.delay = d
}

func (r *remoteAPI) postCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.posted
}

func (r *remoteAPI) lastHeader(name string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.headers) == 0 {
		return ""
	}

	return r.headers[len(r.headers)-1].Get(name)
}

// stack is the whole service running in-process against a remoteAPI.
type stack struct {
	URL    string
	Remote *remoteAPI
	Core   *bootstrap.Components

	server *httptest.Server
}

type stackOptions struct {
	dbPath string
	auth   *config.AuthConfig
}

func startStack(remote *remoteAPI, opts stackOptions) (*stack, error) {
	cfg, err := config.LoadDir("testdata-absent", "")
	if err != nil {
		return nil, err
	}

	cfg.Services.Remote.BaseURL = remote.URL
	cfg.Client.Timeout = 2 * time.Second
	cfg.Client.Retry.MaxAttempts = 1
	cfg.Sync.PostTimeout = 2 * time.Second

	if opts.dbPath != "" {
		cfg.Store.Backend = "sqlite"
		cfg.Store.Path = opts.dbPath
	}

	if opts.auth != nil {
		cfg.Auth = *opts.auth
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	core, err := bootstrap.Build(context.Background(), cfg, logger, bootstrap.Options{})
	if err != nil {
		return nil, err
	}

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		ServiceName:   "quotesync-integration",
		Auth:          &cfg.Auth,
		Timeout:       cfg.Server.RequestTimeout,
		Health:        handlers.NewHealthHandler(core.Health, handlers.NewBuildInfo("test", "test", "test"), nil),
		Quotes:        handlers.NewQuoteHandler(core.Store),
		Sync:          handlers.NewSyncHandler(core.Sync),
		Notifications: handlers.NewNotificationHandler(core.Notifications),
	})

	server := httptest.NewServer(engine)

	return &stack{URL: server.URL, Remote: remote, Core: core, server: server}, nil
}

func (s *stack) Close() error {
	s.server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.Core.Close(ctx)
}

// newStack starts a stack for a Go test and tears it down on cleanup.
func newStack(t *testing.T, opts stackOptions) *stack {
	t.Helper()

	remote := newRemoteAPI()
	t.Cleanup(remote.Close)

	s, err := startStack(remote, opts)
	if err != nil {
		t.Fatalf("starting stack: %v", err)
	}

	t.Cleanup(func() { _ = s.Close() })

	return s
}

func tempDB(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "quotes.db")
}

func init() {
	gin.SetMode(gin.TestMode)
}
