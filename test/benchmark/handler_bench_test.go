package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	httpadapter "github.com/jsamuelsen/quotesync/internal/adapters/http"
	"github.com/jsamuelsen/quotesync/internal/adapters/http/handlers"
	"github.com/jsamuelsen/quotesync/internal/adapters/http/middleware"
	"github.com/jsamuelsen/quotesync/internal/adapters/storage"
	"github.com/jsamuelsen/quotesync/internal/app"
	"github.com/jsamuelsen/quotesync/internal/domain"
	"github.com/jsamuelsen/quotesync/internal/platform/logging"
	"github.com/jsamuelsen/quotesync/internal/ports"
)

func init() {
	// Set Gin to release mode for accurate benchmarks
	gin.SetMode(gin.ReleaseMode)
	logging.SetDefault(discardLogger())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// quotes builds n quotes across eight categories; every other one has an ID.
func quotes(n int) []domain.Quote {
	out := make([]domain.Quote, n)
	for i := range n {
		out[i] = domain.Quote{
			Text:     fmt.Sprintf("quote number %d", i),
			Category: fmt.Sprintf("category-%d", i%8),
		}

		if i%2 == 0 {
			out[i].ID = domain.Int64(int64(i))
		}
	}

	return out
}

func newStore(b *testing.B, seed []domain.Quote) *app.QuoteStore {
	b.Helper()

	store := app.NewQuoteStore(app.QuoteStoreConfig{
		Store:  storage.NewMemoryStore(),
		Logger: discardLogger(),
		Seed:   seed,
	})

	if err := store.Load(context.Background()); err != nil {
		b.Fatal(err)
	}

	return store
}

// BenchmarkDetectConflicts compares a full remote page against large stores.
func BenchmarkDetectConflicts(b *testing.B) {
	for _, size := range []int{100, 1_000, 10_000} {
		b.Run(fmt.Sprintf("local=%d", size), func(b *testing.B) {
			local := quotes(size)
			remote := quotes(100)
			remote[0].Text = "changed"

			b.ReportAllocs()

			for b.Loop() {
				_ = domain.DetectConflicts(local, remote)
			}
		})
	}
}

// BenchmarkMergeRemote measures appending a remote page to a large store.
func BenchmarkMergeRemote(b *testing.B) {
	local := quotes(5_000)
	remote := quotes(5_100)[5_000:]

	b.ReportAllocs()

	for b.Loop() {
		_, _ = domain.MergeRemote(local, remote)
	}
}

// BenchmarkUnionDedup measures an import that half-overlaps the store.
func BenchmarkUnionDedup(b *testing.B) {
	existing := quotes(2_000)
	imported := quotes(3_000)[1_000:]

	b.ReportAllocs()

	for b.Loop() {
		_, _ = domain.UnionDedup(existing, imported)
	}
}

// BenchmarkRandomQuote measures category filtering plus a random pick.
func BenchmarkRandomQuote(b *testing.B) {
	store := newStore(b, quotes(1_000))

	b.ReportAllocs()

	for b.Loop() {
		if _, err := store.Random("category-3"); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkAddQuote measures one persisted append, which re-encodes the list.
func BenchmarkAddQuote(b *testing.B) {
	store := newStore(b, quotes(500))
	ctx := context.Background()

	b.ReportAllocs()

	for b.Loop() {
		if _, err := store.Add(ctx, "benchmark quote", "bench"); err != nil {
			b.Fatal(err)
		}
	}
}

func newRouter(b *testing.B) *gin.Engine {
	b.Helper()

	store := newStore(b, quotes(1_000))
	engine := gin.New()

	httpadapter.SetupRouter(engine, httpadapter.RouterConfig{
		ServiceName: "quotesync-bench",
		Health:      handlers.NewHealthHandler(ports.NewHealthRegistry(), handlers.NewBuildInfo("1.0.0", "abc123", "2024-01-01T00:00:00Z"), nil),
		Quotes:      handlers.NewQuoteHandler(store),
	})

	return engine
}

// BenchmarkListQuotes measures a paginated list through the full middleware chain.
func BenchmarkListQuotes(b *testing.B) {
	router := newRouter(b)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/quotes?limit=50", http.NoBody)

	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			b.Fatalf("status %d", w.Code)
		}
	}
}

// BenchmarkLivenessHandler measures the liveness probe through the router.
// This is a critical path for Kubernetes probes and should be extremely fast.
func BenchmarkLivenessHandler(b *testing.B) {
	router := newRouter(b)
	req := httptest.NewRequest(http.MethodGet, "/-/live", http.NoBody)

	b.ReportAllocs()

	for b.Loop() {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}

// BenchmarkReadinessHandler_WithChecks measures readiness with the store registered.
func BenchmarkReadinessHandler_WithChecks(b *testing.B) {
	registry := ports.NewHealthRegistry()
	_ = registry.Register(storage.NewMemoryStore())

	handler := handlers.NewHealthHandler(registry, handlers.NewBuildInfo("1.0.0", "abc123", "2024-01-01T00:00:00Z"), nil)
	req := httptest.NewRequest(http.MethodGet, "/-/ready", http.NoBody)

	b.ReportAllocs()

	for b.Loop() {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = req
		handler.Readiness(c)
	}
}

// BenchmarkMiddlewareChain measures the ID, logging and timeout middleware
// without routing work.
func BenchmarkMiddlewareChain(b *testing.B) {
	router := gin.New()
	router.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.CorrelationID(),
		middleware.Logging(),
		middleware.Timeout(0),
	)
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)

	b.ReportAllocs()

	for b.Loop() {
		router.ServeHTTP(httptest.NewRecorder(), req)
	}
}
