package acl

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jsamuelsen/quotesync/internal/adapters/clients"
	"github.com/jsamuelsen/quotesync/internal/domain"
	"github.com/jsamuelsen/quotesync/internal/platform/logging"
)

// PostsClientConfig configures a PostsClient.
type PostsClientConfig struct {
	// Client is the instrumented HTTP client pointed at the remote base URL.
	Client *clients.Client

	// PostsPath is the collection path, e.g. "/posts".
	PostsPath string

	// FetchLimit caps how many remote quotes a fetch returns.
	FetchLimit int

	// Category is assigned to every fetched quote.
	Category string

	// UserID is sent with every post.
	UserID int

	Logger *slog.Logger
}

// PostsClient implements ports.RemoteQuoteSource and ports.HealthChecker
// against a JSONPlaceholder-style posts API.
type PostsClient struct {
	BaseAdapter

	path     string
	limit    int
	category string
	userID   int
	logger   *slog.Logger
}

// NewPostsClient creates a posts client. Panics if Client is nil.
func NewPostsClient(cfg PostsClientConfig) *PostsClient {
	if cfg.Client == nil {
		panic("PostsClient: Client is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	path := cfg.PostsPath
	if path == "" {
		path = "/posts"
	}

	return &PostsClient{
		BaseAdapter: NewBaseAdapter(cfg.Client, cfg.Client.ServiceName()),
		path:        path,
		limit:       max(cfg.FetchLimit, 0),
		category:    cfg.Category,
		userID:      cfg.UserID,
		logger:      logger.With(slog.String("component", "acl.PostsClient")),
	}
}

// remotePost is the wire shape of a post. Never leaves this package.
type remotePost struct {
	ID     int64  `json:"id"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID int    `json:"userId"`
}

// newPostRequest is the body sent when publishing a quote.
type newPostRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	UserID int    `json:"userId"`
}

// FetchQuotes implements ports.RemoteQuoteSource.
func (c *PostsClient) FetchQuotes(ctx context.Context) ([]domain.Quote, error) {
	c.logger.Log(ctx, logging.LevelTrace, "fetching posts", slog.String("path", c.path))

	body, err := c.Get(ctx, c.path, "fetch quotes")
	if err != nil {
		return nil, err
	}

	posts, err := DecodeResponseForService[[]remotePost](body, c.ServiceName())
	if err != nil {
		return nil, err
	}

	quotes := TranslateSlice(*posts, c.limit, c.toQuote)

	c.logger.DebugContext(ctx, "fetched remote quotes",
		slog.Int("received", len(*posts)),
		slog.Int("kept", len(quotes)),
	)

	return quotes, nil
}

// PostQuote implements ports.RemoteQuoteSource. The echo is decoded for
// logging only; the remote does not persist anything.
func (c *PostsClient) PostQuote(ctx context.Context, q domain.Quote) (*domain.Quote, error) {
	req := newPostRequest{Title: q.Text, Body: q.Category, UserID: c.userID}

	body, err := c.PostJSON(ctx, c.path, req, "post quote")
	if err != nil {
		return nil, err
	}

	echo, err := DecodeResponseForService[remotePost](body, c.ServiceName())
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "quote posted to remote",
		slog.Int64("remote_id", echo.ID),
		slog.String("category", q.Category),
	)

	return &domain.Quote{ID: domain.Int64(echo.ID), Text: echo.Title, Category: echo.Body}, nil
}

func (c *PostsClient) toQuote(p *remotePost) (domain.Quote, bool) {
	text := strings.TrimSpace(p.Title)
	if text == "" {
		return domain.Quote{}, false
	}

	return domain.Quote{ID: domain.Int64(p.ID), Text: text, Category: c.category}, true
}

// Name implements ports.HealthChecker.
func (c *PostsClient) Name() string {
	return c.ServiceName()
}

// Check implements ports.HealthChecker.
func (c *PostsClient) Check(ctx context.Context) error {
	resp, err := c.client.Get(ctx, c.path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", c.ServiceName(), resp.StatusCode)
	}

	return nil
}
