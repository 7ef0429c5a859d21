package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jsamuelsen/quotesync/internal/domain"
	"github.com/jsamuelsen/quotesync/internal/platform/logging"
	"github.com/jsamuelsen/quotesync/internal/ports"
)

// Persisted keys.
const (
	KeyQuotes           = "quotes"
	KeyCategories       = "quoteCategories"
	KeySelectedCategory = "lastSelectedCategory"
	KeyVersion          = "quoteVersion"
)

// ErrNoQuotesInCategory is returned by Random when the filter selects nothing.
var ErrNoQuotesInCategory = fmt.Errorf("no quotes in this category: %w", domain.ErrNotFound)

// DefaultQuotes returns the list installed when the store is empty.
func DefaultQuotes() []domain.Quote {
	return []domain.Quote{
		{Text: "The only way to do great work is to love what you do.", Category: "motivation"},
		{Text: "Success is not final, failure is not fatal: it is the courage to continue that counts.", Category: "success"},
		{Text: "The best way to predict the future is to create it.", Category: "wisdom"},
		{Text: "Don't watch the clock; do what it does. Keep going.", Category: "motivation"},
	}
}

// QuoteStoreConfig contains the dependencies of a QuoteStore.
type QuoteStoreConfig struct {
	Store    ports.KeyValueStore
	Notifier ports.Notifier
	Logger   *slog.Logger

	// Seed replaces DefaultQuotes when set.
	Seed []domain.Quote

	// IntN picks a random index in [0, n). Defaults to math/rand/v2.
	IntN func(n int) int

	// Now stamps quoteVersion. Defaults to time.Now.
	Now func() time.Time
}

// QuoteStore is the authoritative local quote list, persisted through a
// key-value store. Every mutation computes the new list, persists it, and
// only then swaps it in, so a failed write leaves memory and storage as
// they were.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes []domain.Quote

	kv       ports.KeyValueStore
	notifier ports.Notifier
	logger   *slog.Logger
	seed     []domain.Quote
	intN     func(int) int
	now      func() time.Time

	afterAdd func(context.Context, domain.Quote)
}

// NewQuoteStore creates an empty store. Call Load before use.
func NewQuoteStore(cfg QuoteStoreConfig) *QuoteStore {
	if cfg.Store == nil {
		panic("QuoteStore: Store is required")
	}

	s := &QuoteStore{
		kv:       cfg.Store,
		notifier: cfg.Notifier,
		logger:   cfg.Logger,
		seed:     cfg.Seed,
		intN:     cfg.IntN,
		now:      cfg.Now,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.logger = s.logger.With(slog.String("component", "app.QuoteStore"))

	if s.seed == nil {
		s.seed = DefaultQuotes()
	}

	if s.intN == nil {
		s.intN = rand.IntN
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// OnAdd registers a hook run after every successful Add.
func (s *QuoteStore) OnAdd(fn func(context.Context, domain.Quote)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.afterAdd = fn
}

// Load reads the persisted list. An absent list installs the seed. A list
// that cannot be decoded is replaced by the seed as well, with a warning
// and an error notification.
func (s *QuoteStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.kv.Get(ctx, KeyQuotes)

	switch {
	case domain.IsNotFound(err):
		s.logger.InfoContext(ctx, "no stored quotes, installing defaults", slog.Int("count", len(s.seed)))
		return s.persistLocked(ctx, domain.CloneQuotes(s.seed))
	case err != nil:
		return fmt.Errorf("loading quotes: %w", err)
	}

	var quotes []domain.Quote
	if err := json.Unmarshal([]byte(raw), &quotes); err != nil || !allValid(quotes) {
		s.logger.WarnContext(ctx, "stored quotes are corrupt, reinstalling defaults", slog.Any("error", err))
		s.notify(ctx, domain.NotificationError, "Stored quotes were unreadable; defaults restored")

		return s.persistLocked(ctx, domain.CloneQuotes(s.seed))
	}

	s.quotes = quotes
	logging.FromContext(ctx).Log(ctx, logging.LevelTrace, "quotes loaded", slog.Int("count", len(quotes)))

	return nil
}

func allValid(quotes []domain.Quote) bool {
	for _, q := range quotes {
		if q.Validate() != nil {
			return false
		}
	}

	return true
}

// persistLocked writes quotes, their categories and a fresh version in one
// SetMany call, then swaps quotes into memory. Caller holds s.mu.
func (s *QuoteStore) persistLocked(ctx context.Context, quotes []domain.Quote) error {
	data, err := json.Marshal(quotes)
	if err != nil {
		return fmt.Errorf("encoding quotes: %w", err)
	}

	categories, err := json.Marshal(domain.Categories(quotes))
	if err != nil {
		return fmt.Errorf("encoding categories: %w", err)
	}

	entries := map[string]string{
		KeyQuotes:     string(data),
		KeyCategories: string(categories),
		KeyVersion:    strconv.FormatInt(s.now().UnixMilli(), 10),
	}

	if err := s.kv.SetMany(ctx, entries); err != nil {
		return fmt.Errorf("saving quotes: %w", err)
	}

	s.quotes = quotes

	return nil
}

// Quotes returns a copy of the current list.
func (s *QuoteStore) Quotes() []domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.CloneQuotes(s.quotes)
}

// Len returns the number of quotes.
func (s *QuoteStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.quotes)
}

// Add appends a local quote. Blank text or category is rejected with a
// ValidationError and nothing changes. Duplicates are allowed.
func (s *QuoteStore) Add(ctx context.Context, text, category string) (domain.Quote, error) {
	q, err := domain.NewQuote(text, category)
	if err != nil {
		return domain.Quote{}, err
	}

	s.mu.Lock()

	next := append(domain.CloneQuotes(s.quotes), q)
	if err := s.persistLocked(ctx, next); err != nil {
		s.mu.Unlock()
		return domain.Quote{}, err
	}

	hook := s.afterAdd
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "quote added", slog.String("category", q.Category))
	s.notify(ctx, domain.NotificationSuccess, "Quote added successfully!")

	if hook != nil {
		hook(ctx, q)
	}

	return q, nil
}

// ImportJSON parses data as an import payload and merges it.
func (s *QuoteStore) ImportJSON(ctx context.Context, data []byte) (int, error) {
	candidates, err := domain.ParseImport(data)
	if err != nil {
		s.notify(ctx, domain.NotificationError, "Error importing quotes. Check file format.")
		return 0, err
	}

	return s.ImportMerge(ctx, candidates)
}

// ImportMerge unions candidates into the list, dropping records
// structurally equal to one already present. It returns how many records
// were added.
func (s *QuoteStore) ImportMerge(ctx context.Context, candidates []domain.Quote) (int, error) {
	for i, q := range candidates {
		if err := q.Validate(); err != nil {
			var verr *domain.ValidationError
			if errors.As(err, &verr) {
				return 0, domain.NewValidationError(fmt.Sprintf("quotes[%d].%s", i, verr.Field), verr.Message)
			}

			return 0, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Duplicates already present locally collapse as well.
	next, added := domain.UnionDedup(s.quotes, candidates)

	if err := s.persistLocked(ctx, next); err != nil {
		return 0, err
	}

	s.logger.InfoContext(ctx, "quotes imported",
		slog.Int("candidates", len(candidates)),
		slog.Int("added", added),
	)
	s.notify(ctx, domain.NotificationSuccess, "Quotes imported successfully!")

	return added, nil
}

// ExportSnapshot writes the list as JSON indented by two spaces.
func (s *QuoteStore) ExportSnapshot(w io.Writer) error {
	quotes := s.Quotes()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(quotes); err != nil {
		return fmt.Errorf("exporting quotes: %w", err)
	}

	return nil
}

// MergeRemote appends remote quotes whose ID is not yet known locally.
func (s *QuoteStore) MergeRemote(ctx context.Context, remote []domain.Quote) ([]domain.Quote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, added := domain.MergeRemote(s.quotes, remote)
	if len(added) == 0 {
		return added, nil
	}

	if err := s.persistLocked(ctx, merged); err != nil {
		return nil, err
	}

	return added, nil
}

// ReplaceByID overwrites every local quote sharing q's ID with q.
func (s *QuoteStore) ReplaceByID(ctx context.Context, q domain.Quote) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, replaced := domain.ReplaceByID(s.quotes, q)
	if replaced == 0 {
		return 0, nil
	}

	if err := s.persistLocked(ctx, next); err != nil {
		return 0, err
	}

	return replaced, nil
}

// Random picks a quote from category. "" and "all" mean every category.
func (s *QuoteStore) Random(category string) (domain.Quote, error) {
	s.mu.RLock()
	pool := domain.FilterByCategory(s.quotes, category)

	if len(pool) == 0 {
		s.mu.RUnlock()
		return domain.Quote{}, ErrNoQuotesInCategory
	}

	q := pool[s.intN(len(pool))].Clone()
	s.mu.RUnlock()

	return q, nil
}

// Categories returns the distinct categories in first-seen order.
func (s *QuoteStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return domain.Categories(s.quotes)
}

// SelectCategory persists the category filter. It must be "all" or a
// category that currently has quotes.
func (s *QuoteStore) SelectCategory(ctx context.Context, category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return domain.NewValidationError("category", "is required")
	}

	if category != domain.AllCategories && !slices.Contains(s.Categories(), category) {
		return domain.NewNotFoundError("category", category)
	}

	if err := s.kv.Set(ctx, KeySelectedCategory, category); err != nil {
		return fmt.Errorf("saving selected category: %w", err)
	}

	return nil
}

// SelectedCategory returns the persisted filter, "all" when none is set.
func (s *QuoteStore) SelectedCategory(ctx context.Context) (string, error) {
	category, err := s.kv.Get(ctx, KeySelectedCategory)
	if domain.IsNotFound(err) {
		return domain.AllCategories, nil
	}

	if err != nil {
		return "", fmt.Errorf("reading selected category: %w", err)
	}

	return category, nil
}

// Version returns the epoch milliseconds of the last save, 0 if never saved.
func (s *QuoteStore) Version(ctx context.Context) (int64, error) {
	raw, err := s.kv.Get(ctx, KeyVersion)
	if domain.IsNotFound(err) {
		return 0, nil
	}

	if err != nil {
		return 0, fmt.Errorf("reading version: %w", err)
	}

	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version %q: %w", raw, err)
	}

	return v, nil
}

func (s *QuoteStore) notify(ctx context.Context, level domain.NotificationLevel, msg string) {
	if s.notifier == nil {
		return
	}

	s.notifier.Notify(ctx, domain.Notification{Level: level, Message: msg})
}
