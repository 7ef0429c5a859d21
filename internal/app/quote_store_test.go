package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/quotesync/internal/adapters/notify"
	"github.com/jsamuelsen/quotesync/internal/adapters/storage"
	"github.com/jsamuelsen/quotesync/internal/domain"
	"github.com/jsamuelsen/quotesync/internal/mocks"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

type storeFixture struct {
	store  *QuoteStore
	kv     *storage.MemoryStore
	center *notify.Center
}

func newStoreFixture(t *testing.T, preload map[string]string) storeFixture {
	t.Helper()

	kv := storage.NewMemoryStore()
	if len(preload) > 0 {
		require.NoError(t, kv.SetMany(context.Background(), preload))
	}

	center := notify.NewCenter(notify.WithLogger(discardLogger()))

	store := NewQuoteStore(QuoteStoreConfig{
		Store:    kv,
		Notifier: center,
		Logger:   discardLogger(),
		Now:      func() time.Time { return fixedNow },
	})

	return storeFixture{store: store, kv: kv, center: center}
}

func loadedStore(t *testing.T) storeFixture {
	t.Helper()

	f := newStoreFixture(t, nil)
	require.NoError(t, f.store.Load(context.Background()))

	return f
}

func (f storeFixture) get(t *testing.T, key string) string {
	t.Helper()

	v, err := f.kv.Get(context.Background(), key)
	require.NoError(t, err)

	return v
}

func TestNewQuoteStore_PanicsWithoutStore(t *testing.T) {
	assert.Panics(t, func() { NewQuoteStore(QuoteStoreConfig{}) })
}

func TestQuoteStore_LoadInstallsDefaults(t *testing.T) {
	f := loadedStore(t)

	if diff := cmp.Diff(DefaultQuotes(), f.store.Quotes()); diff != "" {
		t.Errorf("quotes mismatch (-want +got):\n%s", diff)
	}

	assert.JSONEq(t, `["motivation","success","wisdom"]`, f.get(t, KeyCategories))
	assert.Equal(t, strconv.FormatInt(fixedNow.UnixMilli(), 10), f.get(t, KeyVersion))

	version, err := f.store.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixedNow.UnixMilli(), version)
}

func TestQuoteStore_LoadExisting(t *testing.T) {
	f := newStoreFixture(t, map[string]string{
		KeyQuotes: `[{"id":7,"text":"Remote","category":"Server"},{"text":"Local","category":"life"}]`,
	})

	require.NoError(t, f.store.Load(context.Background()))

	want := []domain.Quote{
		{ID: domain.Int64(7), Text: "Remote", Category: "Server"},
		{Text: "Local", Category: "life"},
	}
	if diff := cmp.Diff(want, f.store.Quotes()); diff != "" {
		t.Errorf("quotes mismatch (-want +got):\n%s", diff)
	}

	version, err := f.store.Version(context.Background())
	require.NoError(t, err)
	assert.Zero(t, version, "loading must not rewrite storage")
	assert.Empty(t, f.center.History())
}

func TestQuoteStore_LoadCorruptReseeds(t *testing.T) {
	tests := map[string]string{
		"not json":      "{{{",
		"wrong shape":   `{"text":"x"}`,
		"blank text":    `[{"text":"","category":"a"}]`,
		"missing field": `[{"text":"x"}]`,
	}

	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			f := newStoreFixture(t, map[string]string{KeyQuotes: raw})

			require.NoError(t, f.store.Load(context.Background()))

			assert.Equal(t, DefaultQuotes(), f.store.Quotes())
			assert.NotEqual(t, raw, f.get(t, KeyQuotes), "defaults must be persisted")

			history := f.center.History()
			require.Len(t, history, 1)
			assert.Equal(t, domain.NotificationError, history[0].Level)
		})
	}
}

func TestQuoteStore_LoadBackendError(t *testing.T) {
	kv := mocks.NewMockKeyValueStore(t)
	kv.EXPECT().Get(mock.Anything, KeyQuotes).Return("", domain.NewUnavailableError("kvstore", "closed"))

	store := NewQuoteStore(QuoteStoreConfig{Store: kv, Logger: discardLogger()})

	err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, domain.IsUnavailable(err))
	assert.Zero(t, store.Len())
}

func TestQuoteStore_Add(t *testing.T) {
	f := loadedStore(t)

	var hooked []domain.Quote
	f.store.OnAdd(func(_ context.Context, q domain.Quote) { hooked = append(hooked, q) })

	q, err := f.store.Add(context.Background(), "  Stay hungry, stay foolish.  ", " life ")
	require.NoError(t, err)
	assert.Equal(t, domain.Quote{Text: "Stay hungry, stay foolish.", Category: "life"}, q)

	quotes := f.store.Quotes()
	require.Len(t, quotes, 5)
	assert.Equal(t, q, quotes[4])
	assert.Equal(t, []domain.Quote{q}, hooked)
	assert.JSONEq(t, `["motivation","success","wisdom","life"]`, f.get(t, KeyCategories))

	_, err = f.store.Add(context.Background(), "Stay hungry, stay foolish.", "life")
	require.NoError(t, err, "duplicates are allowed")
	assert.Equal(t, 6, f.store.Len())
}

func TestQuoteStore_AddRejectsBlank(t *testing.T) {
	tests := []struct {
		name, text, category, field string
	}{
		{"blank text", "   ", "life", "text"},
		{"blank category", "words", "", "category"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := loadedStore(t)
			before := f.get(t, KeyQuotes)

			_, err := f.store.Add(context.Background(), tt.text, tt.category)

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, 4, f.store.Len())
			assert.Equal(t, before, f.get(t, KeyQuotes))
		})
	}
}

func TestQuoteStore_FailedWriteLeavesStateUnchanged(t *testing.T) {
	kv := mocks.NewMockKeyValueStore(t)
	kv.EXPECT().Get(mock.Anything, KeyQuotes).Return("", domain.NewNotFoundError("key", KeyQuotes))
	kv.EXPECT().SetMany(mock.Anything, mock.Anything).Return(nil).Once()
	kv.EXPECT().SetMany(mock.Anything, mock.MatchedBy(func(e map[string]string) bool {
		_, hasQuotes := e[KeyQuotes]
		_, hasCategories := e[KeyCategories]
		_, hasVersion := e[KeyVersion]

		return hasQuotes && hasCategories && hasVersion
	})).Return(errors.New("disk full"))

	store := NewQuoteStore(QuoteStoreConfig{Store: kv, Logger: discardLogger()})
	require.NoError(t, store.Load(context.Background()))

	_, err := store.Add(context.Background(), "text", "cat")
	require.ErrorContains(t, err, "disk full")
	assert.Equal(t, DefaultQuotes(), store.Quotes())

	_, err = store.ImportJSON(context.Background(), []byte(`[{"text":"a","category":"b"}]`))
	require.Error(t, err)
	assert.Equal(t, 4, store.Len())
}

func TestQuoteStore_ImportJSON(t *testing.T) {
	f := loadedStore(t)

	payload := `[
		{"text":"The best way to predict the future is to create it.","category":"wisdom"},
		{"text":"New one","category":"fresh"},
		{"text":"New one","category":"fresh"},
		{"id":3,"text":"From elsewhere","category":"Server"}
	]`

	added, err := f.store.ImportJSON(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Equal(t, 2, added)

	quotes := f.store.Quotes()
	require.Len(t, quotes, 6)
	assert.Equal(t, DefaultQuotes(), quotes[:4], "existing quotes keep their order")
	assert.Equal(t, domain.Quote{Text: "New one", Category: "fresh"}, quotes[4])
	assert.Equal(t, int64(3), *quotes[5].ID)

	again, err := f.store.ImportJSON(context.Background(), []byte(payload))
	require.NoError(t, err)
	assert.Zero(t, again, "re-importing is idempotent")
}

func TestQuoteStore_ImportCountsAfterStoredDuplicates(t *testing.T) {
	f := loadedStore(t)
	ctx := context.Background()

	for range 2 {
		_, err := f.store.Add(ctx, "dup", "x")
		require.NoError(t, err)
	}

	require.Equal(t, 6, f.store.Len())

	added, err := f.store.ImportJSON(ctx, []byte(`[{"text":"fresh","category":"x"}]`))
	require.NoError(t, err)

	assert.Equal(t, 1, added)
	assert.Equal(t, 6, f.store.Len(), "the stored duplicate collapses while the new quote lands")
	assert.Equal(t, domain.Quote{Text: "fresh", Category: "x"}, f.store.Quotes()[5])
}

func TestQuoteStore_ImportJSONRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		field   string
	}{
		{"not an array", `{"text":"x","category":"y"}`, "quotes"},
		{"not json", `nope`, "quotes"},
		{"null", `null`, "quotes"},
		{"number text", `[{"text":1,"category":"y"}]`, "quotes[0]"},
		{"missing category", `[{"text":"a","category":"b"},{"text":"x"}]`, "quotes[1].category"},
		{"empty text", `[{"text":"","category":"y"}]`, "quotes[0].text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := loadedStore(t)
			before := f.get(t, KeyQuotes)

			_, err := f.store.ImportJSON(context.Background(), []byte(tt.payload))

			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, before, f.get(t, KeyQuotes))
			assert.Equal(t, 4, f.store.Len())
		})
	}
}

func TestQuoteStore_ImportMergeValidatesCandidates(t *testing.T) {
	f := loadedStore(t)

	_, err := f.store.ImportMerge(context.Background(), []domain.Quote{
		{Text: "ok", Category: "ok"},
		{Text: " ", Category: "ok"},
	})

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "quotes[1].text", verr.Field)
}

func TestQuoteStore_ExportSnapshot(t *testing.T) {
	f := loadedStore(t)

	var buf bytes.Buffer
	require.NoError(t, f.store.ExportSnapshot(&buf))

	assert.Contains(t, buf.String(), "[\n  {\n    \"text\": \"The only way")

	parsed, err := domain.ParseImport(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, f.store.Quotes(), parsed)
}

func TestQuoteStore_MergeRemoteAndReplace(t *testing.T) {
	f := loadedStore(t)
	ctx := context.Background()

	added, err := f.store.MergeRemote(ctx, []domain.Quote{
		{ID: domain.Int64(1), Text: "one", Category: "Server"},
		{ID: domain.Int64(2), Text: "two", Category: "Server"},
		{Text: "no id", Category: "Server"},
	})
	require.NoError(t, err)
	assert.Len(t, added, 2)
	assert.Equal(t, 6, f.store.Len())

	none, err := f.store.MergeRemote(ctx, []domain.Quote{{ID: domain.Int64(1), Text: "changed", Category: "Server"}})
	require.NoError(t, err)
	assert.Empty(t, none)

	replaced, err := f.store.ReplaceByID(ctx, domain.Quote{ID: domain.Int64(1), Text: "changed", Category: "Server"})
	require.NoError(t, err)
	assert.Equal(t, 1, replaced)
	assert.Equal(t, "changed", f.store.Quotes()[4].Text)

	replaced, err = f.store.ReplaceByID(ctx, domain.Quote{ID: domain.Int64(99), Text: "x", Category: "y"})
	require.NoError(t, err)
	assert.Zero(t, replaced)
}

func TestQuoteStore_Random(t *testing.T) {
	kv := storage.NewMemoryStore()

	var lastN int

	store := NewQuoteStore(QuoteStoreConfig{
		Store:  kv,
		Logger: discardLogger(),
		IntN: func(n int) int {
			lastN = n
			return n - 1
		},
	})
	require.NoError(t, store.Load(context.Background()))

	q, err := store.Random("")
	require.NoError(t, err)
	assert.Equal(t, 4, lastN)
	assert.Equal(t, DefaultQuotes()[3], q)

	q, err = store.Random(domain.AllCategories)
	require.NoError(t, err)
	assert.Equal(t, DefaultQuotes()[3], q)

	q, err = store.Random("motivation")
	require.NoError(t, err)
	assert.Equal(t, 2, lastN)
	assert.Equal(t, "motivation", q.Category)

	_, err = store.Random("nonexistent")
	require.ErrorIs(t, err, ErrNoQuotesInCategory)
	assert.True(t, domain.IsNotFound(err))
	assert.EqualError(t, err, "no quotes in this category: not found")
}

func TestQuoteStore_SelectedCategory(t *testing.T) {
	f := loadedStore(t)
	ctx := context.Background()

	got, err := f.store.SelectedCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.AllCategories, got)

	require.NoError(t, f.store.SelectCategory(ctx, " wisdom "))
	assert.Equal(t, "wisdom", f.get(t, KeySelectedCategory))

	got, err = f.store.SelectedCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, "wisdom", got)

	require.NoError(t, f.store.SelectCategory(ctx, domain.AllCategories))

	err = f.store.SelectCategory(ctx, "astrology")
	assert.True(t, domain.IsNotFound(err))

	err = f.store.SelectCategory(ctx, "  ")
	assert.True(t, domain.IsValidation(err))

	assert.Equal(t, []string{"motivation", "success", "wisdom"}, f.store.Categories())
}

func TestQuoteStore_VersionCorrupt(t *testing.T) {
	f := newStoreFixture(t, map[string]string{KeyVersion: "yesterday"})

	_, err := f.store.Version(context.Background())
	assert.ErrorContains(t, err, `parsing version "yesterday"`)
}

func TestQuoteStore_ConcurrentAdds(t *testing.T) {
	f := loadedStore(t)

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Go(func() {
			_, err := f.store.Add(context.Background(), fmt.Sprintf("quote %d", i), "load")
			assert.NoError(t, err)
		})
	}

	wg.Wait()

	assert.Equal(t, 54, f.store.Len())

	reloaded := NewQuoteStore(QuoteStoreConfig{Store: f.kv, Logger: discardLogger()})
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, f.store.Quotes(), reloaded.Quotes())
}

func TestQuoteStore_Version(t *testing.T) {
	f := newStoreFixture(t, nil)

	v, err := f.store.Version(context.Background())
	require.NoError(t, err)
	assert.Zero(t, v, "nothing persisted yet")

	require.NoError(t, f.store.Load(context.Background()))

	v, err = f.store.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixedNow.UnixMilli(), v)
}
