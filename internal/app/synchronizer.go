package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jsamuelsen/quotesync/internal/domain"
	"github.com/jsamuelsen/quotesync/internal/ports"
)

// SyncState is the phase of the synchronization state machine.
type SyncState string

const (
	SyncIdle            SyncState = "idle"
	SyncComparing       SyncState = "comparing"
	SyncConflictPending SyncState = "conflict-pending"
	SyncMerged          SyncState = "merged"
)

// Cycle outcomes reported to the CycleRecorder.
const (
	OutcomeMerged      = "merged"
	OutcomeConflict    = "conflict"
	OutcomeFetchFailed = "fetch_failed"
	OutcomeSaveFailed  = "save_failed"
)

const (
	defaultPostTimeout     = 10 * time.Second
	defaultPushConcurrency = 3
)

// ErrSyncInProgress is returned when a cycle starts while another runs.
var ErrSyncInProgress = domain.NewConflictError("sync", "a synchronization cycle is already running")

// CycleRecorder receives one call per finished sync cycle.
type CycleRecorder interface {
	RecordCycle(ctx context.Context, outcome string, conflicts, merged int, elapsed time.Duration)
}

// SyncReport describes one cycle.
type SyncReport struct {
	State     SyncState         `json:"state"`
	Fetched   int               `json:"fetched"`
	Added     int               `json:"added"`
	Conflicts []domain.Conflict `json:"conflicts"`
	Error     string            `json:"error,omitempty"`
	Duration  time.Duration     `json:"-"`
}

// SyncStatus is a point-in-time view of the synchronizer.
type SyncStatus struct {
	State            SyncState  `json:"state"`
	Running          bool       `json:"running"`
	LastSync         *time.Time `json:"lastSync,omitempty"`
	LastError        string     `json:"lastError,omitempty"`
	PendingConflicts int        `json:"pendingConflicts"`
}

// PushReport summarizes a PushLocal run.
type PushReport struct {
	Attempted int      `json:"attempted"`
	Posted    int      `json:"posted"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// SynchronizerConfig contains the dependencies of a Synchronizer.
type SynchronizerConfig struct {
	Store    *QuoteStore
	Remote   ports.RemoteQuoteSource
	Notifier ports.Notifier
	Metrics  CycleRecorder
	Logger   *slog.Logger

	// PostTimeout bounds each fire-and-forget post.
	PostTimeout time.Duration

	// PushConcurrency bounds in-flight posts during PushLocal.
	PushConcurrency int

	Now func() time.Time
}

// Synchronizer reconciles the local store with the remote source. At most
// one cycle runs at a time; conflicts wait for an explicit resolution.
type Synchronizer struct {
	store    *QuoteStore
	remote   ports.RemoteQuoteSource
	notifier ports.Notifier
	metrics  CycleRecorder
	logger   *slog.Logger

	postTimeout     time.Duration
	pushConcurrency int
	now             func() time.Time

	busy  atomic.Bool
	posts sync.WaitGroup

	mu        sync.Mutex
	state     SyncState
	pending   []domain.Conflict
	lastSync  time.Time
	lastError string
}

// NewSynchronizer creates a synchronizer in the idle state.
// Panics if Store or Remote is nil.
func NewSynchronizer(cfg SynchronizerConfig) *Synchronizer {
	if cfg.Store == nil || cfg.Remote == nil {
		panic("Synchronizer: Store and Remote are required")
	}

	s := &Synchronizer{
		store:           cfg.Store,
		remote:          cfg.Remote,
		notifier:        cfg.Notifier,
		metrics:         cfg.Metrics,
		logger:          cfg.Logger,
		postTimeout:     cfg.PostTimeout,
		pushConcurrency: cfg.PushConcurrency,
		now:             cfg.Now,
		state:           SyncIdle,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}

	s.logger = s.logger.With(slog.String("component", "app.Synchronizer"))

	if s.postTimeout <= 0 {
		s.postTimeout = defaultPostTimeout
	}

	if s.pushConcurrency <= 0 {
		s.pushConcurrency = defaultPushConcurrency
	}

	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// Sync runs one cycle: fetch, compare, then either hold conflicts for
// resolution or merge new remote quotes. Fetch failures are reported in the
// SyncReport and a notification, not as an error. The returned error is
// ErrSyncInProgress or a storage failure.
func (s *Synchronizer) Sync(ctx context.Context) (SyncReport, error) {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.DebugContext(ctx, "sync skipped, cycle already running")
		return SyncReport{}, ErrSyncInProgress
	}
	defer s.busy.Store(false)

	start := s.now()
	s.setState(SyncComparing)

	remote, err := s.remote.FetchQuotes(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "fetching remote quotes failed", slog.Any("error", err))
		s.notify(ctx, domain.NotificationError, "Error fetching quotes from server")
		s.finish(SyncIdle, err)

		return s.report(ctx, OutcomeFetchFailed, SyncReport{State: SyncIdle, Error: err.Error()}, start), nil
	}

	local := s.store.Quotes()

	if conflicting := domain.DetectConflicts(local, remote); len(conflicting) > 0 {
		conflicts := domain.BuildConflicts(local, conflicting)

		s.mu.Lock()
		s.pending = conflicts
		s.mu.Unlock()

		s.finish(SyncConflictPending, nil)
		s.logger.InfoContext(ctx, "sync found conflicts", slog.Int("conflicts", len(conflicts)))
		s.notify(ctx, domain.NotificationWarning,
			fmt.Sprintf("%d conflict(s) detected, choose which version to keep", len(conflicts)))

		return s.report(ctx, OutcomeConflict, SyncReport{
			State:     SyncConflictPending,
			Fetched:   len(remote),
			Conflicts: cloneConflicts(conflicts),
		}, start), nil
	}

	added, err := s.store.MergeRemote(ctx, remote)
	if err != nil {
		s.finish(SyncIdle, err)
		s.notify(ctx, domain.NotificationError, "Error saving synchronized quotes")
		s.report(ctx, OutcomeSaveFailed, SyncReport{}, start)

		return SyncReport{State: SyncIdle, Fetched: len(remote), Error: err.Error()}, err
	}

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()

	s.finish(SyncMerged, nil)
	s.logger.InfoContext(ctx, "sync merged remote quotes",
		slog.Int("fetched", len(remote)),
		slog.Int("added", len(added)),
	)
	s.notify(ctx, domain.NotificationSuccess, "Quotes synchronized successfully")

	return s.report(ctx, OutcomeMerged, SyncReport{
		State:     SyncMerged,
		Fetched:   len(remote),
		Added:     len(added),
		Conflicts: []domain.Conflict{},
	}, start), nil
}

func (s *Synchronizer) report(ctx context.Context, outcome string, r SyncReport, start time.Time) SyncReport {
	r.Duration = s.now().Sub(start)
	if r.Conflicts == nil {
		r.Conflicts = []domain.Conflict{}
	}

	if s.metrics != nil {
		s.metrics.RecordCycle(ctx, outcome, len(r.Conflicts), r.Added, r.Duration)
	}

	return r
}

// finish records the end state of a cycle. Only cycles that reached the
// remote update lastSync.
func (s *Synchronizer) finish(state SyncState, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state

	if err != nil {
		s.lastError = err.Error()
		return
	}

	s.lastError = ""
	s.lastSync = s.now()
}

func (s *Synchronizer) setState(state SyncState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
}

// Status returns the current state.
func (s *Synchronizer) Status() SyncStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SyncStatus{
		State:            s.state,
		Running:          s.busy.Load(),
		LastError:        s.lastError,
		PendingConflicts: len(s.pending),
	}

	if !s.lastSync.IsZero() {
		t := s.lastSync
		st.LastSync = &t
	}

	return st
}

// Conflicts returns the pending conflicts.
func (s *Synchronizer) Conflicts() []domain.Conflict {
	s.mu.Lock()
	defer s.mu.Unlock()

	return cloneConflicts(s.pending)
}

// PendingCount returns the number of pending conflicts.
func (s *Synchronizer) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.pending)
}

// ResolveConflict settles the pending conflict for id. "server" overwrites
// every local quote with that ID; "local" keeps the local data. Either way
// the conflict is dismissed, and the state returns to idle once none remain.
func (s *Synchronizer) ResolveConflict(ctx context.Context, id int64, choice string) error {
	resolution, err := domain.ParseResolution(choice)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.IndexFunc(s.pending, func(c domain.Conflict) bool { return c.ID == id })
	if idx < 0 {
		return domain.NewNotFoundError("conflict", strconv.FormatInt(id, 10))
	}

	conflict := s.pending[idx]

	if resolution == domain.ResolveServer {
		replaced, err := s.store.ReplaceByID(ctx, conflict.Server)
		if err != nil {
			return fmt.Errorf("resolving conflict %d: %w", id, err)
		}

		s.logger.InfoContext(ctx, "conflict resolved with server version",
			slog.Int64("id", id),
			slog.Int("replaced", replaced),
		)
	} else {
		s.logger.InfoContext(ctx, "conflict resolved with local version", slog.Int64("id", id))
	}

	s.pending = slices.Delete(slices.Clone(s.pending), idx, idx+1)
	if len(s.pending) == 0 {
		s.pending = nil
		s.state = SyncIdle
	}

	s.notify(ctx, domain.NotificationInfo, fmt.Sprintf("Conflict %d resolved using %s version", id, resolution))

	return nil
}

// PostQuote publishes q in the background. The outcome is only reported as
// a notification; local state never changes. The post outlives ctx's
// cancellation but is bounded by the post timeout. Use Wait to drain.
func (s *Synchronizer) PostQuote(ctx context.Context, q domain.Quote) {
	base := context.WithoutCancel(ctx)

	s.posts.Go(func() {
		postCtx, cancel := context.WithTimeout(base, s.postTimeout)
		defer cancel()

		if _, err := s.remote.PostQuote(postCtx, q); err != nil {
			s.logger.WarnContext(postCtx, "posting quote failed", slog.Any("error", err))
			s.notify(postCtx, domain.NotificationError, "Error posting quote to server")

			return
		}

		s.notify(postCtx, domain.NotificationSuccess, "Quote successfully posted to server")
	})
}

// Wait blocks until every background post has finished or ctx is done.
func (s *Synchronizer) Wait(ctx context.Context) error {
	done := make(chan struct{})

	go func() {
		s.posts.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PushLocal posts every local quote that has no remote ID, with bounded
// concurrency, and reports how many succeeded.
func (s *Synchronizer) PushLocal(ctx context.Context) PushReport {
	var fns []func(context.Context) (*domain.Quote, error)

	for _, q := range s.store.Quotes() {
		if q.HasID() {
			continue
		}

		fns = append(fns, func(ctx context.Context) (*domain.Quote, error) {
			postCtx, cancel := context.WithTimeout(ctx, s.postTimeout)
			defer cancel()

			return s.remote.PostQuote(postCtx, q)
		})
	}

	report := PushReport{Attempted: len(fns)}

	for _, r := range ParallelPartialLimit(ctx, s.pushConcurrency, fns...) {
		if r.Err != nil {
			report.Failed++
			report.Errors = append(report.Errors, r.Err.Error())

			continue
		}

		report.Posted++
	}

	s.logger.InfoContext(ctx, "pushed local quotes",
		slog.Int("attempted", report.Attempted),
		slog.Int("posted", report.Posted),
		slog.Int("failed", report.Failed),
	)

	level := domain.NotificationSuccess
	if report.Failed > 0 {
		level = domain.NotificationWarning
	}

	s.notify(ctx, level, fmt.Sprintf("Pushed %d of %d local quotes to server", report.Posted, report.Attempted))

	return report
}

func (s *Synchronizer) notify(ctx context.Context, level domain.NotificationLevel, msg string) {
	if s.notifier == nil {
		return
	}

	s.notifier.Notify(ctx, domain.Notification{Level: level, Message: msg})
}

func cloneConflicts(in []domain.Conflict) []domain.Conflict {
	out := make([]domain.Conflict, len(in))
	for i, c := range in {
		out[i] = domain.Conflict{ID: c.ID, Server: c.Server.Clone(), Local: c.Local.Clone()}
	}

	return out
}
