package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/crawler"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/schedulerModel"
	"github.com/akolanti/ComplianceGPT/internal/metrics"
	"github.com/akolanti/ComplianceGPT/internal/rag/ingest"
	"github.com/akolanti/ComplianceGPT/internal/rag/vectorDB"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
)

type Crawler interface {
	Crawl(ctx context.Context, categories ...documentModel.Category) (crawler.Report, error)
}

type Ingester interface {
	IngestBatch(ctx context.Context, records []documentModel.DocumentRecord) ingest.BatchReport
	PendingRepairs(ctx context.Context) ([]documentModel.DocumentRecord, error)
}

var allPhases = []string{
	string(schedulerModel.Idle),
	string(schedulerModel.Crawling),
	string(schedulerModel.Ingesting),
	string(schedulerModel.Failed),
}

// Scheduler owns the update cycle and its persisted state. Only one cycle
// runs at a time, whether started by the poll loop, a forced trigger or
// RunOnce.
type Scheduler struct {
	crawler  Crawler
	ingester Ingester
	cache    vectorDB.AnswerCache
	store    schedulerModel.StateStore
	settings config.SchedulerSettings
	logger   *logger_i.Logger
	now      func() time.Time

	running atomic.Bool
	pending atomic.Bool
	looping atomic.Bool
	trigger chan struct{}

	loadOnce sync.Once
	loadErr  error

	mu    sync.RWMutex
	state schedulerModel.State

	wg sync.WaitGroup
}

// New builds a scheduler. cache may be nil when answers are not cached.
func New(c Crawler, ingester Ingester, cache vectorDB.AnswerCache, store schedulerModel.StateStore, settings config.SchedulerSettings) *Scheduler {
	if settings.Interval <= 0 {
		settings.Interval = config.UpdateInterval
	}
	if settings.PollInterval <= 0 {
		settings.PollInterval = config.SchedulerPollInterval
	}
	if settings.InitialDelay < 0 {
		settings.InitialDelay = 0
	}
	if settings.FailureRetryDelay < 0 {
		settings.FailureRetryDelay = 0
	}
	return &Scheduler{
		crawler:  c,
		ingester: ingester,
		cache:    cache,
		store:    store,
		settings: settings,
		logger:   logger_i.NewLogger("scheduler"),
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
		state: schedulerModel.State{
			Phase:    schedulerModel.Idle,
			Interval: settings.Interval,
		},
	}
}

// Load reads the persisted state. It runs once; later calls return the first
// result. A state left mid-cycle by a crash is reset to Idle.
func (s *Scheduler) Load(ctx context.Context) error {
	s.loadOnce.Do(func() {
		s.loadErr = s.load(ctx)
	})
	return s.loadErr
}

func (s *Scheduler) load(ctx context.Context) error {
	log := s.logger.ForContext(ctx)
	state, found, err := s.store.Load(ctx)
	if err != nil {
		return err
	}
	if !found {
		log.Info("no persisted scheduler state, starting fresh")
		metrics.SetSchedulerPhase(string(schedulerModel.Idle), allPhases...)
		return nil
	}

	interrupted := state.Phase.Running()
	if interrupted {
		log.Warn("previous update cycle was interrupted", "phase", state.Phase, "lastAttempt", state.LastAttempt)
		state.LastError = fmt.Sprintf("update cycle interrupted during %s phase", state.Phase)
		state.Phase = schedulerModel.Idle
	}
	state.Interval = s.settings.Interval

	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	metrics.SetSchedulerPhase(string(state.Phase), allPhases...)

	if interrupted {
		return s.persist(ctx)
	}
	return nil
}

// Start loads the state and runs the poll loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.Load(ctx); err != nil {
		return err
	}
	s.looping.Store(true)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.looping.Store(false)
		s.loop(ctx)
	}()
	s.logger.Info("scheduler started", "interval", s.settings.Interval, "poll", s.settings.PollInterval, "initialDelay", s.settings.InitialDelay)
	return nil
}

// Wait blocks until the poll loop and any cycle it started have returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context) {
	timer := time.NewTimer(s.settings.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.settings.PollInterval)
		case <-s.trigger:
			s.runLogged(ctx, true)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.snapshot().Phase == schedulerModel.Failed {
		s.update(func(st *schedulerModel.State) { st.Phase = schedulerModel.Idle })
		if err := s.persist(ctx); err != nil {
			s.logger.ForContext(ctx).Error("failed to persist recovery", "error", err)
		}
	}
	if s.due(s.now()) {
		s.runLogged(ctx, false)
	}
}

func (s *Scheduler) runLogged(ctx context.Context, forced bool) {
	_, err := s.runCycle(ctx, forced)
	switch {
	case errors.Is(err, errorModel.ErrCycleInProgress):
		s.pending.Store(false)
	case err != nil:
		s.logger.ForContext(ctx).Error("update cycle failed", "forced", forced, "error", err)
	}
}

// due reports whether the interval has elapsed since the last success. After
// a failed attempt it also waits FailureRetryDelay.
func (s *Scheduler) due(now time.Time) bool {
	st := s.snapshot()
	if st.Phase.Running() {
		return false
	}
	if failedSinceSuccess(st) && now.Sub(st.LastAttempt) < s.settings.FailureRetryDelay {
		return false
	}
	return st.LastSuccess.IsZero() || now.Sub(st.LastSuccess) >= s.settings.Interval
}

func failedSinceSuccess(st schedulerModel.State) bool {
	return st.LastError != "" && !st.LastAttempt.IsZero() && st.LastAttempt.After(st.LastSuccess)
}

// TriggerForceUpdate asks for a cycle now. It is coalesced unless the
// scheduler is Idle with no trigger already waiting. Without a poll loop the
// cycle runs on its own goroutine; Wait covers it.
func (s *Scheduler) TriggerForceUpdate(ctx context.Context) schedulerModel.TriggerResult {
	log := s.logger.ForContext(ctx)
	if s.running.Load() || s.snapshot().Phase != schedulerModel.Idle || !s.pending.CompareAndSwap(false, true) {
		log.Info("forced update coalesced")
		return schedulerModel.Coalesced
	}
	if !s.looping.Load() {
		cycleCtx := context.WithoutCancel(ctx)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.Load(cycleCtx); err != nil {
				s.pending.Store(false)
				log.Error("forced update cannot load scheduler state", "error", err)
				return
			}
			s.runLogged(cycleCtx, true)
		}()
		log.Info("forced update accepted", "loop", false)
		return schedulerModel.Accepted
	}
	select {
	case s.trigger <- struct{}{}:
	default:
	}
	log.Info("forced update accepted")
	return schedulerModel.Accepted
}

func (s *Scheduler) Status(context.Context) schedulerModel.Status {
	st := s.snapshot()
	return schedulerModel.Status{
		Phase:             st.Phase,
		LastSuccess:       st.LastSuccess,
		LastAttempt:       st.LastAttempt,
		NextScheduledTime: s.nextScheduled(st),
		Interval:          s.settings.Interval.String(),
		DocumentsAdded:    st.DocumentsAdded,
		LastError:         st.LastError,
		LastCycle:         st.LastCycle,
	}
}

func (s *Scheduler) nextScheduled(st schedulerModel.State) time.Time {
	now := s.now()
	next := now
	if !st.LastSuccess.IsZero() {
		next = st.LastSuccess.Add(s.settings.Interval)
	}
	if failedSinceSuccess(st) {
		if retry := st.LastAttempt.Add(s.settings.FailureRetryDelay); retry.After(next) {
			next = retry
		}
	}
	if next.Before(now) {
		next = now
	}
	return next
}

// RunOnce runs a full cycle synchronously. It fails with ErrCycleInProgress
// when another cycle holds the scheduler.
func (s *Scheduler) RunOnce(ctx context.Context) (schedulerModel.CycleSummary, error) {
	if err := s.Load(ctx); err != nil {
		return schedulerModel.CycleSummary{}, err
	}
	return s.runCycle(ctx, true)
}

func (s *Scheduler) runCycle(ctx context.Context, forced bool) (schedulerModel.CycleSummary, error) {
	if !s.running.CompareAndSwap(false, true) {
		return schedulerModel.CycleSummary{}, errorModel.ErrCycleInProgress
	}
	defer s.running.Store(false)
	s.pending.Store(false)
	select {
	case <-s.trigger:
	default:
	}

	log := s.logger.ForContext(ctx)
	start := s.now()
	summary := schedulerModel.CycleSummary{
		StartedAt:  start,
		Forced:     forced,
		Categories: make(map[string]schedulerModel.CategorySummary),
	}
	log.Info("update cycle starting", "forced", forced)

	s.update(func(st *schedulerModel.State) {
		st.Phase = schedulerModel.Crawling
		st.LastAttempt = start
	})
	if err := s.persist(ctx); err != nil {
		return s.fail(ctx, summary, err)
	}

	report, err := s.crawler.Crawl(ctx)
	summarizeCrawl(&summary, report)
	// a failed listing still lets the other categories' documents through;
	// the cycle ends Failed once they are ingested
	var listingErr error
	if err != nil {
		var le *errorModel.ListingError
		if !errors.As(err, &le) {
			return s.fail(ctx, summary, fmt.Errorf("crawl: %w", err))
		}
		listingErr = err
		log.Warn("source listing failed", "error", err)
	}
	log.Info("crawl finished", "documents", len(report.Documents))

	s.update(func(st *schedulerModel.State) { st.Phase = schedulerModel.Ingesting })
	if err := s.persist(ctx); err != nil {
		return s.fail(ctx, summary, err)
	}

	repairs, err := s.ingester.PendingRepairs(ctx)
	if err != nil {
		return s.fail(ctx, summary, fmt.Errorf("repair scan: %w", err))
	}
	records, repaired := mergeRecords(report.Documents, repairs)
	summary.Repaired = repaired

	batch := s.ingester.IngestBatch(ctx, records)
	summary.Ingested = batch.Ingested
	summary.IngestFailed = batch.Failed
	summary.ChunksWritten = batch.ChunksWritten
	if batch.Err != nil {
		return s.fail(ctx, summary, fmt.Errorf("ingest: %w", batch.Err))
	}

	if s.cache != nil && (len(report.Documents) > 0 || batch.Ingested > 0) {
		if err := s.cache.Invalidate(ctx); err != nil {
			log.Warn("answer cache invalidation failed", "error", err)
		}
	}
	if listingErr != nil {
		s.update(func(st *schedulerModel.State) { st.DocumentsAdded = len(report.Documents) })
		return s.fail(ctx, summary, fmt.Errorf("crawl: %w", listingErr))
	}

	finished := s.now()
	summary.FinishedAt = finished
	s.update(func(st *schedulerModel.State) {
		st.Phase = schedulerModel.Idle
		st.LastSuccess = finished
		st.LastError = ""
		st.DocumentsAdded = len(report.Documents)
		st.LastCycle = &summary
	})
	if err := s.persist(ctx); err != nil {
		return s.fail(ctx, summary, err)
	}
	metrics.CaptureCycleDuration("success", finished.Sub(start))
	log.Info("update cycle finished", "added", len(report.Documents), "ingested", batch.Ingested,
		"repaired", repaired, "failed", batch.Failed, "took", finished.Sub(start))
	return summary, nil
}

func (s *Scheduler) fail(ctx context.Context, summary schedulerModel.CycleSummary, cause error) (schedulerModel.CycleSummary, error) {
	finished := s.now()
	summary.FinishedAt = finished
	s.update(func(st *schedulerModel.State) {
		st.Phase = schedulerModel.Failed
		st.LastError = cause.Error()
		st.LastCycle = &summary
	})
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.persist(saveCtx); err != nil {
		s.logger.ForContext(ctx).Error("failed to persist failed state", "error", err)
	}
	metrics.CaptureCycleDuration("failure", finished.Sub(summary.StartedAt))
	return summary, cause
}

func (s *Scheduler) snapshot() schedulerModel.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Scheduler) update(fn func(*schedulerModel.State)) {
	s.mu.Lock()
	fn(&s.state)
	s.state.UpdatedAt = s.now()
	phase := s.state.Phase
	s.mu.Unlock()
	metrics.SetSchedulerPhase(string(phase), allPhases...)
}

func (s *Scheduler) persist(ctx context.Context) error {
	return s.store.Save(ctx, s.snapshot())
}

func summarizeCrawl(summary *schedulerModel.CycleSummary, report crawler.Report) {
	for category, r := range report.Categories {
		if r == nil {
			continue
		}
		summary.Categories[string(category)] = schedulerModel.CategorySummary{
			Discovered:  r.Discovered,
			New:         r.New,
			Changed:     r.Changed,
			Unchanged:   r.Unchanged,
			Failed:      len(r.Failures),
			ListingFail: r.ListingError,
		}
	}
}

// mergeRecords puts the freshly crawled documents first and appends repairs
// that are not already among them. It returns how many repairs were added.
func mergeRecords(crawled, repairs []documentModel.DocumentRecord) ([]documentModel.DocumentRecord, int) {
	seen := make(map[string]struct{}, len(crawled))
	records := make([]documentModel.DocumentRecord, 0, len(crawled)+len(repairs))
	for _, r := range crawled {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		records = append(records, r)
	}
	repaired := 0
	for _, r := range repairs {
		if _, dup := seen[r.ID]; dup {
			continue
		}
		seen[r.ID] = struct{}{}
		records = append(records, r)
		repaired++
	}
	return records, repaired
}
