package settlement

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"aquanexus/marketplace-backend/internal/ledger"
	"aquanexus/marketplace-backend/internal/projects"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// ReconcilerConfig configures the reconciliation job
type ReconcilerConfig struct {
	Schedule    string        `json:"schedule"`
	CallTimeout time.Duration `json:"call_timeout"`
	PageSize    int           `json:"page_size"`
}

// DefaultReconcilerConfig returns default reconciler configuration
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{
		Schedule:    "@every 1m",
		CallTimeout: 5 * time.Second,
		PageSize:    200,
	}
}

// Orphan is a Sold project with no ledger record and nothing queued
type Orphan struct {
	ProjectID  string    `json:"project_id"`
	DetectedAt time.Time `json:"detected_at"`
}

// ReconciliationSnapshot is the reconciler state exposed to operators
type ReconciliationSnapshot struct {
	Pending []*ledger.Record `json:"pending"`
	Orphans []Orphan         `json:"orphans"`
	LastRun *time.Time       `json:"last_run,omitempty"`
}

// Reconciler retries ledger appends for sold projects the engine could not
// record, and reports Sold projects that have no record at all.
type Reconciler struct {
	catalog projects.Gateway
	ledger  ledger.Store
	config  ReconcilerConfig
	metrics *Metrics
	logger  *zap.Logger
	now     func() time.Time

	cron    *cron.Cron
	entryID cron.EntryID
	running bool

	mu       sync.Mutex
	pending  map[string]*ledger.Record
	orphans  map[string]Orphan
	// suspects were unrecorded in the last sweep only. A settlement in
	// flight looks the same until its append lands.
	suspects map[string]bool
	lastRun  *time.Time
}

// NewReconciler creates a reconciler. metrics may be nil.
func NewReconciler(catalog projects.Gateway, store ledger.Store, config ReconcilerConfig, metrics *Metrics, logger *zap.Logger) *Reconciler {
	defaults := DefaultReconcilerConfig()
	if config.Schedule == "" {
		config.Schedule = defaults.Schedule
	}
	if config.CallTimeout <= 0 {
		config.CallTimeout = defaults.CallTimeout
	}
	if config.PageSize <= 0 {
		config.PageSize = defaults.PageSize
	}
	return &Reconciler{
		catalog:  catalog,
		ledger:   store,
		config:   config,
		metrics:  metrics,
		logger:   logger,
		now:      time.Now,
		cron:     cron.New(),
		pending:  make(map[string]*ledger.Record),
		orphans:  make(map[string]Orphan),
		suspects: make(map[string]bool),
	}
}

// Enqueue queues a record whose project is already Sold
func (r *Reconciler) Enqueue(record *ledger.Record) {
	if record == nil {
		return
	}
	r.mu.Lock()
	r.pending[record.TransactionID] = record.Clone()
	delete(r.orphans, record.ProjectID)
	r.updateMetricsLocked()
	r.mu.Unlock()

	r.logger.Warn("Queued unrecorded settlement",
		zap.String("project_id", record.ProjectID),
		zap.String("transaction_id", record.TransactionID),
	)
}

// Start schedules RunOnce on the configured schedule
func (r *Reconciler) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	id, err := r.cron.AddFunc(r.config.Schedule, func() {
		if err := r.RunOnce(ctx); err != nil {
			r.logger.Error("Reconciliation run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconciliation: %w", err)
	}
	r.entryID = id
	r.cron.Start()
	r.running = true

	r.logger.Info("Started settlement reconciler", zap.String("schedule", r.config.Schedule))
	return nil
}

// Stop stops scheduling and waits for a running job to finish
func (r *Reconciler) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.cron.Remove(r.entryID)
	r.mu.Unlock()

	<-r.cron.Stop().Done()
	r.logger.Info("Stopped settlement reconciler")
}

// RunOnce retries pending appends, then sweeps the catalog for Sold
// projects with no ledger record. A project is reported as an orphan once
// two consecutive sweeps find it unrecorded.
func (r *Reconciler) RunOnce(ctx context.Context) error {
	r.retryPending(ctx)
	err := r.sweep(ctx)

	r.mu.Lock()
	now := r.now().UTC()
	r.lastRun = &now
	r.updateMetricsLocked()
	r.mu.Unlock()
	return err
}

func (r *Reconciler) retryPending(ctx context.Context) {
	r.mu.Lock()
	batch := make([]*ledger.Record, 0, len(r.pending))
	for _, rec := range r.pending {
		batch = append(batch, rec)
	}
	r.mu.Unlock()

	for _, rec := range batch {
		if ctx.Err() != nil {
			return
		}
		done, err := r.appendOne(ctx, rec)
		if !done {
			r.logger.Warn("Ledger retry failed",
				zap.String("project_id", rec.ProjectID),
				zap.String("transaction_id", rec.TransactionID),
				zap.Error(err),
			)
			continue
		}

		r.mu.Lock()
		delete(r.pending, rec.TransactionID)
		r.mu.Unlock()
		if err != nil {
			r.logger.Error("Dropped unrecorded settlement",
				zap.String("project_id", rec.ProjectID),
				zap.String("transaction_id", rec.TransactionID),
				zap.Error(err),
			)
			continue
		}
		r.logger.Info("Recorded previously unrecorded settlement",
			zap.String("project_id", rec.ProjectID),
			zap.String("transaction_id", rec.TransactionID),
		)
	}
}

// appendOne reports done when the record no longer needs retrying. A
// non-nil error with done means the ledger holds a different record.
func (r *Reconciler) appendOne(ctx context.Context, rec *ledger.Record) (bool, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.config.CallTimeout)
	defer cancel()

	err := r.ledger.Append(callCtx, rec)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ledger.ErrInvalidRecord) {
		return true, err
	}
	if !errors.Is(err, ledger.ErrDuplicateRecord) {
		return false, err
	}

	existing, findErr := r.ledger.FindByProject(callCtx, rec.ProjectID)
	if findErr != nil {
		return false, findErr
	}
	if existing.TransactionID != rec.TransactionID {
		return true, fmt.Errorf("project %s already recorded with transaction %s", rec.ProjectID, existing.TransactionID)
	}
	return true, nil
}

func (r *Reconciler) sweep(ctx context.Context) error {
	sold := projects.StatusSold
	found := make(map[string]bool)

	for offset := 0; ; offset += r.config.PageSize {
		listCtx, cancel := context.WithTimeout(ctx, r.config.CallTimeout)
		page, err := r.catalog.List(listCtx, projects.ListFilter{Status: &sold, Limit: r.config.PageSize, Offset: offset})
		cancel()
		if err != nil {
			return fmt.Errorf("failed to list sold projects: %w", err)
		}

		for _, p := range page {
			checkCtx, cancel := context.WithTimeout(ctx, r.config.CallTimeout)
			recorded, err := r.ledger.HasRecordFor(checkCtx, p.ID)
			cancel()
			if err != nil {
				return fmt.Errorf("failed to check ledger for %s: %w", p.ID, err)
			}
			if !recorded {
				found[p.ID] = true
			}
		}
		if len(page) < r.config.PageSize {
			break
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	queued := make(map[string]bool, len(r.pending))
	for _, rec := range r.pending {
		queued[rec.ProjectID] = true
	}
	for id := range r.orphans {
		if !found[id] || queued[id] {
			delete(r.orphans, id)
		}
	}

	suspects := make(map[string]bool)
	for id := range found {
		if queued[id] {
			continue
		}
		if _, known := r.orphans[id]; known {
			continue
		}
		if !r.suspects[id] {
			suspects[id] = true
			continue
		}
		r.orphans[id] = Orphan{ProjectID: id, DetectedAt: r.now().UTC()}
		r.logger.Error("Sold project has no ledger record", zap.String("project_id", id))
	}
	r.suspects = suspects
	return nil
}

func (r *Reconciler) updateMetricsLocked() {
	r.metrics.setBacklog(len(r.pending), len(r.orphans))
}

// Snapshot returns a copy of the current reconciler state
func (r *Reconciler) Snapshot() ReconciliationSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := ReconciliationSnapshot{
		Pending: make([]*ledger.Record, 0, len(r.pending)),
		Orphans: make([]Orphan, 0, len(r.orphans)),
	}
	for _, rec := range r.pending {
		snap.Pending = append(snap.Pending, rec.Clone())
	}
	for _, o := range r.orphans {
		snap.Orphans = append(snap.Orphans, o)
	}
	sort.Slice(snap.Pending, func(i, j int) bool { return snap.Pending[i].ProjectID < snap.Pending[j].ProjectID })
	sort.Slice(snap.Orphans, func(i, j int) bool { return snap.Orphans[i].ProjectID < snap.Orphans[j].ProjectID })
	if r.lastRun != nil {
		t := *r.lastRun
		snap.LastRun = &t
	}
	return snap
}

var _ UnrecordedSink = (*Reconciler)(nil)
