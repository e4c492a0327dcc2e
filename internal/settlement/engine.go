package settlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"aquanexus/marketplace-backend/internal/certificates"
	"aquanexus/marketplace-backend/internal/impact"
	"aquanexus/marketplace-backend/internal/ledger"
	"aquanexus/marketplace-backend/internal/projects"
	"aquanexus/marketplace-backend/pkg/idgen"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultBuyerName = "Empresa Demo SA de CV"

// SettleRequest asks to buy every credit of one project
type SettleRequest struct {
	ProjectID string `json:"project_id" validate:"required,max=64,project_id"`
	BuyerName string `json:"buyer_name" validate:"required,max=200,printable"`
}

// Result is returned for a completed settlement
type Result struct {
	Record      *ledger.Record
	Project     *projects.Project
	Certificate certificates.Certificate
}

// Config controls engine timeouts and retries
type Config struct {
	StoreTimeout     time.Duration
	LedgerRetries    int
	LedgerRetryDelay time.Duration
	DefaultBuyer     string

	// SerializeTransitions forces the per-project lock even when the
	// catalog offers an atomic transition
	SerializeTransitions bool
}

// DefaultConfig returns default engine configuration
func DefaultConfig() *Config {
	return &Config{
		StoreTimeout:     5 * time.Second,
		LedgerRetries:    3,
		LedgerRetryDelay: 50 * time.Millisecond,
		DefaultBuyer:     DefaultBuyerName,
	}
}

// UnrecordedSink receives records that could not be appended
type UnrecordedSink interface {
	Enqueue(record *ledger.Record)
}

// Option configures an Engine
type Option func(*Engine)

func WithLocker(locker Locker) Option {
	return func(e *Engine) { e.locker = locker }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithGenerator(gen idgen.Generator) Option {
	return func(e *Engine) { e.ids = gen }
}

func WithPublisher(p Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithUnrecordedSink(sink UnrecordedSink) Option {
	return func(e *Engine) { e.sink = sink }
}

func WithCertificateCache(cache *certificates.Cache) Option {
	return func(e *Engine) { e.certs = cache }
}

// Engine settles credit purchases. Each project is sold at most once and
// every confirmed sale has exactly one ledger record.
type Engine struct {
	catalog   projects.Gateway
	ledger    ledger.Store
	config    *Config
	logger    *zap.Logger
	validate  *validator.Validate
	locker    Locker
	ids       idgen.Generator
	now       func() time.Time
	publisher Publisher
	metrics   *Metrics
	sink      UnrecordedSink
	certs     *certificates.Cache
}

// NewEngine creates an engine. A nil config uses DefaultConfig.
func NewEngine(catalog projects.Gateway, store ledger.Store, config *Config, logger *zap.Logger, opts ...Option) *Engine {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = defaults.StoreTimeout
	}
	if config.LedgerRetries < 0 {
		config.LedgerRetries = 0
	}
	if config.LedgerRetryDelay < 0 {
		config.LedgerRetryDelay = 0
	}
	if strings.TrimSpace(config.DefaultBuyer) == "" {
		config.DefaultBuyer = defaults.DefaultBuyer
	}

	e := &Engine{
		catalog:  catalog,
		ledger:   store,
		config:   config,
		logger:   logger,
		validate: newValidator(),
		ids:      idgen.Random{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.locker == nil && e.serialized() {
		e.locker = NewKeyedMutex()
	}
	return e
}

func (e *Engine) serialized() bool {
	return e.config.SerializeTransitions || !e.catalog.Atomic()
}

// Settle runs one purchase. Every failure is a *Error.
func (e *Engine) Settle(ctx context.Context, req SettleRequest) (*Result, error) {
	start := time.Now()
	result, err := e.settle(ctx, req)

	outcome := outcomeSuccess
	if err != nil {
		outcome = string(KindOf(err))
	}
	e.metrics.observe(outcome, time.Since(start))
	return result, err
}

func (e *Engine) settle(ctx context.Context, req SettleRequest) (*Result, error) {
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.BuyerName = strings.TrimSpace(req.BuyerName)
	if req.BuyerName == "" {
		req.BuyerName = e.config.DefaultBuyer
	}
	if err := e.validate.Struct(req); err != nil {
		return nil, &Error{Kind: KindValidation, Message: describe(err), ProjectID: req.ProjectID, Err: err}
	}

	project, err := e.claim(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	record := &ledger.Record{
		ID:            uuid.New(),
		ProjectID:     project.ID,
		BuyerName:     req.BuyerName,
		AmountPaid:    impact.AmountPaid(project.PricePerCredit, project.ImpactQuantity),
		TransactionID: e.ids.NewTransactionID(),
		Timestamp:     e.now().UTC(),
	}

	stored, err := e.appendWithRetry(ctx, record)
	if err != nil {
		return nil, e.unrecorded(record, err)
	}

	cert := certificates.Build(stored, project)
	if e.certs != nil {
		e.certs.Set(project.ID, cert)
	}

	e.logger.Info("Settlement completed",
		zap.String("project_id", project.ID),
		zap.String("transaction_id", stored.TransactionID),
		zap.String("amount_paid", stored.AmountPaid.String()),
	)

	if e.publisher != nil {
		if err := e.publisher.Publish(ctx, newEvent(cert)); err != nil {
			e.logger.Warn("Failed to publish settlement event",
				zap.String("project_id", project.ID),
				zap.Error(err),
			)
		}
	}

	return &Result{Record: stored, Project: project, Certificate: cert}, nil
}

// claim fetches the project and transitions it to Sold. When the catalog
// is not atomic the whole sequence runs under the project's lock.
func (e *Engine) claim(ctx context.Context, projectID string) (*projects.Project, error) {
	if e.serialized() {
		lockCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
		unlock, err := e.locker.Lock(lockCtx, projectID)
		cancel()
		if err != nil {
			return nil, e.storeFailure(err, projectID, "acquiring project lock")
		}
		defer unlock()
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	project, err := e.catalog.Fetch(fetchCtx, projectID)
	cancel()
	if err != nil {
		if errors.Is(err, projects.ErrProjectNotFound) {
			return nil, &Error{Kind: KindProjectNotFound, Message: "project not found", ProjectID: projectID}
		}
		return nil, e.storeFailure(err, projectID, "fetching project")
	}

	// Fast path only; the conditional transition below decides the winner
	if !project.IsAvailable() {
		return nil, &Error{Kind: KindAlreadySold, Message: "project already sold", ProjectID: projectID}
	}

	txCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
	updated, err := e.catalog.TryTransition(txCtx, projectID,
		projects.StatusAvailable, projects.StatusSold,
		projects.SideEffects{VerifiedByAutomatedCheck: true},
	)
	cancel()
	switch {
	case err == nil:
		return updated, nil
	case errors.Is(err, projects.ErrPreconditionFailed):
		return nil, &Error{Kind: KindAlreadySold, Message: "project already sold", ProjectID: projectID}
	case errors.Is(err, projects.ErrProjectNotFound):
		return nil, &Error{Kind: KindProjectNotFound, Message: "project not found", ProjectID: projectID}
	default:
		return nil, e.storeFailure(err, projectID, "transitioning project")
	}
}

// appendWithRetry returns the stored record. A duplicate with our own
// transaction id means an earlier attempt landed and counts as success.
func (e *Engine) appendWithRetry(ctx context.Context, record *ledger.Record) (*ledger.Record, error) {
	// The project is already Sold; recording it must outlive the caller
	base := context.WithoutCancel(ctx)
	attempts := 1 + e.config.LedgerRetries
	delay := e.config.LedgerRetryDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			e.metrics.ledgerRetry()
			time.Sleep(delay)
			delay *= 2
		}

		attemptCtx, cancel := context.WithTimeout(base, e.config.StoreTimeout)
		err := e.ledger.Append(attemptCtx, record)
		if err == nil {
			cancel()
			return record, nil
		}
		if errors.Is(err, ledger.ErrDuplicateRecord) {
			existing, findErr := e.ledger.FindByProject(attemptCtx, record.ProjectID)
			cancel()
			if findErr == nil {
				if existing.TransactionID == record.TransactionID {
					return existing, nil
				}
				return nil, errConflictingRecord{existing: existing}
			}
			err = findErr
		} else {
			cancel()
		}

		lastErr = err
		e.logger.Warn("Ledger append failed",
			zap.String("project_id", record.ProjectID),
			zap.String("transaction_id", record.TransactionID),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", attempts),
			zap.Error(err),
		)
	}
	return nil, lastErr
}

type errConflictingRecord struct {
	existing *ledger.Record
}

func (e errConflictingRecord) Error() string {
	return "ledger already holds a different record for project " + e.existing.ProjectID
}

// unrecorded reports a sale that could not be confirmed in the ledger. The
// transition is never retried; the record goes to the reconciler.
func (e *Engine) unrecorded(record *ledger.Record, cause error) *Error {
	var conflict errConflictingRecord
	if errors.As(cause, &conflict) {
		e.logger.Error("Conflicting ledger record for sold project",
			zap.String("project_id", record.ProjectID),
			zap.String("transaction_id", record.TransactionID),
			zap.String("existing_transaction_id", conflict.existing.TransactionID),
		)
		return &Error{
			Kind:          KindLedgerWriteFailed,
			Message:       "settlement could not be recorded",
			ProjectID:     record.ProjectID,
			TransactionID: record.TransactionID,
			Err:           cause,
		}
	}

	e.logger.Error("Project sold but ledger record not written",
		zap.String("project_id", record.ProjectID),
		zap.String("transaction_id", record.TransactionID),
		zap.Time("timestamp", record.Timestamp),
		zap.String("buyer_name", record.BuyerName),
		zap.Error(cause),
	)
	if e.sink != nil {
		e.sink.Enqueue(record.Clone())
	}
	return &Error{
		Kind:           KindLedgerWriteFailed,
		Message:        "settlement could not be recorded",
		ProjectID:      record.ProjectID,
		TransactionID:  record.TransactionID,
		SoldUnrecorded: true,
		Record:         record.Clone(),
		Err:            cause,
	}
}

// storeFailure maps infrastructure errors to Timeout or Internal
func (e *Engine) storeFailure(err error, projectID, op string) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		e.logger.Warn("Settlement store call timed out",
			zap.String("project_id", projectID),
			zap.String("operation", op),
			zap.Error(err),
		)
		return &Error{Kind: KindTimeout, Message: "timed out " + op, ProjectID: projectID, Err: err}
	}
	e.logger.Error("Settlement store call failed",
		zap.String("project_id", projectID),
		zap.String("operation", op),
		zap.Error(err),
	)
	return &Error{Kind: KindInternal, Message: "internal error", ProjectID: projectID, Err: err}
}

// Certificate recomputes the certificate of a settled project
func (e *Engine) Certificate(ctx context.Context, projectID string) (certificates.Certificate, error) {
	if projectID == "" || len(projectID) > MaxProjectIDLength || !projectIDPattern.MatchString(projectID) {
		return certificates.Certificate{}, &Error{Kind: KindValidation, Message: "invalid project_id", ProjectID: projectID}
	}

	compute := func() (certificates.Certificate, error) {
		lookupCtx, cancel := context.WithTimeout(ctx, e.config.StoreTimeout)
		defer cancel()

		record, err := e.ledger.FindByProject(lookupCtx, projectID)
		if err != nil {
			if errors.Is(err, ledger.ErrRecordNotFound) {
				return certificates.Certificate{}, &Error{Kind: KindProjectNotFound, Message: "no settlement recorded for project", ProjectID: projectID}
			}
			return certificates.Certificate{}, e.storeFailure(err, projectID, "reading ledger")
		}
		project, err := e.catalog.Fetch(lookupCtx, projectID)
		if err != nil {
			if errors.Is(err, projects.ErrProjectNotFound) {
				return certificates.Certificate{}, &Error{Kind: KindProjectNotFound, Message: "project not found", ProjectID: projectID}
			}
			return certificates.Certificate{}, e.storeFailure(err, projectID, "fetching project")
		}
		return certificates.Build(record, project), nil
	}

	if e.certs == nil {
		return compute()
	}
	return e.certs.GetOrSet(projectID, compute)
}

// CertificateCacheStats reports certificate cache usage. ok is false when
// the engine runs without a cache.
func (e *Engine) CertificateCacheStats() (stats certificates.CacheStats, ok bool) {
	if e.certs == nil {
		return certificates.CacheStats{}, false
	}
	return e.certs.Stats(), true
}
