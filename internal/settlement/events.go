package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"aquanexus/marketplace-backend/internal/certificates"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const EventSettlementCompleted = "settlement.completed"

// Event announces a completed settlement
type Event struct {
	Type          string                   `json:"type"`
	ProjectID     string                   `json:"project_id"`
	ProjectName   string                   `json:"project_name,omitempty"`
	BuyerName     string                   `json:"buyer_name"`
	TransactionID string                   `json:"transaction_id"`
	AmountPaid    decimal.Decimal          `json:"amount_paid"`
	CO2OffsetTons decimal.Decimal          `json:"co2_offset_tons"`
	CertificateID string                   `json:"certificate_id"`
	Timestamp     time.Time                `json:"timestamp"`
	Certificate   certificates.Certificate `json:"-"`
}

func newEvent(cert certificates.Certificate) Event {
	return Event{
		Type:          EventSettlementCompleted,
		ProjectID:     cert.ProjectID,
		ProjectName:   cert.ProjectName,
		BuyerName:     cert.Owner,
		TransactionID: cert.Hash,
		AmountPaid:    cert.AmountPaid,
		CO2OffsetTons: cert.CO2OffsetTons,
		CertificateID: cert.ID,
		Timestamp:     cert.IssuedAt,
		Certificate:   cert,
	}
}

// Publisher receives settlement events. Publish must not block on slow
// consumers; a failed publish never affects the settlement outcome.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Publishers fans an event out to every publisher
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, event Event) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Broadcaster is implemented by the websocket hub
type Broadcaster interface {
	Broadcast(payload []byte) error
}

// FeedPublisher pushes events to live feed subscribers
type FeedPublisher struct {
	hub Broadcaster
}

func NewFeedPublisher(hub Broadcaster) *FeedPublisher {
	return &FeedPublisher{hub: hub}
}

func (p *FeedPublisher) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	return p.hub.Broadcast(payload)
}

// CertificateArchiver stores rendered certificates
type CertificateArchiver interface {
	Store(ctx context.Context, cert certificates.Certificate) (string, error)
}

// ArchivePublisher uploads certificates on a background worker so the
// settlement response never waits on object storage
type ArchivePublisher struct {
	archiver CertificateArchiver
	queue    chan certificates.Certificate
	timeout  time.Duration
	logger   *zap.Logger
	wg       sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

var ErrArchiveClosed = errors.New("certificate archive closed")

// NewArchivePublisher starts the upload worker
func NewArchivePublisher(archiver CertificateArchiver, buffer int, timeout time.Duration, logger *zap.Logger) *ArchivePublisher {
	if buffer <= 0 {
		buffer = 64
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	p := &ArchivePublisher{
		archiver: archiver,
		queue:    make(chan certificates.Certificate, buffer),
		timeout:  timeout,
		logger:   logger,
	}
	p.wg.Add(1)
	go p.run()
	return p
}

func (p *ArchivePublisher) Publish(ctx context.Context, event Event) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrArchiveClosed
	}

	select {
	case p.queue <- event.Certificate:
		return nil
	default:
		return fmt.Errorf("archive queue full, dropping certificate %s", event.CertificateID)
	}
}

func (p *ArchivePublisher) run() {
	defer p.wg.Done()
	for cert := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if _, err := p.archiver.Store(ctx, cert); err != nil {
			p.logger.Error("Failed to archive certificate",
				zap.String("certificate_id", cert.ID),
				zap.String("transaction_id", cert.Hash),
				zap.Error(err),
			)
		}
		cancel()
	}
}

// Close drains pending uploads and stops the worker. Later publishes
// return ErrArchiveClosed.
func (p *ArchivePublisher) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()
	p.wg.Wait()
}
