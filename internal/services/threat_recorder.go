package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/google/uuid"
)

// ThreatFinding is the value a detector emits on a positive result. It is
// handed to a Recorder instead of being persisted inline so recording
// latency and failures never perturb the decision path.
type ThreatFinding struct {
	ThreatType models.ThreatType
	Severity   models.Severity
	UserID     *uuid.UUID
	CompanyID  *uuid.UUID
	IPAddress  *string
	UserAgent  *string
	Details    models.ThreatDetails
}

// Recorder accepts findings from detectors. Implementations must never
// block the caller or surface errors.
type Recorder interface {
	Record(ctx context.Context, finding ThreatFinding)
}

// ThreatEventWriter persists threat event rows
type ThreatEventWriter interface {
	Create(ctx context.Context, event *models.ThreatEvent) (*models.ThreatEvent, error)
}

// AuditSink appends entries to the durable audit trail
type AuditSink interface {
	Record(ctx context.Context, entry *models.AuditLog) error
}

// ThreatRecorder drains findings from a bounded queue on a worker
// goroutine and dual-writes each one: a threat event row, then a companion
// audit entry (action THREAT_<type>, status WARNING). Both writes are
// best-effort; failures are logged and swallowed. The two writes are not
// transactional, so a crash between them can orphan one side; the janitor
// run reports make that visible in aggregate.
type ThreatRecorder struct {
	events  ThreatEventWriter
	audit   AuditSink
	logger  *slog.Logger
	queue   chan ThreatFinding
	stopCh  chan struct{}
	doneCh  chan struct{}
	timeout time.Duration
}

// NewThreatRecorder creates a recorder with the given queue depth
func NewThreatRecorder(events ThreatEventWriter, audit AuditSink, logger *slog.Logger, queueSize int) *ThreatRecorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &ThreatRecorder{
		events:  events,
		audit:   audit,
		logger:  logger,
		queue:   make(chan ThreatFinding, queueSize),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
		timeout: 5 * time.Second,
	}
}

// Record enqueues a finding without blocking. When the queue is full the
// finding is dropped; losing a best-effort signal is preferable to adding
// latency on the authentication path.
func (r *ThreatRecorder) Record(ctx context.Context, finding ThreatFinding) {
	select {
	case r.queue <- finding:
	default:
		r.logger.Error("threat finding dropped, recorder queue full",
			slog.String("threat_type", string(finding.ThreatType)),
			slog.String("severity", string(finding.Severity)),
		)
	}
}

// Start runs the worker loop until Stop is called or the context ends
func (r *ThreatRecorder) Start(ctx context.Context) {
	defer close(r.doneCh)

	for {
		select {
		case finding := <-r.queue:
			r.persist(finding)
		case <-r.stopCh:
			r.drain()
			r.logger.Info("threat recorder stopped")
			return
		case <-ctx.Done():
			r.drain()
			r.logger.Info("threat recorder context cancelled")
			return
		}
	}
}

// Stop shuts the worker down after draining queued findings
func (r *ThreatRecorder) Stop() {
	close(r.stopCh)
	<-r.doneCh
}

func (r *ThreatRecorder) drain() {
	for {
		select {
		case finding := <-r.queue:
			r.persist(finding)
		default:
			return
		}
	}
}

// persist performs the dual write. It runs detached from any caller
// context: the protected operation may long be finished by now.
func (r *ThreatRecorder) persist(finding ThreatFinding) {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	event := &models.ThreatEvent{
		ThreatType: finding.ThreatType,
		Severity:   finding.Severity,
		UserID:     finding.UserID,
		CompanyID:  finding.CompanyID,
		IPAddress:  finding.IPAddress,
		UserAgent:  finding.UserAgent,
		Details:    finding.Details,
	}

	if _, err := r.events.Create(ctx, event); err != nil {
		r.logger.Error("failed to persist threat event",
			slog.String("threat_type", string(finding.ThreatType)),
			slog.String("severity", string(finding.Severity)),
			slog.Any("error", err),
		)
	}

	entry := &models.AuditLog{
		Action:    "THREAT_" + string(finding.ThreatType),
		Resource:  models.AuditResourceSecurity,
		Status:    models.AuditStatusWarning,
		UserID:    finding.UserID,
		CompanyID: finding.CompanyID,
		IPAddress: finding.IPAddress,
		UserAgent: finding.UserAgent,
		Details:   models.AuditMetadata(finding.Details),
	}

	if err := r.audit.Record(ctx, entry); err != nil {
		r.logger.Error("failed to mirror threat event to audit log",
			slog.String("threat_type", string(finding.ThreatType)),
			slog.Any("error", err),
		)
	}

	r.logger.Warn("threat recorded",
		slog.String("threat_type", string(finding.ThreatType)),
		slog.String("severity", string(finding.Severity)),
	)
}
