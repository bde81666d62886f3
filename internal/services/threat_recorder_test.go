package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/calebmoore/vaultguard/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestThreatRecorder_DualWritesFinding(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	events := &mockThreatEventWriter{}
	audit := &mockAuditSink{}

	recorder := services.NewThreatRecorder(events, audit, logger, 16)
	go recorder.Start(context.Background())

	userID := uuid.New()
	ip := "192.168.1.1"
	recorder.Record(context.Background(), services.ThreatFinding{
		ThreatType: models.ThreatTypeBruteForce,
		Severity:   models.SeverityHigh,
		UserID:     &userID,
		IPAddress:  &ip,
		Details:    models.ThreatDetails{"failed_attempts": 5},
	})

	recorder.Stop()

	created := events.Created()
	assert.Len(t, created, 1)
	assert.Equal(t, models.ThreatTypeBruteForce, created[0].ThreatType)
	assert.Equal(t, models.SeverityHigh, created[0].Severity)
	assert.Equal(t, userID, *created[0].UserID)

	entries := audit.Entries()
	assert.Len(t, entries, 1)
	assert.Equal(t, "THREAT_BRUTE_FORCE", entries[0].Action)
	assert.Equal(t, models.AuditResourceSecurity, entries[0].Resource)
	assert.Equal(t, models.AuditStatusWarning, entries[0].Status)
	assert.Equal(t, ip, *entries[0].IPAddress)
}

func TestThreatRecorder_StopDrainsQueuedFindings(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	events := &mockThreatEventWriter{}
	audit := &mockAuditSink{}

	recorder := services.NewThreatRecorder(events, audit, logger, 16)

	// Enqueue before the worker runs so everything rides on the drain
	for i := 0; i < 5; i++ {
		recorder.Record(context.Background(), services.ThreatFinding{
			ThreatType: models.ThreatTypeRateLimitExceeded,
			Severity:   models.SeverityMedium,
		})
	}

	go recorder.Start(context.Background())
	recorder.Stop()

	assert.Len(t, events.Created(), 5)
	assert.Len(t, audit.Entries(), 5)
}

func TestThreatRecorder_FullQueueDropsWithoutBlocking(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	events := &mockThreatEventWriter{}
	audit := &mockAuditSink{}

	// Worker not started, so the queue fills at capacity
	recorder := services.NewThreatRecorder(events, audit, logger, 2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			recorder.Record(context.Background(), services.ThreatFinding{
				ThreatType: models.ThreatTypeRateLimitExceeded,
				Severity:   models.SeverityMedium,
			})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full queue")
	}

	go recorder.Start(context.Background())
	recorder.Stop()

	// Only what fit in the queue was persisted
	assert.Len(t, events.Created(), 2)
}

func TestThreatRecorder_WriteFailuresAreSwallowed(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	events := &mockThreatEventWriter{failErr: errors.New("connection refused")}
	audit := &mockAuditSink{}

	recorder := services.NewThreatRecorder(events, audit, logger, 16)
	go recorder.Start(context.Background())

	recorder.Record(context.Background(), services.ThreatFinding{
		ThreatType: models.ThreatTypeBruteForce,
		Severity:   models.SeverityHigh,
	})

	recorder.Stop()

	// The event write failed but the audit mirror still happened
	assert.Empty(t, events.Created())
	assert.Len(t, audit.Entries(), 1)
}
