package services_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/calebmoore/vaultguard/internal/geoip"
	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/calebmoore/vaultguard/internal/services"
	"github.com/calebmoore/vaultguard/internal/useragent"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

const (
	chromeMacUA   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	safariPhoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
)

func anomalyPolicy() services.AnomalyPolicy {
	return services.AnomalyPolicy{
		Enabled:              true,
		CheckUnusualLocation: true,
		CheckUnusualTime:     true,
		CheckUnusualDevice:   true,
	}
}

func historyAt(userID uuid.UUID, ip, agent string, hour int) []*models.AuditLog {
	return []*models.AuditLog{
		{UserID: &userID, IPAddress: &ip, UserAgent: &agent, CreatedAt: time.Date(2025, 3, 9, hour, 0, 0, 0, time.UTC)},
		{UserID: &userID, IPAddress: &ip, UserAgent: &agent, CreatedAt: time.Date(2025, 3, 8, hour, 30, 0, 0, time.UTC)},
	}
}

func TestAnomalyServiceDetectAnomalies_FirstLoginIsNeverAnomalous(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	audit := &mockAuditReader{}
	recorder := &mockRecorder{}
	geo := geoip.NewStaticResolver(map[string]string{"198.51.100.7": "RU"})

	service := services.NewAnomalyService(audit, geo, useragent.NewParser(), recorder, logger)

	result, err := service.DetectAnomalies(context.Background(), uuid.New(), "198.51.100.7", chromeMacUA, anomalyPolicy(), nil)

	assert.NoError(t, err)
	assert.False(t, result.IsAnomaly)
	assert.Empty(t, result.Reasons)
	assert.Empty(t, recorder.Findings())
}

func TestAnomalyServiceDetectAnomalies_FlagsNewCountry(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()
	audit := &mockAuditReader{
		RecentSuccessfulLoginsFunc: func(ctx context.Context, id uuid.UUID, since time.Time, limit int) ([]*models.AuditLog, error) {
			return historyAt(userID, "8.8.8.8", chromeMacUA, 14), nil
		},
	}
	recorder := &mockRecorder{}
	geo := geoip.NewStaticResolver(map[string]string{
		"8.8.8.8":      "US",
		"198.51.100.7": "RU",
	})

	service := services.NewAnomalyService(audit, geo, useragent.NewParser(), recorder, logger)

	result, err := service.DetectAnomalies(context.Background(), userID, "198.51.100.7", chromeMacUA, anomalyPolicy(), nil)

	assert.NoError(t, err)
	assert.True(t, result.IsAnomaly)
	assert.Contains(t, result.Reasons, "Unusual location detected")
	assert.Equal(t, models.SeverityHigh, result.Severity)

	findings := recorder.Findings()
	assert.Len(t, findings, 1)
	assert.Equal(t, models.ThreatTypeAnomalyDetected, findings[0].ThreatType)
	assert.Equal(t, models.SeverityHigh, findings[0].Severity)
}

func TestAnomalyServiceDetectAnomalies_KnownCountryIsNotFlagged(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()
	audit := &mockAuditReader{
		RecentSuccessfulLoginsFunc: func(ctx context.Context, id uuid.UUID, since time.Time, limit int) ([]*models.AuditLog, error) {
			return historyAt(userID, "8.8.8.8", chromeMacUA, 14), nil
		},
	}
	recorder := &mockRecorder{}
	geo := geoip.NewStaticResolver(map[string]string{
		"8.8.8.8": "US",
		"8.8.4.4": "US",
	})

	service := services.NewAnomalyService(audit, geo, useragent.NewParser(), recorder, logger)
	policy := services.AnomalyPolicy{Enabled: true, CheckUnusualLocation: true}

	result, err := service.DetectAnomalies(context.Background(), userID, "8.8.4.4", chromeMacUA, policy, nil)

	assert.NoError(t, err)
	assert.False(t, result.IsAnomaly)
	assert.Empty(t, recorder.Findings())
}

func TestAnomalyServiceDetectAnomalies_UnresolvableHistorySkipsLocationCheck(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()
	audit := &mockAuditReader{
		RecentSuccessfulLoginsFunc: func(ctx context.Context, id uuid.UUID, since time.Time, limit int) ([]*models.AuditLog, error) {
			// History from a private range the resolver cannot place
			return historyAt(userID, "192.168.1.50", chromeMacUA, 14), nil
		},
	}
	recorder := &mockRecorder{}
	geo := geoip.NewStaticResolver(map[string]string{"198.51.100.7": "RU"})

	service := services.NewAnomalyService(audit, geo, useragent.NewParser(), recorder, logger)
	policy := services.AnomalyPolicy{Enabled: true, CheckUnusualLocation: true}

	result, err := service.DetectAnomalies(context.Background(), userID, "198.51.100.7", chromeMacUA, policy, nil)

	assert.NoError(t, err)
	assert.False(t, result.IsAnomaly)
}

func TestAnomalyServiceDetectAnomalies_FlagsNewDevice(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()
	audit := &mockAuditReader{
		RecentSuccessfulLoginsFunc: func(ctx context.Context, id uuid.UUID, since time.Time, limit int) ([]*models.AuditLog, error) {
			return historyAt(userID, "8.8.8.8", chromeMacUA, 14), nil
		},
	}
	recorder := &mockRecorder{}
	geo := geoip.NewStaticResolver(map[string]string{"8.8.8.8": "US"})

	service := services.NewAnomalyService(audit, geo, useragent.NewParser(), recorder, logger)
	policy := services.AnomalyPolicy{Enabled: true, CheckUnusualDevice: true}

	result, err := service.DetectAnomalies(context.Background(), userID, "8.8.8.8", safariPhoneUA, policy, nil)

	assert.NoError(t, err)
	assert.True(t, result.IsAnomaly)
	assert.Equal(t, []string{"Unusual device detected"}, result.Reasons)
	assert.Equal(t, models.SeverityMedium, result.Severity)
}

func TestAnomalyServiceDetectAnomalies_DisabledPolicySkipsHistoryLoad(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	audit := &mockAuditReader{
		RecentSuccessfulLoginsFunc: func(ctx context.Context, id uuid.UUID, since time.Time, limit int) ([]*models.AuditLog, error) {
			t.Fatal("history should not be read when detection is disabled")
			return nil, nil
		},
	}
	recorder := &mockRecorder{}
	geo := geoip.NewStaticResolver(nil)

	service := services.NewAnomalyService(audit, geo, useragent.NewParser(), recorder, logger)
	policy := services.AnomalyPolicy{Enabled: false}

	result, err := service.DetectAnomalies(context.Background(), uuid.New(), "8.8.8.8", chromeMacUA, policy, nil)

	assert.NoError(t, err)
	assert.False(t, result.IsAnomaly)
}

func TestAnomalyServiceDetectAnomalies_HistoryFailurePropagates(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	audit := &mockAuditReader{
		RecentSuccessfulLoginsFunc: func(ctx context.Context, id uuid.UUID, since time.Time, limit int) ([]*models.AuditLog, error) {
			return nil, errors.New("connection refused")
		},
	}
	recorder := &mockRecorder{}
	geo := geoip.NewStaticResolver(nil)

	service := services.NewAnomalyService(audit, geo, useragent.NewParser(), recorder, logger)

	result, err := service.DetectAnomalies(context.Background(), uuid.New(), "8.8.8.8", chromeMacUA, anomalyPolicy(), nil)

	assert.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, recorder.Findings())
}
