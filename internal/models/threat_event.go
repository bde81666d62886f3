package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ThreatType classifies a detected security condition
type ThreatType string

const (
	ThreatTypeBruteForce           ThreatType = "BRUTE_FORCE"
	ThreatTypeRateLimitExceeded    ThreatType = "RATE_LIMIT_EXCEEDED"
	ThreatTypeUnusualAccessPattern ThreatType = "UNUSUAL_ACCESS_PATTERN"
	ThreatTypeSuspiciousLocation   ThreatType = "SUSPICIOUS_LOCATION"
	ThreatTypeMultipleFailedLogins ThreatType = "MULTIPLE_FAILED_LOGINS"
	ThreatTypeAnomalyDetected      ThreatType = "ANOMALY_DETECTED"
)

// Severity ranks how serious a threat finding is
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Escalate returns the higher of the two severities. Severity never
// de-escalates within a single detection pass.
func (s Severity) Escalate(other Severity) Severity {
	if severityRank[other] > severityRank[s] {
		return other
	}
	return s
}

// AtLeast reports whether s is greater than or equal to other
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// ParseSeverity returns the severity for a string, or false if unknown
func ParseSeverity(s string) (Severity, bool) {
	sev := Severity(s)
	_, ok := severityRank[sev]
	return sev, ok
}

type ThreatEvent struct {
	ID         uuid.UUID     `db:"id"`
	ThreatType ThreatType    `db:"threat_type"`
	Severity   Severity      `db:"severity"`
	UserID     *uuid.UUID    `db:"user_id"`
	CompanyID  *uuid.UUID    `db:"company_id"`
	IPAddress  *string       `db:"ip_address"`
	UserAgent  *string       `db:"user_agent"`
	Details    ThreatDetails `db:"details"`
	IsResolved bool          `db:"is_resolved"`
	ResolvedAt *time.Time    `db:"resolved_at"`
	CreatedAt  time.Time     `db:"created_at"`
}

// ThreatDetails holds the free-form structured payload of a threat event
type ThreatDetails map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (td *ThreatDetails) Scan(value interface{}) error {
	if value == nil {
		*td = make(ThreatDetails)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*td = ThreatDetails(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (td ThreatDetails) Value() (driver.Value, error) {
	if td == nil {
		return nil, nil
	}
	return json.Marshal(td)
}

// ThreatEventFilter narrows admin queries over recorded threat events
type ThreatEventFilter struct {
	ThreatType *ThreatType
	Severity   *Severity
	Resolved   *bool
	CompanyID  *uuid.UUID
}
