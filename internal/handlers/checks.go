package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/calebmoore/vaultguard/internal/services"
	pkghttp "github.com/calebmoore/vaultguard/pkg/http"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ChecksHandler exposes the engine's pre-authentication checks to the
// password manager's login and reset handlers running in other processes
type ChecksHandler struct {
	engine   *services.Engine
	validate *validator.Validate
}

// NewChecksHandler creates a new ChecksHandler
func NewChecksHandler(engine *services.Engine) *ChecksHandler {
	return &ChecksHandler{
		engine:   engine,
		validate: validator.New(),
	}
}

// LoginCheckRequest carries the context of a pending login attempt
type LoginCheckRequest struct {
	UserID    string `json:"user_id" validate:"required,uuid"`
	IPAddress string `json:"ip_address" validate:"required,ip"`
	UserAgent string `json:"user_agent"`
	CompanyID string `json:"company_id" validate:"omitempty,uuid"`
}

// LoginCheckResponse is the engine's aggregated verdict
type LoginCheckResponse struct {
	RateLimit struct {
		Exceeded  bool   `json:"exceeded"`
		Remaining int    `json:"remaining"`
		ResetAt   string `json:"reset_at,omitempty"`
	} `json:"rate_limit"`
	BruteForce struct {
		Locked            bool    `json:"locked"`
		RemainingAttempts int     `json:"remaining_attempts"`
		UnlockAt          *string `json:"unlock_at,omitempty"`
	} `json:"brute_force"`
	CaptchaRequired bool `json:"captcha_required"`
	Anomaly         struct {
		IsAnomaly bool     `json:"is_anomaly"`
		Reasons   []string `json:"reasons,omitempty"`
		Severity  string   `json:"severity"`
	} `json:"anomaly"`
}

// CheckLogin runs the full engine gauntlet for a pending login attempt.
// Engine failures answer 503: the caller must fail closed, not assume
// "allowed".
func (h *ChecksHandler) CheckLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req LoginCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		pkghttp.WriteBadRequest(w, "invalid login check request")
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid user id")
		return
	}

	var companyID *uuid.UUID
	if req.CompanyID != "" {
		id, err := uuid.Parse(req.CompanyID)
		if err != nil {
			pkghttp.WriteBadRequest(w, "invalid company id")
			return
		}
		companyID = &id
	}

	check, err := h.engine.CheckLoginAttempt(ctx, userID, req.IPAddress, req.UserAgent, companyID)
	if err != nil {
		pkghttp.WriteServiceUnavailable(w, "threat checks unavailable")
		return
	}

	var resp LoginCheckResponse
	resp.RateLimit.Exceeded = check.RateLimit.Exceeded
	resp.RateLimit.Remaining = check.RateLimit.Remaining
	if !check.RateLimit.ResetAt.IsZero() {
		resp.RateLimit.ResetAt = check.RateLimit.ResetAt.UTC().Format(time.RFC3339)
	}

	resp.BruteForce.Locked = check.BruteForce.Locked
	resp.BruteForce.RemainingAttempts = check.BruteForce.RemainingAttempts
	if check.BruteForce.UnlockAt != nil {
		s := check.BruteForce.UnlockAt.UTC().Format(time.RFC3339)
		resp.BruteForce.UnlockAt = &s
	}

	resp.CaptchaRequired = check.CaptchaRequired

	resp.Anomaly.IsAnomaly = check.Anomaly.IsAnomaly
	resp.Anomaly.Reasons = check.Anomaly.Reasons
	resp.Anomaly.Severity = string(check.Anomaly.Severity)

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
