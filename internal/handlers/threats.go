package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/calebmoore/vaultguard/internal/services"
	pkghttp "github.com/calebmoore/vaultguard/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ThreatHandler serves the security dashboard's threat event endpoints
type ThreatHandler struct {
	threats *services.ThreatEventService
}

// NewThreatHandler creates a new ThreatHandler
func NewThreatHandler(threats *services.ThreatEventService) *ThreatHandler {
	return &ThreatHandler{threats: threats}
}

// ThreatEventResponse represents a threat event in HTTP responses
type ThreatEventResponse struct {
	ID         string                 `json:"id"`
	ThreatType string                 `json:"threat_type"`
	Severity   string                 `json:"severity"`
	UserID     *string                `json:"user_id,omitempty"`
	CompanyID  *string                `json:"company_id,omitempty"`
	IPAddress  *string                `json:"ip_address,omitempty"`
	UserAgent  *string                `json:"user_agent,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	IsResolved bool                   `json:"is_resolved"`
	ResolvedAt *string                `json:"resolved_at,omitempty"`
	CreatedAt  string                 `json:"created_at"`
}

// ListThreats returns recorded threat events, filterable by type, severity
// and resolution state
func (h *ThreatHandler) ListThreats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := parseThreatFilter(r)
	if err != nil {
		pkghttp.WriteBadRequest(w, err.Error())
		return
	}

	limit := 50
	offset := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	events, total, err := h.threats.List(ctx, filter, limit, offset)
	if err != nil {
		pkghttp.WriteInternalError(w, "failed to list threat events")
		return
	}

	response := make([]*ThreatEventResponse, len(events))
	for i, event := range events {
		response[i] = threatEventToResponse(event)
	}

	w.Header().Set("X-Total-Count", strconv.FormatInt(total, 10))
	pkghttp.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"events": response,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// ResolveThreat marks a threat event as handled by an operator
func (h *ThreatHandler) ResolveThreat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		pkghttp.WriteBadRequest(w, "invalid threat event id")
		return
	}

	if err := h.threats.Resolve(ctx, id); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			pkghttp.WriteNotFound(w, "threat event not found or already resolved")
			return
		}
		pkghttp.WriteInternalError(w, "failed to resolve threat event")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func parseThreatFilter(r *http.Request) (models.ThreatEventFilter, error) {
	var filter models.ThreatEventFilter

	if s := r.URL.Query().Get("type"); s != "" {
		t := models.ThreatType(s)
		filter.ThreatType = &t
	}
	if s := r.URL.Query().Get("severity"); s != "" {
		sev, ok := models.ParseSeverity(s)
		if !ok {
			return filter, errors.New("invalid severity")
		}
		filter.Severity = &sev
	}
	if s := r.URL.Query().Get("resolved"); s != "" {
		v, err := strconv.ParseBool(s)
		if err != nil {
			return filter, errors.New("invalid resolved flag")
		}
		filter.Resolved = &v
	}
	if s := r.URL.Query().Get("company_id"); s != "" {
		id, err := uuid.Parse(s)
		if err != nil {
			return filter, errors.New("invalid company id")
		}
		filter.CompanyID = &id
	}

	return filter, nil
}

func threatEventToResponse(event *models.ThreatEvent) *ThreatEventResponse {
	resp := &ThreatEventResponse{
		ID:         event.ID.String(),
		ThreatType: string(event.ThreatType),
		Severity:   string(event.Severity),
		IPAddress:  event.IPAddress,
		UserAgent:  event.UserAgent,
		Details:    event.Details,
		IsResolved: event.IsResolved,
		CreatedAt:  event.CreatedAt.UTC().Format(time.RFC3339),
	}

	if event.UserID != nil {
		s := event.UserID.String()
		resp.UserID = &s
	}
	if event.CompanyID != nil {
		s := event.CompanyID.String()
		resp.CompanyID = &s
	}
	if event.ResolvedAt != nil {
		s := event.ResolvedAt.UTC().Format(time.RFC3339)
		resp.ResolvedAt = &s
	}

	return resp
}
