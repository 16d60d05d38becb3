package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/syndicatehub/hub/internal/ingest"
	"github.com/syndicatehub/hub/internal/metrics"
	pkgmw "github.com/syndicatehub/hub/pkg/middleware"
)

type ingestRequestBody struct {
	Payload        map[string]any `json:"payload"`
	AgentID        string         `json:"agent_id,omitempty"`
	AdapterVersion string         `json:"adapter_version,omitempty"`
}

// Ingest implements POST /v1/ingest/{partner_key}/listings/{source_listing_id},
// grounded on original_source/app/api/v1/endpoints/ingest.py.
func (h *Handlers) Ingest(w http.ResponseWriter, r *http.Request) {
	partnerKey := chi.URLParam(r, "partner_key")
	sourceListingID := chi.URLParam(r, "source_listing_id")

	idempotencyKey := r.Header.Get("Idempotency-Key")
	if idempotencyKey == "" {
		respondError(w, http.StatusBadRequest, "missing_idempotency_key", "Idempotency-Key header is required")
		return
	}

	identity := pkgmw.GetIdentity(r.Context())
	if identity == nil {
		respondError(w, http.StatusUnauthorized, "authentication_required", "this endpoint requires authentication")
		return
	}

	var body ingestRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	// Determine the owning agent. An agent-scoped key may not ingest for a
	// different agent; a partner_admin key must name one.
	var agentID string
	switch {
	case identity.AgentID != "":
		if body.AgentID != "" && body.AgentID != identity.AgentID {
			respondError(w, http.StatusForbidden, "forbidden", "agent cannot ingest for another agent")
			return
		}
		agentID = identity.AgentID
	case identity.PartnerAdmin:
		if body.AgentID == "" {
			respondError(w, http.StatusUnprocessableEntity, "agent_id_required", "agent_id is required for partner_admin ingest")
			return
		}
		agentID = body.AgentID
	default:
		respondError(w, http.StatusForbidden, "forbidden", "identity is not scoped to an agent or partner_admin")
		return
	}

	out, err := h.Ingest.Ingest(r.Context(), ingest.Input{
		TenantID:             identity.TenantID,
		PartnerID:            identity.PartnerID,
		AgentID:              agentID,
		PartnerKey:           partnerKey,
		SourceListingID:      sourceListingID,
		IdempotencyKey:       idempotencyKey,
		Payload:              body.Payload,
		AdapterVersion:       body.AdapterVersion,
		CallerIsPartnerAdmin: identity.PartnerAdmin,
	})
	if err != nil {
		if ingestErr, ok := err.(ingest.Error); ok {
			metrics.IngestRequests.WithLabelValues(partnerKey, ingestErr.Code).Inc()
			respondJSON(w, ingestErr.Status, map[string]any{
				"error":         ingestErr.Code,
				"errors":        ingestErr.Errors,
				"ingest_run_id": ingestErr.IngestRunID,
			})
			return
		}
		metrics.IngestRequests.WithLabelValues(partnerKey, "internal_error").Inc()
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	metrics.IngestRequests.WithLabelValues(partnerKey, "ok").Inc()
	respondJSON(w, http.StatusOK, map[string]any{
		"listing_id":        out.Listing.ID,
		"source_listing_id": sourceListingID,
		"schema":            out.Listing.Schema,
		"schema_version":    out.Listing.SchemaVersion,
		"content_hash":      out.Listing.ContentHash,
		"material_change":   out.MaterialChange,
		"ingest_run_id":     out.IngestRunID,
	})
}

type previewAdapterBody struct {
	Payload         map[string]any `json:"payload"`
	AgentID         string         `json:"agent_id,omitempty"`
	SourceListingID string         `json:"source_listing_id,omitempty"`
	AdapterVersion  string         `json:"adapter_version,omitempty"`
}

// PreviewAdapterMapping implements
// POST /v1/partners/{partner_id}/adapters/{partner_key}/preview: a dry run
// of adapter mapping and canonical validation with nothing persisted,
// useful for partner onboarding before the partner's integration goes
// live. Grounded on
// original_source/app/api/v1/endpoints/adapter_preview.py.
func (h *Handlers) PreviewAdapterMapping(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	partnerID := chi.URLParam(r, "partner_id")
	partnerKey := chi.URLParam(r, "partner_key")
	if !assertPartnerScope(w, identity, partnerID) {
		return
	}

	var body previewAdapterBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	if body.AgentID != "" && !h.assertAgentAccess(w, r, identity, partnerID, body.AgentID) {
		return
	}

	out, err := h.Ingest.Preview(r.Context(), ingest.Input{
		TenantID:             identity.TenantID,
		PartnerID:            partnerID,
		AgentID:              body.AgentID,
		PartnerKey:           partnerKey,
		SourceListingID:      body.SourceListingID,
		Payload:              body.Payload,
		AdapterVersion:       body.AdapterVersion,
		CallerIsPartnerAdmin: true,
	})
	if err != nil {
		if ingestErr, ok := err.(ingest.Error); ok {
			respondJSON(w, ingestErr.Status, map[string]any{"error": ingestErr.Code, "errors": ingestErr.Errors})
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"ok":                       out.OK,
		"partner_key":              out.PartnerKey,
		"canonical_schema":         out.Schema,
		"canonical_schema_version": out.SchemaVersion,
		"canonical":                out.Canonical,
		"normalized":               out.Normalized,
		"content_hash":             out.ContentHash,
		"adapter_version":          out.AdapterVersion,
		"errors":                   out.Errors,
	})
}

// Me implements GET /v1/me, reflecting the authenticated caller's identity
// back to itself so a partner integration can confirm what scope its
// credentials carry. Grounded on
// original_source/app/api/v1/endpoints/me.py.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	identity := pkgmw.GetIdentity(r.Context())
	if identity == nil {
		respondError(w, http.StatusUnauthorized, "authentication_required", "this endpoint requires authentication")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"subject":       identity.Subject,
		"tenant_id":     identity.TenantID,
		"partner_id":    identity.PartnerID,
		"agent_id":      identity.AgentID,
		"partner_admin": identity.PartnerAdmin,
		"provider":      identity.Provider,
	})
}
