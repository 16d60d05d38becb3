package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/syndicatehub/hub/internal/errs"
	"github.com/syndicatehub/hub/internal/ingest"
	"github.com/syndicatehub/hub/pkg/contracts"
	"github.com/syndicatehub/hub/pkg/middleware"
	"github.com/syndicatehub/hub/pkg/models"
)

// requirePartnerAdmin rejects non-admin identities, mirroring
// original_source/app/services/auth.py's require_partner_admin dependency.
func requirePartnerAdmin(w http.ResponseWriter, r *http.Request) *contracts.Identity {
	identity := middleware.GetIdentity(r.Context())
	if identity == nil {
		respondError(w, http.StatusUnauthorized, "authentication_required", "this endpoint requires authentication")
		return nil
	}
	if !identity.PartnerAdmin {
		respondError(w, http.StatusForbidden, "forbidden", "this endpoint requires a partner_admin identity")
		return nil
	}
	return identity
}

// assertPartnerScope rejects an admin identity reaching across into another
// partner's resources, grounded on credentials.py's _assert_agent_access.
func assertPartnerScope(w http.ResponseWriter, identity *contracts.Identity, partnerID string) bool {
	if identity.PartnerID != "" && identity.PartnerID != partnerID {
		respondError(w, http.StatusForbidden, "forbidden", "cross-partner access forbidden")
		return false
	}
	return true
}

// ListAgents implements GET /v1/partners/{partner_id}/agents.
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	partnerID := chi.URLParam(r, "partner_id")
	if !assertPartnerScope(w, identity, partnerID) {
		return
	}

	listings, err := h.Store.ListListingsByPartner(r.Context(), identity.TenantID, partnerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, listings)
}

type upsertAgentBody struct {
	Name                string   `json:"name"`
	Active              bool     `json:"active"`
	AllowedDestinations []string `json:"allowed_destinations"`
	DestinationRule     string   `json:"destination_rule,omitempty"`
}

// CreateAgent implements POST /v1/partners/{partner_id}/agents.
func (h *Handlers) CreateAgent(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	partnerID := chi.URLParam(r, "partner_id")
	if !assertPartnerScope(w, identity, partnerID) {
		return
	}

	var body upsertAgentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	agent, err := h.Store.CreateAgent(r.Context(), models.Agent{
		TenantID:            identity.TenantID,
		PartnerID:           partnerID,
		Name:                body.Name,
		Active:              body.Active,
		AllowedDestinations: body.AllowedDestinations,
		DestinationRule:     body.DestinationRule,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	h.Audit.Record(r.Context(), identity.TenantID, identity.Subject, "agent.create", "agent", agent.ID, nil)
	respondJSON(w, http.StatusCreated, agent)
}

// UpdateAgent implements PUT /v1/partners/{partner_id}/agents/{agent_id}.
func (h *Handlers) UpdateAgent(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	partnerID := chi.URLParam(r, "partner_id")
	agentID := chi.URLParam(r, "agent_id")
	if !assertPartnerScope(w, identity, partnerID) {
		return
	}

	existing, err := h.Store.GetAgent(r.Context(), agentID)
	if err != nil || existing.PartnerID != partnerID || existing.TenantID != identity.TenantID {
		writeErr(w, &errs.NotFoundError{Code: "not_found", Message: "agent not found"})
		return
	}

	var body upsertAgentBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}
	existing.Name = body.Name
	existing.Active = body.Active
	existing.AllowedDestinations = body.AllowedDestinations
	existing.DestinationRule = body.DestinationRule

	updated, err := h.Store.UpdateAgent(r.Context(), existing)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	h.Audit.Record(r.Context(), identity.TenantID, identity.Subject, "agent.update", "agent", updated.ID, nil)
	respondJSON(w, http.StatusOK, updated)
}

// assertAgentAccess validates the (partner_id, agent_id) pair belongs
// together under the caller's tenant, grounded on credentials.py's
// _assert_agent_access.
func (h *Handlers) assertAgentAccess(w http.ResponseWriter, r *http.Request, identity *contracts.Identity, partnerID, agentID string) bool {
	if !assertPartnerScope(w, identity, partnerID) {
		return false
	}
	agent, err := h.Store.GetAgent(r.Context(), agentID)
	if err != nil || agent.PartnerID != partnerID || agent.TenantID != identity.TenantID {
		writeErr(w, &errs.NotFoundError{Code: "not_found", Message: "agent not found"})
		return false
	}
	return true
}

type upsertCredentialBody struct {
	Destination string            `json:"destination,omitempty"`
	Secrets     map[string]string `json:"secrets"`
	Active      bool              `json:"active"`
}

// UpsertAgentCredential implements
// PUT /v1/partners/{partner_id}/agents/{agent_id}/credentials/{destination}.
// Grounded on original_source/app/api/v1/endpoints/credentials.py — secrets
// are sealed and never echoed back.
func (h *Handlers) UpsertAgentCredential(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	partnerID := chi.URLParam(r, "partner_id")
	agentID := chi.URLParam(r, "agent_id")
	destination := chi.URLParam(r, "destination")
	if !h.assertAgentAccess(w, r, identity, partnerID, agentID) {
		return
	}

	var body upsertCredentialBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}
	if body.Destination != "" && body.Destination != destination {
		respondError(w, http.StatusUnprocessableEntity, "destination_mismatch", "path and body destination must match")
		return
	}

	sealed, err := h.Crypto.SealJSON(body.Secrets)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}

	existing, _ := h.Store.GetCredential(r.Context(), identity.TenantID, partnerID, agentID, destination)
	existing.TenantID = identity.TenantID
	existing.PartnerID = partnerID
	existing.AgentID = agentID
	existing.Destination = destination
	existing.Active = body.Active
	existing.SealedSecret = sealed

	cred, err := h.Store.UpsertCredential(r.Context(), existing)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	h.Audit.Record(r.Context(), identity.TenantID, identity.Subject, "credential.upsert", "agent_credential", cred.ID, map[string]any{"destination": destination})
	respondJSON(w, http.StatusOK, map[string]any{
		"id":           cred.ID,
		"agent_id":     cred.AgentID,
		"destination":  cred.Destination,
		"active":       cred.Active,
		"created_at":   cred.CreatedAt,
		"updated_at":   cred.UpdatedAt,
	})
}

type upsertDestinationSettingBody struct {
	Enabled bool           `json:"enabled"`
	Config  map[string]any `json:"config"`
}

// UpsertDestinationSetting implements
// PUT /v1/partners/{partner_id}/destinations/{destination}, grounded on
// original_source/app/api/v1/endpoints/feed_urls.py's enable/disable
// surface.
func (h *Handlers) UpsertDestinationSetting(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	partnerID := chi.URLParam(r, "partner_id")
	destination := chi.URLParam(r, "destination")
	if !assertPartnerScope(w, identity, partnerID) {
		return
	}

	var body upsertDestinationSettingBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	setting, err := h.Store.UpsertPartnerDestinationSetting(r.Context(), models.PartnerDestinationSetting{
		TenantID:    identity.TenantID,
		PartnerID:   partnerID,
		Destination: destination,
		Enabled:     body.Enabled,
		Config:      body.Config,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	h.Audit.Record(r.Context(), identity.TenantID, identity.Subject, "destination.upsert", "partner_destination_setting", setting.ID, map[string]any{"destination": destination, "enabled": body.Enabled})
	respondJSON(w, http.StatusOK, setting)
}

// FeedURL implements GET /v1/partners/{partner_id}/destinations/{destination}/feed-url,
// returning the operator-facing hosted-feed URL including its token, grounded
// on feed_urls.py.
func (h *Handlers) FeedURL(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	partnerID := chi.URLParam(r, "partner_id")
	destination := chi.URLParam(r, "destination")
	if !assertPartnerScope(w, identity, partnerID) {
		return
	}

	plugin, err := h.FeedPlugins.Get(destination)
	if err != nil {
		writeErr(w, &errs.NotFoundError{Code: "unknown_destination", Err: err})
		return
	}
	setting, err := h.Store.GetPartnerDestinationSetting(r.Context(), identity.TenantID, partnerID, destination)
	if err != nil || setting.FeedToken == "" {
		writeErr(w, &errs.NotFoundError{Code: "no_feed_token", Message: "no feed has been generated for this destination yet"})
		return
	}

	url := h.PublicBaseURL + "/v1/feeds/" + partnerID + "/" + destination + "." + plugin.Format() + "?token=" + setting.FeedToken
	respondJSON(w, http.StatusOK, map[string]any{"url": url, "enabled": setting.Enabled})
}

// FeedHealth implements GET /v1/partners/{partner_id}/destinations/{destination}/feed-health,
// grounded on feed_health_admin.py / feed_health_partner.py.
func (h *Handlers) FeedHealth(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	partnerID := chi.URLParam(r, "partner_id")
	destination := chi.URLParam(r, "destination")
	if !assertPartnerScope(w, identity, partnerID) {
		return
	}

	snapshot, err := h.Store.GetLatestFeedSnapshot(r.Context(), identity.TenantID, partnerID, destination)
	if err != nil {
		writeErr(w, &errs.NotFoundError{Code: "no_snapshot", Message: "no hosted-feed snapshot has been built yet"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"destination":   snapshot.Destination,
		"format":        snapshot.Format,
		"listing_count": snapshot.ListingCount,
		"content_hash":  snapshot.ContentHash,
		"built_at":      snapshot.CreatedAt,
	})
}

// GetIngestRun implements
// GET /v1/partners/{partner_id}/ingest-runs/{partner_key}/{source_listing_id}/{idempotency_key},
// grounded on ingest_runs.py / ingest_replay.py — a replay lookup keyed by
// the same tuple the ingest endpoint's idempotency boundary uses.
func (h *Handlers) GetIngestRun(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	partnerID := chi.URLParam(r, "partner_id")
	if !assertPartnerScope(w, identity, partnerID) {
		return
	}

	run, err := h.Store.GetIngestRunByIdempotencyKey(
		r.Context(),
		identity.TenantID,
		partnerID,
		chi.URLParam(r, "partner_key"),
		chi.URLParam(r, "source_listing_id"),
		chi.URLParam(r, "idempotency_key"),
	)
	if err != nil {
		writeErr(w, &errs.NotFoundError{Code: "not_found", Message: "ingest run not found"})
		return
	}
	respondJSON(w, http.StatusOK, run)
}

// ReplayIngestRun re-runs ingestion for a previously recorded run's raw
// payload, grounded on ingest_replay.py — useful after a transient adapter
// bug is fixed and a partner's historical submissions need reprocessing.
func (h *Handlers) ReplayIngestRun(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	partnerID := chi.URLParam(r, "partner_id")
	if !assertPartnerScope(w, identity, partnerID) {
		return
	}

	partnerKey := chi.URLParam(r, "partner_key")
	sourceListingID := chi.URLParam(r, "source_listing_id")
	run, err := h.Store.GetIngestRunByIdempotencyKey(
		r.Context(), identity.TenantID, partnerID, partnerKey, sourceListingID, chi.URLParam(r, "idempotency_key"),
	)
	if err != nil {
		writeErr(w, &errs.NotFoundError{Code: "not_found", Message: "ingest run not found"})
		return
	}

	var agentID string
	if run.ListingID != "" {
		if listing, lerr := h.Store.GetListing(r.Context(), run.ListingID); lerr == nil {
			agentID = listing.AgentID
		}
	}

	replayKey := "replay:" + run.IdempotencyKey
	out, err := h.Ingest.Ingest(r.Context(), ingest.Input{
		TenantID:             identity.TenantID,
		PartnerID:            partnerID,
		AgentID:              agentID,
		PartnerKey:           partnerKey,
		SourceListingID:      sourceListingID,
		IdempotencyKey:       replayKey,
		Payload:              run.RawPayload,
		AdapterVersion:       run.AdapterVersion,
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
	h.Audit.Record(r.Context(), identity.TenantID, identity.Subject, "ingest_run.replay", "ingest_run", run.ID, map[string]any{"idempotency_key": replayKey})
	respondJSON(w, http.StatusOK, map[string]any{"ingest_run_id": out.IngestRunID, "listing_id": out.Listing.ID})
}

type importCatalogBody struct {
	Namespace string            `json:"namespace,omitempty"`
	Mappings  map[string]string `json:"mappings"`
	Kind      string            `json:"kind"` // "enum" | "geo"
}

// ImportCatalog implements POST /v1/destinations/{destination}/catalog/import,
// grounded on catalog_import_admin.py / mapping_admin_imports.py.
func (h *Handlers) ImportCatalog(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	destination := chi.URLParam(r, "destination")

	var body importCatalogBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	var count int
	var err error
	switch body.Kind {
	case string(models.CatalogItemGeo):
		count, err = h.Catalog.ImportGeoMappings(r.Context(), destination, body.Mappings)
	default:
		count, err = h.Catalog.ImportEnumMappings(r.Context(), destination, body.Namespace, body.Mappings)
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	h.Audit.Record(r.Context(), identity.TenantID, identity.Subject, "catalog.import", "destination_enum_mapping", destination, map[string]any{"kind": body.Kind, "count": count})
	respondJSON(w, http.StatusOK, map[string]any{"imported": count})
}

type createCatalogSetBody struct {
	CountryCode string                            `json:"country_code"`
	Items       []models.DestinationCatalogSetItem `json:"items"`
}

// CreateCatalogSet implements POST /v1/destinations/{destination}/catalog-sets,
// grounded on catalog_sets_admin.py.
func (h *Handlers) CreateCatalogSet(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	destination := chi.URLParam(r, "destination")

	var body createCatalogSetBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_body", "request body must be valid JSON")
		return
	}

	set, err := h.Catalog.CreateDraftSet(r.Context(), destination, body.CountryCode, body.Items)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	h.Audit.Record(r.Context(), identity.TenantID, identity.Subject, "catalog_set.create", "destination_catalog_set", set.ID, nil)
	respondJSON(w, http.StatusCreated, set)
}

// transitionCatalogSet shares the submit/reject/activate handling, all of
// which take no body and differ only in which Service method and audit
// action apply.
func (h *Handlers) transitionCatalogSet(w http.ResponseWriter, r *http.Request, action string, fn func(r *http.Request, setID string) (models.DestinationCatalogSet, error)) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	setID := chi.URLParam(r, "set_id")
	set, err := fn(r, setID)
	if err != nil {
		writeErr(w, &errs.ConflictError{Code: "invalid_transition", Err: err})
		return
	}
	h.Audit.Record(r.Context(), identity.TenantID, identity.Subject, "catalog_set."+action, "destination_catalog_set", set.ID, nil)
	respondJSON(w, http.StatusOK, set)
}

func (h *Handlers) SubmitCatalogSet(w http.ResponseWriter, r *http.Request) {
	h.transitionCatalogSet(w, r, "submit", func(r *http.Request, id string) (models.DestinationCatalogSet, error) {
		return h.Catalog.Submit(r.Context(), id)
	})
}

func (h *Handlers) RejectCatalogSet(w http.ResponseWriter, r *http.Request) {
	h.transitionCatalogSet(w, r, "reject", func(r *http.Request, id string) (models.DestinationCatalogSet, error) {
		return h.Catalog.Reject(r.Context(), id)
	})
}

func (h *Handlers) ActivateCatalogSet(w http.ResponseWriter, r *http.Request) {
	h.transitionCatalogSet(w, r, "activate", func(r *http.Request, id string) (models.DestinationCatalogSet, error) {
		return h.Catalog.Activate(r.Context(), id)
	})
}

// GetDelivery implements GET /v1/deliveries/{id}, grounded on deliveries.py.
func (h *Handlers) GetDelivery(w http.ResponseWriter, r *http.Request) {
	identity := requirePartnerAdmin(w, r)
	if identity == nil {
		return
	}
	delivery, err := h.Store.GetDelivery(r.Context(), chi.URLParam(r, "id"))
	if err != nil || delivery.TenantID != identity.TenantID {
		writeErr(w, &errs.NotFoundError{Code: "not_found", Message: "delivery not found"})
		return
	}
	respondJSON(w, http.StatusOK, delivery)
}
