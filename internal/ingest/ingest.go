// Package ingest implements the Ingest Service (C3): adapter -> validator
// -> listing upsert -> mapping -> ingest-run record, idempotent on
// (source_listing_id, idempotency_key). Grounded on
// original_source/app/services/ingest.py's ingest_listing and
// original_source/app/api/v1/endpoints/ingest.py's HTTP-facing wrapping.
package ingest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/syndicatehub/hub/internal/adapters"
	"github.com/syndicatehub/hub/internal/canonical"
	"github.com/syndicatehub/hub/internal/redaction"
	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/contracts"
	"github.com/syndicatehub/hub/pkg/models"
)

// Error is the structured outcome of a failed ingest, carrying enough for
// the HTTP layer to pick a status code without inspecting error strings.
type Error struct {
	Status      int
	Code        string
	Errors      []string
	IngestRunID string
}

func (e Error) Error() string {
	return fmt.Sprintf("ingest failed (%s): %v", e.Code, e.Errors)
}

// Input is one ingest call's parameters, already authenticated and scoped.
type Input struct {
	TenantID             string
	PartnerID            string
	AgentID              string
	PartnerKey           string
	SourceListingID      string
	IdempotencyKey       string
	Payload              map[string]any
	AdapterVersion       string // caller-requested override, "" for default
	CallerIsPartnerAdmin bool
}

// Output is the successful (including idempotent-replay) outcome.
type Output struct {
	Listing        models.Listing
	MaterialChange bool
	IngestRunID    string
	AdapterVersion string
	Replayed       bool
}

type Service struct {
	store      store.ListingStore
	outbox     store.OutboxStore
	adapters   *adapters.Registry
	validators *canonical.Registry
}

func New(s store.ListingStore, outboxStore store.OutboxStore, adapterRegistry *adapters.Registry, validatorRegistry *canonical.Registry) *Service {
	return &Service{store: s, outbox: outboxStore, adapters: adapterRegistry, validators: validatorRegistry}
}

func (s *Service) Ingest(ctx context.Context, in Input) (Output, error) {
	partnerKey := strings.ToLower(strings.TrimSpace(in.PartnerKey))

	adapter, resolveErr := s.adapters.Resolve(partnerKey, in.AdapterVersion, in.CallerIsPartnerAdmin)
	usedVersion := resolveVersionForRun(in.AdapterVersion, resolveErr)

	run, runErr := s.createRun(ctx, in, partnerKey, usedVersion)
	if runErr != nil {
		if replay, ok := runErr.(replayOutcome); ok {
			return replay.toOutput(), nil
		}
		return Output{}, runErr
	}

	if resolveErr != nil {
		return Output{}, s.failRun(ctx, run, forbiddenOrNotFound(resolveErr))
	}

	ctxAdapter := contracts.AdapterContext{
		TenantID:   in.TenantID,
		PartnerID:  in.PartnerID,
		PartnerKey: partnerKey,
		AgentID:    in.AgentID,
	}
	mapped := adapter.Map(in.Payload, ctxAdapter)
	if !mapped.OK || mapped.Canonical == nil {
		return Output{}, s.failRun(ctx, run, Error{Status: 422, Code: "mapping_failed", Errors: mapped.Errors, IngestRunID: run.ID})
	}

	canonicalPayload := make(map[string]any, len(mapped.Canonical)+4)
	for k, v := range mapped.Canonical {
		canonicalPayload[k] = v
	}
	canonicalPayload["schema"] = canonical.ListingSchema
	canonicalPayload["schema_version"] = canonical.ListingSchemaVersion

	mapping, mappingErr := s.store.GetSourceListingMapping(ctx, in.TenantID, in.PartnerID, partnerKey, in.SourceListingID)
	mappingExists := mappingErr == nil
	listingID := mapping.ListingID
	if !mappingExists {
		listingID = "lst_" + uuid.NewString()
	}
	canonicalPayload["canonical_id"] = listingID
	canonicalPayload["source_listing_id"] = in.SourceListingID

	validator, err := s.validators.Resolve(canonical.ListingSchema, canonical.ListingSchemaVersion)
	if err != nil {
		return Output{}, s.failRun(ctx, run, Error{Status: 422, Code: "schema_not_supported", Errors: []string{err.Error()}, IngestRunID: run.ID})
	}
	result := validator.Validate(canonicalPayload)
	if !result.OK() {
		errs := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			errs[i] = e.Error()
		}
		run.CanonicalPayload = canonicalPayload
		return Output{}, s.failRun(ctx, run, Error{Status: 422, Code: "validation_failed", Errors: errs, IngestRunID: run.ID})
	}

	status := models.ListingStatusActive
	if v, ok := result.Normalized["status"].(string); ok && v != "" {
		status = v
	}

	stored, materialChange, err := s.store.UpsertListing(ctx, models.Listing{
		ID:              listingID,
		TenantID:        in.TenantID,
		PartnerID:       in.PartnerID,
		AgentID:         in.AgentID,
		SourceListingID: in.SourceListingID,
		Schema:          canonical.ListingSchema,
		SchemaVersion:   canonical.ListingSchemaVersion,
		Payload:         result.Normalized,
		ContentHash:     result.ContentHash,
		Status:          status,
		IsActive:        status == models.ListingStatusActive,
	})
	if err != nil {
		return Output{}, s.failRun(ctx, run, Error{Status: 500, Code: "internal_error", Errors: []string{err.Error()}, IngestRunID: run.ID})
	}

	if !mappingExists {
		if _, err := s.store.CreateSourceListingMapping(ctx, models.SourceListingMapping{
			TenantID:        in.TenantID,
			PartnerID:       in.PartnerID,
			PartnerKey:      partnerKey,
			SourceListingID: in.SourceListingID,
			ListingID:       listingID,
		}); err != nil {
			return Output{}, s.failRun(ctx, run, Error{Status: 500, Code: "internal_error", Errors: []string{err.Error()}, IngestRunID: run.ID})
		}
	}

	if materialChange {
		if _, err := s.outbox.AppendOutboxEvent(ctx, models.OutboxEvent{
			TenantID:      in.TenantID,
			AggregateType: models.AggregateTypeListing,
			AggregateID:   listingID,
			EventType:     models.EventTypeUpserted,
			Payload:       map[string]any{"listing_id": listingID},
			Status:        models.OutboxStatusPending,
		}); err != nil {
			return Output{}, s.failRun(ctx, run, Error{Status: 500, Code: "internal_error", Errors: []string{err.Error()}, IngestRunID: run.ID})
		}
	}

	run.Status = models.IngestRunStatusSuccess
	run.Errors = nil
	run.ListingID = listingID
	run.CanonicalPayload = result.Normalized
	run.MaterialChange = materialChange
	if _, err := s.store.UpdateIngestRun(ctx, run); err != nil {
		return Output{}, Error{Status: 500, Code: "internal_error", Errors: []string{err.Error()}, IngestRunID: run.ID}
	}

	return Output{
		Listing:        stored,
		MaterialChange: materialChange,
		IngestRunID:    run.ID,
		AdapterVersion: usedVersion,
	}, nil
}

// PreviewOutput is the dry-run outcome of mapping and validating a raw
// payload through a partner's adapter without persisting anything.
type PreviewOutput struct {
	OK             bool
	PartnerKey     string
	Schema         string
	SchemaVersion  string
	Canonical      map[string]any
	Normalized     map[string]any
	ContentHash    string
	AdapterVersion string
	Errors         []string
}

// Preview runs adapter mapping and canonical validation against a raw
// payload without creating an IngestRun, upserting a Listing, recording a
// SourceListingMapping, or emitting an outbox event — useful for partner
// onboarding to see what a real ingest would produce before pushing it.
// Unlike Ingest, a mapping or validation failure here is reported as
// OK=false with Errors rather than an Error return; only adapter
// resolution failures (forbidden override, unknown adapter) and an
// unregistered canonical schema are errors.
// Grounded on original_source/app/api/v1/endpoints/adapter_preview.py.
func (s *Service) Preview(ctx context.Context, in Input) (PreviewOutput, error) {
	partnerKey := strings.ToLower(strings.TrimSpace(in.PartnerKey))

	adapter, resolveErr := s.adapters.Resolve(partnerKey, in.AdapterVersion, in.CallerIsPartnerAdmin)
	usedVersion := resolveVersionForRun(in.AdapterVersion, resolveErr)
	if resolveErr != nil {
		return PreviewOutput{PartnerKey: partnerKey, AdapterVersion: usedVersion}, forbiddenOrNotFound(resolveErr)
	}

	ctxAdapter := contracts.AdapterContext{
		TenantID:   in.TenantID,
		PartnerID:  in.PartnerID,
		PartnerKey: partnerKey,
		AgentID:    in.AgentID,
	}
	mapped := adapter.Map(in.Payload, ctxAdapter)
	if !mapped.OK || mapped.Canonical == nil {
		return PreviewOutput{
			PartnerKey:     partnerKey,
			Schema:         canonical.ListingSchema,
			SchemaVersion:  canonical.ListingSchemaVersion,
			AdapterVersion: usedVersion,
			Errors:         mapped.Errors,
		}, nil
	}

	canonicalPayload := make(map[string]any, len(mapped.Canonical)+2)
	for k, v := range mapped.Canonical {
		canonicalPayload[k] = v
	}
	if _, ok := canonicalPayload["schema"]; !ok {
		canonicalPayload["schema"] = canonical.ListingSchema
	}
	if _, ok := canonicalPayload["schema_version"]; !ok {
		canonicalPayload["schema_version"] = canonical.ListingSchemaVersion
	}
	if in.SourceListingID != "" {
		canonicalPayload["source_listing_id"] = in.SourceListingID
	}
	canonicalID := "lst_" + uuid.NewString()
	if mapping, err := s.store.GetSourceListingMapping(ctx, in.TenantID, in.PartnerID, partnerKey, in.SourceListingID); err == nil {
		canonicalID = mapping.ListingID
	}
	canonicalPayload["canonical_id"] = canonicalID

	validator, err := s.validators.Resolve(canonical.ListingSchema, canonical.ListingSchemaVersion)
	if err != nil {
		return PreviewOutput{}, Error{Status: 422, Code: "schema_not_supported", Errors: []string{err.Error()}}
	}
	result := validator.Validate(canonicalPayload)
	if !result.OK() {
		errors := make([]string, len(result.Errors))
		for i, e := range result.Errors {
			errors[i] = e.Error()
		}
		return PreviewOutput{
			PartnerKey:     partnerKey,
			Schema:         canonical.ListingSchema,
			SchemaVersion:  canonical.ListingSchemaVersion,
			Canonical:      canonicalPayload,
			AdapterVersion: usedVersion,
			Errors:         errors,
		}, nil
	}

	return PreviewOutput{
		OK:             true,
		PartnerKey:     partnerKey,
		Schema:         canonical.ListingSchema,
		SchemaVersion:  canonical.ListingSchemaVersion,
		Canonical:      canonicalPayload,
		Normalized:     result.Normalized,
		ContentHash:    result.ContentHash,
		AdapterVersion: usedVersion,
	}, nil
}

// createRun inserts the idempotency-boundary IngestRun row. A store
// ErrConflict means this exact (partner_key, source_listing_id,
// idempotency_key) was already recorded — the caller replays that prior
// outcome verbatim instead of doing any work.
func (s *Service) createRun(ctx context.Context, in Input, partnerKey, usedVersion string) (models.IngestRun, error) {
	run, err := s.store.CreateIngestRun(ctx, models.IngestRun{
		TenantID:        in.TenantID,
		PartnerID:       in.PartnerID,
		PartnerKey:      partnerKey,
		SourceListingID: in.SourceListingID,
		IdempotencyKey:  in.IdempotencyKey,
		AdapterVersion:  usedVersion,
		RawPayload:      redaction.Payload(in.Payload),
		Status:          models.IngestRunStatusFailed,
	})
	if err == nil {
		return run, nil
	}
	if _, ok := err.(store.ErrConflict); !ok {
		return models.IngestRun{}, err
	}

	existing, lookupErr := s.store.GetIngestRunByIdempotencyKey(ctx, in.TenantID, in.PartnerID, partnerKey, in.SourceListingID, in.IdempotencyKey)
	if lookupErr != nil {
		return models.IngestRun{}, lookupErr
	}

	out := Output{IngestRunID: existing.ID, AdapterVersion: existing.AdapterVersion, Replayed: true}
	if existing.Status == models.IngestRunStatusSuccess && existing.ListingID != "" {
		listing, getErr := s.store.GetListing(ctx, existing.ListingID)
		if getErr == nil {
			out.Listing = listing
		}
	}
	return models.IngestRun{}, replayOutcome(out)
}

// replayOutcome is threaded through the error return of createRun purely
// so the caller can distinguish "this is actually a successful replay" from
// a genuine failure without a second return value changing every signature.
type replayOutcome Output

func (r replayOutcome) Error() string { return "ingest: idempotent replay" }
func (r replayOutcome) toOutput() Output { return Output(r) }

func (s *Service) failRun(ctx context.Context, run models.IngestRun, failure Error) error {
	run.Status = models.IngestRunStatusFailed
	run.Errors = failure.Errors
	_, _ = s.store.UpdateIngestRun(ctx, run)
	failure.IngestRunID = run.ID
	return failure
}

func resolveVersionForRun(requested string, resolveErr error) string {
	switch e := resolveErr.(type) {
	case adapters.ErrForbiddenOverride:
		return e.Requested
	case adapters.ErrAdapterNotFound:
		if e.Version != "" {
			return e.Version
		}
		return requested
	default:
		return requested
	}
}

func forbiddenOrNotFound(resolveErr error) Error {
	switch e := resolveErr.(type) {
	case adapters.ErrForbiddenOverride:
		return Error{Status: 403, Code: "forbidden", Errors: []string{e.Error()}}
	default:
		return Error{Status: 422, Code: "adapter_not_found", Errors: []string{resolveErr.Error()}}
	}
}
