// Package idempotency implements the request/response idempotency boundary
// (C11), grounded on original_source/app/services/idempotency.py's
// hash-request/reserve/replay-or-conflict shape. handlers.Handlers holds a
// Service, but no HTTP handler calls Reserve or Complete: ingest replays
// are deduplicated by the IngestRun idempotency-key uniqueness in
// internal/ingest, which does not compare request bodies, so a reused
// ingest key with a different body is not reported as a conflict.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/syndicatehub/hub/internal/store"
	"github.com/syndicatehub/hub/pkg/models"
)

// ErrConflict signals a replay of key with a request body that hashes
// differently from the one originally reserved — the caller should answer
// 409.
type ErrConflict struct {
	Key string
}

func (e ErrConflict) Error() string {
	return fmt.Sprintf("idempotency key reused with a different request: %s", e.Key)
}

// HashRequest is the stable SHA-256 over sorted-key JSON of {path, body},
// exported so callers can compute it before Reserve if they need it for
// logging.
func HashRequest(path string, body map[string]any) string {
	raw, _ := json.Marshal(map[string]any{"path": path, "body": body})
	sum := sha256.Sum256(raw)
	return "sha256:" + hex.EncodeToString(sum[:])
}

// Service wraps store.IdempotencyStore with the reserve/replay/conflict
// decision the ingest and admin write paths need.
type Service struct {
	store store.IdempotencyStore
}

func New(s store.IdempotencyStore) *Service {
	return &Service{store: s}
}

// Outcome is what the caller does next: either short-circuit and return
// Existing.Response verbatim, or proceed with the business operation and
// call Complete afterward.
type Outcome struct {
	Replayed bool
	Existing models.IdempotencyKey
}

// Reserve inserts a reservation row for (tenantID, key) if absent, or
// detects a replay. A replay with a mismatched request hash is ErrConflict.
func (s *Service) Reserve(ctx context.Context, tenantID, key, requestPath string, requestBody map[string]any) (Outcome, error) {
	reqHash := HashRequest(requestPath, requestBody)

	existing, created, err := s.store.ReserveIdempotencyKey(ctx, models.IdempotencyKey{
		TenantID:    tenantID,
		Key:         key,
		RequestHash: reqHash,
	})
	if err != nil {
		return Outcome{}, err
	}
	if created {
		return Outcome{Replayed: false}, nil
	}
	if existing.RequestHash != reqHash {
		return Outcome{}, ErrConflict{Key: key}
	}
	return Outcome{Replayed: true, Existing: existing}, nil
}

// Complete stores the business operation's response against the reserved
// key, so a future replay can return it verbatim.
func (s *Service) Complete(ctx context.Context, tenantID, key string, response map[string]any) error {
	return s.store.CompleteIdempotencyKey(ctx, tenantID, key, response)
}
