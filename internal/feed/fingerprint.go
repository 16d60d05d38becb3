// Package feed implements the Hosted-Feed Engine (C9): fingerprinting a
// partner/destination's listing set plus config, dispatching to a
// destination-specific feed plugin, and writing the resulting artifact
// (plain and gzip) through the object store. Grounded on
// original_source/app/services/{feed_fingerprint,feed_hashes,hosted_feed}.py
// and worker/feed_dispatcher.py.
package feed

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

func stableJSONBytes(v any) []byte {
	// encoding/json already serializes map keys in sorted order, matching
	// Python's json.dumps(sort_keys=True); struct/slice field order is
	// caller-controlled, same as the original's explicit list sorts.
	raw, _ := json.Marshal(v)
	return raw
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashConfig(config map[string]any) string {
	return sha256Hex(stableJSONBytes(config))
}

// ListingInput is the minimal stable-sort-ready summary of one listing that
// feeds into a fingerprint: only its identity and content hash matter, not
// its full payload.
type ListingInput struct {
	CanonicalID string `json:"canonical_id"`
	ContentHash string `json:"content_hash"`
}

func hashListingInputs(listings []ListingInput) string {
	sorted := make([]ListingInput, len(listings))
	copy(sorted, listings)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CanonicalID < sorted[j].CanonicalID })
	return sha256Hex(stableJSONBytes(sorted))
}

// ComputeFingerprint hashes (destination, config, sorted listing
// id/content-hash pairs) into a single digest. The config map is hashed as
// given; the feed token is held in the setting's FeedToken field rather
// than in its Config, so rotating the token does not change the
// fingerprint. Unchanged inputs
// always yield the same fingerprint, so the dispatcher can skip rebuilding
// and re-uploading an artifact whose content hasn't moved.
func ComputeFingerprint(destination string, config map[string]any, listings []ListingInput) string {
	configHash := hashConfig(config)
	inputHash := hashListingInputs(listings)
	return sha256Hex(stableJSONBytes(map[string]string{
		"destination": destination,
		"config_hash": configHash,
		"input_hash":  inputHash,
	}))
}
