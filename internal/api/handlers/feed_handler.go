package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/syndicatehub/hub/internal/metrics"
)

const feedRateLimitWindow = time.Minute

// PublicFeed implements GET/HEAD /v1/feeds/{partner_id}/{destination}.{ext},
// grounded on original_source/app/api/v1/endpoints/feeds.py's token-gated,
// conditional-GET, gzip-negotiated snapshot serving.
func (h *Handlers) PublicFeed(w http.ResponseWriter, r *http.Request) {
	partnerID := chi.URLParam(r, "partner_id")
	destination, ext, ok := splitDestinationFile(chi.URLParam(r, "destfile"))
	if !ok {
		h.writeFeedStatus(w, destination, http.StatusNotFound)
		return
	}

	plugin, err := h.FeedPlugins.Get(destination)
	if err != nil || plugin.Format() != ext {
		h.writeFeedStatus(w, destination, http.StatusNotFound)
		return
	}

	partner, err := h.Store.GetPartner(r.Context(), partnerID)
	if err != nil {
		h.writeFeedStatus(w, destination, http.StatusNotFound)
		return
	}

	token := r.URL.Query().Get("token")
	setting, err := h.Store.GetPartnerDestinationSetting(r.Context(), partner.TenantID, partnerID, destination)
	if err != nil || !setting.Enabled || token == "" || setting.FeedToken != token {
		h.writeFeedStatus(w, destination, http.StatusForbidden)
		return
	}

	snapshot, err := h.Store.GetLatestFeedSnapshot(r.Context(), partner.TenantID, partnerID, destination)
	if err != nil || snapshot.Format != ext {
		h.writeFeedStatus(w, destination, http.StatusNotFound)
		return
	}

	bucketKey := hashToken(token)
	limit := h.FeedRateLimitPerMin
	if limit <= 0 {
		limit = 60
	}
	result, err := h.RateLimiter.Allow(r.Context(), bucketKey, limit, feedRateLimitWindow)
	if err != nil {
		h.writeFeedStatus(w, destination, http.StatusInternalServerError)
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(result.ResetSeconds))
	if !result.Allowed {
		metrics.RateLimitRejections.WithLabelValues(bucketKey).Inc()
		w.Header().Set("Retry-After", strconv.Itoa(result.ResetSeconds))
		h.writeFeedStatus(w, destination, http.StatusTooManyRequests)
		return
	}

	etag := `"` + snapshot.ContentHash + `"`
	w.Header().Set("ETag", etag)
	w.Header().Set("Last-Modified", snapshot.CreatedAt.UTC().Format(http.TimeFormat))
	w.Header().Set("Cache-Control", "public, max-age=60")
	w.Header().Set("Vary", "Accept-Encoding")

	if ifNoneMatchHits(r.Header.Get("If-None-Match"), etag) {
		metrics.PublicFeedRequests.WithLabelValues(destination, "304").Inc()
		w.WriteHeader(http.StatusNotModified)
		return
	}

	serveGzip := snapshot.GzipStorageURI != "" && strings.Contains(r.Header.Get("Accept-Encoding"), "gzip")

	uri := snapshot.StorageURI
	if serveGzip {
		uri = snapshot.GzipStorageURI
	}
	data, err := h.Objects.Resolve(uri)
	if err != nil {
		metrics.PublicFeedRequests.WithLabelValues(destination, "500").Inc()
		h.writeFeedStatus(w, destination, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", feedContentType(ext))
	if serveGzip {
		w.Header().Set("Content-Encoding", "gzip")
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	metrics.PublicFeedRequests.WithLabelValues(destination, "200").Inc()
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		w.Write(data)
	}
}

func (h *Handlers) writeFeedStatus(w http.ResponseWriter, destination string, status int) {
	metrics.PublicFeedRequests.WithLabelValues(destination, strconv.Itoa(status)).Inc()
	w.WriteHeader(status)
}

// splitDestinationFile splits "101evler.xml" into ("101evler", "xml", true).
func splitDestinationFile(nameExt string) (destination, ext string, ok bool) {
	i := strings.LastIndex(nameExt, ".")
	if i <= 0 || i == len(nameExt)-1 {
		return nameExt, "", false
	}
	return nameExt[:i], nameExt[i+1:], true
}

func feedContentType(ext string) string {
	switch ext {
	case "xml":
		return "application/xml"
	case "csv":
		return "text/csv"
	default:
		return "application/octet-stream"
	}
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// ifNoneMatchHits implements conditional-GET matching against a strong
// ETag: "*" always matches, a weak validator ("W/\"...\"") matches on its
// underlying value, and multiple comma-separated values are each tried.
func ifNoneMatchHits(header, etag string) bool {
	if header == "" {
		return false
	}
	if strings.TrimSpace(header) == "*" {
		return true
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == etag {
			return true
		}
	}
	return false
}
