package feed

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"

	"github.com/syndicatehub/hub/pkg/contracts"
)

// PartnerCSVFeedPlugin writes a flat listing_id/title/price/currency/city
// CSV, with an extra status column when the destination's inclusion policy
// wants inactive listings represented rather than dropped.
type PartnerCSVFeedPlugin struct{}

func NewPartnerCSVFeedPlugin() *PartnerCSVFeedPlugin { return &PartnerCSVFeedPlugin{} }

func (p *PartnerCSVFeedPlugin) Destination() string { return "partner_csv" }
func (p *PartnerCSVFeedPlugin) Format() string      { return "csv" }

func (p *PartnerCSVFeedPlugin) Build(_ context.Context, _ contracts.MappingResolver, listings []contracts.FeedBuildInput, policy contracts.ListingInclusionPolicy) (contracts.FeedBuildResult, error) {
	includeStatus := policy == contracts.InclusionIncludeWithStatus

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := []string{"listing_id", "title", "price_amount", "currency", "city"}
	if includeStatus {
		header = append(header, "status")
	}
	if err := w.Write(header); err != nil {
		return contracts.FeedBuildResult{}, fmt.Errorf("feed: write csv header: %w", err)
	}

	count, skipped := 0, 0
	for _, listing := range listings {
		if !includeListing(policy, listing) {
			skipped++
			continue
		}
		title, _ := listing.Canonical["title"].(string)
		city, _ := listing.Canonical["city_slug"].(string)
		currency, _ := listing.Canonical["currency"].(string)
		price := ""
		if amount, ok := listing.Canonical["list_price"].(float64); ok {
			price = fmt.Sprintf("%.2f", amount)
		}

		row := []string{listing.ListingID, title, price, currency, city}
		if includeStatus {
			row = append(row, listing.Status)
		}
		if err := w.Write(row); err != nil {
			return contracts.FeedBuildResult{}, fmt.Errorf("feed: write csv row: %w", err)
		}
		count++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return contracts.FeedBuildResult{}, fmt.Errorf("feed: flush csv: %w", err)
	}

	data := buf.Bytes()
	return contracts.FeedBuildResult{
		Bytes:        data,
		Format:       "csv",
		ListingCount: count,
		ContentHash:  sha256Hex(data),
		Meta: map[string]any{
			"generator":     "partner_csv_v1",
			"skipped_count": skipped,
		},
	}, nil
}
