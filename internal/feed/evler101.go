package feed

import (
	"context"
	"encoding/xml"
	"fmt"

	"github.com/syndicatehub/hub/internal/projections"
	"github.com/syndicatehub/hub/pkg/contracts"
)

type evler101Ad struct {
	AdKey      string `xml:"ad_key"`
	SaleOrRent string `xml:"sale_or_rent"`
	Price      string `xml:"price,omitempty"`
	TypeID     string `xml:"type_id,omitempty"`
	CurrencyID string `xml:"currency_id,omitempty"`
	AreaID     string `xml:"area_id,omitempty"`
}

type evler101Feed struct {
	XMLName xml.Name     `xml:"ads"`
	Ads     []evler101Ad `xml:"ad"`
}

// Evler101FeedPlugin walks a partner's listings, applies the 101evler
// inclusion policy and field projection, and serializes whatever passes
// into a flat <ads><ad>...</ad></ads> document. Listings missing a
// required mapping (type_id/currency_id) are silently skipped, same as the
// projection's own required-mapping-keys contract: an unmapped listing
// simply doesn't appear in the feed rather than failing the whole build.
type Evler101FeedPlugin struct {
	projection *projections.Evler101Projection
}

func NewEvler101FeedPlugin() *Evler101FeedPlugin {
	return &Evler101FeedPlugin{projection: projections.NewEvler101Projection()}
}

func (p *Evler101FeedPlugin) Destination() string { return "101evler" }
func (p *Evler101FeedPlugin) Format() string      { return "xml" }

func (p *Evler101FeedPlugin) Build(ctx context.Context, resolver contracts.MappingResolver, listings []contracts.FeedBuildInput, policy contracts.ListingInclusionPolicy) (contracts.FeedBuildResult, error) {
	var ads []evler101Ad
	var skipped []map[string]any

	for _, listing := range listings {
		if !includeListing(policy, listing) {
			skipped = append(skipped, map[string]any{"listing_id": listing.ListingID, "reason": "policy_excluded", "detail": listing.Status})
			continue
		}

		keys := p.projection.RequiredMappingKeys(listing.Canonical)
		check := p.projection.CheckMappings(ctx, resolver, keys)
		if !check.OK {
			skipped = append(skipped, map[string]any{"listing_id": listing.ListingID, "reason": "missing_mapping", "detail": check.Missing})
			continue
		}

		projected, err := p.projection.Project(ctx, resolver, listing.Canonical)
		if err != nil {
			skipped = append(skipped, map[string]any{"listing_id": listing.ListingID, "reason": "project_error", "detail": err.Error()})
			continue
		}

		ad := evler101Ad{
			AdKey:      stringField(projected, "ad_key"),
			SaleOrRent: stringField(projected, "sale_or_rent"),
			TypeID:     stringField(projected, "type_id"),
			CurrencyID: stringField(projected, "currency_id"),
			AreaID:     stringField(projected, "area_id"),
		}
		if price, ok := projected["price"].(float64); ok {
			ad.Price = fmt.Sprintf("%.2f", price)
		}
		ads = append(ads, ad)
	}

	body, err := xml.MarshalIndent(evler101Feed{Ads: ads}, "", "  ")
	if err != nil {
		return contracts.FeedBuildResult{}, fmt.Errorf("feed: marshal 101evler xml: %w", err)
	}
	out := append([]byte(xml.Header), body...)

	return contracts.FeedBuildResult{
		Bytes:        out,
		Format:       "xml",
		ListingCount: len(ads),
		ContentHash:  sha256Hex(out),
		Meta: map[string]any{
			"generator":     "101evler_xml_v1",
			"skipped_count": len(skipped),
			"skipped":       skipped,
		},
	}, nil
}

func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// includeListing applies a destination's ListingInclusionPolicy: exclude
// inactive listings outright, or include any status when the destination
// wants a status field alongside.
func includeListing(policy contracts.ListingInclusionPolicy, listing contracts.FeedBuildInput) bool {
	if policy == contracts.InclusionExcludeInactive {
		return listing.IsActive
	}
	return true
}
