// Package catalog holds the purchasable coin packs and the fixed coin
// cost of each metered feature. This is administrative configuration,
// read-only to regular accounts.
package catalog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Plan is a purchasable coin pack. Price is a display string such as
// "₹99"; BestValue is part of the data, not inferred by clients.
type Plan struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	CoinAmount    int64  `json:"coinAmount"`
	Price         string `json:"price"`
	CurrencyCode  string `json:"currencyCode"`
	StripePriceID string `json:"stripePriceId,omitempty"`
	BestValue     bool   `json:"bestValue"`
}

// plans lists all coin packs in ascending coinAmount order. The slice
// order is the display order returned by Plans and must stay stable.
var plans = []Plan{
	{
		ID:           1,
		Name:         "Starter Pack",
		CoinAmount:   100,
		Price:        "₹99",
		CurrencyCode: "INR",
	},
	{
		ID:           2,
		Name:         "Creator Pack",
		CoinAmount:   500,
		Price:        "₹399",
		CurrencyCode: "INR",
		BestValue:    true,
	},
	{
		ID:           3,
		Name:         "Studio Pack",
		CoinAmount:   1200,
		Price:        "₹799",
		CurrencyCode: "INR",
	},
}

// Plans returns all coin packs in stable ascending coinAmount order.
func Plans() []Plan {
	out := make([]Plan, len(plans))
	copy(out, plans)
	return out
}

// GetPlan returns the plan with the given id.
func GetPlan(id int64) (Plan, bool) {
	for _, p := range plans {
		if p.ID == id {
			return p, true
		}
	}
	return Plan{}, false
}

// PriceMinorUnits converts the display price string to minor currency
// units (paise for INR, cents otherwise), e.g. "₹99" -> 9900.
func (p Plan) PriceMinorUnits() (int64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, p.Price)

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("failed to parse plan price %q: %w", p.Price, err)
	}
	return d.Mul(decimal.NewFromInt(100)).Round(0).IntPart(), nil
}

// Metered feature names. These match the generation operations the
// feature collaborators invoke before doing their own external work.
const (
	FeatureChatMessage     = "processChatMessage"
	FeatureImageGeneration = "generateImage"
	FeatureScript          = "generateScript"
	FeatureSeoPack         = "generateSeoPack"
	FeatureVoiceover       = "generateVoiceover"
	FeatureSubtitles       = "generateSubtitles"
	FeatureColdEmail       = "generateColdEmail"
	FeatureVideo           = "generateVideo"
)

// featureCosts maps each metered feature to its fixed coin cost.
var featureCosts = map[string]int64{
	FeatureChatMessage:     20,
	FeatureImageGeneration: 10,
	FeatureScript:          20,
	FeatureSeoPack:         20,
	FeatureVoiceover:       20,
	FeatureSubtitles:       20,
	FeatureColdEmail:       20,
	FeatureVideo:           20,
}

// FeatureCost returns the coin cost of a metered feature.
func FeatureCost(name string) (int64, bool) {
	cost, ok := featureCosts[name]
	return cost, ok
}

// Features returns the names of all metered features.
func Features() []string {
	names := make([]string, 0, len(featureCosts))
	for name := range featureCosts {
		names = append(names, name)
	}
	return names
}
