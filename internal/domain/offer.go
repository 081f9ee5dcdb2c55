package domain

// OfferPrice is the platform's recommended purchase price alongside any
// user-adjusted value.
type OfferPrice struct {
	MLSID     string  `json:"mlsid"`
	Suggested float64 `json:"suggested"`
	Adjusted  float64 `json:"adjusted,omitempty"`
}

// Final returns the price the offer should be made at: the user adjustment
// when present, the recommendation otherwise.
func (o OfferPrice) Final() float64 {
	if o.Adjusted > 0 {
		return o.Adjusted
	}
	return o.Suggested
}

// OfferRecommendation is the assembled output of the wizard's final step.
type OfferRecommendation struct {
	Property Property    `json:"property"`
	Analysis CMAAnalysis `json:"analysis"`
	Price    OfferPrice  `json:"price"`
}

// AnsweredQuestion is one (page, question, response) row of the exported
// offer report.
type AnsweredQuestion struct {
	Page     Page
	Question string
	Response []string
}

// OfferReport is everything the report-download step writes out.
type OfferReport struct {
	Property Property
	Analysis CMAAnalysis
	Price    OfferPrice
	Answers  []AnsweredQuestion
}
