package domain

// Page names one step of the offer wizard. Each page owns an independent
// question list in the conversation store.
type Page string

const (
	PageVerifyProperty    Page = "verify-property"
	PageComparables       Page = "comparables"
	PageMarketConditions  Page = "market-conditions"
	PagePropertyCondition Page = "property-condition"
	PagePersonalization   Page = "personalization"
	PageFinalOffer        Page = "final-offer"
)

// StepOrder is the canonical wizard progression.
var StepOrder = []Page{
	PageVerifyProperty,
	PageComparables,
	PageMarketConditions,
	PagePropertyCondition,
	PagePersonalization,
	PageFinalOffer,
}

// Property is the read-mostly context for the property an offer is being
// prepared on. Fetched once per session and referenced by every page.
type Property struct {
	MLSID     string   `json:"mlsid"`
	Address   string   `json:"address"`
	City      string   `json:"city"`
	State     string   `json:"state"`
	Zip       string   `json:"zip"`
	ListPrice float64  `json:"list_price"`
	Beds      int      `json:"beds"`
	Baths     float64  `json:"baths"`
	Sqft      int      `json:"sqft"`
	YearBuilt int      `json:"year_built"`
	Images    []string `json:"images,omitempty"`
	Features  []string `json:"features,omitempty"`
}

// StepReadiness carries the per-step availability flags used to gate
// navigation between wizard pages.
type StepReadiness struct {
	MLSID string        `json:"mlsid"`
	Ready map[Page]bool `json:"ready"`
}

// IsReady reports whether a step may be entered. Unknown pages are not ready.
func (s StepReadiness) IsReady(page Page) bool {
	return s.Ready[page]
}

// ImageMeta describes one condition photo available for download.
type ImageMeta struct {
	ImageID string `json:"image_id"`
	Name    string `json:"name"`
	Page    Page   `json:"page"`
}
