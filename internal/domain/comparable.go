package domain

// Comparable is a reference property used to justify and adjust the offer
// price.
type Comparable struct {
	ID           string  `json:"id"`
	Address      string  `json:"address"`
	SoldPrice    float64 `json:"sold_price"`
	Beds         int     `json:"beds"`
	Baths        float64 `json:"baths"`
	Sqft         int     `json:"sqft"`
	DistanceMi   float64 `json:"distance_mi"`
	ImageURL     string  `json:"image_url,omitempty"`
	DaysOnMarket int     `json:"days_on_market"`
}

// CMAAnalysis is the comparable-market analysis for a property: the active
// comparable set plus the price range it implies.
type CMAAnalysis struct {
	MLSID          string       `json:"mlsid"`
	Comparables    []Comparable `json:"comparables"`
	SuggestedPrice float64      `json:"suggested_price"`
	PriceLow       float64      `json:"price_low"`
	PriceHigh      float64      `json:"price_high"`
}
