package models

// WeatherSnapshot is the flattened current-conditions view of a provider response.
// Values are produced by the upstream client and are not modified afterwards.
type WeatherSnapshot struct {
	City        string  `json:"city"`
	Region      string  `json:"region"`
	Country     string  `json:"country"`
	Temperature float64 `json:"temperature"` // °C
	Condition   string  `json:"condition"`
	Humidity    int     `json:"humidity"`  // percent
	WindSpeed   float64 `json:"windSpeed"` // kph
	LastUpdated string  `json:"lastUpdated"`
}
