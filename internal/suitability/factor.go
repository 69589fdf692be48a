package suitability

// Factor names one input layer of the overlay.
type Factor string

// Categorical factors of the avocado assessment.
const (
	LandCover Factor = "land_cover"
	Slope     Factor = "slope"
	Exposure  Factor = "exposure"
	Drainage  Factor = "drainage"
	Texture   Factor = "texture"
)

// Continuous factors scored by thresholds.
const (
	Precipitation  Factor = "precipitation"
	MaxTemperature Factor = "tmax"
	MinTemperature Factor = "tmin"
	SlopeDegrees   Factor = "slope_degrees"
	AspectDegrees  Factor = "aspect_degrees"
	SoilPH         Factor = "soil_ph"
)

// CategoricalFactors returns the five categorical factors in overlay order.
func CategoricalFactors() []Factor {
	return []Factor{LandCover, Slope, Exposure, Drainage, Texture}
}

// ClimateFactors returns the threshold-scored factors in overlay order.
func ClimateFactors() []Factor {
	return []Factor{Precipitation, MaxTemperature, MinTemperature, SlopeDegrees, AspectDegrees, SoilPH}
}
