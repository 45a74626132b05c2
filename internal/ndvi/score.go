package ndvi

import "math"

// Category is the coarse regeneration class of a parcel.
type Category string

const (
	CategoryCritical Category = "critical"
	CategoryFair     Category = "fair"
	CategoryHealthy  Category = "healthy"
)

// Lower bounds of the Fair and Healthy classes, inclusive.
const (
	FairThreshold    = 0.2
	HealthyThreshold = 0.5
)

var insights = map[Category]string{
	CategoryCritical: "Critical: vegetation stress — recommend cover crops or mulching.",
	CategoryFair:     "Fair: recovery in progress — maintain soil moisture and organic matter.",
	CategoryHealthy:  "Healthy: strong vegetation cover — continue regenerative practices.",
}

// Assessment is the human-facing result of scoring a mean NDVI.
type Assessment struct {
	Score    int
	Category Category
	Insight  string
}

// Score maps a mean NDVI in [-1, 1] to an integer in [0, 100].
func Score(mean float64) int {
	return int(math.Round((Clamp(mean) + 1.0) * 50.0))
}

// Classify picks the category from the mean itself, not from the rounded score.
func Classify(mean float64) Category {
	switch {
	case mean >= HealthyThreshold:
		return CategoryHealthy
	case mean >= FairThreshold:
		return CategoryFair
	default:
		return CategoryCritical
	}
}

// Insight returns the recommendation text for a category.
func (c Category) Insight() string {
	return insights[c]
}

// Evaluate scores and classifies the mean of stats.
func Evaluate(stats Stats) Assessment {
	category := Classify(stats.Mean)
	return Assessment{
		Score:    Score(stats.Mean),
		Category: category,
		Insight:  category.Insight(),
	}
}
