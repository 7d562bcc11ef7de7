package forecast

import (
	"context"
	"math"
	"time"
)

// Swell is a single swell train component.
type Swell struct {
	Angle  float64 // degrees, direction the swell comes from
	Height float64 // metres
	Period float64 // seconds
}

// Sample is one hourly forecast record for a spot.
type Sample struct {
	Time      time.Time
	SpotID    string
	WindSpeed float64 // knots
	WindAngle float64 // degrees
	Energy    float64
	Swells    []Swell
}

// CombinedHeight derives the total wave height as the root sum of squares
// of the swell component heights.
func (s Sample) CombinedHeight() float64 {
	sum := 0.0
	for _, sw := range s.Swells {
		sum += sw.Height * sw.Height
	}
	return math.Sqrt(sum)
}

// PrimaryPeriod returns the period of the tallest swell component, or zero
// when the sample carries no swell data.
func (s Sample) PrimaryPeriod() float64 {
	period := 0.0
	tallest := -1.0
	for _, sw := range s.Swells {
		if sw.Height > tallest {
			tallest = sw.Height
			period = sw.Period
		}
	}
	return period
}

// Fetcher retrieves the hourly forecast series for a spot.
type Fetcher interface {
	Fetch(ctx context.Context, spotID string, lat, lon float64) ([]Sample, error)
}
