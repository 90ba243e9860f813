package weather

import "context"

// SyntheticHistory is the placeholder history strategy. It returns a fixed
// two-entry series dated on the range boundaries, whatever the coordinates.
type SyntheticHistory struct{}

// NewSyntheticHistory creates the placeholder strategy.
func NewSyntheticHistory() *SyntheticHistory {
	return &SyntheticHistory{}
}

func (s *SyntheticHistory) Name() string {
	return "synthetic"
}

// Historical always succeeds and never returns an empty series.
func (s *SyntheticHistory) Historical(_ context.Context, _, _ float64, start, end Date) ([]Observation, error) {
	return []Observation{
		{Date: start, AvgTemp: 10, MinTemp: 5, MaxTemp: 15, Condition: ConditionCloudy, Precipitation: 2},
		{Date: end, AvgTemp: 12, MinTemp: 7, MaxTemp: 17, Condition: ConditionClear, Precipitation: 0},
	}, nil
}
