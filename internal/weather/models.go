package weather

import (
	"encoding/json"
	"time"
)

// Condition represents a normalized high-level weather condition.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// Location is a resolved place. Country and State are optional.
type Location struct {
	Name    string  `json:"name" validate:"required"`
	Lat     float64 `json:"lat" validate:"min=-90,max=90"`
	Lon     float64 `json:"lon" validate:"min=-180,max=180"`
	Country string  `json:"country,omitempty"`
	State   string  `json:"state,omitempty"`
}

// Date is a calendar day without a time of day or zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

const dateLayout = "2006-01-02"

// DateOf returns the calendar day of t in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Time().Format(dateLayout)
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Before reports whether d falls on an earlier day than o.
func (d Date) Before(o Date) bool {
	return d.Time().Before(o.Time())
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Observation is a point-in-time or single-day weather summary.
// A slice of observations ordered by Date forms a time series.
type Observation struct {
	Date          Date      `json:"date"`
	AvgTemp       float64   `json:"avgTemp"`
	MinTemp       float64   `json:"minTemp"`
	MaxTemp       float64   `json:"maxTemp"`
	Condition     Condition `json:"condition"`
	Precipitation float64   `json:"precipitation"`
}

// DateRange is the requested period of a history record. Start <= End.
type DateRange struct {
	Start time.Time `json:"startDate" validate:"required"`
	End   time.Time `json:"endDate" validate:"required,gtefield=Start"`
}

// HistoryRecord is a persisted weather-history entry. Only UserNotes and
// UpdatedAt change after creation.
type HistoryRecord struct {
	ID               string        `json:"id"`
	InputLocation    string        `json:"inputLocation" validate:"required"`
	ResolvedLocation Location      `json:"resolvedLocation"`
	DateRange        DateRange     `json:"dateRange"`
	WeatherSeries    []Observation `json:"weatherSeries"`
	UserNotes        string        `json:"userNotes"`
	CreatedAt        time.Time     `json:"createdAt" validate:"required"`
	UpdatedAt        time.Time     `json:"updatedAt" validate:"required,gtefield=CreatedAt"`
}

// RecordPatch carries the fields a caller may change on an existing record.
// A nil field means "leave as is".
type RecordPatch struct {
	UserNotes *string
}

// IsEmpty reports whether the patch changes nothing.
func (p RecordPatch) IsEmpty() bool {
	return p.UserNotes == nil
}

// Timestamp normalizes t to the precision every store can keep: UTC, milliseconds.
func Timestamp(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// NextUpdate returns the updatedAt value for a mutation happening at now,
// guaranteeing it is strictly after prev.
func NextUpdate(prev, now time.Time) time.Time {
	next := Timestamp(now)
	if !next.After(prev) {
		next = Timestamp(prev).Add(time.Millisecond)
	}
	return next
}
