package model

import (
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// FeedingRecord is one logged row of the feeding tracker table.
type FeedingRecord struct {
	ID            string      `json:"id"`
	Day           int         `json:"day"`
	StartTime     string      `json:"start_time"`
	FeedingType   FeedingType `json:"feeding_type"`
	AmountML      *float64    `json:"amount_ml,omitempty"`
	Left          *bool       `json:"left,omitempty"`
	Right         *bool       `json:"right,omitempty"`
	Urine         *bool       `json:"urine,omitempty"`
	BowelMovement *bool       `json:"bowel_movement,omitempty"`
	Notes         string      `json:"notes,omitempty"`
	CreatedTime   time.Time   `json:"created_time,omitempty"`
}

// IsFeeding reports whether the row logs a feeding. Rows that only record a
// diaper change carry no feeding type.
func (r FeedingRecord) IsFeeding() bool {
	return strings.TrimSpace(string(r.FeedingType)) != ""
}

// FeedingTypes splits the feeding type into its comma-separated labels.
func (r FeedingRecord) FeedingTypes() []string {
	return r.FeedingType.Labels()
}

// FeedingType is a free-text label that may list several types separated by
// commas. It decodes from either a JSON string or an array of strings.
type FeedingType string

// UnmarshalJSON accepts "Formula", ["Formula", "Donor milk"] and null.
func (t *FeedingType) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var parts []string
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		*t = FeedingType(strings.Join(parts, ", "))
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*t = FeedingType(s)
	return nil
}

// Labels returns the trimmed, non-empty labels.
func (t FeedingType) Labels() []string {
	var out []string
	for _, p := range strings.Split(string(t), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Flag dereferences an optional boolean observation.
func Flag(b *bool) bool {
	return b != nil && *b
}

// DayGroup holds every record logged on one tracked day.
type DayGroup struct {
	Day     int             `json:"day"`
	Records []FeedingRecord `json:"records"`
}

// DaySummary holds per-day totals for the report view.
type DaySummary struct {
	Day            int            `json:"day"`
	Feedings       int            `json:"feedings"`
	TotalML        float64        `json:"total_ml"`
	Urine          int            `json:"urine"`
	BowelMovements int            `json:"bowel_movements"`
	Types          map[string]int `json:"types"`
}

// LastFeeding is the summary shown on the "last feeding" screen.
type LastFeeding struct {
	LastFeedingTime string        `json:"last_feeding_time"`
	ElapsedLabel    string        `json:"elapsed_label"`
	DayNumber       int           `json:"day_number"`
	ProjectedPlus3h string        `json:"projected_plus_3h"`
	ProjectedPlus4h string        `json:"projected_plus_4h"`
	FeedingType     string        `json:"feeding_type"`
	At              time.Time     `json:"at"`
	Elapsed         time.Duration `json:"elapsed_ns"`
}
