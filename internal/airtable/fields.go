package airtable

import (
	"context"
	"fmt"
	"math"

	"github.com/Tiliavir/feedtrack/internal/model"
)

// Column names of the feeding tracker table.
const (
	FieldDay           = "Day"
	FieldStartTime     = "Start Time"
	FieldFeedingType   = "Feeding Type"
	FieldAmount        = "Feeding Amount (ml)"
	FieldLeft          = "L"
	FieldRight         = "R"
	FieldUrine         = "Urine"
	FieldBowelMovement = "BM (Bowel Movement)"
	FieldNotes         = "Notes"
)

// Fields mirrors the columns of one feeding tracker row.
type Fields struct {
	Day           float64           `json:"Day,omitempty"`
	StartTime     string            `json:"Start Time,omitempty"`
	FeedingType   model.FeedingType `json:"Feeding Type,omitempty"`
	AmountML      *float64          `json:"Feeding Amount (ml),omitempty"`
	Left          *bool             `json:"L,omitempty"`
	Right         *bool             `json:"R,omitempty"`
	Urine         *bool             `json:"Urine,omitempty"`
	BowelMovement *bool             `json:"BM (Bowel Movement),omitempty"`
	Notes         string            `json:"Notes,omitempty"`
}

// NewestFirst is the listing order used by every view: day, then start time,
// both descending.
var NewestFirst = []Sort{
	{Field: FieldDay, Direction: Desc},
	{Field: FieldStartTime, Direction: Desc},
}

// MapRecord converts a raw row into a FeedingRecord. Rows whose day is not a
// positive whole number are rejected.
func MapRecord(r Record) (model.FeedingRecord, error) {
	day := r.Fields.Day
	if day < 1 || day != math.Trunc(day) {
		return model.FeedingRecord{}, fmt.Errorf("record %s: invalid day %v", r.ID, day)
	}
	return model.FeedingRecord{
		ID:            r.ID,
		Day:           int(day),
		StartTime:     r.Fields.StartTime,
		FeedingType:   r.Fields.FeedingType,
		AmountML:      r.Fields.AmountML,
		Left:          r.Fields.Left,
		Right:         r.Fields.Right,
		Urine:         r.Fields.Urine,
		BowelMovement: r.Fields.BowelMovement,
		Notes:         r.Fields.Notes,
		CreatedTime:   r.CreatedTime,
	}, nil
}

// FieldsFor converts a FeedingRecord into writable columns.
func FieldsFor(rec model.FeedingRecord) Fields {
	return Fields{
		Day:           float64(rec.Day),
		StartTime:     rec.StartTime,
		FeedingType:   rec.FeedingType,
		AmountML:      rec.AmountML,
		Left:          rec.Left,
		Right:         rec.Right,
		Urine:         rec.Urine,
		BowelMovement: rec.BowelMovement,
		Notes:         rec.Notes,
	}
}

// ListFeedings fetches every page and maps the rows. Rows repeated across
// pages are kept once; rows that cannot be mapped are logged and dropped.
func (c *Client) ListFeedings(ctx context.Context, opts SelectOptions) ([]model.FeedingRecord, error) {
	var out []model.FeedingRecord
	seen := map[string]bool{}

	err := c.EachPage(ctx, opts, func(page []Record) bool {
		for _, r := range page {
			if seen[r.ID] {
				continue
			}
			seen[r.ID] = true

			rec, err := MapRecord(r)
			if err != nil {
				c.log.Warn().Err(err).Msg("skipping row")
				continue
			}
			out = append(out, rec)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateFeeding stores rec as a new row and returns it with its new id.
func (c *Client) CreateFeeding(ctx context.Context, rec model.FeedingRecord) (model.FeedingRecord, error) {
	stored, err := c.Create(ctx, FieldsFor(rec))
	if err != nil {
		return model.FeedingRecord{}, err
	}
	return MapRecord(stored)
}
