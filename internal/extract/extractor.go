// Package extract maps raw telemetry events to typed prepared records.
package extract

import (
	"strconv"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// featureFields maps each type discriminant to its category and the
// attribute carrying the numeric feature.
var featureFields = map[string]struct {
	category models.Category
	field    string
}{
	"1": {models.CategorySensor, "temperature"},
	"2": {models.CategoryTransaction, "time_of_day"},
	"3": {models.CategoryTraffic, "volume"},
}

// Extract converts a raw event into a prepared record. It is pure and
// deterministic given the same discriminant and attribute values.
//
// A malformed or missing numeric attribute yields a *models.ValidationError;
// an unrecognized type discriminant yields a *models.UnknownCategoryError.
// Callers must not persist anything for a failed extraction.
func Extract(ev models.RawEvent) (models.PreparedRecord, error) {
	mapping, ok := featureFields[ev.Attributes["type"]]
	if !ok {
		return models.PreparedRecord{}, &models.UnknownCategoryError{Type: ev.Attributes["type"]}
	}

	raw, ok := ev.Attributes[mapping.field]
	if !ok {
		return models.PreparedRecord{}, &models.ValidationError{Field: mapping.field, Value: ""}
	}

	feature, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return models.PreparedRecord{}, &models.ValidationError{Field: mapping.field, Value: raw}
	}

	return models.PreparedRecord{
		ID:        ev.ID,
		Timestamp: ev.Timestamp,
		Category:  mapping.category,
		Features:  []float64{feature},
	}, nil
}
