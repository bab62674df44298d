package extract

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

func TestExtract(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		attributes   map[string]string
		wantCategory models.Category
		wantFeature  float64
	}{
		{
			name:         "sensor temperature",
			attributes:   map[string]string{"type": "1", "temperature": "180"},
			wantCategory: models.CategorySensor,
			wantFeature:  180,
		},
		{
			name:         "transaction time of day",
			attributes:   map[string]string{"type": "2", "time_of_day": "13.5", "used_device": "true"},
			wantCategory: models.CategoryTransaction,
			wantFeature:  13.5,
		},
		{
			name:         "traffic volume",
			attributes:   map[string]string{"type": "3", "volume": "500", "ip": "192.168.0.1"},
			wantCategory: models.CategoryTraffic,
			wantFeature:  500,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := models.RawEvent{
				ID:         "evt-1",
				Timestamp:  ts,
				Source:     "source_1",
				Attributes: tt.attributes,
			}

			rec, err := Extract(ev)
			require.NoError(t, err)

			assert.Equal(t, ev.ID, rec.ID)
			assert.Equal(t, ev.Timestamp, rec.Timestamp)
			assert.Equal(t, tt.wantCategory, rec.Category)
			require.Len(t, rec.Features, 1)
			assert.Equal(t, tt.wantFeature, rec.Features[0])
		})
	}
}

func TestExtract_MalformedFeature(t *testing.T) {
	tests := []struct {
		name       string
		attributes map[string]string
		wantField  string
		wantValue  string
	}{
		{
			name:       "non numeric temperature",
			attributes: map[string]string{"type": "1", "temperature": "hot"},
			wantField:  "temperature",
			wantValue:  "hot",
		},
		{
			name:       "missing volume",
			attributes: map[string]string{"type": "3", "ip": "192.168.0.1"},
			wantField:  "volume",
			wantValue:  "",
		},
		{
			name:       "empty time of day",
			attributes: map[string]string{"type": "2", "time_of_day": ""},
			wantField:  "time_of_day",
			wantValue:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(models.RawEvent{ID: "evt-1", Attributes: tt.attributes})
			require.Error(t, err)

			var verr *models.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.wantField, verr.Field)
			assert.Equal(t, tt.wantValue, verr.Value)
		})
	}
}

func TestExtract_UnknownType(t *testing.T) {
	tests := []struct {
		name       string
		attributes map[string]string
		wantType   string
	}{
		{
			name:       "unmapped discriminant",
			attributes: map[string]string{"type": "4", "temperature": "50"},
			wantType:   "4",
		},
		{
			name:       "missing discriminant",
			attributes: map[string]string{"temperature": "50"},
			wantType:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(models.RawEvent{ID: "evt-1", Attributes: tt.attributes})
			require.Error(t, err)

			var uerr *models.UnknownCategoryError
			require.True(t, errors.As(err, &uerr))
			assert.Equal(t, tt.wantType, uerr.Type)
		})
	}
}
