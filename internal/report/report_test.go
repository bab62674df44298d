package report

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

var base = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func recAt(ts time.Time, feature float64) models.PreparedRecord {
	return models.PreparedRecord{
		ID:        fmt.Sprintf("rec-%d", ts.Unix()),
		Timestamp: ts,
		Category:  models.CategorySensor,
		Features:  []float64{feature},
	}
}

func TestDailyAverageFeatures(t *testing.T) {
	recs := []models.PreparedRecord{
		recAt(base, 10),
		recAt(base.Add(6*time.Hour), 20),
		recAt(base.Add(25*time.Hour), 40),
	}

	got := DailyAverageFeatures(recs)
	require.Len(t, got, 2)

	assert.Equal(t, base, got[0].Day)
	assert.InDelta(t, 15.0, got[0].Average, 1e-9)
	assert.Equal(t, 2, got[0].Count)

	assert.Equal(t, base.Add(24*time.Hour), got[1].Day)
	assert.InDelta(t, 40.0, got[1].Average, 1e-9)
	assert.Equal(t, 1, got[1].Count)
}

func TestDailyAverageFeatures_BucketsByUTCDate(t *testing.T) {
	// 2025-01-01 23:30 UTC and 2025-01-02 00:30 UTC land on different days
	// even though they are an hour apart.
	recs := []models.PreparedRecord{
		recAt(base.Add(23*time.Hour+30*time.Minute), 1),
		recAt(base.Add(24*time.Hour+30*time.Minute), 2),
	}

	got := DailyAverageFeatures(recs)
	require.Len(t, got, 2)
	assert.Equal(t, base, got[0].Day)
	assert.Equal(t, base.Add(24*time.Hour), got[1].Day)
}

func TestDailyAverageFeatures_SkipsEmptyFeatures(t *testing.T) {
	recs := []models.PreparedRecord{
		{ID: "empty", Timestamp: base},
		recAt(base, 8),
	}

	got := DailyAverageFeatures(recs)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Count)
	assert.InDelta(t, 8.0, got[0].Average, 1e-9)
}

func TestDailyAverageFeatures_Empty(t *testing.T) {
	assert.Empty(t, DailyAverageFeatures(nil))
}

func TestDailyConfirmedCounts(t *testing.T) {
	anomalies := []models.Anomaly{
		{ID: "a1", DetectedAt: base},
		{ID: "a2", DetectedAt: base.Add(time.Hour)},
		{ID: "a3", DetectedAt: base.Add(26 * time.Hour)},
	}
	confirmed := map[string]bool{"a1": true, "a3": true}

	got := DailyConfirmedCounts(anomalies, confirmed)
	require.Len(t, got, 2)

	assert.Equal(t, base, got[0].Day)
	assert.Equal(t, 1, got[0].Count)
	assert.Equal(t, base.Add(24*time.Hour), got[1].Day)
	assert.Equal(t, 1, got[1].Count)
}

func TestDailyConfirmedCounts_NothingConfirmed(t *testing.T) {
	anomalies := []models.Anomaly{{ID: "a1", DetectedAt: base}}

	assert.Empty(t, DailyConfirmedCounts(anomalies, nil))
}

func TestTopSourceIPs(t *testing.T) {
	trafficEvent := func(ip string) models.RawEvent {
		return models.RawEvent{
			Attributes: map[string]string{"type": "3", "volume": "100", "ip": ip},
		}
	}

	events := []models.RawEvent{
		trafficEvent("192.168.0.1"),
		trafficEvent("192.168.0.2"),
		trafficEvent("192.168.0.1"),
		trafficEvent("192.168.0.3"),
		trafficEvent("192.168.0.1"),
		trafficEvent("192.168.0.2"),
		// Sensor events carry no ip attribute and must be ignored.
		{Attributes: map[string]string{"type": "1", "temperature": "50"}},
	}

	got := TopSourceIPs(events, 2)
	require.Len(t, got, 2)
	assert.Equal(t, IPCount{IP: "192.168.0.1", Count: 3}, got[0])
	assert.Equal(t, IPCount{IP: "192.168.0.2", Count: 2}, got[1])
}

func TestTopSourceIPs_TiesOrderedByIP(t *testing.T) {
	events := []models.RawEvent{
		{Attributes: map[string]string{"ip": "10.0.0.2"}},
		{Attributes: map[string]string{"ip": "10.0.0.1"}},
	}

	got := TopSourceIPs(events, 0)
	require.Len(t, got, 2)
	assert.Equal(t, "10.0.0.1", got[0].IP)
	assert.Equal(t, "10.0.0.2", got[1].IP)
}
