// Package detect evaluates prepared telemetry records against a
// sensitivity-parameterized threshold model and calibrates the global
// sensitivity from historical data.
package detect

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/driftwatch-systems/driftwatch/internal/metrics"
	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// Threshold model bases. A sensitivity of s narrows the "normal" band to
// (1.1 - s) times the base for the single-threshold categories.
const (
	sensorBase  = 150.0
	trafficBase = 1000.0

	transactionLowerFactor = 8.0
	transactionUpperFactor = 22.0
)

// trainIterations bounds the calibration binary search. Twenty halvings of
// [0,1] resolve sensitivity to better than 1e-6.
const trainIterations = 20

// Detector applies the per-category threshold rules. The zero value is not
// usable; construct with New.
type Detector struct {
	mu     sync.RWMutex
	global float64
}

// New returns a Detector whose global sensitivity starts at
// defaultSensitivity. The global value is used whenever Detect is called
// without per-user settings.
func New(defaultSensitivity float64) *Detector {
	d := &Detector{global: defaultSensitivity}
	metrics.GlobalSensitivity.Set(defaultSensitivity)
	return d
}

// GlobalSensitivity returns the current process-wide sensitivity.
func (d *Detector) GlobalSensitivity() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.global
}

// SetGlobalSensitivity replaces the process-wide sensitivity. Values outside
// [0,1] are a caller error and are not clamped.
func (d *Detector) SetGlobalSensitivity(s float64) {
	d.mu.Lock()
	d.global = s
	d.mu.Unlock()
	metrics.GlobalSensitivity.Set(s)
}

// Detect evaluates one prepared record and returns the resulting anomaly, or
// nil when the record is within its normal band. The effective sensitivity is
// settings.Sensitivity when settings are provided, otherwise the global
// sensitivity.
//
// Sensor and traffic records are anomalous whenever the feature exceeds the
// threshold. Transaction records additionally require a score above 100; the
// looser transaction bounds make this extra gate intentional.
func (d *Detector) Detect(rec models.PreparedRecord, settings *models.DetectionSettings) *models.Anomaly {
	s := d.GlobalSensitivity()
	if settings != nil {
		s = settings.Sensitivity
	}
	if len(rec.Features) == 0 {
		return nil
	}
	feature := rec.Features[0]

	switch rec.Category {
	case models.CategorySensor:
		threshold := (1.1 - s) * sensorBase
		if feature > threshold {
			desc := fmt.Sprintf("sensor: Temperature %v exceeds threshold %v", feature, threshold)
			return newAnomaly(rec, feature/threshold*100, desc)
		}

	case models.CategoryTraffic:
		threshold := (1.1 - s) * trafficBase
		if feature > threshold {
			desc := fmt.Sprintf("traffic: Volume %v exceeds threshold %v", feature, threshold)
			return newAnomaly(rec, feature/threshold*100, desc)
		}

	case models.CategoryTransaction:
		lower := s * transactionLowerFactor
		upper := s*transactionUpperFactor + (1 - s*2.0)

		var score float64
		var desc string
		switch {
		case feature < lower:
			// Score 200 for a zero feature keeps the division defined.
			score = 200.0
			if feature > 0 {
				score = lower / feature * 100
			}
			desc = fmt.Sprintf("transaction: Time %v below lower bound %v", feature, lower)
		case feature > upper:
			score = feature / upper * 100
			desc = fmt.Sprintf("transaction: Time %v above upper bound %v", feature, upper)
		}

		if score > 100 {
			return newAnomaly(rec, score, desc)
		}
	}

	return nil
}

// newAnomaly builds an anomaly for the record. DetectedAt carries the
// record's own timestamp so anomalies line up with the telemetry clock
// rather than processing time.
func newAnomaly(rec models.PreparedRecord, score float64, desc string) *models.Anomaly {
	severity := models.SeverityMedium
	if score > 150 {
		severity = models.SeverityHigh
	}

	id, _ := uuid.NewV7()
	return &models.Anomaly{
		ID:          id.String(),
		DataID:      rec.ID,
		DetectedAt:  rec.Timestamp,
		Score:       score,
		Description: desc,
		Category:    rec.Category,
		Severity:    severity,
	}
}

// Train calibrates the global sensitivity against historical records using a
// bounded binary search over [0,1]. At each midpoint it counts how many
// records would be flagged at that sensitivity: a count at or above half the
// dataset moves the lower bound up, a short count moves the upper bound down.
// The surviving lower bound becomes the new global sensitivity.
//
// An empty dataset leaves the global sensitivity unchanged.
func (d *Detector) Train(historical []models.PreparedRecord) {
	if len(historical) == 0 {
		slog.Warn("calibration skipped: no historical data")
		return
	}

	target := len(historical) / 2
	low, high := 0.0, 1.0
	for i := 0; i < trainIterations; i++ {
		mid := (low + high) / 2
		if d.countFlagged(historical, mid) < target {
			high = mid
		} else {
			low = mid
		}
	}

	d.SetGlobalSensitivity(low)
}

// countFlagged counts the records an otherwise-default settings value with
// the trial sensitivity would flag.
func (d *Detector) countFlagged(historical []models.PreparedRecord, sensitivity float64) int {
	trial := models.DetectionSettings{
		UserID:           "default_user",
		Sensitivity:      sensitivity,
		MonitoredSources: []string{models.SourceWildcard},
	}

	count := 0
	for _, rec := range historical {
		if d.Detect(rec, &trial) != nil {
			count++
		}
	}
	return count
}
