// Package report computes the daily aggregations behind the dashboard
// charts. All functions are pure: they take store query results and return
// sorted slices ready for JSON encoding.
package report

import (
	"sort"
	"time"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// DailyFeature is the average feature value observed on one UTC day.
type DailyFeature struct {
	Day     time.Time `json:"day"`
	Average float64   `json:"average"`
	Count   int       `json:"count"`
}

// DailyCount is the number of confirmed anomalies detected on one UTC day.
type DailyCount struct {
	Day   time.Time `json:"day"`
	Count int       `json:"count"`
}

// IPCount is how often one source IP appeared in raw traffic events.
type IPCount struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// DailyAverageFeatures buckets records by UTC day and averages the first
// feature of each. Records with no features are skipped. The result is
// sorted by day ascending.
func DailyAverageFeatures(recs []models.PreparedRecord) []DailyFeature {
	type acc struct {
		sum   float64
		count int
	}
	days := make(map[time.Time]*acc)
	for _, rec := range recs {
		if len(rec.Features) == 0 {
			continue
		}
		day := dayOf(rec.Timestamp)
		a, ok := days[day]
		if !ok {
			a = &acc{}
			days[day] = a
		}
		a.sum += rec.Features[0]
		a.count++
	}

	out := make([]DailyFeature, 0, len(days))
	for day, a := range days {
		out = append(out, DailyFeature{Day: day, Average: a.sum / float64(a.count), Count: a.count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// DailyConfirmedCounts buckets by UTC day the anomalies whose id appears in
// the confirmed set. The result is sorted by day ascending; days with no
// confirmed anomalies are absent rather than zero.
func DailyConfirmedCounts(anomalies []models.Anomaly, confirmed map[string]bool) []DailyCount {
	days := make(map[time.Time]int)
	for _, a := range anomalies {
		if !confirmed[a.ID] {
			continue
		}
		days[dayOf(a.DetectedAt)]++
	}

	out := make([]DailyCount, 0, len(days))
	for day, n := range days {
		out = append(out, DailyCount{Day: day, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Day.Before(out[j].Day) })
	return out
}

// TopSourceIPs ranks the ip attribute of raw events by frequency, most
// frequent first, ties broken by IP string so the order is stable. Events
// without an ip attribute are skipped. A limit of zero or less returns the
// full ranking.
func TopSourceIPs(events []models.RawEvent, limit int) []IPCount {
	freq := make(map[string]int)
	for _, ev := range events {
		if ip := ev.Attributes["ip"]; ip != "" {
			freq[ip]++
		}
	}

	out := make([]IPCount, 0, len(freq))
	for ip, n := range freq {
		out = append(out, IPCount{IP: ip, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].IP < out[j].IP
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// dayOf truncates a timestamp to its UTC date.
func dayOf(ts time.Time) time.Time {
	ts = ts.UTC()
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
}
