package notify

import (
	"context"
	"sync"

	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// Published is one recorded publication.
type Published struct {
	Subject string
	Payload interface{}
}

// Recorder is an in-memory Notifier for tests and offline runs. It records
// every publication in order and can be forced to fail.
type Recorder struct {
	mu        sync.Mutex
	published []Published

	// Err, when set, is returned by every publish call.
	Err error
}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) AnomalyDetected(ctx context.Context, anomaly models.Anomaly) error {
	return r.record(SubjectAnomaliesDetected, anomaly)
}

func (r *Recorder) AlertCreated(ctx context.Context, alert models.Alert) error {
	return r.record(SubjectAlertsCreated, alert)
}

func (r *Recorder) AlertUpdated(ctx context.Context, alert models.Alert) error {
	return r.record(SubjectAlertsUpdated, alert)
}

func (r *Recorder) record(subject string, payload interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.published = append(r.published, Published{Subject: subject, Payload: payload})
	return nil
}

// Published returns a snapshot of everything recorded so far.
func (r *Recorder) Published() []Published {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Published(nil), r.published...)
}

// OnSubject returns the recorded publications for one subject.
func (r *Recorder) OnSubject(subject string) []Published {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Published
	for _, p := range r.published {
		if p.Subject == subject {
			out = append(out, p)
		}
	}
	return out
}
