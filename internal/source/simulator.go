package source

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/driftwatch-systems/driftwatch/internal/metrics"
	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// SimulatorConfig controls the synthetic event stream.
type SimulatorConfig struct {
	// Interval is the wall-clock cadence between events.
	Interval time.Duration

	// MaxEvents caps one run; the generation loop exits once reached.
	MaxEvents int

	// StartTime seeds the simulated clock. Each event advances it one hour,
	// so event timestamps span days of telemetry within minutes of wall time.
	StartTime time.Time

	// Seed makes the stream reproducible. Zero seeds from entropy.
	Seed int64
}

// Simulator synthesizes raw telemetry events on a fixed cadence. Event
// timestamps come from the simulated clock, never from the wall clock.
type Simulator struct {
	cfg    SimulatorConfig
	faker  *gofakeit.Faker
	logger *slog.Logger

	mu        sync.Mutex
	listener  Listener
	clock     time.Time
	generated int
	running   bool
	stopping  bool
	stopCh    chan struct{}

	wg sync.WaitGroup
}

// NewSimulator builds a simulator from the given config. A zero or negative
// interval falls back to one second.
func NewSimulator(cfg SimulatorConfig, logger *slog.Logger) *Simulator {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Simulator{
		cfg:    cfg,
		faker:  gofakeit.New(cfg.Seed),
		logger: logger,
		clock:  cfg.StartTime,
	}
}

// Connect starts the generation goroutine.
func (s *Simulator) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("simulator already running")
	}
	s.running = true
	s.stopping = false
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("starting event simulation",
		slog.Int("max_events", s.cfg.MaxEvents),
		slog.Duration("interval", s.cfg.Interval),
		slog.Time("start_time", s.cfg.StartTime),
	)

	s.wg.Add(1)
	go s.run(ctx)
	return nil
}

// RegisterListener replaces the current listener.
func (s *Simulator) RegisterListener(fn Listener) {
	s.mu.Lock()
	s.listener = fn
	s.mu.Unlock()
}

// Stop halts the generation loop and waits for it to exit.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if s.running && !s.stopping {
		s.stopping = true
		close(s.stopCh)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// GenerateNext synthesizes one event on demand, advancing the simulated
// clock without going through the timed loop. Offline runs drive the
// pipeline with it directly.
func (s *Simulator) GenerateNext() models.RawEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generateLocked()
}

// GeneratedCount reports how many events have been synthesized so far.
func (s *Simulator) GeneratedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generated
}

func (s *Simulator) run(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.wg.Done()
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.mu.Lock()
			if s.cfg.MaxEvents > 0 && s.generated >= s.cfg.MaxEvents {
				generated := s.generated
				s.mu.Unlock()
				s.logger.Info("simulation complete", slog.Int("events", generated))
				return
			}
			ev := s.generateLocked()
			fn := s.listener
			s.mu.Unlock()

			s.emit(ev, fn)
		}
	}
}

// generateLocked builds the next event and advances the clock. Callers hold
// the mutex.
func (s *Simulator) generateLocked() models.RawEvent {
	ts := s.clock
	s.clock = s.clock.Add(time.Hour)
	s.generated++

	attrs := make(map[string]string, 3)
	typ := s.faker.RandomString([]string{"1", "2", "3"})
	attrs["type"] = typ

	switch typ {
	case "1":
		attrs["temperature"] = formatFloat(s.faker.Float64Range(0, 200))
	case "2":
		attrs["time_of_day"] = formatFloat(s.faker.Float64Range(0, 24))
		attrs["used_device"] = strconv.FormatBool(s.faker.Bool())
	case "3":
		attrs["volume"] = formatFloat(s.faker.Float64Range(0, 2000))
		attrs["ip"] = fmt.Sprintf("192.168.%d.%d", s.faker.Number(0, 255), s.faker.Number(0, 255))
	}

	return models.RawEvent{
		ID:         s.faker.UUID(),
		Timestamp:  ts,
		Source:     fmt.Sprintf("source_%d", s.faker.Number(1, 10)),
		Attributes: attrs,
	}
}

func (s *Simulator) emit(ev models.RawEvent, fn Listener) {
	metrics.EventsReceived.Inc()
	if fn == nil {
		metrics.EventsDropped.Inc()
		s.logger.Warn("event dropped, no listener registered", slog.String("event_id", ev.ID))
		return
	}
	deliver(fn, ev, s.logger)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
