// Package archive mirrors detected anomalies into an OpenSearch index so
// they survive process restarts and can feed external dashboards. Indexing
// is asynchronous and best-effort: failures are logged and counted, never
// surfaced to the pipeline.
package archive

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/driftwatch-systems/driftwatch/internal/metrics"
	"github.com/driftwatch-systems/driftwatch/internal/models"
)

// Config holds OpenSearch connection and index settings.
type Config struct {
	URL           string
	Username      string
	Password      string
	TLSSkipVerify bool
	IndexPrefix   string
	FlushInterval time.Duration
}

// DefaultConfig returns sensible defaults for a local OpenSearch.
func DefaultConfig() Config {
	return Config{
		URL:           "https://localhost:9200",
		Username:      "admin",
		Password:      "admin",
		TLSSkipVerify: true,
		IndexPrefix:   "driftwatch-anomalies",
		FlushInterval: 5 * time.Second,
	}
}

// Indexer streams anomalies into a dated index through a shared bulk
// indexer. One Indexer serves the whole process; Close flushes whatever is
// still queued.
type Indexer struct {
	bi     opensearchutil.BulkIndexer
	index  string
	logger *slog.Logger
}

// NewIndexer connects to OpenSearch and starts the bulk indexer. The target
// index carries the UTC date of startup, one index per day.
func NewIndexer(cfg Config, logger *slog.Logger) (*Indexer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: cfg.TLSSkipVerify,
			},
		},
	}

	client, err := opensearch.NewClient(opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: httpClient.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	index := indexName(cfg.IndexPrefix, time.Now())
	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client:        client,
		Index:         index,
		FlushInterval: cfg.FlushInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("create bulk indexer: %w", err)
	}

	logger.Info("anomaly archive ready", slog.String("index", index))
	return &Indexer{bi: bi, index: index, logger: logger}, nil
}

// Index queues one anomaly for asynchronous indexing. An error means the
// item never entered the queue; indexing outcomes arrive via callbacks and
// are logged and counted there.
func (ix *Indexer) Index(ctx context.Context, anomaly models.Anomaly) error {
	doc, err := json.Marshal(anomaly)
	if err != nil {
		return fmt.Errorf("marshal anomaly %s: %w", anomaly.ID, err)
	}

	return ix.bi.Add(ctx, opensearchutil.BulkIndexerItem{
		Action:     "index",
		DocumentID: anomaly.ID,
		Body:       bytes.NewReader(doc),
		OnFailure: func(_ context.Context, _ opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
			metrics.ArchiveFailures.Inc()
			if err != nil {
				ix.logger.Warn("anomaly indexing failed",
					slog.String("anomaly_id", anomaly.ID),
					slog.String("error", err.Error()),
				)
				return
			}
			ix.logger.Warn("anomaly indexing rejected",
				slog.String("anomaly_id", anomaly.ID),
				slog.String("type", res.Error.Type),
				slog.String("reason", res.Error.Reason),
			)
		},
	})
}

// Close flushes everything still queued and stops the indexer.
func (ix *Indexer) Close(ctx context.Context) error {
	if err := ix.bi.Close(ctx); err != nil {
		return fmt.Errorf("close bulk indexer: %w", err)
	}
	return nil
}

// Stats reports bulk indexer counters, useful for shutdown logging.
func (ix *Indexer) Stats() opensearchutil.BulkIndexerStats {
	return ix.bi.Stats()
}

// indexName appends the UTC date to the prefix, one index per day.
func indexName(prefix string, now time.Time) string {
	return fmt.Sprintf("%s-%s", prefix, now.UTC().Format("2006.01.02"))
}
