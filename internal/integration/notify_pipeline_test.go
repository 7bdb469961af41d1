//go:build integration

package integration_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/couchcryptid/sounding-etl/internal/adapter/filesystem"
	"github.com/couchcryptid/sounding-etl/internal/adapter/kafka"
	"github.com/couchcryptid/sounding-etl/internal/adapter/windborne"
	"github.com/couchcryptid/sounding-etl/internal/config"
	"github.com/couchcryptid/sounding-etl/internal/domain"
	"github.com/couchcryptid/sounding-etl/internal/netcdf"
	"github.com/couchcryptid/sounding-etl/internal/observability"
	"github.com/couchcryptid/sounding-etl/internal/pipeline"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "test-sounding-files"

var windowStart = time.Date(2024, time.April, 26, 0, 0, 0, 0, time.UTC)

// fileMessage holds a deserialized notification read from the topic.
type fileMessage struct {
	File    domain.OutputFile
	RunID   string
	Key     string
	Headers map[string]string
}

func readFileMessage(ctx context.Context, t *testing.T, consumer *kafkago.Reader) fileMessage {
	t.Helper()
	readCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	msg, err := consumer.ReadMessage(readCtx)
	require.NoError(t, err, "read from notification topic")

	headers := make(map[string]string, len(msg.Headers))
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	var value struct {
		RunID string `json:"run_id"`
		domain.OutputFile
	}
	require.NoError(t, json.Unmarshal(msg.Value, &value), "unmarshal notification")

	return fileMessage{File: value.OutputFile, RunID: value.RunID, Key: string(msg.Key), Headers: headers}
}

// dataAPI serves two pages of super observations for two flights.
func dataAPI(t *testing.T) *httptest.Server {
	t.Helper()
	obs := func(id, mission string, offset time.Duration, humidity float64) map[string]any {
		return map[string]any{
			"id":           id,
			"mission_id":   "m-" + mission,
			"mission_name": mission,
			"timestamp":    float64(windowStart.Add(offset).Unix()),
			"latitude":     37.4,
			"longitude":    -122.1,
			"altitude":     11000,
			"pressure":     230.0,
			"temperature":  -50.0,
			"humidity":     humidity,
			"speed_u":      3.0,
			"speed_v":      4.0,
		}
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		var page map[string]any
		if r.URL.Query().Get("since") == "" {
			page = map[string]any{
				"observations": []any{
					obs("a1", "W-1594", 0, 40),
					obs("b1", "W-1595", 10*time.Minute, 55),
					obs("a2", "W-1594", time.Hour, 120), // rejected humidity
				},
				"has_next_page": true,
				"next_page":     "/super_observations.json?since=2",
			}
		} else {
			page = map[string]any{
				"observations": []any{
					obs("a3", "W-1594", 4*time.Hour, 35),
					obs("b2", "W-1595", 20*time.Minute, 50),
				},
				"has_next_page": false,
			}
		}
		require.NoError(t, json.NewEncoder(w).Encode(page))
	}))
	t.Cleanup(srv.Close)
	return srv
}

// TestPipelineEndToEnd wires the Data API client, filesystem writer and Kafka
// notifier and checks that every written file is announced once.
func TestPipelineEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	broker := startKafka(ctx, t)
	createTopic(t, broker, testTopic)

	api := dataAPI(t)
	cfg := &config.Config{
		ClientID:     "client",
		APIKey:       "secret",
		BaseURL:      api.URL,
		Timeout:      5 * time.Second,
		MaxPages:     10,
		OutputDir:    t.TempDir(),
		KafkaBrokers: []string{broker},
		KafkaTopic:   testTopic,
	}

	metrics := observability.NewMetricsForTesting()
	writer, err := filesystem.NewWriter(cfg.OutputDir, discardLogger())
	require.NoError(t, err)
	notifier := kafka.NewWriter(cfg, discardLogger())
	t.Cleanup(func() { _ = notifier.Close() })

	p := pipeline.New(windborne.NewClient(cfg, discardLogger(), metrics), writer, discardLogger(), metrics,
		pipeline.WithNotifier(notifier), pipeline.WithWorkers(2))

	sum, err := p.Run(ctx, domain.Window{Start: windowStart, End: windowStart.Add(6 * time.Hour)})
	require.NoError(t, err)

	assert.Equal(t, 5, sum.Fetched)
	assert.Equal(t, 3, sum.Segments, "W-1594 splits at the 3h bound")
	assert.Equal(t, 3, sum.FilesWritten)
	assert.Equal(t, 1, sum.Skipped)

	consumer := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:     []string{broker},
		Topic:       testTopic,
		GroupID:     fmt.Sprintf("test-consumer-%d", time.Now().UnixNano()),
		StartOffset: kafkago.FirstOffset,
	})
	t.Cleanup(func() { _ = consumer.Close() })

	received := map[string]fileMessage{}
	for len(received) < sum.FilesWritten {
		fm := readFileMessage(ctx, t, consumer)
		received[fm.File.Path] = fm
	}

	for _, f := range sum.Files() {
		fm, ok := received[f.Path]
		require.True(t, ok, "no notification for %s", f.Path)

		assert.Equal(t, f.FlightID, fm.Key)
		assert.Equal(t, f.FlightID, fm.Headers["flight_id"])
		assert.Equal(t, sum.RunID, fm.RunID)
		_, err := time.Parse(time.RFC3339, fm.Headers["written_at"])
		assert.NoError(t, err, "written_at should be valid RFC3339")
		assert.Equal(t, f.Records, fm.File.Records)

		info, err := os.Stat(f.Path)
		require.NoError(t, err)
		assert.Equal(t, f.Bytes, info.Size())

		ds, err := netcdf.ReadFile(f.Path)
		require.NoError(t, err)
		flight, _ := ds.StringAttr("flight_id")
		assert.Equal(t, f.FlightID, flight)
	}
}
