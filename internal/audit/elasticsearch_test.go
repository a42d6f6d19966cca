package audit

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

func newTestIndexer(t *testing.T, handler http.HandlerFunc) *Indexer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewIndexer(es, "", logger.NewTestLogger(t))
}

var attemptTime = time.Date(2026, 4, 5, 6, 7, 8, 0, time.UTC)

func testAlert() *models.Alert {
	return &models.Alert{ID: "a1", Title: "Lockdown", Severity: models.SeverityCritical, Status: models.AlertStatusSent}
}

func testAttempts() []models.DeliveryAttempt {
	return []models.DeliveryAttempt{
		{AlertID: "a1", RecipientID: "u1", Channel: models.ChannelEmail, Success: true, Provider: models.ProviderSES, MessageID: "m1", AttemptedAt: attemptTime, Duration: 120 * time.Millisecond},
		{AlertID: "a1", RecipientID: "u2", Channel: models.ChannelSMS, Success: true, Provider: models.ProviderSimulated, Reason: models.ReasonProviderNotConfigured, AttemptedAt: attemptTime},
	}
}

// ==========================
// Record
// ==========================

func TestIndexer_Record(t *testing.T) {
	var (
		path  string
		lines [][]byte
	)
	ix := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		sc := bufio.NewScanner(r.Body)
		for sc.Scan() {
			lines = append(lines, append([]byte(nil), sc.Bytes()...))
		}
		_, _ = io.WriteString(w, `{"took":3,"errors":false,"items":[{"index":{"status":201}},{"index":{"status":201}}]}`)
	})

	require.NoError(t, ix.Record(context.Background(), testAlert(), testAttempts()))

	assert.Equal(t, "/alert-deliveries/_bulk", path)
	require.Len(t, lines, 4)

	var action map[string]map[string]string
	require.NoError(t, json.Unmarshal(lines[0], &action))
	assert.Equal(t, DefaultIndex, action["index"]["_index"])

	var doc Record
	require.NoError(t, json.Unmarshal(lines[3], &doc))
	assert.Equal(t, "u2", doc.RecipientID)
	assert.Equal(t, "simulated", doc.Outcome)
	assert.Equal(t, models.ReasonProviderNotConfigured, doc.Reason)
	assert.Equal(t, "critical", doc.Severity)

	var first Record
	require.NoError(t, json.Unmarshal(lines[1], &first))
	assert.Equal(t, int64(120), first.DurationMs)
	assert.Equal(t, "sent", first.Outcome)
}

func TestIndexer_Record_NoAttempts(t *testing.T) {
	called := false
	ix := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	require.NoError(t, ix.Record(context.Background(), testAlert(), nil))
	assert.False(t, called)
}

func TestIndexer_Record_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{
			name:    "item rejected",
			status:  http.StatusOK,
			body:    `{"errors":true,"items":[{"index":{"status":201}},{"index":{"status":400,"error":{"type":"mapper_parsing_exception","reason":"bad field"}}}]}`,
			wantErr: "1 of 2 documents rejected (mapper_parsing_exception: bad field)",
		},
		{
			name:    "cluster error",
			status:  http.StatusServiceUnavailable,
			body:    `{"error":"unavailable"}`,
			wantErr: "503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			})

			err := ix.Record(context.Background(), testAlert(), testAttempts())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

// ==========================
// Deliveries
// ==========================

func TestIndexer_Deliveries(t *testing.T) {
	var query map[string]interface{}
	ix := newTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alert-deliveries/_search", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &query)

		var hits []map[string]interface{}
		for _, a := range testAttempts() {
			hits = append(hits, map[string]interface{}{"_source": recordFor(testAlert(), a)})
		}
		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(map[string]interface{}{"hits": map[string]interface{}{"hits": hits}})
		_, _ = w.Write(buf.Bytes())
	})

	records, err := ix.Deliveries(context.Background(), "a1", 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "m1", records[0].MessageID)
	assert.Equal(t, float64(500), query["size"])
	assert.Contains(t, query, "query")
}
