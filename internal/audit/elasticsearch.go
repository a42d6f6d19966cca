// Package audit indexes every delivery attempt in Elasticsearch so operators
// can tell live provider confirmations from simulated sends.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/alerts"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
)

const DefaultIndex = "alert-deliveries"

// IndexMapping keeps identifiers as keywords so Deliveries can filter on them.
const IndexMapping = `{
  "mappings": {
    "properties": {
      "alertId":     {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
      "alertTitle":  {"type": "text"},
      "severity":    {"type": "keyword"},
      "alertStatus": {"type": "keyword"},
      "recipientId": {"type": "keyword"},
      "channel":     {"type": "keyword"},
      "success":     {"type": "boolean"},
      "provider":    {"type": "keyword"},
      "outcome":     {"type": "keyword"},
      "reason":      {"type": "keyword"},
      "error":       {"type": "text"},
      "messageId":   {"type": "keyword"},
      "attemptedAt": {"type": "date"},
      "durationMs":  {"type": "long"}
    }
  }
}`

var _ alerts.Auditor = (*Indexer)(nil)

// Record is the indexed form of one delivery attempt.
type Record struct {
	AlertID     string    `json:"alertId"`
	AlertTitle  string    `json:"alertTitle"`
	Severity    string    `json:"severity"`
	AlertStatus string    `json:"alertStatus"`
	RecipientID string    `json:"recipientId"`
	Channel     string    `json:"channel"`
	Success     bool      `json:"success"`
	Provider    string    `json:"provider"`
	Outcome     string    `json:"outcome"`
	Reason      string    `json:"reason,omitempty"`
	Error       string    `json:"error,omitempty"`
	MessageID   string    `json:"messageId,omitempty"`
	AttemptedAt time.Time `json:"attemptedAt"`
	DurationMs  int64     `json:"durationMs"`
}

type Indexer struct {
	es     *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewIndexer(es *elasticsearch.Client, index string, log logger.Logger) *Indexer {
	if index == "" {
		index = DefaultIndex
	}
	return &Indexer{
		es:     es,
		index:  index,
		logger: log.WithFields(map[string]interface{}{"component": "audit", "index": index}),
	}
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error,omitempty"`
	} `json:"items"`
}

// Record writes one document per attempt with a single bulk request.
func (ix *Indexer) Record(ctx context.Context, alert *models.Alert, attempts []models.DeliveryAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range attempts {
		if err := enc.Encode(map[string]interface{}{"index": map[string]string{"_index": ix.index}}); err != nil {
			return fmt.Errorf("encode bulk action: %w", err)
		}
		if err := enc.Encode(recordFor(alert, a)); err != nil {
			return fmt.Errorf("encode bulk document: %w", err)
		}
	}

	res, err := ix.es.Bulk(bytes.NewReader(buf.Bytes()),
		ix.es.Bulk.WithContext(ctx),
		ix.es.Bulk.WithIndex(ix.index),
	)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("bulk index: %s: %s", res.Status(), string(body))
	}

	var br bulkResponse
	if err := json.NewDecoder(res.Body).Decode(&br); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if br.Errors {
		failed := 0
		var first string
		for _, item := range br.Items {
			for _, op := range item {
				if op.Error != nil {
					failed++
					if first == "" {
						first = op.Error.Type + ": " + op.Error.Reason
					}
				}
			}
		}
		return fmt.Errorf("bulk index: %d of %d documents rejected (%s)", failed, len(attempts), first)
	}

	ix.logger.Debug("delivery attempts indexed", map[string]interface{}{
		"alertId": alert.ID,
		"count":   len(attempts),
	})
	return nil
}

// Deliveries returns the indexed attempts of an alert, oldest first.
func (ix *Indexer) Deliveries(ctx context.Context, alertID string, size int) ([]Record, error) {
	if size <= 0 {
		size = 500
	}
	query := map[string]interface{}{
		"size":  size,
		"query": map[string]interface{}{"term": map[string]interface{}{"alertId.keyword": alertID}},
		"sort":  []interface{}{map[string]interface{}{"attemptedAt": map[string]string{"order": "asc"}}},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	res, err := ix.es.Search(
		ix.es.Search.WithContext(ctx),
		ix.es.Search.WithIndex(ix.index),
		ix.es.Search.WithBody(bytes.NewReader(body)),
		ix.es.Search.WithIgnoreUnavailable(true),
	)
	if err != nil {
		return nil, fmt.Errorf("search deliveries: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search deliveries: %s", res.Status())
	}

	var sr struct {
		Hits struct {
			Hits []struct {
				Source Record `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	out := make([]Record, 0, len(sr.Hits.Hits))
	for _, h := range sr.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

func recordFor(alert *models.Alert, a models.DeliveryAttempt) Record {
	return Record{
		AlertID:     alert.ID,
		AlertTitle:  alert.Title,
		Severity:    string(alert.Severity),
		AlertStatus: string(alert.Status),
		RecipientID: a.RecipientID,
		Channel:     string(a.Channel),
		Success:     a.Success,
		Provider:    string(a.Provider),
		Outcome:     a.Outcome(),
		Reason:      a.Reason,
		Error:       a.Error,
		MessageID:   a.MessageID,
		AttemptedAt: a.AttemptedAt,
		DurationMs:  a.Duration.Milliseconds(),
	}
}
