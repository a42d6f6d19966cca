//go:build e2e

// test/e2e/alert_flow_test.go
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/alerts"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/api"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/config"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/database"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/common/logger"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/models"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/channels"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/notification/dispatch"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/realtime"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/storage/cache"
	"github.com/SC-SoftwareHS/EmergencyConnect-sub001/internal/storage/postgres"
)

// env is the in-process alert server backed by the real Postgres and Redis
// named in configs/config.yaml. Providers are always simulated.
type env struct {
	server      *httptest.Server
	store       *postgres.Store
	broadcaster *realtime.Broadcaster
	prefix      string
}

func setup(t *testing.T) *env {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err, "load config")
	log := logger.NewTestLogger(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	require.NoError(t, err)
	require.NoError(t, pg.Ping(ctx), "postgres must be reachable")
	t.Cleanup(func() { pg.Close() })

	rdb, err := database.NewRedis(cfg.Database.Redis)
	require.NoError(t, err)
	require.NoError(t, rdb.Ping(ctx), "redis must be reachable")
	t.Cleanup(func() { rdb.Close() })

	store := postgres.New(pg.DB, log)
	require.NoError(t, store.EnsureSchema(ctx))

	sim := channels.ProviderConfig{Live: false}
	dispatcher := dispatch.New(dispatch.Config{MaxConcurrency: 8}, log,
		channels.NewEmailAdapter(channels.EmailConfig{Provider: sim}, nil, log),
		channels.NewSMSAdapter(channels.SMSConfig{Provider: sim}, nil, log),
		channels.NewPushAdapter(channels.PushConfig{Provider: sim}, nil, log),
	)

	// A per-run prefix keeps parallel runs from seeing each other's events.
	prefix := fmt.Sprintf("e2e-%s:", uuid.NewString()[:8])
	broadcaster := realtime.NewBroadcaster(rdb.Client, prefix, log)

	service := alerts.NewService(alerts.Deps{
		Store:       store,
		Users:       cache.NewDirectory(store, rdb.Client, prefix+"recipients", time.Minute, log),
		Dispatcher:  dispatcher,
		Broadcaster: broadcaster,
	}, log)

	handlers := api.NewHandlers(service, log,
		api.WithEventSource(broadcaster),
		api.WithReadinessCheck("postgres", pg),
		api.WithReadinessCheck("redis", rdb),
	)
	srv := httptest.NewServer(api.NewServer(config.ServerConfig{Mode: "test"}, handlers, log).Handler())
	t.Cleanup(srv.Close)

	return &env{server: srv, store: store, broadcaster: broadcaster, prefix: prefix}
}

func (e *env) post(t *testing.T, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestAlertFlowE2E(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	suffix := uuid.NewString()[:8]
	role := "e2e-admin-" + suffix
	admin := models.Recipient{
		ID:       "e2e-admin-" + suffix,
		Role:     role,
		Phone:    "+15550199999",
		Channels: models.ChannelPreferences{SMS: true},
	}
	noSMS := models.Recipient{
		ID:       "e2e-quiet-" + suffix,
		Role:     role,
		Email:    "quiet@example.com",
		Channels: models.ChannelPreferences{Email: true},
	}
	require.NoError(t, e.store.UpsertUser(ctx, admin))
	require.NoError(t, e.store.UpsertUser(ctx, noSMS))

	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events, err := e.broadcaster.Subscribe(subCtx, models.UserTopic(admin.ID))
	require.NoError(t, err)

	// Create and send.
	resp, alert := e.post(t, "/api/v1/alerts", map[string]interface{}{
		"title":     "E2E evacuation",
		"message":   "Leave by the north stairs",
		"severity":  "critical",
		"channels":  []string{"sms"},
		"targeting": map[string]interface{}{"roles": []string{role}},
		"createdBy": admin.ID,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, alert)
	assert.Equal(t, "sent", alert["status"])
	stats := alert["deliveryStats"].(map[string]interface{})
	assert.Equal(t, float64(1), stats["total"])
	assert.Equal(t, float64(1), stats["sent"])

	alertID := alert["id"].(string)

	select {
	case msg := <-events:
		assert.Contains(t, string(msg.Payload), alertID)
	case <-time.After(5 * time.Second):
		t.Fatal("no newAlert event received")
	}

	// Acknowledge twice: one record.
	resp, first := e.post(t, "/api/v1/alerts/"+alertID+"/acknowledge", map[string]string{"userId": admin.ID})
	assert.Equal(t, http.StatusCreated, resp.StatusCode, first)
	resp, second := e.post(t, "/api/v1/alerts/"+alertID+"/acknowledge", map[string]string{"userId": admin.ID})
	assert.Equal(t, http.StatusOK, resp.StatusCode, second)
	assert.Equal(t, float64(1), second["totalAcknowledgments"])

	// A sent alert cannot be sent again.
	resp, body := e.post(t, "/api/v1/alerts/"+alertID+"/send", map[string]string{})
	assert.Equal(t, http.StatusConflict, resp.StatusCode, body)

	// Draft then cancel.
	resp, draft := e.post(t, "/api/v1/alerts", map[string]interface{}{
		"title":           "E2E drill",
		"message":         "Drill at noon",
		"severity":        "low",
		"channels":        []string{"email"},
		"targeting":       map[string]interface{}{"userIds": []string{noSMS.ID}},
		"createdBy":       admin.ID,
		"sendImmediately": false,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, draft)
	assert.Equal(t, "pending", draft["status"])

	resp, cancelled := e.post(t, "/api/v1/alerts/"+draft["id"].(string)+"/cancel", map[string]string{})
	assert.Equal(t, http.StatusOK, resp.StatusCode, cancelled)
	assert.Equal(t, "cancelled", cancelled["status"])
}

func TestReadinessE2E(t *testing.T) {
	e := setup(t)

	resp, err := http.Get(e.server.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
