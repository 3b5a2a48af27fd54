package manychat

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"jornada/pkg/config"
	"jornada/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T, secret string) (*gin.Engine, *fixture) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := newFixture(t)
	f.project(t, "p1", now.Add(-time.Hour), nil, 1)

	cfg := &config.Config{}
	cfg.Manychat.WebhookSecret = secret
	cfg.Admin.ApiKey = "admin"

	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Error())
	registerRoutes(r, cfg, NewHandler(f.svc))
	return r, f
}

func post(r *gin.Engine, url string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestWebhookSecretUnset(t *testing.T) {
	body := []byte(`{"subscriber":{"id":"mc_1","name":"Ana"},"projectId":"p1","dayNumber":1}`)

	r, _ := newRouter(t, "")
	w := post(r, "/integrations/manychat/webhook", body, map[string]string{"x-webhook-secret": "anything"})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), "Webhook secret not configured on server.")
}

func TestWebhookSecretMismatch(t *testing.T) {
	body := []byte(`{"subscriber":{"id":"mc_1","name":"Ana"},"projectId":"p1","dayNumber":1}`)

	r, f := newRouter(t, "s3cret")
	w := post(r, "/integrations/manychat/webhook", body, map[string]string{"x-webhook-secret": "wrong"})
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Contains(t, w.Body.String(), "Invalid webhook secret.")

	var audits int64
	require.NoError(t, f.db.Model(&InboundEvent{}).Count(&audits).Error)
	require.Zero(t, audits)
}

func TestWebhookProcessesEvent(t *testing.T) {
	r, _ := newRouter(t, "s3cret")
	body := []byte(`{"subscriber":{"id":"mc_1","name":"Ana"},"projectId":"p1","dayNumber":1}`)

	w := post(r, "/integrations/manychat/webhook?secret=s3cret", body, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var res struct {
		Status    string `json:"status"`
		Processed bool   `json:"processed"`
		Result    struct {
			Status        string `json:"status"`
			PointsAwarded int    `json:"pointsAwarded"`
			ActionLog     struct {
				DayNumber int    `json:"dayNumber"`
				Status    string `json:"status"`
			} `json:"actionLog"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, "ok", res.Status)
	require.True(t, res.Processed)
	require.Equal(t, "created", res.Result.Status)
	require.Equal(t, 5, res.Result.PointsAwarded)
	require.Equal(t, 1, res.Result.ActionLog.DayNumber)
	require.Equal(t, "CONCLUIDO", res.Result.ActionLog.Status)

	w = post(r, "/integrations/manychat/webhook", body, map[string]string{"x-webhook-secret": "s3cret"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":"no_change"`)
}

func TestWebhookRejectionIsClientError(t *testing.T) {
	r, _ := newRouter(t, "s3cret")

	w := post(r, "/integrations/manychat/webhook", []byte(`{"message":{"text":"oi"}}`), map[string]string{"x-webhook-secret": "s3cret"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var res struct {
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, "User not identified in payload", res.Message)
}

func TestWebhookTestEndpoint(t *testing.T) {
	r, f := newRouter(t, "s3cret")

	w := post(r, "/integrations/manychat/webhook/test", nil, nil)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = post(r, "/integrations/manychat/webhook/test", nil, map[string]string{"x-admin-key": "admin"})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"test":true`)
	require.Contains(t, w.Body.String(), `"status":"created"`)

	var audit InboundEvent
	require.NoError(t, f.db.First(&audit).Error)
	require.Equal(t, "mc_test_local", audit.SubscriberID)
	require.NotEmpty(t, audit.RequestID)
}
