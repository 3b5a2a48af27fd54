package manychat

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"jornada/pkg/errutil"
	"jornada/pkg/middleware"

	"github.com/gin-gonic/gin"
)

const maxBodyBytes = 1 << 20

// samplePayload feeds the admin test endpoint when it receives no body.
var samplePayload = map[string]any{
	"subscriber": map[string]any{
		"id":    "mc_test_local",
		"phone": "+5511999999000",
		"name":  "UI Test",
	},
	"message": map[string]any{"text": "SIM"},
	"meta":    map[string]any{"dayNumber": 1},
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func readBody(c *gin.Context) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		return nil, errutil.BadRequest("unable to read request body", err)
	}
	return body, nil
}

// Webhook serves POST /integrations/manychat/webhook
func (h *Handler) Webhook(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	res, err := h.service.HandlePayload(c.Request.Context(), middleware.GetRequestID(c), body)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "processed": true, "result": res})
}

// Test serves POST /integrations/manychat/webhook/test
func (h *Handler) Test(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		body, _ = json.Marshal(samplePayload)
	}

	res, err := h.service.HandlePayload(c.Request.Context(), middleware.GetRequestID(c), body)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "test": true, "result": res})
}
