package ranking

import (
	"net/http"

	"jornada/pkg/db/pagination"
	"jornada/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Top serves GET /api/projects/:projectId/ranking/top?participantId=
func (h *Handler) Top(c *gin.Context) {
	res, err := h.service.Top(c.Request.Context(), c.Param("projectId"), c.Query("participantId"))
	if err != nil {
		_ = c.Error(errutil.Internal("unable to load ranking", err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// List serves GET /api/projects/:projectId/ranking?municipalityId=&page=&limit=
func (h *Handler) List(c *gin.Context) {
	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}

	entries, info, err := h.service.List(c.Request.Context(), c.Param("projectId"), c.Query("municipalityId"), page)
	if err != nil {
		_ = c.Error(errutil.Internal("unable to load ranking", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": entries,
		"page": info,
	})
}

// Reconcile serves POST /api/projects/:projectId/ranking/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	projectID := c.Param("projectId")

	res, err := h.service.EnqueueReconcile(c.Request.Context(), projectID)
	if err != nil {
		zap.L().Error("failed to reconcile ranking", zap.String("project_id", projectID), zap.Error(err))
		_ = c.Error(errutil.Internal("unable to reconcile ranking", err))
		return
	}

	if res == nil {
		c.JSON(http.StatusAccepted, gin.H{"status": "queued", "projectId": projectID})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "done", "result": res})
}
