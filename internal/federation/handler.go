package federation

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/andrea-athirat/corda/internal/operator"
)

// Handler exposes the zone delegation API: sub-zones apply to join a zone's
// federation, and the zone's operators approve, suspend, and issue
// INTERMEDIATE_CA certificates to the ones they admit.
type Handler struct {
	svc    *Service
	tokens *operator.TokenIssuer
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc *Service, tokens *operator.TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// Register mounts the federation routes onto the given router group. Every
// route requires an admin operator session except the public application
// endpoint.
func (h *Handler) Register(rg *gin.RouterGroup) {
	fed := rg.Group("/federation")
	fed.POST("/register", h.Register_)

	admin := fed.Group("")
	admin.Use(operator.RequireAdmin(h.tokens))
	admin.GET("/zones", h.ListZones)
	admin.POST("/zones/:id/approve", h.ApproveZone)
	admin.POST("/zones/:id/suspend", h.SuspendZone)
	admin.POST("/zones/:id/issue-ca", h.IssueCA)
	admin.PATCH("/zones/:id/max-path-len", h.UpdateMaxPathLen)
}

// Register_ handles POST /federation/register — a sub-zone's application to
// join this zone's federation. Named with a trailing underscore because
// Register is already the route-mounting method.
func (h *Handler) Register_(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	zone, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, zone)
}

// ListZones handles GET /federation/zones.
func (h *Handler) ListZones(c *gin.Context) {
	status := ZoneStatus(c.Query("status"))
	zones, err := h.svc.List(c.Request.Context(), status, 50, 0)
	if err != nil {
		h.logger.Error("list delegated zones", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list zones"})
		return
	}
	if zones == nil {
		zones = []*DelegatedZone{}
	}
	c.JSON(http.StatusOK, gin.H{"zones": zones})
}

// ApproveZone handles POST /federation/zones/:id/approve.
func (h *Handler) ApproveZone(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone id"})
		return
	}
	zone, err := h.svc.Approve(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, zone)
}

// SuspendZone handles POST /federation/zones/:id/suspend.
func (h *Handler) SuspendZone(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone id"})
		return
	}
	zone, err := h.svc.Suspend(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, zone)
}

// IssueCA handles POST /federation/zones/:id/issue-ca.
func (h *Handler) IssueCA(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone id"})
		return
	}
	zone, err := h.svc.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "zone not found"})
		return
	}
	resp, err := h.svc.IssueIntermediateCA(c.Request.Context(), zone.SubjectName)
	if err != nil {
		h.logger.Error("issue intermediate CA", zap.String("subject_name", zone.SubjectName), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

type maxPathLenRequest struct {
	MaxPathLen int `json:"max_path_len"`
}

// UpdateMaxPathLen handles PATCH /federation/zones/:id/max-path-len.
func (h *Handler) UpdateMaxPathLen(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zone id"})
		return
	}
	var req maxPathLenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	if err := h.svc.UpdateMaxPathLen(c.Request.Context(), id, req.MaxPathLen); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
