package operator

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler exposes the operator console's login and session HTTP surface.
type Handler struct {
	svc    *Service
	tokens *TokenIssuer
	logger *zap.Logger
}

// NewHandler creates a Handler.
func NewHandler(svc *Service, tokens *TokenIssuer, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, tokens: tokens, logger: logger}
}

// Register attaches the operator console routes to the given router group.
func (h *Handler) Register(rg *gin.RouterGroup) {
	op := rg.Group("/operator")
	op.POST("/login", h.Login)
	op.GET("/sso/:provider", h.BeginSSO)
	op.GET("/sso/:provider/callback", h.SSOCallback)
	op.GET("/me", RequireSession(h.tokens), h.Me)
	op.POST("/accounts", RequireAdmin(h.tokens), h.CreateAccount)
}

type createAccountRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

// CreateAccount handles POST /operator/accounts — an admin provisions a new
// operator account, which receives a welcome email.
func (h *Handler) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	acct, err := h.svc.Register(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": acct.ID, "email": acct.Email, "role": acct.Role})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /operator/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid email or password"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// BeginSSO handles GET /operator/sso/:provider — redirects to the provider's
// authorization page.
func (h *Handler) BeginSSO(c *gin.Context) {
	url, err := h.svc.BeginSSOLogin(SSOProvider(c.Param("provider")))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.Redirect(http.StatusFound, url)
}

// SSOCallback handles GET /operator/sso/:provider/callback.
func (h *Handler) SSOCallback(c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing state or code"})
		return
	}
	token, err := h.svc.CompleteSSOLogin(c.Request.Context(), state, code)
	if err != nil {
		h.logger.Warn("operator sso callback failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "sso login failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

// Me handles GET /operator/me — returns the authenticated operator's claims.
func (h *Handler) Me(c *gin.Context) {
	claims := ClaimsFromCtx(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "no operator session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": claims.AccountID, "email": claims.Email, "role": claims.Role})
}
