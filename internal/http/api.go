package http

import (
	"errors"
	"io"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"authgate/internal/domain"
	"authgate/internal/service"
)

// Handler wires HTTP routes to the auth service.
type Handler struct {
	auth           service.AuthService
	logger         logrus.FieldLogger
	allowedOrigins []string
}

func NewHandler(auth service.AuthService, logger logrus.FieldLogger, allowedOrigins []string) *Handler {
	return &Handler{
		auth:           auth,
		logger:         logger,
		allowedOrigins: allowedOrigins,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(h.requestLogger(), corsMiddleware(h.allowedOrigins))

	api := router.Group("/api")
	{
		api.GET("/health", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
		})
	}

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/signup", h.signup)
		authRoutes.POST("/login", h.login)
		authRoutes.GET("/verify/:token", h.verifyEmail)
		authRoutes.POST("/magic-link", h.requestMagicLink)
		authRoutes.GET("/magic-login/:token", h.verifyMagicLink)
		authRoutes.GET("/wallet-login-message/:walletAddress", h.walletLoginMessage)
		authRoutes.POST("/wallet-login", h.walletLogin)

		protected := authRoutes.Group("", h.authenticate())
		protected.GET("/wallet-message/:walletAddress", h.walletMessage)
		protected.POST("/wallet-connect", h.connectWallet)
		protected.GET("/me", h.me)
		protected.GET("/admin/dashboard", h.requireRole(domain.RoleAdmin), h.adminDashboard)
	}
}

func corsMiddleware(allowedOrigins []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case len(allowedOrigins) == 0:
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "" && slices.Contains(allowedOrigins, origin):
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type magicLinkRequest struct {
	Email string `json:"email"`
}

type walletProofRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
}

// UserResponse is the public user shape of login and /me responses.
type UserResponse struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Role  domain.Role `json:"role"`
}

// WalletUserResponse adds the linked wallet to UserResponse.
type WalletUserResponse struct {
	ID            string      `json:"id"`
	Email         string      `json:"email"`
	WalletAddress string      `json:"walletAddress"`
	Role          domain.Role `json:"role"`
}

type SessionResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type WalletChallengeResponse struct {
	Message       string `json:"message"`
	WalletAddress string `json:"walletAddress"`
	Timestamp     int64  `json:"timestamp"`
	Instructions  string `json:"instructions"`
}

func (h *Handler) signup(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.Signup(c.Request.Context(), req.Email, req.Password); err != nil {
		h.fail(c, "signup", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signup successful! Check your email to verify your account."})
}

func (h *Handler) verifyEmail(c *gin.Context) {
	if err := h.auth.VerifyEmail(c.Request.Context(), c.Param("token")); err != nil {
		h.fail(c, "verify email", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully! You can now log in."})
}

func (h *Handler) login(c *gin.Context) {
	var req credentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, "login", err)
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(session))
}

func (h *Handler) requestMagicLink(c *gin.Context) {
	var req magicLinkRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.auth.RequestMagicLink(c.Request.Context(), req.Email); err != nil {
		h.fail(c, "request magic link", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Magic link sent to your email"})
}

func (h *Handler) verifyMagicLink(c *gin.Context) {
	session, err := h.auth.VerifyMagicLink(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.fail(c, "verify magic link", err)
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(session))
}

func (h *Handler) walletMessage(c *gin.Context) {
	challenge, err := h.auth.WalletMessage(c.Request.Context(), currentUser(c), c.Param("walletAddress"))
	if err != nil {
		h.fail(c, "wallet message", err)
		return
	}
	c.JSON(http.StatusOK, challengeToResponse(challenge))
}

func (h *Handler) connectWallet(c *gin.Context) {
	var req walletProofRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.auth.ConnectWallet(c.Request.Context(), currentUser(c), req.WalletAddress, req.Signature, req.Message)
	if err != nil {
		h.fail(c, "wallet connect", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Wallet connected successfully",
		"user": WalletUserResponse{
			ID:            user.ID,
			Email:         user.Email,
			WalletAddress: user.WalletAddress,
			Role:          user.Role,
		},
	})
}

func (h *Handler) walletLoginMessage(c *gin.Context) {
	challenge, err := h.auth.WalletLoginMessage(c.Request.Context(), c.Param("walletAddress"))
	if err != nil {
		h.fail(c, "wallet login message", err)
		return
	}
	c.JSON(http.StatusOK, challengeToResponse(challenge))
}

func (h *Handler) walletLogin(c *gin.Context) {
	var req walletProofRequest
	if !bindJSON(c, &req) {
		return
	}
	session, err := h.auth.WalletLogin(c.Request.Context(), req.WalletAddress, req.Signature, req.Message)
	if err != nil {
		h.fail(c, "wallet login", err)
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(session))
}

func (h *Handler) me(c *gin.Context) {
	user := currentUser(c)
	c.JSON(http.StatusOK, gin.H{"user": UserResponse{ID: user.ID, Email: user.Email, Role: user.Role}})
}

func (h *Handler) adminDashboard(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Admin dashboard access granted"})
}

// bindJSON decodes the request body into dst. An empty body leaves dst zeroed
// so the service reports which fields are missing.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return false
	}
	return true
}

func sessionToResponse(s *service.Session) SessionResponse {
	return SessionResponse{
		Token: s.Token,
		User: UserResponse{
			ID:    s.User.ID,
			Email: s.User.Email,
			Role:  s.User.Role,
		},
	}
}

func challengeToResponse(ch *service.WalletChallenge) WalletChallengeResponse {
	return WalletChallengeResponse{
		Message:       ch.Message,
		WalletAddress: ch.WalletAddress,
		Timestamp:     ch.Timestamp,
		Instructions:  ch.Instructions,
	}
}
