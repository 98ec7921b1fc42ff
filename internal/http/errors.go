package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"authgate/internal/auth"
	"authgate/internal/domain"
	"authgate/internal/service"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

// Ordered; the first match wins.
var errorMappings = []errorMapping{
	{domain.ErrUserAlreadyExists, http.StatusConflict, "User already exists"},
	{domain.ErrWalletAlreadyLinked, http.StatusConflict, "This wallet is already connected to another account"},
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid credentials"},
	{service.ErrEmailNotVerified, http.StatusUnauthorized, "Please verify your email first"},
	{service.ErrInvalidVerificationToken, http.StatusBadRequest, "Invalid verification token"},
	{auth.ErrExpiredToken, http.StatusUnauthorized, "Token has expired"},
	{auth.ErrInvalidToken, http.StatusUnauthorized, "Invalid or expired token"},
	{domain.ErrMagicLinkUsed, http.StatusUnauthorized, "Magic link has already been used"},
	{service.ErrInvalidSignature, http.StatusBadRequest, "Invalid wallet signature. Please sign the message with your wallet."},
	{auth.ErrInvalidChallenge, http.StatusBadRequest, "Wallet message is invalid or expired. Request a new message and sign it."},
	{service.ErrUnauthenticated, http.StatusUnauthorized, "Authentication required"},
	{service.ErrForbidden, http.StatusForbidden, "Admin access required"},
}

// fail writes the error response for err. Unclassified errors are logged and
// reported as a generic server error.
func (h *Handler) fail(c *gin.Context, op string, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"message": verr.Message})
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			c.JSON(m.status, gin.H{"message": m.message})
			return
		}
	}

	h.logger.WithError(err).WithField("op", op).Error("internal error")
	c.JSON(http.StatusInternalServerError, gin.H{"message": "Server error"})
}
