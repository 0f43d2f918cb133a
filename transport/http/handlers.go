package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/layer-3/rola/core"
	"github.com/layer-3/rola/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService) *AuthHandlers {
	return &AuthHandlers{
		authService: authService,
	}
}

// Root returns the welcome message
func (h *AuthHandlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Welcome to the ROLA authentication service"})
}

// Health reports liveness
func (h *AuthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Challenge issues a challenge for the wallet_address query parameter
func (h *AuthHandlers) Challenge(c *gin.Context) {
	walletAddress := strings.TrimSpace(c.Query("wallet_address"))
	if walletAddress == "" {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "wallet_address is required"})
		return
	}

	challenge, err := h.authService.RequestChallenge(c.Request.Context(), walletAddress)
	if err != nil {
		_ = c.Error(err)
		if errors.Is(err, core.ErrAddressFormat) {
			c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid wallet address"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge": challenge})
}

type authenticateRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	Signature     string `json:"signature" binding:"required"`
	Challenge     string `json:"challenge" binding:"required"`
	PublicKey     string `json:"public_key"`
}

// Authenticate verifies a signed challenge
func (h *AuthHandlers) Authenticate(c *gin.Context) {
	var req authenticateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid request"})
		return
	}

	confirmation, err := h.authService.Authenticate(c.Request.Context(), core.AuthenticateRequest{
		WalletAddress: strings.TrimSpace(req.WalletAddress),
		Challenge:     req.Challenge,
		Signature:     req.Signature,
		PublicKey:     req.PublicKey,
	})
	if err != nil {
		_ = c.Error(err)
		status, detail := authErrorResponse(err)
		c.JSON(status, gin.H{"detail": detail})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"message":        "Authenticated",
		"wallet_address": confirmation.WalletAddress,
	})
}

// authErrorResponse maps an Authenticate failure to a status code and detail
func authErrorResponse(err error) (int, string) {
	switch {
	case errors.Is(err, core.ErrChallengeInvalid):
		return http.StatusUnauthorized, "Invalid or expired challenge"
	case errors.Is(err, core.ErrSignatureInvalid):
		return http.StatusUnauthorized, "Invalid signature"
	case errors.Is(err, core.ErrAddressFormat), errors.Is(err, core.ErrSignatureFormat):
		cause := strings.TrimPrefix(err.Error(), core.ErrSignatureRejected.Error()+": ")
		return http.StatusBadRequest, "Signature format error: " + cause
	case errors.Is(err, core.ErrSignatureRejected):
		return http.StatusUnauthorized, "Invalid signature"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

type personaResponse struct {
	WalletAddress string    `json:"wallet_address"`
	Name          *string   `json:"name"`
	CreatedAt     time.Time `json:"created_at"`
}

// Personas lists every known persona
func (h *AuthHandlers) Personas(c *gin.Context) {
	personas, err := h.authService.ListPersonas(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	out := make([]personaResponse, 0, len(personas))
	for _, p := range personas {
		resp := personaResponse{WalletAddress: p.WalletAddress, CreatedAt: p.CreatedAt}
		if p.Name != "" {
			name := p.Name
			resp.Name = &name
		}
		out = append(out, resp)
	}

	c.JSON(http.StatusOK, gin.H{"personas": out})
}

type transactionResponse struct {
	TxID          string    `json:"tx_id"`
	WalletAddress string    `json:"wallet_address"`
	Action        string    `json:"action"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// Transactions lists auth events, newest first, optionally for one wallet
func (h *AuthHandlers) Transactions(c *gin.Context) {
	events, err := h.authService.ListEvents(c.Request.Context(), strings.TrimSpace(c.Query("wallet_address")))
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "Internal server error"})
		return
	}

	out := make([]transactionResponse, 0, len(events))
	for _, e := range events {
		out = append(out, transactionResponse{
			TxID:          e.ID,
			WalletAddress: e.WalletAddress,
			Action:        e.Action,
			Status:        string(e.Status),
			Timestamp:     e.Timestamp,
		})
	}

	c.JSON(http.StatusOK, gin.H{"transactions": out})
}
