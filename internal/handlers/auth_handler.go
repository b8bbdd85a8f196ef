package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"visionmatch/internal/models"
	"visionmatch/internal/responses"
	"visionmatch/internal/utils"
)

const RefreshTokenCookieName = "refresh_token"

type AuthHandler struct {
	authService  AuthService
	secureCookie bool
}

func NewAuthHandler(authService AuthService, secureCookie bool) *AuthHandler {
	return &AuthHandler{authService: authService, secureCookie: secureCookie}
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, pair *utils.TokenPair) {
	c.SetCookie(RefreshTokenCookieName, pair.RefreshToken, int(pair.RefreshTTL.Seconds()), "/", "", h.secureCookie, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	c.SetCookie(RefreshTokenCookieName, "", -1, "/", "", h.secureCookie, true)
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email    string      `json:"email"    binding:"required,email"`
		Password string      `json:"password" binding:"required,min=6"`
		Name     string      `json:"name"`
		Role     models.Role `json:"role"     binding:"omitempty,oneof=client creator"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Please provide your email and password correctly")
		return
	}

	user := &models.User{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	}
	pair, err := h.authService.Register(c.Request.Context(), user)
	if err != nil {
		fail(c, err, "Could not register user")
		return
	}

	h.setRefreshCookie(c, pair)
	responses.Success(c, http.StatusCreated, gin.H{
		"access_token": pair.AccessToken,
		"user":         user,
	}, "New user registered successfully!")
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email"    binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		responses.Fail(c, http.StatusBadRequest, err, "Invalid Format")
		return
	}

	user, pair, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		fail(c, err, "Failed to login")
		return
	}

	h.setRefreshCookie(c, pair)
	responses.Success(c, http.StatusOK, gin.H{
		"access_token": pair.AccessToken,
		"user":         user,
	}, "User Login Successfully!")
}

// Refresh accepts the refresh token from the HttpOnly cookie, or from the
// body for non-browser clients.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refreshToken, err := c.Cookie(RefreshTokenCookieName)
	if err != nil || refreshToken == "" {
		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = c.ShouldBindJSON(&body)
		refreshToken = body.RefreshToken
	}
	if refreshToken == "" {
		responses.Fail(c, http.StatusBadRequest, nil, "Missing refresh token")
		return
	}

	pair, err := h.authService.Refresh(c.Request.Context(), refreshToken)
	if err != nil {
		h.clearRefreshCookie(c)
		fail(c, err, "Invalid or expired refresh token")
		return
	}

	h.setRefreshCookie(c, pair)
	responses.Success(c, http.StatusOK, gin.H{"access_token": pair.AccessToken}, "Access token refreshed successfully")
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), c.GetString("jti")); err != nil {
		fail(c, err, "Could not revoke token")
		return
	}
	h.clearRefreshCookie(c)
	responses.Success(c, http.StatusOK, nil, "Logged out successfully")
}

// Me handles GET /api/v1/users/me
func (h *AuthHandler) Me(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	user, err := h.authService.Me(c.Request.Context(), caller.UserID)
	if err != nil {
		fail(c, err, "User not found")
		return
	}
	responses.Success(c, http.StatusOK, user, "User retrieved successfully")
}
