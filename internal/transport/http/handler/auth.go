package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"lawchat/internal/transport/http/middleware"
	"lawchat/internal/transport/http/response"
)

type AuthHandler struct{}

type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type WhoAmI struct {
	Username  string     `json:"username,omitempty"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

func NewAuthHandler() *AuthHandler {
	return &AuthHandler{}
}

func (h *AuthHandler) Login(c *gin.Context) {
	ws := middleware.Workspace(c)

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "username and password are required")
		return
	}

	login, err := ws.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		writeError(c, err, "login failed")
		return
	}
	response.OK(c, whoAmI(login.Username, login.Role, login.ExpiresAt))
}

func (h *AuthHandler) Logout(c *gin.Context) {
	ws := middleware.Workspace(c)
	if err := ws.Auth.Logout(c.Request.Context()); err != nil {
		writeError(c, err, "logout failed")
		return
	}
	response.OK(c, nil)
}

func (h *AuthHandler) Me(c *gin.Context) {
	ws := middleware.Workspace(c)
	login, err := ws.Auth.Current(c.Request.Context())
	if err != nil {
		writeError(c, err, "load login failed")
		return
	}
	response.OK(c, whoAmI(login.Username, login.Role, login.ExpiresAt))
}

func whoAmI(username, role string, expiresAt time.Time) WhoAmI {
	out := WhoAmI{Username: username, Role: role}
	if !expiresAt.IsZero() {
		out.ExpiresAt = &expiresAt
	}
	return out
}

type SettingsHandler struct{}

type ModelRequest struct {
	Model string `json:"model" binding:"required"`
}

type CompareSelectionRequest struct {
	Models []string `json:"models"`
}

type ModelSettings struct {
	Models   []string `json:"models"`
	Selected string   `json:"selected"`
	Compare  []string `json:"compare"`
}

func NewSettingsHandler() *SettingsHandler {
	return &SettingsHandler{}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	ws := middleware.Workspace(c)
	ctx := c.Request.Context()

	selected, err := ws.Settings.Current(ctx)
	if err != nil {
		writeError(c, err, "load model selection failed")
		return
	}
	compare, err := ws.Settings.CompareSelection(ctx)
	if err != nil {
		writeError(c, err, "load compare selection failed")
		return
	}
	if compare == nil {
		compare = []string{}
	}
	response.OK(c, ModelSettings{
		Models:   ws.Settings.Models(),
		Selected: selected,
		Compare:  compare,
	})
}

func (h *SettingsHandler) SelectModel(c *gin.Context) {
	ws := middleware.Workspace(c)

	var req ModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "model is required")
		return
	}
	if err := ws.Settings.Select(c.Request.Context(), req.Model); err != nil {
		writeError(c, err, "save model selection failed")
		return
	}
	h.Get(c)
}

func (h *SettingsHandler) SelectCompareModels(c *gin.Context) {
	ws := middleware.Workspace(c)

	var req CompareSelectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if err := ws.Settings.SetCompareSelection(c.Request.Context(), req.Models); err != nil {
		writeError(c, err, "save compare selection failed")
		return
	}
	h.Get(c)
}
