package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"lawchat/internal/app"
	"lawchat/internal/model"
	"lawchat/internal/observability"
	"lawchat/internal/transport/http/middleware"
	"lawchat/internal/transport/http/response"
)

type AdminHandler struct{}

type PageView struct {
	app.Pager
	Label   string `json:"label"`
	HasPrev bool   `json:"hasPrev"`
	HasNext bool   `json:"hasNext"`
}

type SessionListView struct {
	Rows  []model.SessionRow `json:"rows"`
	Pager PageView           `json:"pager"`
}

type BulkDeleteRequest struct {
	SIDs []string `json:"sids" binding:"required"`
}

type CompareRequest struct {
	Q      string   `json:"q"`
	Models []string `json:"models"`
}

func NewAdminHandler() *AdminHandler {
	return &AdminHandler{}
}

func (h *AdminHandler) ListSessions(c *gin.Context) {
	svc := middleware.AdminService(c)

	skip := 0
	if raw := c.Query("skip"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			badRequest(c, "skip must be a number")
			return
		}
		skip = parsed
	}

	list, err := svc.ListSessions(c.Request.Context(), app.SessionFilter{
		Q:    c.Query("q"),
		From: c.Query("from"),
		To:   c.Query("to"),
	}, skip)
	if err != nil {
		writeError(c, err, "list sessions failed")
		return
	}
	response.OK(c, SessionListView{
		Rows: list.Rows,
		Pager: PageView{
			Pager:   list.Pager,
			Label:   list.Pager.Label(),
			HasPrev: list.Pager.HasPrev(),
			HasNext: list.Pager.HasNext(),
		},
	})
}

func (h *AdminHandler) GetSession(c *gin.Context) {
	detail, err := middleware.AdminService(c).Session(c.Request.Context(), c.Param("sid"))
	if err != nil {
		writeError(c, err, "load session failed")
		return
	}
	response.OK(c, detail)
}

func (h *AdminHandler) DeleteSession(c *gin.Context) {
	if err := middleware.AdminService(c).DeleteSession(c.Request.Context(), c.Param("sid")); err != nil {
		writeError(c, err, "delete session failed")
		return
	}
	response.OK(c, nil)
}

func (h *AdminHandler) DeleteSessions(c *gin.Context) {
	var req BulkDeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "sids are required")
		return
	}
	results, err := middleware.AdminService(c).DeleteSessions(c.Request.Context(), req.SIDs)
	if err != nil {
		writeError(c, err, "delete sessions failed")
		return
	}
	response.OK(c, gin.H{"results": results})
}

// Export streams the NDJSON dump as a sessions.ndjson download. Once bytes
// have been written a failure can only be logged.
func (h *AdminHandler) Export(c *gin.Context) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Header("Content-Disposition", `attachment; filename="`+app.ExportFileName+`"`)

	w := &lazyWriter{c: c}
	n, err := middleware.AdminService(c).Export(c.Request.Context(), w)
	if err != nil {
		if !w.started {
			c.Writer.Header().Del("Content-Disposition")
			writeError(c, err, "export sessions failed")
			return
		}
		observability.LoggerFromContext(c.Request.Context()).Warn("export stream interrupted", "bytes", n, "error", err)
		return
	}
	if n == 0 {
		c.Status(http.StatusOK)
	}
}

type lazyWriter struct {
	c       *gin.Context
	started bool
}

func (w *lazyWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.started = true
		w.c.Status(http.StatusOK)
	}
	return w.c.Writer.Write(p)
}

func (h *AdminHandler) ListOverrides(c *gin.Context) {
	rows, err := middleware.AdminService(c).Overrides(c.Request.Context())
	if err != nil {
		writeError(c, err, "list overrides failed")
		return
	}
	response.OK(c, gin.H{"rows": rows})
}

func (h *AdminHandler) CreateOverride(c *gin.Context) {
	var req model.Override
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	rows, err := middleware.AdminService(c).CreateOverride(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "create override failed")
		return
	}
	response.OK(c, gin.H{"rows": rows})
}

func (h *AdminHandler) UpdateOverride(c *gin.Context) {
	var req model.OverridePatch
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	rows, err := middleware.AdminService(c).UpdateOverride(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		writeError(c, err, "update override failed")
		return
	}
	response.OK(c, gin.H{"rows": rows})
}

func (h *AdminHandler) DeleteOverride(c *gin.Context) {
	rows, err := middleware.AdminService(c).DeleteOverride(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err, "delete override failed")
		return
	}
	response.OK(c, gin.H{"rows": rows})
}

func (h *AdminHandler) CompareModels(c *gin.Context) {
	var req CompareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	results, err := middleware.AdminService(c).CompareModels(c.Request.Context(), req.Q, req.Models)
	if err != nil {
		writeError(c, err, "compare models failed")
		return
	}
	response.OK(c, gin.H{"results": results})
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	users, err := middleware.AdminService(c).Users(c.Request.Context())
	if err != nil {
		writeError(c, err, "list users failed")
		return
	}
	response.OK(c, users)
}

func (h *AdminHandler) CreateUser(c *gin.Context) {
	var req model.UserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if err := middleware.AdminService(c).CreateUser(c.Request.Context(), req); err != nil {
		writeError(c, err, "create user failed")
		return
	}
	response.OK(c, nil)
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	var req model.UserInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	if err := middleware.AdminService(c).UpdateUser(c.Request.Context(), c.Param("username"), req); err != nil {
		writeError(c, err, "update user failed")
		return
	}
	response.OK(c, nil)
}

func (h *AdminHandler) DeleteUser(c *gin.Context) {
	if err := middleware.AdminService(c).DeleteUser(c.Request.Context(), c.Param("username")); err != nil {
		writeError(c, err, "delete user failed")
		return
	}
	response.OK(c, nil)
}
