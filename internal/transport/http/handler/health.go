package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"lawchat/internal/transport/http/response"
)

// DependencyCheck reports whether one configured dependency is reachable.
type DependencyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type HealthHandler struct {
	name      string
	env       string
	title     string
	models    []string
	pageSize  int
	startedAt time.Time
	checks    []DependencyCheck
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type HealthInfo struct {
	Name      string
	Env       string
	Title     string
	Models    []string
	PageSize  int
	StartedAt time.Time
}

func NewHealthHandler(info HealthInfo, checks ...DependencyCheck) *HealthHandler {
	return &HealthHandler{
		name:      info.Name,
		env:       info.Env,
		title:     info.Title,
		models:    info.Models,
		pageSize:  info.PageSize,
		startedAt: info.StartedAt,
		checks:    checks,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	allOK := true
	deps := gin.H{}
	for _, dc := range h.checks {
		status := dependencyStatus{OK: true}
		if err := dc.Check(ctx); err != nil {
			status = dependencyStatus{OK: false, Message: err.Error()}
			allOK = false
		}
		deps[dc.Name] = status
	}

	statusCode := http.StatusOK
	if !allOK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":          h.name,
		"env":          h.env,
		"uptime_sec":   int(time.Since(h.startedAt).Seconds()),
		"dependencies": deps,
	})
}

// Config tells a front-end what to render before any chat call.
func (h *HealthHandler) Config(c *gin.Context) {
	response.OK(c, gin.H{
		"title":    h.title,
		"models":   h.models,
		"pageSize": h.pageSize,
	})
}
