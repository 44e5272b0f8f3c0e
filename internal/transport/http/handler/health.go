package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	name      string
	env       string
	startedAt time.Time
	checks    map[string]func(context.Context) error
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// NewHealthHandler reports one status per configured dependency. An app with
// no external dependencies is always healthy.
func NewHealthHandler(name, env string, startedAt time.Time, checks map[string]func(context.Context) error) *HealthHandler {
	return &HealthHandler{
		name:      name,
		env:       env,
		startedAt: startedAt,
		checks:    checks,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	allOK := true
	deps := make(map[string]dependencyStatus, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			deps[name] = dependencyStatus{OK: false, Message: err.Error()}
			allOK = false
			continue
		}
		deps[name] = dependencyStatus{OK: true}
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
