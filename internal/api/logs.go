package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bozzyboy/nano-director-5/internal/logging"
)

const (
	defaultLogLimit = 200
	followWindow    = 25 * time.Second
)

// handleLogs pages through the in-memory log stream. follow=1 long-polls
// until a newer event arrives; tail=1 returns the most recent events.
func (s *Server) handleLogs(c *gin.Context) {
	if s.logs == nil {
		c.JSON(http.StatusOK, LogStreamResponse{Events: []logging.LogEvent{}, Next: 0})
		return
	}

	since, _ := strconv.ParseUint(c.Query("since"), 10, 64)
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 {
		limit = defaultLogLimit
	}
	follow := truthy(c.Query("follow"))
	tail := truthy(c.Query("tail"))
	component := strings.TrimSpace(c.Query("component"))
	projectName := strings.TrimSpace(c.Query("project"))

	var (
		events []logging.LogEvent
		next   uint64
	)
	if tail && since == 0 && !follow {
		events, next = s.logs.Tail(limit)
	} else {
		ctx := c.Request.Context()
		if follow {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, followWindow)
			defer cancel()
		}
		var err error
		events, next, err = s.logs.Fetch(ctx, since, limit, follow)
		if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			writeError(c, err)
			return
		}
	}

	filtered := make([]logging.LogEvent, 0, len(events))
	for _, evt := range events {
		if component != "" && !strings.EqualFold(component, evt.Component) {
			continue
		}
		if projectName != "" && projectName != evt.Project {
			continue
		}
		filtered = append(filtered, evt)
	}
	c.JSON(http.StatusOK, LogStreamResponse{Events: filtered, Next: next})
}

func truthy(value string) bool {
	return value == "1" || strings.EqualFold(value, "true")
}
