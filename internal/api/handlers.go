package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Aman-CERP/amanlex/internal/corpus"
	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/internal/search"
)

// SSE event names for /v1/ask/stream.
const (
	EventSources  = "sources"
	EventFragment = "fragment"
	EventDone     = "done"
	EventError    = "error"
)

func (s *Server) handleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, amanerrors.New(amanerrors.ErrCodeInvalidInput, "invalid request body", err))
		return
	}
	filters, err := corpus.ParseFilters(req.Type, req.Jurisdiction, req.Status, req.Verified)
	if err != nil {
		writeError(c, err)
		return
	}

	a, err := s.asker.Ask(c.Request.Context(), req.Question, filters)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, NewAskResponse(a))
}

func (s *Server) handleAskStream(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, amanerrors.New(amanerrors.ErrCodeInvalidInput, "invalid request body", err))
		return
	}
	filters, err := corpus.ParseFilters(req.Type, req.Jurisdiction, req.Status, req.Verified)
	if err != nil {
		writeError(c, err)
		return
	}

	a, stream, err := s.asker.AskStream(c.Request.Context(), req.Question, filters)
	if err != nil {
		writeError(c, err)
		return
	}
	defer func() { _ = stream.Close() }()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	c.SSEvent(EventSources, NewAskResponse(a))
	c.Writer.Flush()

	ctx := c.Request.Context()
	var text strings.Builder
	for stream.Next() {
		if ctx.Err() != nil {
			return
		}
		text.WriteString(stream.Fragment())
		c.SSEvent(EventFragment, gin.H{"text": stream.Fragment()})
		c.Writer.Flush()
	}

	if err := stream.Err(); err != nil {
		s.logger.Warn("answer stream failed",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("error", err.Error()))
		c.SSEvent(EventError, gin.H{"code": amanerrors.GetCode(err), "message": err.Error()})
		c.Writer.Flush()
		return
	}
	a.Answer = text.String()
	c.SSEvent(EventDone, NewAskResponse(a))
	c.Writer.Flush()
}

func (s *Server) handleSearch(c *gin.Context) {
	q := c.Query("q")
	if strings.TrimSpace(q) == "" {
		writeError(c, amanerrors.EmptyQueryError())
		return
	}
	var verified *bool
	if v := c.Query("verified"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(c, amanerrors.New(amanerrors.ErrCodeInvalidFilter, "verified must be true or false", err))
			return
		}
		verified = &b
	}
	filters, err := corpus.ParseFilters(c.Query("type"), c.Query("jurisdiction"), c.Query("status"), verified)
	if err != nil {
		writeError(c, err)
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, amanerrors.New(amanerrors.ErrCodeInvalidInput, "limit must be a non-negative integer", err))
			return
		}
		limit = n
	}

	resp, err := s.searcher.Search(c.Request.Context(), search.Query{
		Text:    q,
		Filters: filters,
		Limit:   limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSearchResponse(resp))
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok", "version": s.version}
	if s.status != nil {
		for k, v := range s.status() {
			body[k] = v
		}
	}
	c.JSON(http.StatusOK, body)
}
