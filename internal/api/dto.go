package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Aman-CERP/amanlex/internal/answer"
	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
	"github.com/Aman-CERP/amanlex/internal/search"
)

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	Question     string `json:"question"`
	Type         string `json:"type,omitempty"`
	Jurisdiction string `json:"jurisdiction,omitempty"`
	Status       string `json:"status,omitempty"`
	Verified     *bool  `json:"verified,omitempty"`
}

// AskResponse is the answer with its sources. A refusal carries the answer
// "I don't know." and the weak candidates as sources.
type AskResponse struct {
	Answer     string          `json:"answer"`
	Sources    []answer.Source `json:"sources"`
	Outcome    string          `json:"outcome"`
	Confidence float64         `json:"confidence"`
	Generated  bool            `json:"generated"`
	Degraded   []string        `json:"degraded,omitempty"`
}

// NewAskResponse converts an answer to its wire form.
func NewAskResponse(a *answer.Answer) AskResponse {
	sources := a.Sources
	if sources == nil {
		sources = []answer.Source{}
	}
	return AskResponse{
		Answer:     a.Answer,
		Sources:    sources,
		Outcome:    string(a.Outcome),
		Confidence: a.Confidence,
		Generated:  a.Generated,
		Degraded:   a.Degraded,
	}
}

// SearchResponse is the body of GET /v1/search.
type SearchResponse struct {
	Results     []answer.Source `json:"results"`
	Total       int             `json:"total"`
	Suggestion  string          `json:"suggestion,omitempty"`
	Suggestions []string        `json:"suggestions"`
	Outcome     string          `json:"outcome"`
	Confidence  float64         `json:"confidence"`
	Degraded    []string        `json:"degraded,omitempty"`
}

// NewSearchResponse converts a ranked response to its wire form.
func NewSearchResponse(resp *search.Response) SearchResponse {
	suggestions := resp.Suggestions
	if suggestions == nil {
		suggestions = []string{}
	}
	return SearchResponse{
		Results:     answer.Sources(resp.Results),
		Total:       resp.Total,
		Suggestion:  resp.Suggestion,
		Suggestions: suggestions,
		Outcome:     string(resp.Decision.Outcome),
		Confidence:  resp.Decision.Confidence,
		Degraded:    resp.Degraded,
	}
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// statusFor maps an error category to an HTTP status.
func statusFor(err error) int {
	switch amanerrors.GetCategory(err) {
	case amanerrors.CategoryValidation:
		return http.StatusBadRequest
	case amanerrors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	ae, ok := amanerrors.As(err)
	if !ok {
		ae = amanerrors.Wrap(amanerrors.ErrCodeInternal, err)
	}
	status := statusFor(ae)
	if status >= http.StatusInternalServerError {
		_ = c.Error(ae)
	}
	c.JSON(status, ErrorResponse{
		Code:       ae.Code,
		Message:    ae.Message,
		Suggestion: ae.Suggestion,
		RequestID:  c.GetString(requestIDKey),
	})
}
