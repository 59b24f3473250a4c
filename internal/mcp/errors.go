// Package mcp exposes the legal retrieval pipeline as Model Context
// Protocol tools.
package mcp

import (
	"context"
	"errors"
	"fmt"

	amanerrors "github.com/Aman-CERP/amanlex/internal/errors"
)

// Custom MCP error codes.
const (
	// ErrCodeCorpusNotLoaded indicates no corpus is available to search.
	ErrCodeCorpusNotLoaded = -32001

	// ErrCodeBackendUnavailable indicates an embedding, vector or
	// generation backend could not be reached.
	ErrCodeBackendUnavailable = -32002

	// ErrCodeTimeout indicates the request timed out or was canceled.
	ErrCodeTimeout = -32003

	// ErrCodeEntryNotFound indicates an entry id is not in the corpus.
	ErrCodeEntryNotFound = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// Sentinel errors for internal use.
var (
	// ErrCorpusNotLoaded indicates the searcher has no corpus.
	ErrCorpusNotLoaded = errors.New("corpus not loaded")

	// ErrEntryNotFound indicates a lookup by entry id failed.
	ErrEntryNotFound = errors.New("entry not found")
)

// MCPError is an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var me *MCPError
	if errors.As(err, &me) {
		return me
	}
	var ae *amanerrors.AmanError
	if errors.As(err, &ae) {
		return mapAmanError(ae)
	}

	switch {
	case errors.Is(err, ErrCorpusNotLoaded):
		return &MCPError{Code: ErrCodeCorpusNotLoaded, Message: "No corpus loaded. Start the server with --corpus."}
	case errors.Is(err, ErrEntryNotFound):
		return &MCPError{Code: ErrCodeEntryNotFound, Message: "Entry not found."}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError creates an error for invalid parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewEntryNotFoundError creates an error for an unknown entry id.
func NewEntryNotFoundError(id string) *MCPError {
	return &MCPError{Code: ErrCodeEntryNotFound, Message: fmt.Sprintf("Entry '%s' not found.", id)}
}

func mapAmanError(ae *amanerrors.AmanError) *MCPError {
	message := ae.Message
	if ae.Suggestion != "" {
		message = fmt.Sprintf("%s %s", ae.Message, ae.Suggestion)
	}

	switch ae.Category {
	case amanerrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: message}
	case amanerrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeBackendUnavailable, Message: message}
	case amanerrors.CategoryIO:
		if ae.Code == amanerrors.ErrCodeCorpusInvalid || ae.Code == amanerrors.ErrCodeFileNotFound {
			return &MCPError{Code: ErrCodeCorpusNotLoaded, Message: message}
		}
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: message}
	}
}
