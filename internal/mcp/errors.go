package mcp

import "github.com/memmcp/memmcp/internal/errors"

// ErrorInfo is the per-item error shape surfaced in batch results.
type ErrorInfo struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// infoFromError maps any error to the batch result shape. Errors
// without a kind report as Internal.
func infoFromError(err error) *ErrorInfo {
	if err == nil {
		return nil
	}
	return &ErrorInfo{
		Kind:    string(errors.KindOf(err)),
		Message: errors.MessageOf(err),
	}
}
