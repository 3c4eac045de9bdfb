package app

import (
	"errors"
	"fmt"
	"net/http"

	"legalhelp/api/internal/generation"
)

type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// mapError turns an error into the response sent to callers. Internal causes
// never reach the body.
func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var genErr *generation.Error
	if !errors.As(err, &genErr) {
		return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
	}
	switch genErr.Kind {
	case generation.KindInput:
		if len(genErr.Fields) > 0 {
			details = map[string]any{"fields": genErr.Fields}
		}
		return http.StatusBadRequest, "INVALID_REQUEST", genErr.Message, details
	case generation.KindNotFound:
		return http.StatusNotFound, "TEMPLATE_NOT_FOUND", genErr.Message, nil
	case generation.KindNotReady:
		return http.StatusBadRequest, "TEMPLATE_NOT_READY", genErr.Message, nil
	case generation.KindCompliance:
		return http.StatusUnprocessableEntity, "COMPLIANCE_FAILED", genErr.Message, map[string]any{"errors": genErr.Violations}
	case generation.KindRender:
		if len(genErr.Missing) > 0 {
			details = map[string]any{"missing": genErr.Missing}
		}
		return http.StatusInternalServerError, "RENDER_FAILED", genErr.Message, details
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Document generation failed", nil
}
