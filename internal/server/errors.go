package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/leofalp/unillm/providers/ai"
)

// errorBody is the JSON error envelope of every failed route.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Provider string `json:"provider,omitempty"`
	Code     string `json:"code,omitempty"`
}

// describe classifies err into a status and envelope.
func describe(err error) (int, errorBody) {
	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code, errorBody{Error: errorDetail{
			Type:    httpErrorType(httpErr.Code),
			Message: httpErrorMessage(httpErr),
		}}
	}

	detail := errorDetail{Type: ai.ErrorType(err), Message: err.Error()}
	var providerErr *ai.ProviderError
	if errors.As(err, &providerErr) {
		detail.Provider = providerErr.Provider
		detail.Code = providerErr.Code
		detail.Message = providerErr.Message
	}
	return ai.HTTPStatus(err), errorBody{Error: detail}
}

func httpErrorType(status int) string {
	switch status {
	case http.StatusNotFound:
		return "not_found"
	case http.StatusMethodNotAllowed:
		return "method_not_allowed"
	case http.StatusRequestEntityTooLarge:
		return "request_too_large"
	case http.StatusBadRequest:
		return "invalid_request"
	default:
		if status >= 500 {
			return "internal_error"
		}
		return "invalid_request"
	}
}

func httpErrorMessage(err *echo.HTTPError) string {
	if msg, ok := err.Message.(string); ok {
		return msg
	}
	return http.StatusText(err.Code)
}

// handleError is echo's HTTPErrorHandler.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status, body := describe(err)
	if status >= http.StatusInternalServerError {
		s.logger.ErrorContext(c.Request().Context(), "request failed",
			"path", c.Path(), "status", status, "type", body.Error.Type, "error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil {
		s.logger.Error("failed to write error response", "error", err)
	}
}
