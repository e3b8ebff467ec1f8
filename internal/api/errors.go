// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNetwork marks transport failures: connection errors, timeouts and
// responses that could not be decoded. Match with errors.Is.
var ErrNetwork = errors.New("network error")

// APIError is a non-2xx response from the backend.
type APIError struct {
	// Status is the HTTP status code.
	Status int

	// Message is the server-supplied error detail, if any.
	Message string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// NetworkError wraps a transport failure. It matches ErrNetwork and unwraps
// to the underlying cause.
type NetworkError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *NetworkError) Unwrap() error { return e.Err }

// Is reports whether target is ErrNetwork.
func (e *NetworkError) Is(target error) bool { return target == ErrNetwork }

// ServerMessage returns the server-supplied message carried by err, or "".
func ServerMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// errorBody covers the backend's error shapes: the global handler's
// {"success": false, "error": "..."} and the framework's {"detail": ...},
// where detail is a string or a list of validation problems.
type errorBody struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

type validationDetail struct {
	Loc []any  `json:"loc"`
	Msg string `json:"msg"`
}

// parseErrorResponse converts an error response body to an *APIError.
func parseErrorResponse(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}

	var eb errorBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return apiErr
	}
	if eb.Error != "" {
		apiErr.Message = eb.Error
		return apiErr
	}
	if len(eb.Detail) == 0 {
		return apiErr
	}

	var detail string
	if err := json.Unmarshal(eb.Detail, &detail); err == nil {
		apiErr.Message = detail
		return apiErr
	}

	var details []validationDetail
	if err := json.Unmarshal(eb.Detail, &details); err == nil {
		msgs := make([]string, 0, len(details))
		for _, d := range details {
			if len(d.Loc) > 0 {
				msgs = append(msgs, fmt.Sprintf("%v: %s", d.Loc[len(d.Loc)-1], d.Msg))
			} else {
				msgs = append(msgs, d.Msg)
			}
		}
		apiErr.Message = strings.Join(msgs, "; ")
	}
	return apiErr
}
