// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package stratumerr defines the error kinds shared across Stratum components and
// their mapping to HTTP status codes at the API boundary.
package stratumerr

import (
	"fmt"
	"net/http"
)

// Kind classifies an error for HTTP status mapping and dead-letter routing.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindAuthRequired    Kind = "auth_required"
	KindBusUnavailable  Kind = "bus_unavailable"
	KindStoreUnavailable Kind = "store_unavailable"
	KindEmbeddingFailed Kind = "embedding_failed"
	KindLLMFailed       Kind = "llm_failed"
	KindNotFound        Kind = "not_found"
	KindRateLimited     Kind = "rate_limited"
	KindInternal        Kind = "internal"
)

// Error is a Stratum domain error carrying a Kind for status mapping.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds an *Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// ToHTTPStatus maps an error Kind to the fixed HTTP status per the error handling design.
func ToHTTPStatus(kind Kind) int {
	switch kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthRequired:
		return http.StatusUnauthorized
	case KindBusUnavailable, KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case KindEmbeddingFailed, KindLLMFailed:
		return http.StatusBadGateway
	case KindNotFound:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf returns the HTTP status for any error: *Error uses its Kind, anything
// else maps to Internal.
func StatusOf(err error) int {
	var e *Error
	if as, ok := err.(*Error); ok {
		e = as
		return ToHTTPStatus(e.Kind)
	}
	return http.StatusInternalServerError
}
