// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package validation provides input validation utilities for security-critical operations.
//
// This package contains validators for user-provided inputs that flow into columnar-store
// query construction. The InfluxDB Flux client has no bind-parameter API, so filter values
// are validated against a strict allowlist before being interpolated into a Flux query
// string; this prevents Flux injection the same way parameterized SQL would.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// servicePattern matches valid service identifiers: ASCII alphanumerics, dots,
// hyphens, underscores. Max length keeps queries and InfluxDB tag values bounded.
var servicePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

var validLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true,
}

// ValidateService validates a service name before it is interpolated into a Flux filter.
func ValidateService(service string) error {
	if service == "" {
		return fmt.Errorf("service cannot be empty")
	}
	if !servicePattern.MatchString(service) {
		return fmt.Errorf("invalid service format: %q", service)
	}
	return nil
}

// SanitizeService normalizes and validates a service name.
func SanitizeService(service string) (string, error) {
	normalized := strings.TrimSpace(service)
	if err := ValidateService(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// ValidateLevel validates a log level string against the fixed enum before it is
// interpolated into a Flux filter.
func ValidateLevel(level string) error {
	if level == "" {
		return fmt.Errorf("level cannot be empty")
	}
	if !validLevels[strings.ToLower(level)] {
		return fmt.Errorf("invalid level: %q", level)
	}
	return nil
}

// SanitizeLevel normalizes and validates a level string.
func SanitizeLevel(level string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(level))
	if err := ValidateLevel(normalized); err != nil {
		return "", err
	}
	return normalized, nil
}

// logIDPattern matches ids of ASCII letters, digits and hyphens (UUIDs among
// them, up to 64 characters) before they are interpolated
// into a Flux equality filter in a by_ids hydration query.
var logIDPattern = regexp.MustCompile(`^[a-zA-Z0-9-]{1,64}$`)

// ValidateLogID validates a LogEntry id before it is interpolated into a Flux filter.
func ValidateLogID(id string) error {
	if !logIDPattern.MatchString(id) {
		return fmt.Errorf("invalid log id format: %q", id)
	}
	return nil
}
