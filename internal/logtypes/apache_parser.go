// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logtypes

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// combinedLogPattern matches the Apache/Nginx "combined" access log format:
// ip - user [dd/Mon/yyyy:HH:MM:SS ±ZZZZ] "METHOD path HTTP/x" status bytes "referer" "ua"
var combinedLogPattern = regexp.MustCompile(
	`^(\S+) \S+ (\S+) \[([^\]]+)\] "(\S+) (\S+) [^"]*" (\d{3}) (\S+) "([^"]*)" "([^"]*)"`,
)

const combinedTimeLayout = "02/Jan/2006:15:04:05 -0700"

func levelFromStatus(status int) Level {
	switch {
	case status >= 500:
		return LevelError
	case status >= 400:
		return LevelWarn
	default:
		return LevelInfo
	}
}

// ApacheParser parses Apache combined-log-format access log lines (§4.1).
type ApacheParser struct{}

func (p *ApacheParser) Name() string { return "apache" }

func (p *ApacheParser) TryParse(line string) (*LogEntry, bool) {
	m := combinedLogPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	ip, user, ts, method, path, statusStr, bytesStr, referer, ua := m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8], m[9]

	status, err := strconv.Atoi(statusStr)
	if err != nil {
		return nil, false
	}
	timestamp, err := time.Parse(combinedTimeLayout, ts)
	if err != nil {
		return nil, false
	}

	entry := &LogEntry{
		Timestamp: timestamp.UTC(),
		Level:     levelFromStatus(status),
		Service:   "apache",
		Message:   fmt.Sprintf("%s %s -> %d", method, path, status),
		Fields: map[string]any{
			"client_ip":  ip,
			"user":       user,
			"method":     method,
			"path":       path,
			"status":     status,
			"bytes":      bytesStr,
			"referer":    referer,
			"user_agent": ua,
		},
	}
	return entry, true
}
