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

// nginxUpstreamPattern extends the combined access-log line with nginx's optional
// trailing upstream-response-time and upstream-address fields.
var nginxUpstreamPattern = regexp.MustCompile(
	`^(\S+) \S+ (\S+) \[([^\]]+)\] "(\S+) (\S+) [^"]*" (\d{3}) (\S+) "([^"]*)" "([^"]*)"(?:\s+"?([\d.]+|-)"?\s*(\S+)?)?`,
)

// NginxParser parses nginx access log lines: the combined format followed by
// nginx's upstream-response-time and optional upstream-address fields. It uses
// the same grammar and time layout as ApacheParser and is tried before it, but
// claims only lines that carry the upstream-response-time field; a plain
// combined line is declined, also when nginx is forced by name.
type NginxParser struct{}

func (p *NginxParser) Name() string { return "nginx" }

func (p *NginxParser) TryParse(line string) (*LogEntry, bool) {
	m := nginxUpstreamPattern.FindStringSubmatch(line)
	if m == nil || len(m) < 12 || m[10] == "" {
		// No upstream fields present: this is a plain combined line, which
		// ApacheParser already handles identically. Only claim lines that
		// actually carry the nginx-specific upstream fields.
		return nil, false
	}
	ip, user, ts, method, path, statusStr, bytesStr, referer, ua := m[1], m[2], m[3], m[4], m[5], m[6], m[7], m[8], m[9]
	upstreamTime, upstreamAddr := m[10], m[11]

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
		Service:   "nginx",
		Message:   fmt.Sprintf("%s %s -> %d", method, path, status),
		Fields: map[string]any{
			"client_ip":     ip,
			"user":          user,
			"method":        method,
			"path":          path,
			"status":        status,
			"bytes":         bytesStr,
			"referer":       referer,
			"user_agent":    ua,
			"upstream_time": upstreamTime,
			"upstream_addr": upstreamAddr,
		},
	}
	return entry, true
}
