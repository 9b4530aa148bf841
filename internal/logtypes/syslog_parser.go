// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logtypes

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// syslogPattern matches BSD syslog (RFC 3164): Mon dd HH:MM:SS host program[pid]: message
var syslogPattern = regexp.MustCompile(
	`^(\w{3})\s+(\d{1,2})\s+(\d{2}:\d{2}:\d{2})\s+(\S+)\s+(\S+?)(?:\[(\d+)\])?:\s*(.+)$`,
)

var errorKeywords = []string{"error", "err", "fail", "failed", "critical", "fatal"}

// SyslogParser parses BSD syslog (RFC 3164) lines (§4.1). The year is not present
// in the wire format and is assumed to be the current year.
type SyslogParser struct {
	now func() time.Time
}

func (p *SyslogParser) Name() string { return "syslog" }

func (p *SyslogParser) TryParse(line string) (*LogEntry, bool) {
	m := syslogPattern.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	month, day, clock, host, program, pidStr, message := m[1], m[2], m[3], m[4], m[5], m[6], m[7]

	now := time.Now
	if p.now != nil {
		now = p.now
	}
	year := now().UTC().Year()
	ts, err := time.Parse("Jan 2 15:04:05 2006", strings.Join([]string{month, day, clock, strconv.Itoa(year)}, " "))
	if err != nil {
		return nil, false
	}

	level := LevelInfo
	lowerMsg := strings.ToLower(message)
	for _, kw := range errorKeywords {
		if strings.Contains(lowerMsg, kw) {
			level = LevelError
			break
		}
	}

	fields := map[string]any{
		"hostname": host,
		"process":  program,
	}
	if pidStr != "" {
		fields["pid"] = pidStr
	}

	entry := &LogEntry{
		Timestamp: ts.UTC(),
		Level:     level,
		Service:   program,
		Message:   message,
		Fields:    fields,
	}
	return entry, true
}
