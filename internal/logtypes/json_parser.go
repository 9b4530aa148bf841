// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logtypes

import (
	"encoding/json"
	"time"
)

// NaiveTimestampField is a synthetic Fields key the JSON parser sets to true when
// the source timestamp string carried no timezone marker. Per the naive-timestamp
// open question, such timestamps are treated as UTC without inferring a zone; the
// ingestion handler is responsible for reading this key, emitting the warning
// metric, and stripping it before the entry is persisted.
const NaiveTimestampField = "_naive_timestamp"

var jsonTimestampLayouts = []struct {
	layout string
	naive  bool
}{
	{time.RFC3339Nano, false},
	{time.RFC3339, false},
	{"2006-01-02T15:04:05.999999999", true},
	{"2006-01-02T15:04:05", true},
	{"2006-01-02 15:04:05", true},
}

// JSONParser parses a single JSON object per line into a LogEntry (§4.1).
type JSONParser struct{}

func (p *JSONParser) Name() string { return "json" }

func (p *JSONParser) TryParse(line string) (*LogEntry, bool) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(line), &raw); err != nil {
		return nil, false
	}
	if _, isObject := any(raw).(map[string]any); !isObject {
		return nil, false
	}

	entry := &LogEntry{Fields: map[string]any{}}

	consumed := map[string]bool{}
	if v, ok := stringField(raw, "level"); ok {
		entry.Level = ParseLevel(v)
		consumed["level"] = true
	} else {
		entry.Level = LevelInfo
	}

	if v, ok := firstStringField(raw, "service", "svc", "logger"); ok {
		entry.Service = v
	}
	consumed["service"], consumed["svc"], consumed["logger"] = true, true, true

	if v, ok := firstStringField(raw, "message", "msg"); ok {
		entry.Message = v
	} else {
		// Not a recognizable log object; refuse so a later parser (or the raw
		// fallback) can take it.
		return nil, false
	}
	consumed["message"], consumed["msg"] = true, true

	if v, ok := firstStringField(raw, "timestamp", "ts", "time"); ok {
		if ts, naive, ok := parseJSONTimestamp(v); ok {
			entry.Timestamp = ts
			if naive {
				entry.Fields[NaiveTimestampField] = true
			}
		}
	}
	consumed["timestamp"], consumed["ts"], consumed["time"] = true, true, true

	if v, ok := stringField(raw, "trace_id"); ok {
		entry.TraceID = v
	}
	consumed["trace_id"] = true

	for k, v := range raw {
		if consumed[k] {
			continue
		}
		entry.Fields[k] = v
	}

	return entry, true
}

func parseJSONTimestamp(s string) (time.Time, bool, bool) {
	for _, l := range jsonTimestampLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			if l.naive {
				return t.UTC(), true, true
			}
			return t.UTC(), false, true
		}
	}
	return time.Time{}, false, false
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func firstStringField(m map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := stringField(m, k); ok {
			return v, true
		}
	}
	return "", false
}
