// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logtypes

// Parser turns one raw log line into a LogEntry. A 2-method interface, per the
// "small adapter interfaces" design note.
type Parser interface {
	Name() string
	TryParse(line string) (*LogEntry, bool)
}

// Registry holds parsers in a fixed priority order and offers auto-detection.
type Registry struct {
	parsers []Parser
	byName  map[string]Parser
}

// NewRegistry builds the default registry with parsers in priority order:
// JSON, Nginx, Apache, Syslog (§4.1).
func NewRegistry() *Registry {
	r := &Registry{byName: map[string]Parser{}}
	for _, p := range []Parser{
		&JSONParser{},
		&NginxParser{},
		&ApacheParser{},
		&SyslogParser{},
	} {
		r.parsers = append(r.parsers, p)
		r.byName[p.Name()] = p
	}
	return r
}

// DetectAndParse returns the first parser (in priority order) that successfully
// parses line, along with the name of the winning parser.
func (r *Registry) DetectAndParse(line string) (*LogEntry, string, bool) {
	for _, p := range r.parsers {
		if entry, ok := p.TryParse(line); ok {
			return entry, p.Name(), true
		}
	}
	return nil, "", false
}

// ParseWith forces parsing with a specific named parser.
func (r *Registry) ParseWith(name, line string) (*LogEntry, bool) {
	p, ok := r.byName[name]
	if !ok {
		return nil, false
	}
	return p.TryParse(line)
}
