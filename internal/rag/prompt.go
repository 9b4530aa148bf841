// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/stratum-io/stratum/internal/llm"
)

const systemPrompt = "You are a log analyst. Cite logs by id. Never invent events that are not present in the provided context."

// noHitsAnswer is returned verbatim when retrieval finds no candidates (§7);
// no LLM call is made in that case.
const noHitsAnswer = "I could not find relevant logs for this question."

// summarizeTopLogs builds the deterministic fallback answer used when the
// LLM call fails (§7): a plain-text summary of the top-3 reranked logs.
func summarizeTopLogs(ranked []RankedLog) string {
	n := len(ranked)
	if n > 3 {
		n = 3
	}
	if n == 0 {
		return noHitsAnswer
	}
	var b strings.Builder
	b.WriteString("The assistant is temporarily unavailable. Here are the most relevant logs found:\n")
	for _, r := range ranked[:n] {
		fmt.Fprintf(&b, "- [%s | %s] %s\n", r.Entry.Timestamp.Format("2006-01-02T15:04:05Z07:00"), r.Entry.Service, r.Entry.Message)
	}
	return b.String()
}

// ChatTemperature and ChatMaxTokens are the fixed LLM call parameters for
// §4.7 step 6.
const (
	ChatTemperature = 0.2
	ChatMaxTokens   = 800
)

// buildMessages implements §4.7 step 6: the last SessionTurns session turns
// (two messages each), then one user message holding up to K_ctx bulleted
// hydrated logs followed by the question. The system prompt is passed to the
// LLM call separately.
func buildMessages(question string, ranked []RankedLog, history []Message) []llm.Message {
	var b strings.Builder
	b.WriteString("Relevant logs:\n")
	for _, r := range ranked {
		fmt.Fprintf(&b, "- [%s | %s | %s | %s] %s\n",
			r.Entry.ID, r.Entry.Timestamp.Format("2006-01-02T15:04:05Z07:00"), r.Entry.Service, r.Entry.Level, r.Entry.Message)
	}

	messages := make([]llm.Message, 0, len(history)+1)
	start := 0
	if len(history) > SessionTurns*2 {
		start = len(history) - SessionTurns*2
	}
	for _, m := range history[start:] {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	b.WriteString("\nQuestion: ")
	b.WriteString(question)
	messages = append(messages, llm.Message{Role: "user", Content: b.String()})
	return messages
}

var citationPattern = regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`)

// extractSourceLogs implements §4.7 step 7's source_logs rule: ids cited in
// the answer, or, failing citation, the first K_ctx ids from the reranked set.
func extractSourceLogs(answer string, ranked []RankedLog) []string {
	cited := citationPattern.FindAllString(answer, -1)
	if len(cited) > 0 {
		seen := map[string]bool{}
		var out []string
		for _, id := range cited {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
		return out
	}

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.Entry.ID
	}
	return ids
}
