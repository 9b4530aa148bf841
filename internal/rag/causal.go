// Copyright (C) 2025 Stratum Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package rag

import (
	"github.com/stratum-io/stratum/internal/logtypes"
)

// shouldBuildCausalChain implements the trigger condition for §4.7 step 5.
func shouldBuildCausalChain(intent Intent, ranked []RankedLog) bool {
	if intent == IntentExplainRootCause {
		return true
	}
	if len(ranked) == 0 {
		return false
	}
	top := ranked[0].Entry.Level
	return top == logtypes.LevelError || top == logtypes.LevelFatal
}

// buildCausalChain implements §4.7 step 5: a backward walk from the
// highest-ranked Error/Fatal log, attaching up to CausalMaxLinks candidates
// that share service, trace_id, or semantic similarity with the effect.
func buildCausalChain(ranked []RankedLog) *CausalChain {
	var effectIdx = -1
	for i, r := range ranked {
		if r.Entry.Level == logtypes.LevelError || r.Entry.Level == logtypes.LevelFatal {
			effectIdx = i
			break
		}
	}
	if effectIdx == -1 {
		return nil
	}
	effect := ranked[effectIdx]

	var links []CausalLink
	for i, r := range ranked {
		if i == effectIdx {
			continue
		}
		if len(links) >= CausalMaxLinks {
			break
		}
		delta := effect.Entry.Timestamp.Sub(r.Entry.Timestamp)
		if delta < 0 || delta > CausalWindow {
			continue
		}

		sameTrace := effect.Entry.TraceID != "" && effect.Entry.TraceID == r.Entry.TraceID
		sameService := effect.Entry.Service == r.Entry.Service
		semanticEnough := r.Semantic >= CausalSemanticThreshold

		if !sameTrace && !sameService && !semanticEnough {
			continue
		}

		confidence := WeightCausalSemantic*r.Semantic
		if sameTrace {
			confidence += WeightCausalSameTrace
		}
		if sameService {
			confidence += WeightCausalSameService
		}
		if confidence < CausalMinConfidence {
			continue
		}

		links = append(links, CausalLink{Cause: r.Entry, Confidence: confidence})
	}

	if len(links) == 0 {
		return &CausalChain{Effect: effect.Entry}
	}

	chain := &CausalChain{Effect: effect.Entry, Chain: links}
	rootCause := links[0].Cause
	for _, l := range links[1:] {
		if l.Cause.Timestamp.Before(rootCause.Timestamp) {
			rootCause = l.Cause
		}
	}
	chain.RootCause = &rootCause
	return chain
}
