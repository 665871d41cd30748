// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package risk maps command risk classifications to numeric score
// increments.
//
// The accumulator itself is stateless: the session controller owns each
// session's running total and calls ScoreFor on every validated command.
// Weights are fixed by policy, not configuration — changing them changes
// the meaning of every session's risk budget.
package risk

import "github.com/AleutianAI/AleutianGuard/pkg/extensions"

// Score increments per risk level. A session's budget (maxRiskScore,
// default 80) is expressed in these units: roughly five dangerous
// commands, or one critical plus two dangerous, before forced disable.
const (
	ScoreSafe      = 1
	ScoreModerate  = 5
	ScoreDangerous = 15
	ScoreCritical  = 50
)

// WarnIncrement is the single-command increment above which the session
// controller records a risk_increase warning even when the session's
// total budget is not yet exhausted.
const WarnIncrement = 10

// Accumulator converts risk classifications into score increments.
//
// # Thread Safety
//
// Accumulator is immutable after construction and safe for concurrent
// use.
type Accumulator struct {
	weights map[extensions.RiskLevel]int
}

// NewAccumulator returns an accumulator with the fixed policy weights.
func NewAccumulator() *Accumulator {
	return &Accumulator{
		weights: map[extensions.RiskLevel]int{
			extensions.RiskSafe:      ScoreSafe,
			extensions.RiskModerate:  ScoreModerate,
			extensions.RiskDangerous: ScoreDangerous,
			extensions.RiskCritical:  ScoreCritical,
		},
	}
}

// ScoreFor returns the score increment for a classification.
//
// Unknown levels score as critical: a classifier emitting levels this
// package does not know about is a misconfiguration, and the safe
// failure mode is to burn budget fast rather than slowly.
func (a *Accumulator) ScoreFor(level extensions.RiskLevel) int {
	if score, ok := a.weights[level]; ok {
		return score
	}
	return ScoreCritical
}

// IsHighIncrement reports whether a single increment is large enough to
// warrant an in-session risk warning.
func (a *Accumulator) IsHighIncrement(score int) bool {
	return score > WarnIncrement
}
