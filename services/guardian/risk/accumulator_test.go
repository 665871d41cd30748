// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package risk

import (
	"testing"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
)

func TestScoreFor_PolicyWeights(t *testing.T) {
	acc := NewAccumulator()

	cases := []struct {
		level extensions.RiskLevel
		want  int
	}{
		{extensions.RiskSafe, 1},
		{extensions.RiskModerate, 5},
		{extensions.RiskDangerous, 15},
		{extensions.RiskCritical, 50},
	}
	for _, tc := range cases {
		if got := acc.ScoreFor(tc.level); got != tc.want {
			t.Errorf("ScoreFor(%q) = %d, want %d", tc.level, got, tc.want)
		}
	}
}

func TestScoreFor_UnknownLevelScoresCritical(t *testing.T) {
	acc := NewAccumulator()
	if got := acc.ScoreFor(extensions.RiskLevel("experimental")); got != ScoreCritical {
		t.Errorf("Expected unknown level to score %d, got %d", ScoreCritical, got)
	}
}

func TestIsHighIncrement(t *testing.T) {
	acc := NewAccumulator()

	if acc.IsHighIncrement(ScoreModerate) {
		t.Error("Expected moderate increment to stay below the warning bar")
	}
	if acc.IsHighIncrement(WarnIncrement) {
		t.Error("Expected the bar itself to not trigger (strictly greater)")
	}
	if !acc.IsHighIncrement(ScoreDangerous) {
		t.Error("Expected dangerous increment to trigger a warning")
	}
	if !acc.IsHighIncrement(ScoreCritical) {
		t.Error("Expected critical increment to trigger a warning")
	}
}
