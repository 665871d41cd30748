// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dangerous

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
)

// riskByCommand builds a classifier that assigns fixed risk levels per
// command and allows everything.
func riskByCommand(levels map[string]extensions.RiskLevel) *fakeClassifier {
	return &fakeClassifier{fn: func(cmd extensions.CommandContext) (*extensions.ClassificationResult, error) {
		level, ok := levels[cmd.Command]
		if !ok {
			level = extensions.RiskSafe
		}
		return &extensions.ClassificationResult{Allowed: true, Risk: level}, nil
	}}
}

func validate(t *testing.T, c *Controller, sessionID, command string) *datatypes.ValidationResult {
	t.Helper()
	res, err := c.ValidateCommand(context.Background(), datatypes.ValidationRequest{
		SessionID: sessionID,
		Command:   command,
	})
	if err != nil {
		t.Fatalf("ValidateCommand(%q) failed: %v", command, err)
	}
	return res
}

func TestValidate_RiskAccumulatesWhileEnabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	classifier := riskByCommand(map[string]extensions.RiskLevel{
		"chmod": extensions.RiskDangerous,
		"ls":    extensions.RiskSafe,
	})
	c, _, _ := newTestController(t, cfg, Deps{Classifier: classifier})
	ctx := context.Background()

	if res, _ := c.RequestActivation(ctx, activationRequest("s1")); !res.Success {
		t.Fatalf("Activation refused: %q", res.Message)
	}

	res := validate(t, c, "s1", "chmod")
	if !res.Allowed || res.RiskIncrease != 15 {
		t.Fatalf("Expected a dangerous command to add 15, got %+v", res)
	}
	if len(res.Warnings) == 0 {
		t.Error("Expected a high-increment warning at 15 points")
	}

	session, _ := c.GetSessionStatus("s1")
	if session.RiskScore != 15 || session.CommandsExecuted != 1 {
		t.Errorf("Expected score=15 commands=1, got score=%d commands=%d",
			session.RiskScore, session.CommandsExecuted)
	}

	validate(t, c, "s1", "ls")
	session, _ = c.GetSessionStatus("s1")
	if session.RiskScore != 16 {
		t.Errorf("Expected safe commands to add 1 while enabled, got %d", session.RiskScore)
	}
}

func TestValidate_NoAccumulationWhileDisabled(t *testing.T) {
	classifier := riskByCommand(map[string]extensions.RiskLevel{"ls": extensions.RiskSafe})
	c, _, _ := newTestController(t, DefaultConfig(), Deps{Classifier: classifier})

	res := validate(t, c, "untracked", "ls")
	if !res.Allowed || res.RiskIncrease != 0 {
		t.Errorf("Expected an allowed command with no accumulation, got %+v", res)
	}
}

func TestValidate_BudgetBoundaryIsStrict(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	classifier := riskByCommand(map[string]extensions.RiskLevel{
		"chmod": extensions.RiskDangerous, // 15
		"dd":    extensions.RiskCritical,  // 50
		"mv":    extensions.RiskModerate,  // 5
	})
	c, _, sink := newTestController(t, cfg, Deps{Classifier: classifier})
	ctx := context.Background()

	if res, _ := c.RequestActivation(ctx, activationRequest("s1")); !res.Success {
		t.Fatalf("Activation refused: %q", res.Message)
	}

	// 15 + 15 + 50 = 80: exactly at the budget, still enabled.
	validate(t, c, "s1", "chmod")
	validate(t, c, "s1", "chmod")
	if res := validate(t, c, "s1", "dd"); !res.Allowed {
		t.Fatalf("Expected the command landing exactly on the budget to pass, got %+v", res)
	}
	session, _ := c.GetSessionStatus("s1")
	if session.RiskScore != 80 || session.State != datatypes.StateEnabled {
		t.Fatalf("Expected score 80 and still enabled, got score=%d state=%s",
			session.RiskScore, session.State)
	}

	// +5 crosses strictly: forced disable, command refused.
	crossing := validate(t, c, "s1", "mv")
	if crossing.Allowed {
		t.Fatal("Expected the crossing command to be refused")
	}
	session, _ = c.GetSessionStatus("s1")
	if session.State != datatypes.StateCooldown {
		t.Fatalf("Expected a forced disable into cooldown, got %s", session.State)
	}
	if sink.countOf(datatypes.TypeRiskThreshold) != 1 {
		t.Error("Expected a risk-threshold notification")
	}
	if sink.countOf(datatypes.TypeDangerousModeDisabled) != 1 {
		t.Error("Expected a disabled notification for the forced disable")
	}
}

func TestValidate_RiskResetsOnReEnable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	classifier := riskByCommand(map[string]extensions.RiskLevel{"chmod": extensions.RiskDangerous})
	c, clock, _ := newTestController(t, cfg, Deps{Classifier: classifier})
	ctx := context.Background()

	if res, _ := c.RequestActivation(ctx, activationRequest("s1")); !res.Success {
		t.Fatalf("Activation refused: %q", res.Message)
	}
	validate(t, c, "s1", "chmod")

	if res, _ := c.Disable(ctx, "s1", datatypes.DisableRequest{}, "alice"); !res.Success {
		t.Fatalf("Disable failed: %q", res.Message)
	}
	clock.Advance(6 * time.Minute)

	if res, _ := c.RequestActivation(ctx, activationRequest("s1")); !res.Success {
		t.Fatalf("Re-activation refused: %q", res.Message)
	}
	session, _ := c.GetSessionStatus("s1")
	if session.RiskScore != 0 || session.CommandsExecuted != 0 {
		t.Errorf("Expected per-period counters reset on re-enable, got score=%d commands=%d",
			session.RiskScore, session.CommandsExecuted)
	}
}

func TestValidate_BlockedCommandRecordsWarning(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	classifier := &fakeClassifier{fn: func(cmd extensions.CommandContext) (*extensions.ClassificationResult, error) {
		if cmd.Command == "rm" && !cmd.DangerousModeEnabled {
			return &extensions.ClassificationResult{
				Allowed: false,
				Errors:  []string{"recursive deletion requires dangerous mode"},
				Risk:    extensions.RiskCritical,
			}, nil
		}
		return &extensions.ClassificationResult{Allowed: true, Risk: extensions.RiskSafe}, nil
	}}
	c, _, sink := newTestController(t, cfg, Deps{Classifier: classifier})
	ctx := context.Background()

	// Track the session without enabling it.
	req := activationRequest("s1")
	req.Reason = ""
	if res, _ := c.RequestActivation(ctx, req); !res.Success {
		t.Fatalf("Activation refused: %q", res.Message)
	}
	if res, _ := c.Disable(ctx, "s1", datatypes.DisableRequest{}, "alice"); !res.Success {
		t.Fatalf("Disable failed: %q", res.Message)
	}

	blocked := validate(t, c, "s1", "rm")
	if blocked.Allowed {
		t.Fatal("Expected the command refused without dangerous mode")
	}
	if sink.countOf(datatypes.TypeCommandBlocked) != 1 {
		t.Error("Expected a command-blocked notification")
	}

	session, _ := c.GetSessionStatus("s1")
	found := false
	for _, w := range session.Warnings {
		if w.Type == "command_blocked" && w.Command == "rm" {
			found = true
		}
	}
	if !found {
		t.Error("Expected a command_blocked warning on the session history")
	}
}

func TestValidate_ClassifierErrorFailsClosed(t *testing.T) {
	classifier := &fakeClassifier{fn: func(extensions.CommandContext) (*extensions.ClassificationResult, error) {
		return nil, errors.New("ruleset corrupted")
	}}
	c, _, _ := newTestController(t, DefaultConfig(), Deps{Classifier: classifier})

	res := validate(t, c, "s1", "ls")
	if res.Allowed {
		t.Fatal("Expected a classifier failure to refuse the command")
	}
}

func TestValidate_EmergencyStopRemovesPrivileges(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	classifier := &fakeClassifier{fn: func(cmd extensions.CommandContext) (*extensions.ClassificationResult, error) {
		if !cmd.DangerousModeEnabled {
			return &extensions.ClassificationResult{
				Allowed: false,
				Errors:  []string{"requires dangerous mode"},
				Risk:    extensions.RiskDangerous,
			}, nil
		}
		return &extensions.ClassificationResult{Allowed: true, Risk: extensions.RiskDangerous}, nil
	}}
	c, _, _ := newTestController(t, cfg, Deps{Classifier: classifier})
	ctx := context.Background()

	if res, _ := c.RequestActivation(ctx, activationRequest("s1")); !res.Success {
		t.Fatalf("Activation refused: %q", res.Message)
	}
	if res := validate(t, c, "s1", "chmod"); !res.Allowed {
		t.Fatalf("Expected the command allowed while enabled, got %+v", res)
	}

	c.EmergencyDisableAll(ctx, "admin")
	if res := validate(t, c, "s1", "chmod"); res.Allowed {
		t.Fatal("Expected the emergency stop to strip elevated privileges")
	}
}

func TestValidate_WarningHistoryIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequireConfirmation = false
	cfg.MaxRiskScore = 10000
	classifier := riskByCommand(map[string]extensions.RiskLevel{"chmod": extensions.RiskDangerous})
	c, _, _ := newTestController(t, cfg, Deps{Classifier: classifier})
	ctx := context.Background()

	if res, _ := c.RequestActivation(ctx, activationRequest("s1")); !res.Success {
		t.Fatalf("Activation refused: %q", res.Message)
	}

	for i := 0; i < datatypes.MaxSessionWarnings+5; i++ {
		validate(t, c, "s1", "chmod")
	}

	session, _ := c.GetSessionStatus("s1")
	if len(session.Warnings) != datatypes.MaxSessionWarnings {
		t.Errorf("Expected the history capped at %d, got %d",
			datatypes.MaxSessionWarnings, len(session.Warnings))
	}
}
