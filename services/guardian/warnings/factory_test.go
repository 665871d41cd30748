// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package warnings

import (
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/services/guardian/datatypes"
)

func TestActivationConfirmation(t *testing.T) {
	f := NewFactory()
	p := f.ActivationConfirmation(ActivationContext{
		SessionID:   "sess-1",
		UserID:      "user-1",
		Reason:      "cleanup",
		MaxDuration: 30 * time.Minute,
	})

	if p.ConfirmationPhrase != PhraseStandard {
		t.Errorf("Expected phrase %q, got %q", PhraseStandard, p.ConfirmationPhrase)
	}
	if !strings.Contains(p.Message, "30 minutes") {
		t.Errorf("Expected message to mention the duration, got %q", p.Message)
	}
	if len(p.Risks) == 0 || len(p.SaferAlternatives) == 0 {
		t.Error("Expected activation dialog to list risks and safer alternatives")
	}
	if !p.Dismissible {
		t.Error("Expected activation dialog to be dismissible")
	}
}

func TestCommandConfirmation_DangerousTier(t *testing.T) {
	f := NewFactory()
	p := f.CommandConfirmation(CommandContext{
		Command: "chmod",
		Args:    []string{"-R", "777", "/srv"},
		Risk:    extensions.RiskDangerous,
	})

	if p.CountdownSeconds != CountdownDangerous {
		t.Errorf("Expected %ds countdown, got %d", CountdownDangerous, p.CountdownSeconds)
	}
	if p.ConfirmationPhrase != PhraseCommand {
		t.Errorf("Expected phrase %q, got %q", PhraseCommand, p.ConfirmationPhrase)
	}
	if !strings.Contains(p.Message, "chmod -R 777 /srv") {
		t.Errorf("Expected the full command line in the message, got %q", p.Message)
	}
}

func TestCommandConfirmation_CriticalTierScalesUp(t *testing.T) {
	f := NewFactory()
	p := f.CommandConfirmation(CommandContext{
		Command: "dd",
		Args:    []string{"if=/dev/zero", "of=/dev/sda"},
		Risk:    extensions.RiskCritical,
	})

	if p.CountdownSeconds != CountdownCritical {
		t.Errorf("Expected %ds countdown for critical commands, got %d", CountdownCritical, p.CountdownSeconds)
	}
	if p.ConfirmationPhrase != PhraseCritical {
		t.Errorf("Expected the strong phrase for critical commands, got %q", p.ConfirmationPhrase)
	}
	if p.Severity != datatypes.SeverityCritical {
		t.Errorf("Expected critical severity, got %q", p.Severity)
	}
	if !p.Style.RequiresModal {
		t.Error("Expected critical dialogs to require a modal")
	}
}

func TestDataDestruction_NeverDismissible(t *testing.T) {
	f := NewFactory()
	p := f.DataDestruction("rm -rf", []string{"/var/lib/postgres"})

	if p.Dismissible {
		t.Error("Expected data-destruction warnings to be non-dismissible")
	}
	if p.ConfirmationPhrase != PhraseCritical {
		t.Errorf("Expected the strong phrase, got %q", p.ConfirmationPhrase)
	}
	found := false
	for _, r := range p.Risks {
		if strings.Contains(r, "/var/lib/postgres") {
			found = true
		}
	}
	if !found {
		t.Error("Expected the destruction target to appear in the risk list")
	}
}

func TestTimeoutWarning_RoundsRemaining(t *testing.T) {
	f := NewFactory()
	p := f.TimeoutWarning(4*time.Minute + 50*time.Second)

	if !strings.Contains(p.Message, "5 minutes") {
		t.Errorf("Expected rounded remaining time in message, got %q", p.Message)
	}
	if p.Severity != datatypes.SeverityInfo {
		t.Errorf("Expected info severity, got %q", p.Severity)
	}
}

func TestStyleFor_CoversAllSeverities(t *testing.T) {
	for _, sev := range []datatypes.Severity{
		datatypes.SeverityInfo,
		datatypes.SeverityWarning,
		datatypes.SeverityError,
		datatypes.SeverityCritical,
	} {
		s := StyleFor(sev)
		if s.Color == "" || s.Icon == "" {
			t.Errorf("Expected a complete style for %q, got %+v", sev, s)
		}
	}
	if StyleFor(datatypes.SeverityError).RequiresModal != true {
		t.Error("Expected error severity to require a modal")
	}
}

func TestSuspiciousPattern_NotDismissible(t *testing.T) {
	f := NewFactory()
	p := f.SuspiciousPattern("rapid privilege probing detected")
	if p.Dismissible {
		t.Error("Expected suspicious-pattern warnings to be non-dismissible")
	}
	if p.Severity != datatypes.SeverityError {
		t.Errorf("Expected error severity, got %q", p.Severity)
	}
}
