// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.
package classify

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"gopkg.in/yaml.v3"
)

// RuleAction is what happens when a rule matches.
type RuleAction string

const (
	// ActionDeny refuses the command unconditionally, dangerous mode or not.
	ActionDeny RuleAction = "deny"

	// ActionConfirm allows the command only while dangerous mode is enabled.
	ActionConfirm RuleAction = "confirm"

	// ActionWarn allows the command and attaches the rule message as a
	// warning.
	ActionWarn RuleAction = "warn"
)

// CommandRuleFile is the top-level structure of command_risk_rules.yaml.
type CommandRuleFile struct {
	Rules []CommandRule `yaml:"rules"`
}

// CommandRule is one named rule grouping patterns under a risk tier.
type CommandRule struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description"`
	Priority    int                  `yaml:"priority"`
	Risk        extensions.RiskLevel `yaml:"risk"`
	Action      RuleAction           `yaml:"action"`
	Message     string               `yaml:"message"`
	Patterns    []RulePattern        `yaml:"patterns"`
}

// RulePattern is one regex within a rule.
type RulePattern struct {
	Id          string `yaml:"id"`
	Description string `yaml:"description"`
	Regex       string `yaml:"regex"`

	compiled *regexp.Regexp `yaml:"-"`
}

// UnmarshalYAML validates the action value at parse time so a typo in the
// ruleset fails the build's tests rather than silently allowing commands.
func (a *RuleAction) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	incoming := RuleAction(s)
	switch incoming {
	case ActionDeny, ActionConfirm, ActionWarn:
		*a = incoming
		return nil
	default:
		return fmt.Errorf("invalid value for Action: %q", incoming)
	}
}

// CompileRegexes compiles every pattern in the file.
func (f *CommandRuleFile) CompileRegexes() error {
	for i := range f.Rules {
		for j := range f.Rules[i].Patterns {
			pattern := &f.Rules[i].Patterns[j]
			re, err := regexp.Compile(pattern.Regex)
			if err != nil {
				return fmt.Errorf("failed to compile the regex %s: %w", pattern.Regex, err)
			}
			pattern.compiled = re
		}
	}
	return nil
}

// SortByPriority orders rules from highest to lowest priority so the
// first match wins.
func (f *CommandRuleFile) SortByPriority() {
	sort.Slice(f.Rules, func(i, j int) bool {
		return f.Rules[i].Priority > f.Rules[j].Priority
	})
}
