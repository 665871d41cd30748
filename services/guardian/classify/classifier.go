// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package classify implements the guardian's embedded command risk
// classifier.
//
// Rules live in a YAML ruleset baked into the binary (see the
// enforcement subpackage). Each incoming command is rendered as a single
// command line and matched against the rules highest-priority first; the
// first matching rule decides the risk tier and whether the command may
// run at all.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianGuard/pkg/extensions"
	"github.com/AleutianAI/AleutianGuard/services/guardian/classify/enforcement"
	"gopkg.in/yaml.v3"
)

// RuleClassifier classifies commands against the embedded ruleset.
//
// # Thread Safety
//
// The classifier is immutable after construction and safe for concurrent
// use from any number of goroutines.
type RuleClassifier struct {
	rules []CommandRule
}

// NewRuleClassifier initializes a classifier from the ruleset embedded in
// the binary.
//
// It performs the following operations:
//  1. Unmarshals the embedded YAML data.
//  2. Compiles all regex patterns.
//  3. Sorts rules by priority.
//
// Returns an error if the embedded YAML is malformed or contains an
// invalid regex.
func NewRuleClassifier() (*RuleClassifier, error) {
	var file CommandRuleFile
	if err := yaml.Unmarshal(enforcement.CommandRiskRules, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the embedded rules file: %w", err)
	}

	if err := file.CompileRegexes(); err != nil {
		return nil, fmt.Errorf("failed to compile a regex: %w", err)
	}

	file.SortByPriority()

	return &RuleClassifier{rules: file.Rules}, nil
}

// ClassifyCommand matches the command line against the ruleset and
// returns the verdict.
//
// # Description
//
// Matching is first-hit by priority. A matched deny rule refuses the
// command regardless of session state. A matched confirm rule refuses
// unless the session currently holds elevated privileges. Warn rules
// always allow and attach the rule message as a warning. Commands
// matching nothing classify as safe.
func (c *RuleClassifier) ClassifyCommand(_ context.Context, cmd extensions.CommandContext) (*extensions.ClassificationResult, error) {
	line := commandLine(cmd.Command, cmd.Args)

	rule := c.match(line)
	if rule == nil {
		return &extensions.ClassificationResult{
			Allowed: true,
			Risk:    extensions.RiskSafe,
		}, nil
	}

	result := &extensions.ClassificationResult{Risk: rule.Risk}

	switch rule.Action {
	case ActionDeny:
		result.Allowed = false
		result.Errors = []string{rule.Message}
	case ActionConfirm:
		if cmd.DangerousModeEnabled {
			result.Allowed = true
			result.Warnings = []string{rule.Message}
		} else {
			result.Allowed = false
			result.Errors = []string{fmt.Sprintf(
				"%s; enable dangerous mode to run %s-risk commands", rule.Message, rule.Risk)}
		}
	case ActionWarn:
		result.Allowed = true
		result.Warnings = []string{rule.Message}
	default:
		// Unreachable with a validated ruleset; fail closed anyway.
		result.Allowed = false
		result.Errors = []string{fmt.Sprintf("unknown rule action %q", rule.Action)}
	}

	return result, nil
}

// match returns the highest-priority rule whose patterns hit the line,
// or nil when nothing matches.
func (c *RuleClassifier) match(line string) *CommandRule {
	for i := range c.rules {
		for j := range c.rules[i].Patterns {
			if c.rules[i].Patterns[j].compiled.MatchString(line) {
				return &c.rules[i]
			}
		}
	}
	return nil
}

// Rules exposes the loaded ruleset for introspection endpoints.
func (c *RuleClassifier) Rules() []CommandRule {
	return c.rules
}

func commandLine(command string, args []string) string {
	if len(args) == 0 {
		return command
	}
	return command + " " + strings.Join(args, " ")
}

// Compile-time interface compliance check.
var _ extensions.CommandClassifier = (*RuleClassifier)(nil)
