// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the guardctl CLI.
//
// Output respects the personality level: full color for interactive
// terminals, plain greppable text when piped or when
// GUARDIAN_PERSONALITY=machine is set.
package ux

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// Guardian color palette - steel blues with alert ambers and reds
var (
	ColorSteel     = lipgloss.Color("#5B8DB8") // Primary steel blue
	ColorSteelDeep = lipgloss.Color("#3A6A94") // Deep steel - borders
	ColorSlate     = lipgloss.Color("#4A545E") // Slate - muted text

	// Semantic colors
	ColorSuccess = lipgloss.Color("#3FBF7F") // Green for allowed/enabled
	ColorWarning = lipgloss.Color("#F4A830") // Amber for warnings
	ColorDanger  = lipgloss.Color("#E0443E") // Red for refused/critical
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Danger  lipgloss.Style

	DangerBox lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorSteel),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Danger:  lipgloss.NewStyle().Foreground(ColorDanger).Bold(true),

	DangerBox: lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(ColorDanger).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconAllowed Icon = "✓"
	IconWarning Icon = "⚠"
	IconRefused Icon = "✗"
	IconShield  Icon = "⛨"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconAllowed:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconRefused:
		return Styles.Danger.Render(string(i))
	default:
		return string(i)
	}
}

// Success prints a success message with checkmark
func Success(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stdout, "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconAllowed.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconAllowed.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a warning message
func Warning(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Refused prints a refusal or error message
func Refused(text string) {
	switch GetPersonality().Level {
	case PersonalityMachine:
		fmt.Fprintf(os.Stderr, "REFUSED: %s\n", text)
	case PersonalityMinimal:
		fmt.Printf("%s %s\n", IconRefused.Render(), text)
	default:
		fmt.Printf("%s %s\n", IconRefused.Render(), Styles.Danger.Render(text))
	}
}

// Info prints an informational message
func Info(text string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Println(text)
		return
	}
	fmt.Printf("%s %s\n", Styles.Muted.Render("│"), text)
}

// Muted prints muted/secondary text
func Muted(text string) {
	if GetPersonality().Level == PersonalityMachine {
		return
	}
	fmt.Println(Styles.Muted.Render(text))
}

// DangerBox prints a confirmation warning in a red double border.
// Machine mode collapses it to parseable lines.
func DangerBox(title string, lines []string) {
	if GetPersonality().Level == PersonalityMachine {
		fmt.Fprintf(os.Stderr, "DANGER %s\n", title)
		for _, line := range lines {
			fmt.Fprintf(os.Stderr, "DANGER - %s\n", line)
		}
		return
	}

	content := Styles.Danger.Render(title)
	for _, line := range lines {
		content += "\n" + line
	}
	fmt.Println(Styles.DangerBox.Width(64).Render(content))
}

// Verdict prints an ALLOWED/REFUSED line for command validation.
func Verdict(allowed bool, detail string) {
	if GetPersonality().Level == PersonalityMachine {
		verdict := "ALLOWED"
		if !allowed {
			verdict = "REFUSED"
		}
		fmt.Printf("%s %s\n", verdict, detail)
		return
	}

	if allowed {
		fmt.Printf("%s %s  %s\n", IconAllowed.Render(), Styles.Success.Render("ALLOWED"), detail)
	} else {
		fmt.Printf("%s %s  %s\n", IconRefused.Render(), Styles.Danger.Render("REFUSED"), detail)
	}
}
