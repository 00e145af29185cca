// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui renders the codegraph CLI's terminal output: status lines,
// per-message severity coloring, and the formatting of the domain
// vocabulary (node types, daemon lifecycle states) that `codegraph
// status` and friends print. Color output respects the --no-color flag
// and the NO_COLOR environment variable, and is disabled automatically
// when stdout is not a TTY.
package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/kraklabs/codegraph/pkg/pipeline"
)

// Severity and emphasis colors shared by every helper below. Red/yellow/
// green/cyan track errors/warnings/successes/info; Bold and Dim carry
// structure (headers) and de-emphasis (paths, tags).
var (
	Red    = color.New(color.FgRed)
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// InitColors applies the --no-color flag by setting color.NoColor.
// fatih/color already honors NO_COLOR and non-TTY output on its own;
// passing false overwrites that detection, so main calls this only when
// the flag is set.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

// Success prints a green checkmark-prefixed line.
func Success(msg string) {
	_, _ = Green.Println("✓ " + msg)
}

// Warning prints a yellow warning-prefixed line.
func Warning(msg string) {
	_, _ = Yellow.Println("⚠ " + msg)
}

// Error prints a red cross-prefixed line.
func Error(msg string) {
	_, _ = Red.Println("✗ " + msg)
}

// Info prints a cyan info-prefixed line.
func Info(msg string) {
	_, _ = Cyan.Println("ℹ " + msg)
}

// Header prints a bold title with an underline, opening a report section.
func Header(text string) {
	_, _ = Bold.Println(text)
	fmt.Println(strings.Repeat("=", len(text)))
}

// SubHeader prints a bold sub-section title without an underline.
func SubHeader(text string) {
	_, _ = Bold.Println(text)
}

// DimText de-emphasizes secondary values (paths, tags) inline.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText highlights a count inline, for the statistics rows of
// `codegraph status`.
func CountText(count int) string {
	return Cyan.Sprint(count)
}

// NodeTypeText colors a node-type tag by entity family, so the status
// command's by-type breakdown reads at a glance: functions and variables in green,
// type definitions in cyan, structural entries (imports, modules,
// packages) and anything untagged dimmed.
func NodeTypeText(nodeType string) string {
	switch nodeType {
	case "function", "variable":
		return Green.Sprint(nodeType)
	case "struct", "enum", "trait", "class", "interface", "type":
		return Cyan.Sprint(nodeType)
	default: // import, module, package, other:*, unknown
		return Dim.Sprint(nodeType)
	}
}

// DaemonStateText colors a pipeline lifecycle state for status output:
// green while running, red in the error state, yellow for the
// transitional starting/stopping states, dimmed when stopped.
func DaemonStateText(state pipeline.State) string {
	switch state {
	case pipeline.StateRunning:
		return Green.Sprint(string(state))
	case pipeline.StateError:
		return Red.Sprint(string(state))
	case pipeline.StateStarting, pipeline.StateStopping:
		return Yellow.Sprint(string(state))
	default:
		return Dim.Sprint(string(state))
	}
}
