package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kalambet/peerfuse/internal/matching"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// printMatch writes one ranked candidate with its reasons.
func printMatch(w io.Writer, heading string, m matching.Result) {
	fmt.Fprintf(w, "%s %s [score: %d]\n", colorize(colorBold, heading), m.Candidate.Name, m.Score)
	if m.Candidate.Availability != "" {
		fmt.Fprintf(w, "  Availability: %s\n", m.Candidate.Availability)
	}
	if len(m.Candidate.Strengths) > 0 {
		fmt.Fprintf(w, "  Strengths:    %s\n", strings.Join(m.Candidate.Strengths, ", "))
	}
	if len(m.Candidate.Weaknesses) > 0 {
		fmt.Fprintf(w, "  Weaknesses:   %s\n", strings.Join(m.Candidate.Weaknesses, ", "))
	}
	for _, r := range m.Reasons {
		fmt.Fprintf(w, "  %s %s (+%d)\n", colorize(colorGreen, "•"), r.Reason, r.Points)
	}
}

func printJSONIndent(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
