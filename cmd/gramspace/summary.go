package main

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"gramspace/internal/core/app"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3B82F6")).
			Bold(true)

	jobStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F87171")).
			Bold(true)

	detailStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#64748B"))
)

func printSummary(results []app.BuildResult) {
	fmt.Println(titleStyle.Render("Grammar Builds"))
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("  %s  %s\n", errorStyle.Render(r.Job.Name), r.Err)
			continue
		}
		fmt.Printf("  %s  %s\n", jobStyle.Render(r.Job.Name), r.Job.TypeRequest)
		fmt.Printf("    %s\n", detailStyle.Render(fmt.Sprintf(
			"%d states, %d rules, %s programs, built in %v",
			r.Grammar.StateCount(),
			r.Grammar.RuleCount(),
			formatCount(r.Programs),
			r.Duration,
		)))
	}
}

// formatCount renders small counts exactly and collapses the astronomically
// large ones to scientific notation.
func formatCount(n *big.Int) string {
	if n == nil {
		return "0"
	}
	s := n.String()
	if len(s) <= 15 {
		return s
	}
	mantissa := strings.TrimRight(s[1:4], "0")
	if mantissa == "" {
		return fmt.Sprintf("%ce+%d", s[0], len(s)-1)
	}
	return fmt.Sprintf("%c.%se+%d", s[0], mantissa, len(s)-1)
}
