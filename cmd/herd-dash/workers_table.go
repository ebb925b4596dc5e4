package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"herd/pkg/state"
)

// renderWorkersTable renders the pool snapshot as a fixed-width table.
func renderWorkersTable(workers []state.WorkerInfo, theme Theme) string {
	if len(workers) == 0 {
		return lipgloss.NewStyle().Foreground(theme.Muted).Render("no pool state (run: herd setup)")
	}

	headers := []string{"Worker", "Status", "Item", "Setup"}
	widths := []int{10, 8, 40, 12}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary)
	var sb strings.Builder
	for i, h := range headers {
		sb.WriteString(headerStyle.Render(pad(h, widths[i])))
	}
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("─", total(widths)))
	sb.WriteString("\n")

	busyStyle := lipgloss.NewStyle().Foreground(theme.Warning)
	freeStyle := lipgloss.NewStyle().Foreground(theme.Success)

	for _, w := range workers {
		sb.WriteString(pad(fmt.Sprintf("worker-%d", w.ID), widths[0]))
		if w.Status == state.StatusBusy {
			sb.WriteString(busyStyle.Render(pad("busy", widths[1])))
			sb.WriteString(pad(truncate(w.Payload, widths[2]-2), widths[2]))
			if w.SetupConfirmed {
				sb.WriteString(pad("confirmed", widths[3]))
			} else {
				sb.WriteString(pad("pending", widths[3]))
			}
		} else {
			sb.WriteString(freeStyle.Render(pad("free", widths[1])))
			sb.WriteString(pad("-", widths[2]))
			sb.WriteString(pad("-", widths[3]))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// pad right-pads s with spaces to width.
func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// truncate shortens s to max characters with an ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 1 {
		return s[:max]
	}
	return s[:max-1] + "…"
}

// total sums column widths.
func total(widths []int) int {
	sum := 0
	for _, w := range widths {
		sum += w
	}
	return sum
}
