package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/spec-kit/repair-service/internal/domain"
)

type column struct {
	title string
	width int
	value func(domain.RepairRequest) string
}

var columns = []column{
	{"ID", 12, func(r domain.RepairRequest) string { return r.ID }},
	{"CREATED", 16, func(r domain.RepairRequest) string { return r.CreatedAt.Local().Format("2006-01-02 15:04") }},
	{"NAME", 18, func(r domain.RepairRequest) string { return r.Name }},
	{"DEPARTMENT", 16, func(r domain.RepairRequest) string { return r.Department }},
	{"PROBLEM", 9, func(r domain.RepairRequest) string { return string(r.ProblemType) }},
	{"PRIORITY", 8, func(r domain.RepairRequest) string { return string(r.Priority) }},
	{"STATUS", 11, func(r domain.RepairRequest) string { return string(r.Status) }},
	{"NOTE", 0, func(r domain.RepairRequest) string { return r.TechnicianNote }},
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Underline(true)
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	statusColors = map[domain.RequestStatus]lipgloss.Color{
		domain.StatusPending:    lipgloss.Color("214"),
		domain.StatusInProgress: lipgloss.Color("39"),
		domain.StatusCompleted:  lipgloss.Color("42"),
		domain.StatusCancelled:  lipgloss.Color("243"),
	}
	priorityColors = map[domain.RequestPriority]lipgloss.Color{
		domain.PriorityUrgent: lipgloss.Color("196"),
		domain.PriorityHigh:   lipgloss.Color("208"),
	}
)

func renderHeader(baseURL string, filter domain.RequestFilter, count int, at time.Time) string {
	scope := "all statuses"
	if filter.Status != "" {
		scope = string(filter.Status)
	}
	if filter.Search != "" {
		scope += fmt.Sprintf(", matching %q", filter.Search)
	}
	return titleStyle.Render("Repair requests") + " " +
		mutedStyle.Render(fmt.Sprintf("%s · %s · %d shown · updated %s", baseURL, scope, count, at.Format("15:04:05")))
}

// renderTable lays records out newest first, as received. The last
// column takes whatever width remains.
func renderTable(records []domain.RepairRequest, width int) string {
	if len(records) == 0 {
		return mutedStyle.Render("no repair requests")
	}
	widths := columnWidths(width)

	var b strings.Builder
	cells := make([]string, len(columns))
	for i, col := range columns {
		cells[i] = headerStyle.Width(widths[i]).MaxWidth(widths[i]).Render(truncate(col.title, widths[i]))
	}
	b.WriteString(strings.Join(cells, " "))

	for _, record := range records {
		b.WriteByte('\n')
		for i, col := range columns {
			style := lipgloss.NewStyle().Width(widths[i]).MaxWidth(widths[i])
			switch col.title {
			case "STATUS":
				if color, ok := statusColors[record.Status]; ok {
					style = style.Foreground(color)
				}
			case "PRIORITY":
				if color, ok := priorityColors[record.Priority]; ok {
					style = style.Foreground(color).Bold(true)
				}
			}
			cells[i] = style.Render(truncate(col.value(record), widths[i]))
		}
		b.WriteString(strings.Join(cells, " "))
	}
	return b.String()
}

func columnWidths(total int) []int {
	widths := make([]int, len(columns))
	used := 0
	for i, col := range columns {
		widths[i] = col.width
		used += col.width + 1
	}
	last := len(columns) - 1
	widths[last] = total - used
	if widths[last] < 8 {
		widths[last] = 8
	}
	return widths
}

// truncate shortens text to fit max display cells, marking the cut with an ellipsis.
func truncate(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if lipgloss.Width(text) <= max {
		return text
	}
	if max <= 1 {
		return "…"
	}
	runes := []rune(text)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > max {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
