// Package render draws the agent status board shown by the status command.
package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/alanpac24/Vibebusiness/internal/catalog"
	"github.com/alanpac24/Vibebusiness/internal/models"
	"github.com/alanpac24/Vibebusiness/internal/resolver"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	categoryStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	boxStyle      = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)

	labelStyleCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	labelStyleAvailable = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	labelStyleRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyleLocked    = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	detailTextStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	footerStyle         = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

// Board renders one box per category listing each agent with its state.
// Locked agents show the prerequisites still missing.
func Board(c *catalog.Catalog, proj models.Project, ui resolver.AgentUIState) string {
	header := headerStyle.Render(fmt.Sprintf("%s · %s", proj.Name, proj.Status))

	byCategory := make(map[string][]catalog.Agent)
	for _, a := range c.Agents {
		byCategory[a.Category] = append(byCategory[a.Category], a)
	}

	sections := []string{header}
	for _, cat := range c.Categories() {
		var lines []string
		lines = append(lines, categoryStyle.Render(cat))
		for _, a := range byCategory[cat] {
			lines = append(lines, agentLine(a, ui))
		}
		sections = append(sections, boxStyle.Render(strings.Join(lines, "\n")))
	}

	sections = append(sections, footerStyle.Render(fmt.Sprintf("%d/%d completed · %d available · %d locked",
		len(ui.CompletedAgents), c.Len(), len(ui.AvailableAgents), len(ui.LockedAgents))))
	return strings.Join(sections, "\n")
}

func agentLine(a catalog.Agent, ui resolver.AgentUIState) string {
	var label string
	switch {
	case ui.CurrentAgent == a.ID:
		label = labelStyleRunning.Render("RUNNING  ")
	case ui.StateOf(a.ID) == resolver.StateCompleted:
		label = labelStyleCompleted.Render("DONE     ")
	case ui.StateOf(a.ID) == resolver.StateAvailable:
		label = labelStyleAvailable.Render("READY    ")
	default:
		label = labelStyleLocked.Render("LOCKED   ")
	}
	line := fmt.Sprintf("%s %s %s", label, a.Icon, a.Name)
	if blocked := ui.BlockedBy[a.ID]; len(blocked) > 0 {
		line += " " + detailTextStyle.Render("needs "+strings.Join(blocked, ", "))
	}
	return line
}
