// Package tui implements the `tinkerd watch` terminal UI: a live view of
// fine-tuning runs with per-run training progress.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bledden/tinker-voice/internal/domain"
	"github.com/bledden/tinker-voice/internal/orchestrator"
)

type View int

const (
	ViewRunList View = iota
	ViewRunDetail
)

type App struct {
	orch *orchestrator.Orchestrator

	view        View
	runs        []domain.TrainingRun
	selectedIdx int
	selectedRun *domain.TrainingRun
	bar         progress.Model

	width  int
	height int
	err    error
}

func NewApp(orch *orchestrator.Orchestrator) *App {
	bar := progress.New(progress.WithDefaultGradient())
	bar.Width = 40
	return &App{
		orch: orch,
		view: ViewRunList,
		bar:  bar,
	}
}

func (a *App) Init() tea.Cmd {
	return tea.Batch(a.loadRuns, a.tickCmd())
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (a *App) hasLiveRuns() bool {
	for _, run := range a.runs {
		if !run.IsTerminal() {
			return true
		}
	}
	return false
}

type tickMsg time.Time

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return a.handleKey(msg)

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		return a, nil

	case runsLoadedMsg:
		a.runs = msg.runs
		a.err = msg.err
		if a.selectedIdx >= len(a.runs) && a.selectedIdx > 0 {
			a.selectedIdx = len(a.runs) - 1
		}
		// Keep the detail view current as the run advances.
		if a.selectedRun != nil {
			for i := range a.runs {
				if a.runs[i].ID == a.selectedRun.ID {
					a.selectedRun = &a.runs[i]
					break
				}
			}
		}
		return a, nil

	case tickMsg:
		if a.hasLiveRuns() || len(a.runs) == 0 {
			return a, tea.Batch(a.loadRuns, a.tickCmd())
		}
		// Keep ticking to detect new runs
		return a, a.tickCmd()

	case runActionMsg:
		a.err = msg.err
		return a, a.loadRuns
	}

	return a, nil
}

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch a.view {
	case ViewRunList:
		return a.handleRunListKey(msg)
	case ViewRunDetail:
		return a.handleRunDetailKey(msg)
	}
	return a, nil
}

func (a *App) handleRunListKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return a, tea.Quit

	case "up", "k":
		if a.selectedIdx > 0 {
			a.selectedIdx--
		}

	case "down", "j":
		if a.selectedIdx < len(a.runs)-1 {
			a.selectedIdx++
		}

	case "enter":
		if len(a.runs) > 0 && a.selectedIdx < len(a.runs) {
			a.selectedRun = &a.runs[a.selectedIdx]
			a.view = ViewRunDetail
		}

	case "s":
		if len(a.runs) > 0 && a.selectedIdx < len(a.runs) {
			return a, a.startRun(a.runs[a.selectedIdx].ID)
		}

	case "x":
		if len(a.runs) > 0 && a.selectedIdx < len(a.runs) {
			return a, a.cancelRun(a.runs[a.selectedIdx].ID)
		}

	case "r":
		return a, a.refreshRuns
	}

	return a, nil
}

func (a *App) handleRunDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "esc":
		a.view = ViewRunList
		a.selectedRun = nil

	case "ctrl+c":
		return a, tea.Quit

	case "x":
		if a.selectedRun != nil {
			return a, a.cancelRun(a.selectedRun.ID)
		}
	}

	return a, nil
}

func (a *App) View() string {
	switch a.view {
	case ViewRunList:
		return a.viewRunList()
	case ViewRunDetail:
		return a.viewRunDetail()
	}
	return ""
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("229")).
			Background(lipgloss.Color("57"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	statusRunning   = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	statusCompleted = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	statusFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusCancelled = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	statusPending   = lipgloss.NewStyle().Foreground(lipgloss.Color("243"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

func (a *App) viewRunList() string {
	s := titleStyle.Render("Tinker Runs") + "\n\n"

	if a.err != nil {
		s += fmt.Sprintf("Error: %v\n", a.err)
	}

	if len(a.runs) == 0 {
		s += "No runs yet. Use 'tinkerd create' to start one.\n"
	} else {
		for i, run := range a.runs {
			line := a.formatRunLine(run)
			isSelected := i == a.selectedIdx

			if isSelected {
				line = selectedStyle.Render("▶ " + line)
			} else if run.IsTerminal() {
				line = "  " + dimStyle.Render(line)
			} else {
				line = "  " + line
			}
			s += line + "\n"
		}
	}

	s += "\n" + helpStyle.Render("[enter] detail  [s] start  [x] cancel  [r] refresh  [q] quit")

	return s
}

func (a *App) formatRunLine(run domain.TrainingRun) string {
	status := a.formatStatus(run.Status)
	age := a.formatAge(run.CreatedAt)
	name := run.Name
	if name == "" {
		name = run.Config.BaseModel
	}
	pct := ""
	if run.Progress != nil && run.Status == domain.StatusRunning {
		pct = fmt.Sprintf("%3.0f%%", run.Progress.PercentComplete())
	}
	return fmt.Sprintf("%-14s %-20s %s  %4s  %-5s", run.ID, truncate(name, 20), status, pct, age)
}

func (a *App) formatAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

func (a *App) formatStatus(status domain.RunStatus) string {
	switch status {
	case domain.StatusRunning:
		return statusRunning.Render("● running  ")
	case domain.StatusCompleted:
		return statusCompleted.Render("✓ completed")
	case domain.StatusFailed:
		return statusFailed.Render("✗ failed   ")
	case domain.StatusCancelled:
		return statusCancelled.Render("⊘ cancelled")
	default:
		return statusPending.Render("○ pending  ")
	}
}

func (a *App) viewRunDetail() string {
	if a.selectedRun == nil {
		return "No run selected"
	}
	run := a.selectedRun

	header := fmt.Sprintf("Run %s", run.ID)
	if run.Name != "" {
		header += ": " + run.Name
	}
	s := titleStyle.Render(header) + "  " + a.formatStatus(run.Status) + "\n\n"

	if run.Description != "" {
		s += run.Description + "\n\n"
	}

	s += labelStyle.Render("Base model: ") + run.Config.BaseModel + "\n"
	s += labelStyle.Render("Dataset:    ") + run.DatasetID + "\n"
	s += labelStyle.Render("Tier:       ") + string(run.Config.Tier) + "\n"
	if run.Config.EstimatedCost > 0 {
		s += labelStyle.Render("Estimate:   ") +
			fmt.Sprintf("$%.4f, %s", run.Config.EstimatedCost, run.Config.EstimatedDuration) + "\n"
	}

	if p := run.Progress; p != nil {
		s += "\n" + a.bar.ViewAs(p.PercentComplete()/100) + "\n"
		s += dimStyle.Render(fmt.Sprintf("step %d/%d  epoch %d/%d",
			p.CurrentStep, p.TotalSteps, p.CurrentEpoch, p.TotalEpochs))
		if p.Loss != nil {
			s += dimStyle.Render(fmt.Sprintf("  loss %.4f", *p.Loss))
		}
		if p.ETASeconds > 0 && run.Status == domain.StatusRunning {
			s += dimStyle.Render(fmt.Sprintf("  eta %s", (time.Duration(p.ETASeconds) * time.Second)))
		}
		s += "\n"
		if len(p.LossHistory) > 1 {
			s += "\n" + labelStyle.Render("Loss: ") + sparkline(p.LossHistory, 30) + "\n"
		}
	}

	if run.ArtifactID != "" {
		s += "\n" + labelStyle.Render("Artifact:   ") + run.ArtifactID + "\n"
	}
	if run.Error != "" {
		s += "\n" + statusFailed.Render("Error: "+run.Error) + "\n"
	}
	if !run.CompletedAt.IsZero() {
		s += labelStyle.Render("Duration:   ") + formatDuration(run.Duration()) + "\n"
	}

	s += "\n" + helpStyle.Render("[x] cancel  [esc] back  [q] quit")

	return s
}

// Messages

type runsLoadedMsg struct {
	runs []domain.TrainingRun
	err  error
}

type runActionMsg struct {
	err error
}

// Commands

func (a *App) loadRuns() tea.Msg {
	return runsLoadedMsg{runs: a.orch.Runs()}
}

func (a *App) refreshRuns() tea.Msg {
	_, err := a.orch.RefreshRuns(context.Background())
	return runActionMsg{err: err}
}

func (a *App) startRun(id string) tea.Cmd {
	return func() tea.Msg {
		_, err := a.orch.StartRun(context.Background(), id)
		return runActionMsg{err: err}
	}
}

func (a *App) cancelRun(id string) tea.Cmd {
	return func() tea.Msg {
		_, err := a.orch.CancelRun(context.Background(), id)
		return runActionMsg{err: err}
	}
}

// sparkline renders a loss history as a compact unicode chart, most recent
// values last.
func sparkline(vals []float64, width int) string {
	if len(vals) > width {
		vals = vals[len(vals)-width:]
	}
	min, max := vals[0], vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	ticks := []rune("▁▂▃▄▅▆▇█")
	out := make([]rune, len(vals))
	for i, v := range vals {
		idx := 0
		if max > min {
			idx = int((v - min) / (max - min) * float64(len(ticks)-1))
		}
		out[i] = ticks[idx]
	}
	return string(out)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
