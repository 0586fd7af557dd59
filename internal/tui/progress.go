// internal/tui/progress.go
//
// Run progress view. The pipeline emits events from its workers; Run
// forwards them to the bubbletea program as messages and the model renders
// a progress bar plus one line per finished entity.

package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/sectorpages/internal/pipeline"
)

// maxRows bounds the finished-entity list rendered under the bar.
const maxRows = 12

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	updatedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	syncedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	boxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#444444")).Padding(0, 1)
)

// EventMsg wraps a pipeline event.
type EventMsg struct {
	Event pipeline.Event
}

// DoneMsg carries the result of the run.
type DoneMsg struct {
	Report *pipeline.Report
	Err    error
}

type entityRow struct {
	entity string
	status pipeline.Status
	err    error
}

// Model renders run progress.
type Model struct {
	spinner  spinner.Model
	bar      progress.Model
	cancel   context.CancelFunc
	runID    string
	total    int
	done     int
	current  map[string]struct{}
	rows     []entityRow
	report   *pipeline.Report
	err      error
	finished bool
	width    int
}

// NewModel builds the progress model. cancel is invoked when the user quits
// before the run completes.
func NewModel(cancel context.CancelFunc) Model {
	return Model{
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(syncedStyle)),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		cancel:  cancel,
		current: map[string]struct{}{},
	}
}

// Init starts the spinner.
func (m Model) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles pipeline events, completion and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if !m.finished && m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = max(20, min(60, msg.Width-20))
	case EventMsg:
		m.apply(msg.Event)
	case DoneMsg:
		m.finished = true
		m.report = msg.Report
		m.err = msg.Err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) apply(ev pipeline.Event) {
	switch ev.Kind {
	case pipeline.EventRunStarted:
		m.runID = ev.RunID
		m.total = ev.Total
	case pipeline.EventEntityStarted:
		m.current[ev.Entity] = struct{}{}
	case pipeline.EventEntityFinished:
		delete(m.current, ev.Entity)
		m.done = ev.Done
		m.rows = append(m.rows, entityRow{entity: ev.Entity, status: ev.Status, err: ev.Err})
	case pipeline.EventRunFinished:
		m.done = ev.Done
	}
}

// Percent returns the completed fraction.
func (m Model) Percent() float64 {
	if m.total == 0 {
		return 0
	}
	return float64(m.done) / float64(m.total)
}

// View renders the progress bar and recent entity outcomes.
func (m Model) View() string {
	var b strings.Builder
	header := titleStyle.Render("sectorpages")
	if m.runID != "" {
		header += " " + mutedStyle.Render(m.runID)
	}
	b.WriteString(header + "\n\n")
	if !m.finished {
		b.WriteString(m.spinner.View() + " ")
	}
	b.WriteString(m.bar.ViewAs(m.Percent()))
	b.WriteString(fmt.Sprintf(" %d/%d\n", m.done, m.total))
	if len(m.current) > 0 {
		names := make([]string, 0, len(m.current))
		for name := range m.current {
			names = append(names, name)
		}
		slices.Sort(names)
		b.WriteString(detailStyle.Render("working: "+strings.Join(names, ", ")) + "\n")
	}
	b.WriteString("\n")
	rows := m.rows
	if len(rows) > maxRows {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("… %d earlier", len(rows)-maxRows)) + "\n")
		rows = rows[len(rows)-maxRows:]
	}
	for _, row := range rows {
		b.WriteString(renderRow(row) + "\n")
	}
	if m.finished {
		b.WriteString("\n")
		if m.report != nil {
			b.WriteString(RenderSummary(m.report))
		} else if m.err != nil {
			b.WriteString(failedStyle.Render("run failed: ") + m.err.Error() + "\n")
		}
	} else {
		b.WriteString(mutedStyle.Render("q to cancel") + "\n")
	}
	return b.String()
}

func renderRow(row entityRow) string {
	label := statusLabel(row.status)
	line := label + " " + row.entity
	if row.err != nil {
		line += " " + detailStyle.Render(row.err.Error())
	}
	return line
}

func statusLabel(status pipeline.Status) string {
	switch status {
	case pipeline.StatusUpdated:
		return updatedStyle.Render("updated")
	case pipeline.StatusSynced:
		return syncedStyle.Render("synced ")
	case pipeline.StatusFailed:
		return failedStyle.Render("failed ")
	}
	return mutedStyle.Render(string(status))
}

// RunFunc executes a run, reporting progress through onEvent.
type RunFunc func(ctx context.Context, onEvent func(pipeline.Event)) (*pipeline.Report, error)

// Run drives fn under a progress view on out. Quitting the view cancels the
// run context; Run still waits for fn to return.
func Run(ctx context.Context, out io.Writer, fn RunFunc, opts ...tea.ProgramOption) (*pipeline.Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	opts = append([]tea.ProgramOption{tea.WithOutput(out), tea.WithContext(ctx)}, opts...)
	program := tea.NewProgram(NewModel(cancel), opts...)
	type result struct {
		report *pipeline.Report
		err    error
	}
	results := make(chan result, 1)
	go func() {
		report, err := fn(ctx, func(ev pipeline.Event) { program.Send(EventMsg{Event: ev}) })
		program.Send(DoneMsg{Report: report, Err: err})
		results <- result{report: report, err: err}
	}()
	_, uiErr := program.Run()
	cancel()
	res := <-results
	if res.err != nil {
		return res.report, res.err
	}
	if uiErr != nil && !errors.Is(uiErr, tea.ErrProgramKilled) {
		return res.report, fmt.Errorf("tui: %w", uiErr)
	}
	return res.report, nil
}
