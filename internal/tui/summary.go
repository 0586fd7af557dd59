package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/kingrea/sectorpages/internal/logbook"
	"github.com/kingrea/sectorpages/internal/pipeline"
	"github.com/kingrea/sectorpages/internal/scaffold"
	"github.com/kingrea/sectorpages/internal/sections"
	"github.com/kingrea/sectorpages/internal/snapshot"
)

// RenderSummary formats a finished run for the terminal.
func RenderSummary(report *pipeline.Report) string {
	if report == nil {
		return ""
	}
	counts := report.Counts()
	var lines []string
	status := string(report.Status)
	switch report.Status {
	case pipeline.RunComplete:
		status = updatedStyle.Render(status)
	case pipeline.RunPartial:
		status = warnStyle.Render(status)
	default:
		status = failedStyle.Render(status)
	}
	lines = append(lines, fmt.Sprintf("%s %s (%s, %s)", titleStyle.Render("run"), report.RunID, report.Mode, status))
	lines = append(lines, fmt.Sprintf("%s %d  %s %d  %s %d",
		updatedStyle.Render("updated"), counts[pipeline.StatusUpdated],
		syncedStyle.Render("synced"), counts[pipeline.StatusSynced],
		failedStyle.Render("failed"), counts[pipeline.StatusFailed]))
	if !report.FinishedAt.IsZero() {
		lines = append(lines, mutedStyle.Render("took "+report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond).String()))
	}
	skipped := 0
	for _, res := range report.Entities {
		skipped += res.SkippedAssets
	}
	if skipped > 0 {
		lines = append(lines, warnStyle.Render(fmt.Sprintf("%d image rule(s) skipped", skipped)))
	}
	if report.FlushError != "" {
		lines = append(lines, warnStyle.Render("cache flush failed: ")+report.FlushError)
	}
	if len(report.MissingExperts) > 0 {
		lines = append(lines, warnStyle.Render("experts not in user directory: ")+strings.Join(report.MissingExperts, ", "))
	}
	for _, res := range report.Failed() {
		lines = append(lines, failedStyle.Render("✗ ")+res.Entity+" "+detailStyle.Render(res.Error))
	}
	if report.Error != "" {
		lines = append(lines, failedStyle.Render("aborted: ")+report.Error)
	}
	return boxStyle.Render(strings.Join(lines, "\n")) + "\n"
}

// RenderExperts formats the experts report, flagging entities with no
// resolvable experts.
func RenderExperts(lines []sections.ExpertLine) string {
	var b strings.Builder
	empty := 0
	for _, line := range lines {
		label := updatedStyle.Render(fmt.Sprintf("%2d", len(line.IDs)))
		if line.Empty() {
			label = failedStyle.Render(" 0")
			empty++
		}
		b.WriteString(fmt.Sprintf("%s %s", label, line.Entity))
		if len(line.Names) > 0 {
			b.WriteString(" " + detailStyle.Render(strings.Join(line.Names, ", ")))
		}
		if len(line.Missing) > 0 {
			b.WriteString(" " + warnStyle.Render("missing: "+strings.Join(line.Missing, ", ")))
		}
		b.WriteString("\n")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d entities, %d without experts", len(lines), empty)) + "\n")
	return b.String()
}

// RenderScaffold formats a scaffold report.
func RenderScaffold(report scaffold.Report) string {
	var b strings.Builder
	for _, dir := range report.Created {
		b.WriteString(updatedStyle.Render("created ") + dir + "\n")
	}
	for _, path := range report.Missing {
		b.WriteString(warnStyle.Render("missing ") + path + "\n")
	}
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%d created, %d existing, %d files missing",
		len(report.Created), len(report.Existing), len(report.Missing))) + "\n")
	return b.String()
}

// RenderJournal formats journal entries with their level highlighted.
func RenderJournal(entries []logbook.Entry, total int) string {
	var b strings.Builder
	if len(entries) < total {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("showing last %d of %d entries", len(entries), total)) + "\n")
	}
	for _, entry := range entries {
		if entry.Level == "" {
			b.WriteString(entry.Raw + "\n")
			continue
		}
		level := mutedStyle.Render(string(entry.Level))
		switch entry.Level {
		case logbook.LevelWarn:
			level = warnStyle.Render(string(entry.Level))
		case logbook.LevelError:
			level = failedStyle.Render(string(entry.Level))
		}
		b.WriteString(fmt.Sprintf("%s %-5s %s\n", mutedStyle.Render(entry.Time.Local().Format("2006-01-02 15:04:05")), level, entry.Message))
	}
	return b.String()
}

// StatusLine is one entity's local snapshot state.
type StatusLine struct {
	Entity string
	Check  snapshot.CheckResult
}

// RenderStatus formats snapshot states. cached is the media cache size, or a
// negative number when no cache is configured.
func RenderStatus(lines []StatusLine, cached int) string {
	var b strings.Builder
	counts := map[snapshot.State]int{}
	for _, line := range lines {
		state := line.Check.State
		counts[state]++
		label := mutedStyle.Render(fmt.Sprintf("%-7s", state))
		switch state {
		case snapshot.StateReady:
			label = updatedStyle.Render(fmt.Sprintf("%-7s", state))
		case snapshot.StateInvalid, snapshot.StateError:
			label = failedStyle.Render(fmt.Sprintf("%-7s", state))
		}
		b.WriteString(label + " " + line.Entity)
		if line.Check.Checksum != "" {
			b.WriteString(" " + detailStyle.Render(line.Check.Checksum[:12]))
		}
		if line.Check.Err != nil {
			b.WriteString(" " + warnStyle.Render(line.Check.Err.Error()))
		}
		b.WriteString("\n")
	}
	summary := fmt.Sprintf("%d ready, %d missing, %d invalid",
		counts[snapshot.StateReady], counts[snapshot.StateMissing], counts[snapshot.StateInvalid]+counts[snapshot.StateError])
	if cached >= 0 {
		summary += fmt.Sprintf(", %d media cached", cached)
	}
	b.WriteString(mutedStyle.Render(summary) + "\n")
	return b.String()
}
