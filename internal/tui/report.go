package tui

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/modgraph/internal/workflow"
	"github.com/kingrea/modgraph/internal/workflow/view"
)

var (
	labelStyleReady   = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	labelStyleBlocked = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	labelStyleShared  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	labelStyleReset   = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	labelStyleSkipped = lipgloss.NewStyle().Foreground(lipgloss.Color("#999999"))
	labelStyleDefault = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
	detailTextStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	headerStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
)

// RenderReport formats a snapshot for the terminal: a header line followed by
// one section per thread.
func RenderReport(snap *view.Snapshot) string {
	if snap == nil {
		return labelStyleSkipped.Render("No resolution has been published yet.")
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render("⬡ MODGRAPH"))
	b.WriteString("\n")
	b.WriteString(detailTextStyle.Render(fmt.Sprintf("generation %d · %s · %s",
		snap.Generation, snap.ResolutionID, snap.ResolvedAt.Format("2006-01-02 15:04:05"))))
	b.WriteString("\n")
	if len(snap.Configuration.Defaults) > 0 {
		b.WriteString(labelStyleDefault.Render("Defaults: " + strings.Join(snap.Configuration.Defaults, ", ")))
		b.WriteString("\n")
	}
	if len(snap.Reset) > 0 {
		b.WriteString(labelStyleReset.Render("Reset: " + strings.Join(snap.Reset, ", ")))
		b.WriteString("\n")
	}
	order := snap.ThreadNames()
	for _, v := range snap.Threads {
		b.WriteString("\n")
		b.WriteString(RenderView(v, order))
	}
	return strings.TrimRight(b.String(), "\n")
}

// RenderView formats one execution view. order fixes the listing order of
// peer threads; peers missing from it are appended alphabetically.
func RenderView(v view.ExecutionView, order []string) string {
	var lines []string
	lines = append(lines, labelStyleShared.Render(v.Thread))

	lines = append(lines, labelStyleDefault.Render("Providers"))
	if len(v.Providers) == 0 {
		lines = append(lines, "  "+labelStyleSkipped.Render("none"))
	}
	for idx, p := range v.Providers {
		lines = append(lines, fmt.Sprintf("  %2d. %s", idx+1, p.String()))
	}

	received := peerOrder(v.Received, order)
	if len(received) > 0 {
		lines = append(lines, labelStyleDefault.Render("Received"))
		for _, peer := range received {
			lines = append(lines, fmt.Sprintf("  from %s: %s", peer, transferList(v.Received[peer])))
		}
	}
	sent := peerOrder(v.Sent, order)
	if len(sent) > 0 {
		lines = append(lines, labelStyleDefault.Render("Sent"))
		for _, peer := range sent {
			lines = append(lines, fmt.Sprintf("  to %s: %s", peer, strings.Join(v.Sent[peer], ", ")))
		}
	}
	if len(v.Reset) > 0 {
		lines = append(lines, labelStyleReset.Render("Reset")+" "+strings.Join(v.Reset, ", "))
	}

	var active, idle []string
	for _, flag := range v.Modules {
		if flag.Required {
			active = append(active, flag.Name)
		} else {
			idle = append(idle, flag.Name)
		}
	}
	lines = append(lines, labelStyleReady.Render(fmt.Sprintf("Modules (%d active)", len(active))))
	if len(active) > 0 {
		lines = append(lines, "  "+strings.Join(active, ", "))
	}
	if len(idle) > 0 {
		lines = append(lines, "  "+labelStyleSkipped.Render("idle: "+strings.Join(idle, ", ")))
	}
	return strings.Join(lines, "\n") + "\n"
}

// RenderError formats a rejected configuration.
func RenderError(err error) string {
	if err == nil {
		return ""
	}
	label := "Resolution failed"
	var resErr *workflow.Error
	if errors.As(err, &resErr) {
		label = fmt.Sprintf("Resolution failed (%s)", string(resErr.Kind))
	}
	return labelStyleBlocked.Render("✗ "+label) + "\n" + detailTextStyle.Render(err.Error())
}

func transferList(list []workflow.Transfer) string {
	parts := make([]string, len(list))
	for i, t := range list {
		if t.Alias != "" {
			parts[i] = fmt.Sprintf("%s (as %s)", t.Representation, t.Alias)
			continue
		}
		parts[i] = t.Representation
	}
	return strings.Join(parts, ", ")
}

func peerOrder[T any](peers map[string]T, order []string) []string {
	if len(peers) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(peers))
	out := make([]string, 0, len(peers))
	for _, name := range order {
		if _, ok := peers[name]; ok {
			out = append(out, name)
			seen[name] = struct{}{}
		}
	}
	var rest []string
	for name := range peers {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}
