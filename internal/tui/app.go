// internal/tui/app.go
//
// This is the inspector TUI for modgraph. It browses the execution views of
// the most recent resolution, one thread at a time.
// It uses bubbletea, which follows The Elm Architecture:
//
// 1. Model: the published snapshot plus selection and layout state
// 2. Update: reacts to keys, window resizes and refresh ticks
// 3. View: renders the thread list, the detail pane and the logbook
//
// The flow is: User Input -> Message -> Update -> New Model -> View -> Screen

package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/kingrea/modgraph/internal/logbook"
	"github.com/kingrea/modgraph/internal/workflow/engine"
	"github.com/kingrea/modgraph/internal/workflow/view"
)

const (
	refreshInterval = 2 * time.Second
	logPanelLines   = 5
	listWidthRatio  = 3 // list takes 1/listWidthRatio of the width
)

// Source is the read side of the engine the inspector needs.
type Source interface {
	Current() *view.Snapshot
	Status() engine.Status
}

// ReloadFunc re-runs resolution when the operator presses "r".
type ReloadFunc func(ctx context.Context) error

type paneFocus int

const (
	focusThreads paneFocus = iota
	focusDetail
)

// AppOption customizes App construction for tests and alternate runtimes.
type AppOption func(*App)

// WithReload lets the inspector trigger a resolution pass.
func WithReload(fn ReloadFunc) AppOption {
	return func(a *App) {
		a.reload = fn
	}
}

// WithLogbook shows the tail of the operator logbook under the views.
func WithLogbook(book *logbook.Logbook) AppOption {
	return func(a *App) {
		a.logbook = book
	}
}

// WithRefreshInterval overrides how often the snapshot is polled. Zero
// disables polling.
func WithRefreshInterval(d time.Duration) AppOption {
	return func(a *App) {
		if d >= 0 {
			a.interval = d
		}
	}
}

type snapshotMsg struct {
	snap   *view.Snapshot
	status engine.Status
}

type reloadedMsg struct {
	err error
}

type tickMsg struct{}

// threadItem implements list.Item for one thread of the snapshot.
type threadItem struct {
	name      string
	providers int
	received  int
	reset     int
}

func (i threadItem) Title() string { return i.name }
func (i threadItem) Description() string {
	desc := fmt.Sprintf("%d providers · %d received", i.providers, i.received)
	if i.reset > 0 {
		desc += fmt.Sprintf(" · %d reset", i.reset)
	}
	return desc
}
func (i threadItem) FilterValue() string { return i.name }

// App is the inspector model.
type App struct {
	source   Source
	reload   ReloadFunc
	logbook  *logbook.Logbook
	interval time.Duration

	snapshot *view.Snapshot
	status   engine.Status

	threads   list.Model
	detail    viewport.Model
	focus     paneFocus
	statusMsg string
	selected  string

	width  int
	height int
}

// NewApp creates the inspector over source.
func NewApp(source Source, opts ...AppOption) (*App, error) {
	if source == nil {
		return nil, fmt.Errorf("tui: snapshot source is required")
	}
	threads := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	threads.Title = "Threads"
	threads.SetShowStatusBar(false)
	threads.SetFilteringEnabled(false)
	threads.SetShowHelp(false)
	a := &App{
		source:    source,
		interval:  refreshInterval,
		threads:   threads,
		detail:    viewport.New(0, 0),
		statusMsg: "↑/↓ select · tab switch pane · r reload · q quit",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	a.applySnapshot(source.Current(), source.Status())
	return a, nil
}

// Init is called once when the program starts.
func (a *App) Init() tea.Cmd {
	return a.scheduleRefresh()
}

// Update handles all incoming messages.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()
		return a, nil

	case tickMsg:
		return a, tea.Batch(a.fetchSnapshot(), a.scheduleRefresh())

	case snapshotMsg:
		a.applySnapshot(msg.snap, msg.status)
		return a, nil

	case reloadedMsg:
		if msg.err != nil {
			a.statusMsg = "Reload rejected: " + firstLine(msg.err.Error())
		} else {
			a.statusMsg = "Reloaded configuration."
		}
		return a, a.fetchSnapshot()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return a, tea.Quit
		case "tab":
			if a.focus == focusThreads {
				a.focus = focusDetail
			} else {
				a.focus = focusThreads
			}
			return a, nil
		case "esc":
			a.focus = focusThreads
			return a, nil
		case "r":
			if a.reload == nil {
				a.statusMsg = "Refreshing snapshot..."
				return a, a.fetchSnapshot()
			}
			a.statusMsg = "Reloading configuration..."
			return a, a.runReload()
		}
	}

	var cmd tea.Cmd
	if a.focus == focusDetail {
		a.detail, cmd = a.detail.Update(msg)
		return a, cmd
	}
	a.threads, cmd = a.threads.Update(msg)
	a.syncDetail()
	return a, cmd
}

// View renders the current state.
func (a *App) View() string {
	header := headerStyle.Render("⬡ MODGRAPH") + "  " + detailTextStyle.Render(a.summaryLine())
	body := a.renderPanes()
	sections := []string{header, body}
	if panel := a.renderLogPanel(); panel != "" {
		sections = append(sections, panel)
	}
	footer := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#888888")).
		Render(a.statusMsg)
	sections = append(sections, footer)
	return strings.Join(sections, "\n")
}

// Selected returns the thread shown in the detail pane.
func (a *App) Selected() string {
	return a.selected
}

func (a *App) summaryLine() string {
	if a.snapshot == nil {
		line := "waiting for the first resolution"
		if a.status.LastError != "" {
			line += " · last error: " + firstLine(a.status.LastError)
		}
		return line
	}
	line := fmt.Sprintf("generation %d · %s", a.snapshot.Generation, a.snapshot.ResolutionID)
	if len(a.snapshot.Reset) > 0 {
		line += fmt.Sprintf(" · %d reset", len(a.snapshot.Reset))
	}
	if a.status.LastError != "" {
		line += " · " + labelStyleBlocked.Render("last pass rejected")
	}
	return line
}

func (a *App) renderPanes() string {
	border := lipgloss.Color("#444444")
	active := lipgloss.Color("#5B8DEF")
	leftBorder, rightBorder := active, border
	if a.focus == focusDetail {
		leftBorder, rightBorder = border, active
	}
	left := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(leftBorder).
		Padding(0, 1).
		Render(a.threads.View())
	right := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(rightBorder).
		Padding(0, 1).
		Render(a.detail.View())
	return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
}

func (a *App) renderLogPanel() string {
	if a.logbook == nil {
		return ""
	}
	entries, _ := a.logbook.Entries(logPanelLines)
	if len(entries) == 0 {
		return ""
	}
	lines := make([]string, len(entries))
	for i, entry := range entries {
		lines[i] = levelStyle(entry.Level).Render(fmt.Sprintf("%-5s", entry.Level)) + " " + entry.Message
	}
	head := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("#5B8DEF")).
		Render(fmt.Sprintf("LOG · %s", filepath.Base(a.logbook.Path())))
	body := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#AAAAAA")).
		Render(strings.Join(lines, "\n"))
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("#444444")).
		Padding(0, 1).
		Render(head + "\n" + body)
}

func (a *App) layout() {
	if a.width <= 0 || a.height <= 0 {
		return
	}
	reserved := 4 // header, footer and pane borders
	if a.logbook != nil {
		reserved += logPanelLines + 3
	}
	paneHeight := max(3, a.height-reserved)
	listWidth := max(20, a.width/listWidthRatio)
	detailWidth := max(20, a.width-listWidth-8)
	a.threads.SetSize(listWidth, paneHeight)
	a.detail.Width = detailWidth
	a.detail.Height = paneHeight
	a.syncDetail()
}

// applySnapshot replaces the list contents while keeping the selection on the
// same thread name when it still exists.
func (a *App) applySnapshot(snap *view.Snapshot, status engine.Status) {
	a.status = status
	if snap != nil && a.snapshot != nil && snap.Generation == a.snapshot.Generation && snap.ResolutionID == a.snapshot.ResolutionID {
		return
	}
	a.snapshot = snap
	var items []list.Item
	index := 0
	for i, v := range snap.ThreadNames() {
		ev, _ := snap.Thread(v)
		received := 0
		for _, transfers := range ev.Received {
			received += len(transfers)
		}
		items = append(items, threadItem{
			name:      v,
			providers: len(ev.Providers),
			received:  received,
			reset:     len(ev.Reset),
		})
		if v == a.selected {
			index = i
		}
	}
	a.threads.SetItems(items)
	if len(items) > 0 {
		a.threads.Select(index)
	}
	a.selected = ""
	a.syncDetail()
}

func (a *App) syncDetail() {
	item, ok := a.threads.SelectedItem().(threadItem)
	if !ok || a.snapshot == nil {
		a.selected = ""
		a.detail.SetContent(labelStyleSkipped.Render("No execution views published."))
		return
	}
	if item.name == a.selected {
		return
	}
	a.selected = item.name
	ev, _ := a.snapshot.Thread(item.name)
	a.detail.SetContent(RenderView(ev, a.snapshot.ThreadNames()))
	a.detail.GotoTop()
}

func (a *App) fetchSnapshot() tea.Cmd {
	source := a.source
	return func() tea.Msg {
		return snapshotMsg{snap: source.Current(), status: source.Status()}
	}
}

func (a *App) runReload() tea.Cmd {
	reload := a.reload
	return func() tea.Msg {
		return reloadedMsg{err: reload(context.Background())}
	}
}

func (a *App) scheduleRefresh() tea.Cmd {
	if a.interval <= 0 {
		return nil
	}
	return tea.Tick(a.interval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

func levelStyle(level logbook.Level) lipgloss.Style {
	switch level {
	case logbook.LevelError:
		return labelStyleBlocked
	case logbook.LevelWarn:
		return labelStyleReset
	}
	return labelStyleDefault
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}
