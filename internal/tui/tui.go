// Package tui provides the Bubble Tea dashboard over tracked shows: a
// library table, an action row and playback launched around the released
// terminal.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	gauge "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/natsukawa/anitrack/internal/episode"
	"github.com/natsukawa/anitrack/internal/episodecache"
	"github.com/natsukawa/anitrack/internal/history"
	"github.com/natsukawa/anitrack/internal/playback"
	"github.com/natsukawa/anitrack/internal/progress"
	"github.com/natsukawa/anitrack/internal/utils"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleBarStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	// Rounded boxes around the library, details and progress areas
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("243"))

	// Active action pill: bright on blue
	pillActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("75")).
			Padding(0, 1)

	// Inactive action pill: muted
	pillInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("240")).
				Padding(0, 1)

	// Key=value label in the details panel
	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	statusInfoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("183"))

	statusErrorStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("203"))

	modalStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("111")).
			Padding(1, 3).
			Align(lipgloss.Center)

	modalTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("111"))
)

// Fixed table column widths; the title column absorbs the rest.
const (
	totalColWidth = 9
	epColWidth    = 8
	seenColWidth  = 16
)

// ── Actions ─────────────────

type action int

const (
	actionNext action = iota
	actionReplay
	actionPrevious
	actionSelect
)

func (a action) label() string {
	switch a {
	case actionReplay:
		return "REPLAY"
	case actionPrevious:
		return "PREVIOUS"
	case actionSelect:
		return "SELECT"
	default:
		return "NEXT"
	}
}

// left and right move through the action row, clamped at the edges.
func (a action) left() action {
	if a > actionNext {
		return a - 1
	}
	return a
}

func (a action) right() action {
	if a < actionSelect {
		return a + 1
	}
	return a
}

// ── Messages ───────────────────

type tickMsg time.Time

// ledgerMsg reports that something outside this process touched the shared
// history file.
type ledgerMsg struct{}

// flowDoneMsg carries the result of one playback or search flow back into
// the event loop once the terminal is ours again.
type flowDoneMsg struct {
	status string // ready-to-display status line
	notice string // optional modal text
	showID string // row to re-select after refresh, empty keeps the cursor
}

func tickCmd() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// waitLedger blocks on the watch channel and wakes the program when the
// ledger changes. Re-armed after every receipt.
func waitLedger(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return ledgerMsg{}
	}
}

// flowExec adapts a playback flow to tea's ExecCommand so the terminal is
// restored around the child. The playback layer wires the real stdio itself,
// so the Set* hooks are deliberately empty.
type flowExec struct {
	run    func() flowDoneMsg
	result flowDoneMsg
}

func (f *flowExec) Run() error {
	f.result = f.run()
	return nil
}

func (f *flowExec) SetStdin(io.Reader)  {}
func (f *flowExec) SetStdout(io.Writer) {}
func (f *flowExec) SetStderr(io.Writer) {}

type pendingDelete struct {
	showID string
	title  string
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the dashboard.
type Model struct {
	store    *progress.Store
	ctrl     *playback.Controller
	cache    *episodecache.Cache
	detect   history.Detector
	histPath string
	ledgerCh <-chan struct{}
	snap     history.Snapshot

	items   []progress.Show
	table   table.Model
	sp      spinner.Model
	gauge   gauge.Model
	action  action
	status  string
	confirm *pendingDelete
	notice  string

	width, height       int
	bodyH, leftW, rightW int
	ready                bool
	inFlow               bool
}

// New builds the dashboard model over the given store and controller. The
// initial library load is the only List call that can abort startup; later
// refreshes report on the status line instead.
func New(store *progress.Store, ctrl *playback.Controller, cache *episodecache.Cache, histPath string, ledgerCh <-chan struct{}) (Model, error) {
	items, err := store.List()
	if err != nil {
		return Model{}, err
	}

	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Title", Width: 40},
			{Title: "Total Eps", Width: totalColWidth},
			{Title: "Last Ep", Width: epColWidth},
			{Title: "Last Seen", Width: seenColWidth},
		}),
		table.WithRows(rowsFor(items)),
		table.WithFocused(true),
		// Only plain row movement; the other defaults would collide with
		// the d/s/enter bindings below.
		table.WithKeyMap(table.KeyMap{
			LineUp:   key.NewBinding(key.WithKeys("up", "k")),
			LineDown: key.NewBinding(key.WithKeys("down", "j")),
		}),
	)
	st := table.DefaultStyles()
	st.Header = st.Header.Bold(true).Foreground(lipgloss.Color("75"))
	st.Selected = st.Selected.Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("75"))
	t.SetStyles(st)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("75"))

	m := Model{
		store:    store,
		ctrl:     ctrl,
		cache:    cache,
		histPath: histPath,
		ledgerCh: ledgerCh,
		snap:     history.ReadSnapshot(histPath),
		items:    items,
		table:    t,
		sp:       sp,
		gauge:    gauge.New(gauge.WithGradient("#5A9BF5", "#82BEFF")),
		action:   actionNext,
	}
	if len(items) == 0 {
		m.status = statusInfo("No tracked entries yet. Press `s` to search or run `anitrack start`.")
	} else {
		m.status = statusInfo("Ready.")
	}
	return m, nil
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.sp.Tick, tickCmd(), waitLedger(m.ledgerCh))
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.layout()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.sp, cmd = m.sp.Update(msg)
		return m, cmd

	case tickMsg:
		m.cache.Drain()
		if item, ok := m.selected(); ok {
			m.cache.Ensure(item.ShowID, episode.TotalHint(item.Title))
		}
		return m, tickCmd()

	case ledgerMsg:
		rearm := waitLedger(m.ledgerCh)
		snap := history.ReadSnapshot(m.histPath)
		if m.inFlow {
			// Our own run is touching the ledger; the flow result will
			// re-baseline when it lands.
			m.snap = snap
			return m, rearm
		}
		entry, _ := m.detect.Detect(m.snap, snap, history.LogWindow{})
		m.snap = snap
		if entry != nil {
			m.status = statusInfo(fmt.Sprintf("Watched elsewhere: %s ep %s (not recorded)", entry.Title, entry.Episode))
		}
		return m, rearm

	case flowDoneMsg:
		m.inFlow = false
		m.status = msg.status
		if msg.notice != "" {
			m.notice = msg.notice
		}
		m.refreshItems(msg.showID)
		m.snap = history.ReadSnapshot(m.histPath)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// A visible notice swallows one key press.
	if m.notice != "" {
		m.notice = ""
		return m, nil
	}

	if m.confirm != nil {
		switch msg.String() {
		case "y", "enter":
			pd := *m.confirm
			m.confirm = nil
			deleted, err := m.store.Delete(pd.showID)
			switch {
			case err != nil:
				m.status = statusError(fmt.Sprintf("Delete failed: %v", err))
			case deleted:
				m.status = statusInfo(fmt.Sprintf("Deleted tracked entry: %s", pd.title))
				m.refreshItems("")
			default:
				m.status = statusError("Delete failed: entry no longer exists.")
				m.refreshItems("")
			}
		case "n", "esc":
			m.confirm = nil
			m.status = statusInfo("Delete canceled.")
		}
		return m, nil
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "left":
		m.action = m.action.left()
		return m, nil

	case "right":
		m.action = m.action.right()
		return m, nil

	case "s":
		m.inFlow = true
		ex := &flowExec{run: m.searchRun()}
		return m, tea.Exec(ex, func(err error) tea.Msg {
			if err != nil {
				return flowDoneMsg{status: statusError(fmt.Sprintf("Search failed: %v", err))}
			}
			return ex.result
		})

	case "d":
		item, ok := m.selected()
		if !ok {
			m.status = statusError("Delete failed: no entry selected.")
			return m, nil
		}
		m.confirm = &pendingDelete{showID: item.ShowID, title: item.Title}
		m.status = statusInfo("Confirm delete: y/Enter to delete, n/Esc to cancel.")
		return m, nil

	case "enter":
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		labels := m.cache.Labels(item.ShowID)
		if m.action == actionNext && !episode.HasNext(item.LastEpisode, episode.TotalHint(item.Title), labels) {
			m.notice = noNextNotice(item.Title)
			m.status = statusInfo("No next episode available.")
			return m, nil
		}
		if m.action == actionPrevious && !episode.HasPrevious(item.LastEpisode, labels) {
			m.notice = noPreviousNotice(item.Title)
			m.status = statusInfo("No previous episode available.")
			return m, nil
		}
		m.inFlow = true
		ex := &flowExec{run: m.flowRun(m.action, item, labels)}
		title := item.Title
		return m, tea.Exec(ex, func(err error) tea.Msg {
			if err != nil {
				return flowDoneMsg{status: statusError(fmt.Sprintf("Action failed for %s: %v", title, err))}
			}
			return ex.result
		})
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}
	if m.confirm != nil {
		return m.modalView("Confirm Delete", deleteModalText(m.confirm.title))
	}
	if m.notice != "" {
		return m.modalView("No More Episodes", m.notice)
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		m.viewBody(),
		m.viewControls(),
		m.viewStatus(),
	)
}

// ── Flows ─────────

// flowRun builds the closure tea.Exec runs while the terminal is released:
// one playback flow plus the follow-up progress write. Everything the event
// loop needs afterwards comes back inside the flowDoneMsg.
func (m Model) flowRun(act action, item progress.Show, labels []string) func() flowDoneMsg {
	ctrl, store := m.ctrl, m.store
	return func() flowDoneMsg {
		var out playback.Outcome
		var err error
		switch act {
		case actionNext:
			out, err = ctrl.RunContinue(item, item.LastEpisode)
		case actionReplay:
			out, err = ctrl.RunReplay(context.Background(), item, labels)
		case actionPrevious:
			out, err = ctrl.RunPrevious(context.Background(), item, labels)
		case actionSelect:
			out, err = ctrl.RunSelect(context.Background(), item)
		}
		if err != nil {
			if act == actionPrevious && errors.Is(err, episode.ErrNoPrevious) {
				return flowDoneMsg{
					status: statusInfo("No previous episode available."),
					notice: noPreviousNotice(item.Title),
					showID: item.ShowID,
				}
			}
			return flowDoneMsg{
				status: statusError(fmt.Sprintf("Action failed for %s: %v", item.Title, err)),
				showID: item.ShowID,
			}
		}
		if !out.Success {
			return flowDoneMsg{status: statusInfo(playback.FailureMessage(out)), showID: item.ShowID}
		}

		ep := out.FinalEpisode
		if ep == "" {
			ep = item.LastEpisode
		}
		if err := store.Upsert(item.ShowID, item.Title, ep); err != nil {
			return flowDoneMsg{
				status: statusError(fmt.Sprintf("Action failed for %s: %v", item.Title, err)),
				showID: item.ShowID,
			}
		}

		var msg string
		switch act {
		case actionReplay:
			msg = fmt.Sprintf("Replay finished: %s now on episode %s", item.Title, ep)
		case actionPrevious:
			msg = fmt.Sprintf("Previous finished: %s now on episode %s", item.Title, ep)
		case actionSelect:
			msg = fmt.Sprintf("Select finished: %s now on episode %s", item.Title, ep)
		default:
			msg = fmt.Sprintf("Updated progress: %s -> episode %s", item.Title, ep)
		}
		return flowDoneMsg{status: statusInfo(msg), showID: item.ShowID}
	}
}

func (m Model) searchRun() func() flowDoneMsg {
	ctrl, store := m.ctrl, m.store
	return func() flowDoneMsg {
		msg, showID, err := ctrl.RunSearch(store)
		if err != nil {
			return flowDoneMsg{status: statusError(fmt.Sprintf("Search failed: %v", err))}
		}
		return flowDoneMsg{status: statusInfo(msg), showID: showID}
	}
}

// ── Library state ──────

func (m Model) selected() (progress.Show, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.items) {
		return progress.Show{}, false
	}
	return m.items[i], true
}

// refreshItems reloads the library and re-points the cursor, preferring
// preferredID's row when it still exists.
func (m *Model) refreshItems(preferredID string) {
	items, err := m.store.List()
	if err != nil {
		m.status = statusError(fmt.Sprintf("Load failed: %v", err))
		return
	}
	m.items = items
	m.table.SetRows(rowsFor(items))
	if len(items) == 0 {
		return
	}
	if preferredID != "" {
		for i, it := range items {
			if it.ShowID == preferredID {
				m.table.SetCursor(i)
				return
			}
		}
	}
	if c := m.table.Cursor(); c >= len(items) {
		m.table.SetCursor(len(items) - 1)
	} else if c < 0 {
		m.table.SetCursor(0)
	}
}

func rowsFor(items []progress.Show) []table.Row {
	rows := make([]table.Row, len(items))
	for i, it := range items {
		rows[i] = table.Row{
			episode.DisplayTitle(it.Title),
			episode.TotalDisplay(episode.TotalHint(it.Title)),
			it.LastEpisode,
			episode.FormatLastSeen(it.LastSeenAt),
		}
	}
	return rows
}

// ── Layout & views ───────────

// layout distributes the terminal between the fixed bars and the body
// panels. title(1) + controls(1) + status(1) = 3 fixed rows.
func (m *Model) layout() {
	m.bodyH = m.height - 3
	if m.bodyH < 5 {
		m.bodyH = 5
	}
	m.leftW = m.width * 64 / 100
	m.rightW = m.width - m.leftW

	m.table.SetWidth(m.leftW - 2)
	m.table.SetHeight(m.bodyH - 2)
	titleW := m.leftW - 2 - 8 - (totalColWidth + epColWidth + seenColWidth)
	if titleW < 10 {
		titleW = 10
	}
	m.table.SetColumns([]table.Column{
		{Title: "Title", Width: titleW},
		{Title: "Total Eps", Width: totalColWidth},
		{Title: "Last Ep", Width: epColWidth},
		{Title: "Last Seen", Width: seenColWidth},
	})
	m.gauge.Width = m.rightW - 2
}

func (m Model) viewHeader() string {
	selectedText := "-"
	if i := m.table.Cursor(); i >= 0 && i < len(m.items) {
		selectedText = fmt.Sprintf("%d", i+1)
	}
	line := fmt.Sprintf("ANITRACK   %d entries   selected %s   %s", len(m.items), selectedText, m.action.label())
	return titleBarStyle.Width(m.width).Render(line)
}

func (m Model) viewBody() string {
	library := panelStyle.Render(m.table.View())
	selH := m.bodyH - 3
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.viewSelected(m.rightW-2, selH-2),
		m.viewGauge(m.rightW-2),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, library, right)
}

func (m Model) viewSelected(width, height int) string {
	item, ok := m.selected()
	if !ok {
		empty := dimStyle.Render("No tracked entries yet.\n\nPress s to run ani-cli search\nand add entries.")
		return panelStyle.Width(width).Height(height).Render(empty)
	}

	total := episode.TotalHint(item.Title)
	labels := m.cache.Labels(item.ShowID)
	var sb strings.Builder
	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(label) + "\n" + value + "\n\n")
	}
	row("Title", episode.Truncate(episode.DisplayTitle(item.Title), 40))
	row("Episode", episode.ProgressText(item.LastEpisode, total, labels))
	row("Ani ID", episode.Truncate(item.ShowID, 28))
	row("Last Seen", episode.FormatLastSeen(item.LastSeenAt))

	if entry, ok := m.cache.Lookup(item.ShowID); ok {
		sb.WriteString(labelStyle.Render("Episodes") + "\n")
		switch {
		case entry.State == episodecache.Loading:
			sb.WriteString(m.sp.View() + " Loading...")
		case entry.Warning != "":
			sb.WriteString(warnStyle.Render(episode.Truncate(entry.Warning, width)))
		default:
			sb.WriteString(fmt.Sprintf("%d listed", len(entry.Labels)))
		}
	}
	return panelStyle.Width(width).Height(height).Render(sb.String())
}

func (m Model) viewGauge(width int) string {
	bar := dimStyle.Render("no episode total")
	if item, ok := m.selected(); ok {
		total := episode.TotalHint(item.Title)
		if ratio, ok := episode.GaugeRatio(item.LastEpisode, total, m.cache.Labels(item.ShowID)); ok {
			bar = m.gauge.ViewAs(ratio)
		}
	}
	return panelStyle.Width(width).Render(bar)
}

func (m Model) viewControls() string {
	parts := make([]string, 0, 9)
	for a := actionNext; a <= actionSelect; a++ {
		style := pillInactiveStyle
		if a == m.action {
			style = pillActiveStyle
		}
		parts = append(parts, style.Render(a.label()), " ")
	}
	parts = append(parts, hintStyle.Render("  ↑/↓ move  ←/→ action  Enter run  s search  d delete  q quit"))
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) viewStatus() string {
	style := statusInfoStyle
	if strings.HasPrefix(m.status, "ERROR:") {
		style = statusErrorStyle
	}
	return style.Render(" " + episode.Truncate(m.status, m.width-2))
}

func (m Model) modalView(title, text string) string {
	box := modalStyle.Render(modalTitleStyle.Render(title) + "\n\n" + text)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// ── Helpers ───────────────────

func statusInfo(msg string) string  { return "INFO: " + oneline(msg) }
func statusError(msg string) string { return "ERROR: " + oneline(msg) }

// oneline flattens a multi-line flow message onto the single status row.
func oneline(s string) string {
	return strings.Join(strings.Split(strings.TrimSpace(s), "\n"), " | ")
}

func deleteModalText(title string) string {
	return fmt.Sprintf("Delete tracked entry?\n\n%s\n\nThis cannot be undone.\n\n[y / Enter] Delete   [n / Esc] Cancel",
		episode.Truncate(title, 56))
}

func noNextNotice(title string) string {
	return fmt.Sprintf("No more episodes available.\n\n%s\n\nPress any key to continue.",
		episode.Truncate(title, 50))
}

func noPreviousNotice(title string) string {
	return fmt.Sprintf("No previous episode available.\n\n%s\n\nPress any key to continue.",
		episode.Truncate(title, 50))
}

// Run starts the dashboard over the given store and controller. While the
// TUI owns the screen the shared logger is rerouted: to the ANITRACK_DEBUG
// file when set, otherwise dropped.
func Run(ctx context.Context, store *progress.Store, ctrl *playback.Controller, catalogs episodecache.Fetcher) error {
	prevOut := utils.Log.Out
	logOut := io.Writer(io.Discard)
	var debugFile *os.File
	if path := os.Getenv("ANITRACK_DEBUG"); path != "" {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			debugFile = f
			logOut = f
		}
	}
	utils.Log.SetOutput(logOut)
	defer func() {
		utils.Log.SetOutput(prevOut)
		if debugFile != nil {
			debugFile.Close()
		}
	}()

	histPath := ctrl.HistPath
	if histPath == "" {
		histPath = history.DefaultPath()
	}

	watchCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	ledgerCh := make(chan struct{}, 1)
	go func() {
		defer close(ledgerCh)
		if err := history.Watch(watchCtx, histPath, ledgerCh); err != nil {
			utils.Log.Debugf("ledger watch unavailable: %v", err)
		}
	}()

	m, err := New(store, ctrl, episodecache.New(catalogs), histPath, ledgerCh)
	if err != nil {
		return err
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	return err
}
