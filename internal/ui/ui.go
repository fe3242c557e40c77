package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"dojotap/internal/display"
	"dojotap/internal/loader"
	"dojotap/internal/logflow"
	"dojotap/internal/models"
	"dojotap/internal/prefs"
	"dojotap/internal/prefsync"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	LoadingView ViewState = iota
	TaskListView
	CountView
	MinutesView
	AuthView
)

// Model represents the TUI application state.
type Model struct {
	ctx    context.Context
	view   ViewState
	loader *loader.Loader
	flow   *logflow.Flow
	prefs  *prefs.Store
	engine *prefsync.Engine

	width  int
	height int

	snapshot *models.BootstrapSnapshot
	notice   string
	status   string
	err      error

	taskList list.Model
	tileList list.Model
	minutes  string

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, ld *loader.Loader, flow *logflow.Flow, ps *prefs.Store, engine *prefsync.Engine) *Model {
	return &Model{
		ctx:      ctx,
		view:     LoadingView,
		loader:   ld,
		flow:     flow,
		prefs:    ps,
		engine:   engine,
		taskList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		tileList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init starts the first bootstrap load.
func (m *Model) Init() tea.Cmd {
	return m.loadBootstrap()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.taskList.SetSize(msg.Width-4, msg.Height-8)
		m.tileList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case TaskListView:
			return m.handleTaskListKeys(msg)
		case CountView:
			return m.handleCountKeys(msg)
		case MinutesView:
			return m.handleMinutesKeys(msg)
		case AuthView:
			return m.handleAuthKeys(msg)
		case LoadingView:
			if msg.String() == "q" || msg.String() == "ctrl+c" {
				return m, tea.Quit
			}
		}

	case bootstrapLoadedMsg:
		return m.applyBootstrap(msg.result)

	case submitResultMsg:
		if msg.err != nil {
			// Selection is retained by the flow; the user retries in place.
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = fmt.Sprintf("Logged %s: %d minutes, count now %d",
			msg.summary.TaskName, msg.summary.MinutesSpent, msg.summary.NewCount)
		m.view = TaskListView
		m.rebuildTaskList()
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case LoadingView:
		return styles.title.Render("dojotap") + "\n\nLoading your training plan..."
	case TaskListView:
		return m.renderTaskList()
	case CountView:
		return m.renderCount()
	case MinutesView:
		return m.renderMinutes()
	case AuthView:
		return m.renderAuth()
	default:
		return ""
	}
}

func (m *Model) handleTaskListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = LoadingView
		return m, m.loadBootstrap()
	case "p":
		if item, ok := m.taskList.SelectedItem().(taskItem); ok {
			m.prefs.TogglePin(item.task.ID)
			m.engine.ScheduleSync()
			m.rebuildTaskList()
		}
		return m, nil
	case "enter":
		item, ok := m.taskList.SelectedItem().(taskItem)
		if !ok {
			return m, nil
		}
		if !m.loader.CanLog() {
			m.status = "Showing saved data; refresh (r) before logging."
			return m, nil
		}
		task := m.snapshot.TaskByID(item.task.ID)
		if task == nil {
			return m, nil
		}
		pref := m.prefs.Entry(task.ID)
		if err := m.flow.SelectTask(task, pref); err != nil {
			m.err = err
			return m, nil
		}
		m.err = nil
		if m.flow.Stage() == logflow.StageMinutes {
			m.minutes = ""
			m.view = MinutesView
		} else {
			m.rebuildTileList(*task, pref)
			m.view = CountView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.taskList, cmd = m.taskList.Update(msg)
	return m, cmd
}

func (m *Model) handleCountKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.flow.Back()
		m.view = TaskListView
		return m, nil
	case "enter":
		if item, ok := m.tileList.SelectedItem().(tileItem); ok {
			if err := m.flow.SelectCount(item.tile.Increment); err != nil {
				m.err = err
				return m, nil
			}
			m.err = nil
			m.minutes = ""
			m.view = MinutesView
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.tileList, cmd = m.tileList.Update(msg)
	return m, cmd
}

func (m *Model) handleMinutesKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := msg.String()
	switch s {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc":
		m.flow.Back()
		m.err = nil
		if m.flow.Stage() == logflow.StageCount {
			m.view = CountView
		} else {
			m.view = TaskListView
		}
		return m, nil
	case "backspace":
		if len(m.minutes) > 0 {
			m.minutes = m.minutes[:len(m.minutes)-1]
		}
		return m, nil
	case "enter":
		minutes, err := strconv.Atoi(m.minutes)
		if err != nil || minutes < 1 {
			m.err = fmt.Errorf("enter the minutes spent before submitting")
			return m, nil
		}
		m.err = nil
		return m, m.submit(minutes)
	}

	// Digits accumulate; everything else is ignored.
	if len(s) == 1 && s >= "0" && s <= "9" && len(m.minutes) < 4 {
		m.minutes += s
	}
	return m, nil
}

func (m *Model) handleAuthKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "r":
		m.view = LoadingView
		return m, m.loadBootstrap()
	}
	return m, nil
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case TaskListView:
		m.taskList, cmd = m.taskList.Update(msg)
	case CountView:
		m.tileList, cmd = m.tileList.Update(msg)
	}
	return m, cmd
}

func (m *Model) loadBootstrap() tea.Cmd {
	return func() tea.Msg {
		return bootstrapLoadedMsg{result: m.loader.Load(m.ctx)}
	}
}

func (m *Model) applyBootstrap(result *loader.Result) (tea.Model, tea.Cmd) {
	m.notice = result.Notice

	switch result.State {
	case loader.StateAuthRequired:
		m.engine.Disable()
		m.err = result.Err
		m.view = AuthView
		return m, nil
	case loader.StateFresh:
		m.engine.Enable()
	}

	m.snapshot = result.Snapshot
	m.err = nil
	m.rebuildTaskList()
	m.view = TaskListView
	return m, nil
}

func (m *Model) rebuildTaskList() {
	if m.snapshot == nil {
		return
	}
	cohort := m.snapshot.User.DojoCohort
	items := make([]list.Item, 0, len(m.snapshot.Tasks))

	// Pinned tasks first, in pin order, then the rest in snapshot order.
	pinned := m.prefs.Preferences().PinnedTaskIDs
	seen := make(map[string]struct{}, len(pinned))
	for _, id := range pinned {
		if task := m.snapshot.TaskByID(id); task != nil {
			items = append(items, taskItem{task: *task, cohort: cohort, pinned: true})
			seen[id] = struct{}{}
		}
	}
	for _, task := range m.snapshot.Tasks {
		if _, ok := seen[task.ID]; ok {
			continue
		}
		items = append(items, taskItem{task: task, cohort: cohort})
	}

	selected := m.taskList.Index()
	m.taskList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.taskList.Title = fmt.Sprintf("Training Plan (%s)", cohort)
	m.taskList.SetSize(m.width-4, m.height-8)
	if selected < len(items) {
		m.taskList.Select(selected)
	}
}

func (m *Model) rebuildTileList(task models.TaskItem, pref models.TaskUIPreference) {
	tiles := display.CountTiles(task, pref, m.snapshot.User.DojoCohort)
	items := make([]list.Item, len(tiles))
	for i, tile := range tiles {
		items[i] = tileItem{tile: tile}
	}
	m.tileList = list.New(items, list.NewDefaultDelegate(), 0, 0)
	m.tileList.Title = display.FormatDisplayName(task, m.snapshot.User.DojoCohort)
	m.tileList.SetSize(m.width-4, m.height-8)
}

func (m *Model) submit(minutes int) tea.Cmd {
	return func() tea.Msg {
		summary, err := m.flow.Submit(m.ctx, minutes)
		return submitResultMsg{summary: summary, err: err}
	}
}

func (m *Model) renderTaskList() string {
	var banner string
	if m.notice != "" {
		banner = styles.warn.Render(m.notice) + "\n"
	}
	if m.status != "" {
		banner += styles.ok.Render(m.status) + "\n"
	}
	if m.err != nil {
		banner += styles.err.Render(m.err.Error()) + "\n"
	}

	helpKeys := []key.Binding{m.keys.enter, m.keys.pin, m.keys.reload, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s%s\n\n%s", banner, m.taskList.View(), helpView)
}

func (m *Model) renderCount() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.tileList.View(), helpView)
}

func (m *Model) renderMinutes() string {
	task := m.flow.Task()
	if task == nil {
		return ""
	}

	title := styles.title.Render(display.FormatDisplayName(*task, m.snapshot.User.DojoCohort))

	var selection string
	if increment, label := m.flow.Selection(); increment > 0 {
		selection = fmt.Sprintf("Count: %s\n", label)
	}

	entry := m.minutes
	if entry == "" {
		entry = "_"
	}
	prompt := fmt.Sprintf("%sMinutes spent: %s", selection, entry)

	var errLine string
	if m.err != nil {
		errLine = "\n" + styles.err.Render(m.err.Error()) + "\n" + styles.help.Render("Press enter to retry.")
	}

	submitKey := key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "submit"))
	helpKeys := []key.Binding{submitKey, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, prompt, errLine, helpView)
}

func (m *Model) renderAuth() string {
	title := styles.title.Render("Sign in required")
	lines := []string{
		"No usable session or saved data.",
		"Run `dojotap auth login` or `dojotap auth token --from-curl <file>`,",
		"then press r to retry.",
	}
	if m.err != nil {
		lines = append(lines, "", styles.err.Render(m.err.Error()))
	}

	helpKeys := []key.Binding{m.keys.reload, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n%s\n\n%s", title, strings.Join(lines, "\n"), helpView)
}
