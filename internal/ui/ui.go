package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/cadence/internal/models"
	"github.com/desertthunder/cadence/internal/services"
	"github.com/desertthunder/cadence/internal/shared"
	"github.com/desertthunder/cadence/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	SourceListView ViewState = iota
	ConfirmView
	ScanView
	ResultView
)

// Model represents the TUI application state.
type Model struct {
	ctx          context.Context
	view         ViewState
	catalog      services.Catalog
	engine       *tasks.MixEngine
	opts         tasks.ScanOptions
	mixName      string
	width        int
	height       int
	sourceList   list.Model
	sources      []models.Playlist
	matchList    list.Model
	progressChan chan tasks.ProgressUpdate
	progress     tasks.ProgressUpdate
	result       *tasks.ScanResult
	scanErr      error
	created      *models.Playlist
	err          error
	help         help.Model
	keys         keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, catalog services.Catalog, engine *tasks.MixEngine, opts tasks.ScanOptions) *Model {
	return &Model{
		ctx:     ctx,
		view:    SourceListView,
		catalog: catalog,
		engine:  engine,
		opts:    opts,
		mixName: fmt.Sprintf("Cadence %s", opts.Range.String()),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init initializes the TUI by fetching the playlists that seed the scan.
func (m *Model) Init() tea.Cmd {
	return m.fetchSources()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.sourceList.Width() == 0 {
			m.sourceList.SetSize(msg.Width-4, msg.Height-8)
		}
		if m.matchList.Width() == 0 {
			m.matchList.SetSize(msg.Width-4, msg.Height-8)
		}
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case SourceListView:
			return m.handleSourceListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case sourcesFetchedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, tea.Quit
		}
		m.sources = msg.playlists
		items := make([]list.Item, len(msg.playlists))
		for i, pl := range msg.playlists {
			items[i] = sourceItem{playlist: pl}
		}
		m.sourceList = list.New(items, list.NewDefaultDelegate(), 0, 0)
		m.sourceList.Title = fmt.Sprintf("%s Playlists", m.catalog.Name())
		m.sourceList.SetSize(m.width-4, m.height-8)
		return m, nil

	case progressUpdateMsg:
		m.progress = tasks.ProgressUpdate(msg)
		return m, m.waitForProgress()

	case scanCompleteMsg:
		m.result = msg.result
		m.scanErr = msg.err
		m.view = ResultView
		if m.result != nil {
			items := make([]list.Item, len(m.result.Matches))
			for i, match := range m.result.Matches {
				items[i] = matchItem{match: match}
			}
			m.matchList = list.New(items, list.NewDefaultDelegate(), 0, 0)
			m.matchList.Title = m.mixName
			m.matchList.SetSize(m.width-4, m.height-10)
		}
		return m, nil

	case mixCreatedMsg:
		m.created = msg.playlist
		m.err = msg.err
		return m, nil
	}

	return m.updateLists(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil && m.view != ResultView {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}

	switch m.view {
	case SourceListView:
		return m.renderSourceList()
	case ConfirmView:
		return m.renderConfirm()
	case ScanView:
		return m.renderScan()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

func (m *Model) handleSourceListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.sourceList, cmd = m.sourceList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "esc", "n":
		m.view = SourceListView
		return m, nil
	case "y", "enter":
		m.view = ScanView
		return m, m.startScan()
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "c":
		if m.result != nil && len(m.result.Matches) > 0 && m.created == nil {
			return m, m.createMix()
		}
		return m, nil
	case "r":
		m.view = SourceListView
		m.result = nil
		m.scanErr = nil
		m.created = nil
		m.err = nil
		m.progress = tasks.ProgressUpdate{}
		return m, nil
	}

	var cmd tea.Cmd
	m.matchList, cmd = m.matchList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case SourceListView:
		m.sourceList, cmd = m.sourceList.Update(msg)
	case ResultView:
		m.matchList, cmd = m.matchList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchSources() tea.Cmd {
	return func() tea.Msg {
		limit := m.opts.PageSize
		if limit <= 0 {
			limit = 50
		}

		var playlists []models.Playlist
		offset := 0
		for {
			page, more, err := m.catalog.Playlists(m.ctx, limit, offset)
			if err != nil {
				return sourcesFetchedMsg{err: err}
			}
			playlists = append(playlists, page...)
			if !more {
				break
			}
			offset += len(page)
		}
		return sourcesFetchedMsg{playlists: playlists}
	}
}

func (m *Model) startScan() tea.Cmd {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)

	go func() {
		result, err := m.engine.Scan(m.ctx, m.progressChan, m.opts)
		m.result = result
		m.scanErr = err
		close(m.progressChan)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	return func() tea.Msg {
		if m.progressChan == nil {
			return scanCompleteMsg{result: m.result, err: m.scanErr}
		}

		update, ok := <-m.progressChan
		if !ok {
			m.progressChan = nil
			return scanCompleteMsg{result: m.result, err: m.scanErr}
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) createMix() tea.Cmd {
	return func() tea.Msg {
		playlist, err := m.engine.CreateMix(m.ctx, nil, m.result.Session, m.mixName,
			fmt.Sprintf("Tempo-matched mix (%s)", m.opts.Range.String()))
		return mixCreatedMsg{playlist: playlist, err: err}
	}
}

func (m *Model) renderSourceList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.sourceList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Scan %d playlists for %s?", len(m.sources), m.opts.Range.String()))
	info := fmt.Sprintf("\nTempo range: %s\nTarget duration: %s\nLibrary fallback: %v\n",
		styles.bpm.Render(m.opts.Range.String()),
		shared.FormatDuration(m.opts.Target),
		m.opts.IncludeLibrary)

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, info, helpView)
}

func (m *Model) renderScan() string {
	title := styles.title.Render("Scanning for tempo matches")

	var line string
	switch m.progress.Phase {
	case tasks.ListSources:
		line = "Listing playlists..."
	case tasks.ScanSource:
		line = fmt.Sprintf("Scanning playlist (%d/%d)", m.progress.Step, m.progress.Total)
	case tasks.ScanLibrary:
		line = "Scanning saved-tracks library..."
	case tasks.TrackMatched:
		line = styles.ok.Render("Matched: " + m.progress.Message)
	case tasks.TrackRejected:
		line = styles.warn.Render("Rejected: " + m.progress.Message)
	case tasks.TrackFailed:
		line = styles.warn.Render("No estimate: " + m.progress.Message)
	case tasks.TargetReached:
		line = styles.ok.Render(m.progress.Message)
	default:
		line = "Processing..."
	}

	return fmt.Sprintf("%s\n\n%s\n", title, line)
}

func (m *Model) renderResult() string {
	if m.scanErr != nil && !errors.Is(m.scanErr, shared.ErrEmptySelection) {
		return styles.err.Render(fmt.Sprintf("Scan failed: %v\n\nPress r to retry, q to quit", m.scanErr))
	}

	if m.result == nil || len(m.result.Matches) == 0 {
		return styles.warn.Render("No tracks matched the tempo range\n\nPress r to retry, q to quit")
	}

	var status string
	switch {
	case m.err != nil:
		status = styles.err.Render(fmt.Sprintf("Playlist creation failed: %v", m.err))
	case m.created != nil:
		status = styles.ok.Render(fmt.Sprintf("✓ Created '%s' (%d tracks)", m.created.Name, len(m.result.Matches)))
	case m.result.TargetReached:
		status = styles.ok.Render(fmt.Sprintf("✓ Target reached: %s", shared.FormatDuration(m.result.Session.Accumulated())))
	default:
		status = styles.warn.Render(fmt.Sprintf("Partial mix: %s of %s",
			shared.FormatDuration(m.result.Session.Accumulated()), shared.FormatDuration(m.opts.Target)))
	}

	helpKeys := []key.Binding{m.keys.create, m.keys.restart, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n\n%s\n\n%s", m.matchList.View(), status, helpView)
}
