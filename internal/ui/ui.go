package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/podsync/internal/models"
	"github.com/desertthunder/podsync/internal/tasks"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	ChannelListView ViewState = iota
	ConfirmView
	SyncView
	ResultView
)

// SyncFunc runs one sync job over channels, posting updates without blocking.
type SyncFunc func(ctx context.Context, channels []*models.Channel, updates chan<- tasks.ProgressUpdate) *tasks.Summary

// Options configures a [Model].
type Options struct {
	Target    string // shown in the confirm and progress views
	Channels  []*models.Channel
	Run       SyncFunc
	CanCancel bool // whether the target strategy honours a user cancel
}

// Model represents the TUI application state.
type Model struct {
	ctx         context.Context
	view        ViewState
	opts        Options
	width       int
	height      int
	channelList list.Model
	selected    []*models.Channel
	cancel      context.CancelFunc
	cancelling  bool

	progressChan chan tasks.ProgressUpdate
	done         chan *tasks.Summary
	status       tasks.Status
	episode      float64
	overall      float64
	sub          float64
	subActive    bool
	episodeBar   progress.Model
	overallBar   progress.Model
	summary      *tasks.Summary

	help help.Model
	keys keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	items := make([]list.Item, len(opts.Channels))
	for i, ch := range opts.Channels {
		items[i] = channelItem{channel: ch}
	}
	channels := list.New(items, list.NewDefaultDelegate(), 0, 0)
	channels.Title = "Channels"

	return &Model{
		ctx:         ctx,
		view:        ChannelListView,
		opts:        opts,
		channelList: channels,
		episodeBar:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		overallBar:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:        help.New(),
		keys:        newKeyMap(),
	}
}

func (m *Model) Init() tea.Cmd {
	return nil
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.channelList.SetSize(msg.Width-4, msg.Height-8)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case ChannelListView:
			return m.handleChannelListKeys(msg)
		case ConfirmView:
			return m.handleConfirmKeys(msg)
		case SyncView:
			return m.handleSyncKeys(msg)
		case ResultView:
			return m.handleResultKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgProgressUpdate:
			m.apply(msg.data.(tasks.ProgressUpdate))
			return m, m.waitForProgress()
		case MsgSyncComplete:
			m.summary, _ = msg.data.(*tasks.Summary)
			m.view = ResultView
			m.progressChan = nil
			m.done = nil
			if m.cancel != nil {
				m.cancel()
				m.cancel = nil
			}
			return m, nil
		}
	}

	if m.view == ChannelListView {
		var cmd tea.Cmd
		m.channelList, cmd = m.channelList.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case ChannelListView:
		return m.renderChannelList()
	case ConfirmView:
		return m.renderConfirm()
	case SyncView:
		return m.renderSync()
	case ResultView:
		return m.renderResult()
	default:
		return ""
	}
}

// apply folds one update into the progress state.
func (m *Model) apply(u tasks.ProgressUpdate) {
	switch u.Phase {
	case tasks.EpisodeProgress:
		m.episode = fraction(u.Step, u.Total)
		m.sub, m.subActive = 0, false
	case tasks.OverallProgress:
		m.overall = fraction(u.Step, u.Total)
	case tasks.SubEpisodeProgress:
		m.sub = fraction(u.Step, u.Total)
		m.subActive = u.Step < u.Total
	case tasks.StatusPhase:
		if s, ok := u.Data.(tasks.Status); ok {
			m.status = mergeStatus(m.status, s)
		}
	case tasks.Completed:
		if c, ok := u.Data.(tasks.Completion); ok && m.summary == nil {
			m.summary = &tasks.Summary{Completion: c}
		}
	}
}

func mergeStatus(prev, next tasks.Status) tasks.Status {
	pick := func(a, b string) string {
		if b != "" {
			return b
		}
		return a
	}
	return tasks.Status{
		Episode:      pick(prev.Episode, next.Episode),
		Channel:      pick(prev.Channel, next.Channel),
		ProgressText: pick(prev.ProgressText, next.ProgressText),
		Title:        pick(prev.Title, next.Title),
		Header:       pick(prev.Header, next.Header),
		Body:         pick(prev.Body, next.Body),
	}
}

func fraction(step, total int) float64 {
	if total <= 0 {
		return 0
	}
	f := float64(step) / float64(total)
	return min(max(f, 0), 1)
}

func (m *Model) handleChannelListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.channelList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.channelList, cmd = m.channelList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.channelList.SelectedItem().(channelItem); ok {
			m.selected = []*models.Channel{item.channel}
			m.view = ConfirmView
		}
		return m, nil
	case key.Matches(msg, m.keys.all):
		m.selected = m.opts.Channels
		m.view = ConfirmView
		return m, nil
	}

	var cmd tea.Cmd
	m.channelList, cmd = m.channelList.Update(msg)
	return m, cmd
}

func (m *Model) handleConfirmKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit), key.Matches(msg, m.keys.no):
		m.view = ChannelListView
		m.selected = nil
		return m, nil
	case key.Matches(msg, m.keys.yes):
		m.view = SyncView
		return m, m.startSync()
	}
	return m, nil
}

func (m *Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.cancel):
		if m.opts.CanCancel && m.cancel != nil {
			m.cancel()
			m.cancelling = true
		}
	case key.Matches(msg, m.keys.quit):
		if m.cancel != nil {
			m.cancel()
		}
		return m, tea.Quit
	}
	return m, nil
}

func (m *Model) handleResultKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.restart):
		m.reset()
		return m, nil
	}
	return m, nil
}

func (m *Model) reset() {
	m.view = ChannelListView
	m.selected = nil
	m.summary = nil
	m.status = tasks.Status{}
	m.episode, m.overall, m.sub = 0, 0, 0
	m.subActive = false
	m.cancelling = false
}

func (m *Model) startSync() tea.Cmd {
	ctx, cancel := context.WithCancel(m.ctx)
	m.cancel = cancel
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.done = make(chan *tasks.Summary, 1)

	updates, done, channels, run := m.progressChan, m.done, m.selected, m.opts.Run
	go func() {
		done <- run(ctx, channels, updates)
		close(updates)
	}()

	return m.waitForProgress()
}

func (m *Model) waitForProgress() tea.Cmd {
	updates, done := m.progressChan, m.done
	return func() tea.Msg {
		if updates == nil {
			return syncCompleteMsg(nil)
		}

		update, ok := <-updates
		if !ok {
			return syncCompleteMsg(<-done)
		}
		return progressUpdateMsg(update)
	}
}

func (m *Model) renderChannelList() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.all, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s\n\n%s", m.channelList.View(), helpView)
}

func (m *Model) renderConfirm() string {
	title := styles.title.Render(fmt.Sprintf("Sync to %s?", m.opts.Target))

	var b strings.Builder
	for _, ch := range m.selected {
		line := fmt.Sprintf("  • %s (%d episodes)", ch.Title, len(ch.Episodes))
		if !ch.SyncToDevices {
			line = styles.warn.Render(line + " sync disabled")
		}
		b.WriteString(line + "\n")
	}

	helpKeys := []key.Binding{m.keys.yes, m.keys.no, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)

	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), helpView)
}

func (m *Model) renderSync() string {
	heading := m.status.Title
	if heading == "" {
		heading = fmt.Sprintf("Syncing to %s", m.opts.Target)
	}
	title := styles.title.Render(heading)

	var b strings.Builder
	if m.status.Header != "" {
		b.WriteString(styles.warn.Render(m.status.Header) + "\n")
		if m.status.Body != "" {
			b.WriteString(m.status.Body + "\n")
		}
		b.WriteString("\n")
	}
	if line := m.status.String(); line != "" && line != m.status.Header {
		b.WriteString(line + "\n")
	}

	current := m.episode
	if m.subActive {
		current = m.sub
	}
	b.WriteString(fmt.Sprintf("\nEpisode %s\n", m.episodeBar.ViewAs(current)))
	b.WriteString(fmt.Sprintf("Overall %s\n", m.overallBar.ViewAs(m.overall)))

	helpKeys := []key.Binding{m.keys.quit}
	if m.opts.CanCancel {
		helpKeys = []key.Binding{m.keys.cancel, m.keys.quit}
	}
	if m.cancelling {
		b.WriteString("\n" + styles.warn.Render("Cancelling..."))
	}

	return fmt.Sprintf("%s\n%s\n%s", title, b.String(), m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderResult() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.restart, m.keys.quit})
	if m.summary == nil {
		return styles.err.Render("No result available") + "\n\n" + helpView
	}

	c := m.summary.Completion
	var title string
	switch {
	case c.AccessError:
		title = styles.err.Render("✗ " + c.String())
	case c.Success && len(c.Errors) == 0:
		title = styles.ok.Render("✓ " + c.String())
	default:
		title = styles.warn.Render("! " + c.String())
	}

	info := fmt.Sprintf("\nChannels: %d/%d synced\nElapsed: %s",
		m.summary.Synced, m.summary.Channels, m.summary.Elapsed.Round(time.Millisecond))

	var failed string
	if len(c.Errors) > 0 {
		failed = fmt.Sprintf("\n\n%s", styles.err.Render(fmt.Sprintf("%d error(s):", len(c.Errors))))
		for _, e := range c.Errors {
			failed += fmt.Sprintf("\n  • %s", e)
		}
	}

	return fmt.Sprintf("%s\n%s%s\n\n%s", title, info, failed, helpView)
}
