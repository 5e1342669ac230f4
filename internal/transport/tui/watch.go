package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/sandevgo/agora/internal/agora"
	"github.com/sandevgo/agora/internal/core"
	"github.com/sandevgo/agora/internal/service/ui"
)

const refreshInterval = 5 * time.Second

var (
	headerStyle   = ui.TitleStyle.MarginBottom(0)
	resolvedStyle = ui.UsageStyle
	ongoingStyle  = ui.FlagStyle
	metaStyle     = ui.DescStyle
	errorStyle    = ui.ErrorStyle
	modelStyle    = ui.AccentStyle
)

type snapshotMsg struct {
	points []core.PointSummary
	page   agora.Page
	err    error
}

type roundMsg core.RoundCommitted

type tickMsg time.Time

// model shows the points and the newest messages, optionally of one round.
type model struct {
	ctx context.Context
	svc *agora.Service

	round   *int
	points  []core.PointSummary
	page    agora.Page
	lastEv  *core.RoundCommitted
	err     error
	loading bool

	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int
	ready    bool
}

func newModel(ctx context.Context, svc *agora.Service) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return model{
		ctx:     ctx,
		svc:     svc,
		loading: true,
		spinner: sp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetch(), tick())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// fetch loads the last page of the timeline so the newest messages show.
func (m model) fetch() tea.Cmd {
	ctx, svc, round := m.ctx, m.svc, m.round
	return func() tea.Msg {
		points, err := svc.ListPoints(ctx, nil)
		if err != nil {
			return snapshotMsg{err: err}
		}
		page, err := svc.Agora(ctx, round, 1, core.MaxPageSize)
		if err != nil {
			return snapshotMsg{err: err}
		}
		if last := page.Pagination.TotalPages; last > 1 {
			if page, err = svc.Agora(ctx, round, last, core.MaxPageSize); err != nil {
				return snapshotMsg{err: err}
			}
		}
		return snapshotMsg{points: points, page: page}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, m.fetch()
		case "]":
			m.round = m.shiftRound(1)
			m.loading = true
			return m, m.fetch()
		case "[":
			m.round = m.shiftRound(-1)
			m.loading = true
			return m, m.fetch()
		}
	case snapshotMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.points, m.page = msg.points, msg.page
			m.resize()
			m.viewport.SetContent(m.renderMessages())
			m.viewport.GotoBottom()
		}
		return m, nil
	case roundMsg:
		ev := core.RoundCommitted(msg)
		m.lastEv = &ev
		m.loading = true
		return m, m.fetch()
	case tickMsg:
		return m, tea.Batch(m.fetch(), tick())
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// shiftRound steps the round filter. Below round 1 the filter is cleared.
func (m model) shiftRound(step int) *int {
	latest := m.page.DebugInfo.LatestRound
	next := step
	if m.round != nil {
		next = *m.round + step
	}
	if next < 1 || latest == 0 {
		return nil
	}
	if next > latest {
		next = latest
	}
	return &next
}

func (m *model) resize() {
	header := lipgloss.Height(m.renderHeader()) + lipgloss.Height(m.renderPoints()) + 2
	h := max(m.height-header, 3)
	if !m.ready {
		m.viewport = viewport.New(m.width, h)
		m.ready = true
		return
	}
	m.viewport.Width = m.width
	m.viewport.Height = h
}

func (m model) View() string {
	if m.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n(r to retry, q to quit)\n"
	}

	var sb strings.Builder
	sb.WriteString(m.renderHeader())
	sb.WriteString("\n")
	sb.WriteString(m.renderPoints())
	sb.WriteString("\n")
	if m.ready {
		sb.WriteString(m.viewport.View())
	}
	sb.WriteString("\n")
	sb.WriteString(metaStyle.Render("[ ] round · r refresh · ↑/↓ scroll · q quit"))
	return sb.String()
}

func (m model) renderHeader() string {
	info := m.page.DebugInfo
	title := fmt.Sprintf("🏛 Agora · round %d/%d", info.LatestRound, info.MaxRounds)
	if m.round != nil {
		title += fmt.Sprintf(" · showing round %d", *m.round)
	}
	if m.loading {
		title += " " + m.spinner.View()
	}

	meta := fmt.Sprintf("%d points, %d resolved", info.Points, info.Resolved)
	if m.lastEv != nil {
		meta += fmt.Sprintf(" · last round +%d messages, %d silent", m.lastEv.Messages, m.lastEv.Failures)
	}
	return headerStyle.Render(title) + "\n" + metaStyle.Render(meta)
}

func (m model) renderPoints() string {
	var sb strings.Builder
	for _, p := range m.points {
		mark := ongoingStyle.Render("●")
		if p.Status == core.StatusResolved {
			mark = resolvedStyle.Render("✔")
		}
		fmt.Fprintf(&sb, "%s %s %s\n", mark, p.Content, metaStyle.Render(fmt.Sprintf("(+%d/-%d)", p.Agreements, p.Disagreements)))
	}
	return sb.String()
}

func (m model) renderMessages() string {
	if len(m.page.Messages) == 0 {
		return metaStyle.Render("No messages yet.")
	}

	body := lipgloss.NewStyle().Width(max(m.width-2, 20)).PaddingLeft(2)
	var sb strings.Builder
	for _, msg := range m.page.Messages {
		fmt.Fprintf(&sb, "%s %s\n%s\n\n",
			modelStyle.Render(msg.Model),
			metaStyle.Render(fmt.Sprintf("round %d · %s · %s", msg.RoundNum, msg.Stance, msg.Timestamp.Format(time.TimeOnly))),
			body.Render(msg.Content),
		)
	}
	return sb.String()
}

// Run blocks until the user quits or ctx ends. Committed rounds from bus
// trigger an immediate refresh; polling covers the rest.
func Run(ctx context.Context, svc *agora.Service, bus core.EventBus) error {
	p := tea.NewProgram(newModel(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx))

	if bus != nil {
		if err := bus.Subscribe(ctx, func(ev core.RoundCommitted) { p.Send(roundMsg(ev)) }); err != nil {
			return fmt.Errorf("failed to subscribe to rounds: %w", err)
		}
	}

	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
