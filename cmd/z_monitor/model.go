package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))

	statStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const chromeHeight = 5

type sampleMsg zenoh.Received

type closedMsg struct{ err error }

type monitorModel struct {
	ctx     context.Context
	ring    *zenoh.Ring
	keyExpr string
	zid     string
	history int

	vp     viewport.Model
	ready  bool
	follow bool
	lines  []string
	counts map[string]uint64
	total  uint64
	bytes  uint64
	closed bool
	err    error
}

func newModel(ctx context.Context, keyExpr, zid string, ring *zenoh.Ring, history int) *monitorModel {
	return &monitorModel{
		ctx:     ctx,
		ring:    ring,
		keyExpr: keyExpr,
		zid:     zid,
		history: history,
		follow:  true,
		counts:  make(map[string]uint64),
	}
}

func (m *monitorModel) Init() tea.Cmd {
	return m.waitSample
}

func (m *monitorModel) waitSample() tea.Msg {
	r, err := m.ring.Recv(m.ctx)
	if err != nil {
		return closedMsg{err: err}
	}
	return sampleMsg(r)
}

func (m *monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "f":
			m.follow = !m.follow
			if m.follow {
				m.vp.GotoBottom()
			}
			return m, nil
		}

	case tea.WindowSizeMsg:
		height := max(msg.Height-chromeHeight, 1)
		if !m.ready {
			m.vp = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.vp.Width = msg.Width
			m.vp.Height = height
		}
		m.refresh()
		return m, nil

	case sampleMsg:
		m.record(zenoh.Received(msg))
		return m, m.waitSample

	case closedMsg:
		m.closed = true
		if !errors.Is(msg.err, zenoh.ErrHandlerClosed) {
			m.err = msg.err
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.vp, cmd = m.vp.Update(msg)
	return m, cmd
}

func (m *monitorModel) record(r zenoh.Received) {
	m.total++
	m.bytes += uint64(len(r.Payload))
	m.counts[r.KeyExpr]++
	m.lines = append(m.lines, formatStyledLine(r))
	if over := len(m.lines) - m.history; over > 0 {
		m.lines = m.lines[over:]
	}
	m.refresh()
}

func (m *monitorModel) refresh() {
	if !m.ready {
		return
	}
	m.vp.SetContent(strings.Join(m.lines, "\n"))
	if m.follow {
		m.vp.GotoBottom()
	}
}

func (m *monitorModel) View() string {
	if !m.ready {
		return "Waiting for terminal size..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("zenoh monitor"))
	b.WriteString(" ")
	b.WriteString(keyStyle.Render(m.keyExpr))
	b.WriteString(timeStyle.Render("  zid " + m.zid))
	b.WriteString("\n")
	b.WriteString(statStyle.Render(m.stats()))
	b.WriteString("\n\n")
	b.WriteString(m.vp.View())
	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render(fmt.Sprintf("subscriber stopped: %v", m.err)))
	case m.closed:
		b.WriteString(errorStyle.Render("subscriber closed"))
	default:
		b.WriteString(helpStyle.Render("↑/↓ scroll • f follow • q quit"))
	}
	return b.String()
}

func (m *monitorModel) stats() string {
	keys := make([]string, 0, len(m.counts))
	for k := range m.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{
		fmt.Sprintf("%d samples", m.total),
		fmt.Sprintf("%d bytes", m.bytes),
		fmt.Sprintf("%d discarded", m.ring.Discarded()),
	}
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%d", k, m.counts[k]))
	}
	return strings.Join(parts, "  ")
}

func formatLine(r zenoh.Received) string {
	return fmt.Sprintf("%s %s [%s] %s", r.ReceivedAt.Format(time.TimeOnly), r.KeyExpr, r.Encoding, preview(r.Payload))
}

func formatStyledLine(r zenoh.Received) string {
	return timeStyle.Render(r.ReceivedAt.Format(time.TimeOnly)) + " " +
		keyStyle.Render(r.KeyExpr) + " " +
		timeStyle.Render("["+r.Encoding+"]") + " " +
		preview(r.Payload)
}

// preview renders at most 96 bytes of a payload, escaping non-printables.
func preview(p []byte) string {
	const limit = 96
	s := p
	if len(s) > limit {
		s = s[:limit]
	}
	out := fmt.Sprintf("%q", s)
	out = out[1 : len(out)-1]
	if len(p) > limit {
		out += fmt.Sprintf("… (%d bytes)", len(p))
	}
	return out
}
