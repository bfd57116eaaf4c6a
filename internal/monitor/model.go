// Package monitor is a terminal dashboard that polls a cloudstream server
// and shows the session position and recently published frames.
package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zsiec/cloudstream/internal/registry"
	"github.com/zsiec/cloudstream/internal/stream"
)

const (
	DefaultInterval = 500 * time.Millisecond
	historyLimit    = 40
	visibleFrames   = 8
)

// Source is what the model polls.
type Source interface {
	Session(ctx context.Context) (stream.Session, error)
	History(ctx context.Context, limit int) ([]registry.Entry, error)
}

type tickMsg time.Time

type pollMsg struct {
	session stream.Session
	frames  []registry.Entry
	err     error
	at      time.Time
}

// Model implements tea.Model.
type Model struct {
	source   Source
	target   string
	interval time.Duration

	width    int
	session  stream.Session
	frames   []registry.Entry
	err      error
	polled   bool
	lastPoll time.Time
	quitting bool
}

func NewModel(source Source, target string, interval time.Duration) *Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Model{source: source, target: target, interval: interval}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(tickEvery(m.interval), poll(m.source, m.interval))
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, poll(m.source, m.interval)
		}

	case tickMsg:
		if m.quitting {
			return m, nil
		}
		return m, tea.Batch(tickEvery(m.interval), poll(m.source, m.interval))

	case pollMsg:
		m.polled = true
		m.lastPoll = msg.at
		m.err = msg.err
		if msg.err == nil {
			m.session = msg.session
			m.frames = msg.frames
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) View() string {
	if m.quitting {
		return "Closing monitor...\n"
	}

	width := m.width
	if width == 0 {
		width = 100
	}

	header := HeaderStyle.Width(width - 2).Render(fmt.Sprintf("cloudstream monitor  %s", MutedStyle.Render(m.target)))
	if !m.polled {
		return lipgloss.JoinVertical(lipgloss.Left, header, MutedStyle.Render("Connecting..."))
	}

	panels := lipgloss.JoinHorizontal(lipgloss.Top,
		m.sessionPanel(width/2-2),
		m.framesPanel(width-width/2-2),
	)

	footer := MutedStyle.Render(fmt.Sprintf("updated %s  •  r refresh  •  q quit", m.lastPoll.Format("15:04:05")))
	if m.err != nil {
		footer = ErrorStyle.Render("poll failed: "+m.err.Error()) + "\n" + footer
	}

	return lipgloss.JoinVertical(lipgloss.Left, header, panels, footer)
}

func (m *Model) sessionPanel(width int) string {
	s := m.session
	rows := []string{
		PanelTitleStyle.Render("Session"),
		row("state", StateBadge(s.State.String(), s.Halted)),
		row("frame index", fmt.Sprintf("%d", s.FrameIndex)),
		row("published", formatNumber(int64(s.Published))),
	}
	if s.Width > 0 {
		rows = append(rows, row("next slot", fmt.Sprintf("%d / %d", s.Slot(), s.Width)))
	}
	if s.LastFrame != "" {
		rows = append(rows, row("last frame", s.LastFrame))
	}
	if !s.StartedAt.IsZero() {
		rows = append(rows, row("uptime", formatDuration(s.Elapsed())))
	}
	if s.LastError != "" {
		rows = append(rows, row("error", ErrorStyle.Render(s.LastError)))
	}
	return PanelStyle.Width(width).Render(strings.Join(rows, "\n"))
}

func (m *Model) framesPanel(width int) string {
	rows := []string{PanelTitleStyle.Render("Frames")}
	if len(m.frames) == 0 {
		rows = append(rows, MutedStyle.Render("no frames published yet"))
		return PanelStyle.Width(width).Render(strings.Join(rows, "\n"))
	}

	// history arrives newest first; the sparkline reads left to right
	points := make([]float64, len(m.frames))
	for i, f := range m.frames {
		points[len(m.frames)-1-i] = float64(f.Points)
	}
	sparkWidth := width - 4
	if sparkWidth < 8 {
		sparkWidth = 8
	}
	rows = append(rows, InfoStyle.Render(renderSparkline(points, sparkWidth)))

	for i, f := range m.frames {
		if i == visibleFrames {
			break
		}
		rows = append(rows, fmt.Sprintf("%-16s slot %-4d %8s pts", f.Name, f.Slot, formatNumber(int64(f.Points))))
	}
	return PanelStyle.Width(width).Render(strings.Join(rows, "\n"))
}

func row(label, value string) string {
	return LabelStyle.Render(label) + ValueStyle.Render(value)
}

func tickEvery(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func poll(source Source, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout*4)
		defer cancel()

		msg := pollMsg{at: time.Now()}
		msg.session, msg.err = source.Session(ctx)
		if msg.err != nil {
			return msg
		}
		msg.frames, msg.err = source.History(ctx, historyLimit)
		return msg
	}
}

// renderSparkline scales data into width block characters.
func renderSparkline(data []float64, width int) string {
	if len(data) == 0 {
		return strings.Repeat("▁", width)
	}

	minVal, maxVal := data[0], data[0]
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == minVal {
		return strings.Repeat("▄", width)
	}

	sparkChars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}
	var b strings.Builder
	for i := 0; i < width; i++ {
		idx := i * len(data) / width
		normalized := (data[idx] - minVal) / (maxVal - minVal)
		c := int(normalized * 7)
		if c > 7 {
			c = 7
		}
		b.WriteRune(sparkChars[c])
	}
	return b.String()
}

func formatNumber(num int64) string {
	switch {
	case num >= 1000000000:
		return fmt.Sprintf("%.1fB", float64(num)/1000000000)
	case num >= 1000000:
		return fmt.Sprintf("%.1fM", float64(num)/1000000)
	case num >= 1000:
		return fmt.Sprintf("%.1fK", float64(num)/1000)
	}
	return fmt.Sprintf("%d", num)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	return fmt.Sprintf("%02d:%02d:%02d", h, m, d/time.Second)
}
