package monitor

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/strefethen/amplipi-keypad-go/internal/keypad"
)

const (
	reconnectDelay = 2 * time.Second
	barWidth       = 20
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7dd3fc"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#666"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#aaa")).Width(8)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff"))
	warnStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#f87171"))
	noticeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#facc15"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#86efac"))
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

type snapshotMsg keypad.Snapshot

type streamErrMsg struct{ err error }

type connectedMsg struct{ stream *Stream }

type reconnectMsg struct{}

type touchResultMsg struct {
	x, y int
	err  error
}

// Model is the bubbletea model of the monitor.
type Model struct {
	client *Client
	stream *Stream

	snap      *keypad.Snapshot
	connected bool
	status    string
	lastErr   error
	quitting  bool
}

// NewModel creates a disconnected model; Init dials the server.
func NewModel(client *Client) Model {
	return Model{client: client, status: "connecting to " + client.Base()}
}

func (m Model) Init() tea.Cmd {
	return dial(m.client)
}

func dial(client *Client) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		stream, err := client.Dial(ctx)
		if err != nil {
			return streamErrMsg{err}
		}
		return connectedMsg{stream}
	}
}

func listen(stream *Stream) tea.Cmd {
	return func() tea.Msg {
		snap, err := stream.Next()
		if err != nil {
			return streamErrMsg{err}
		}
		return snapshotMsg(snap)
	}
}

func touch(client *Client, x, y int) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return touchResultMsg{x: x, y: y, err: client.Touch(ctx, x, y)}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		key := msg.String()
		if key == "q" || key == "ctrl+c" {
			m.quitting = true
			if m.stream != nil {
				m.stream.Close()
			}
			return m, tea.Quit
		}
		if m.snap == nil {
			return m, nil
		}
		if x, y, ok := touchForKey(*m.snap, key); ok {
			return m, touch(m.client, x, y)
		}

	case connectedMsg:
		m.stream = msg.stream
		m.connected = true
		m.lastErr = nil
		m.status = "connected to " + m.client.Base()
		return m, listen(msg.stream)

	case snapshotMsg:
		snap := keypad.Snapshot(msg)
		m.snap = &snap
		return m, listen(m.stream)

	case streamErrMsg:
		if m.stream != nil {
			m.stream.Close()
			m.stream = nil
		}
		m.connected = false
		m.lastErr = msg.err
		m.status = "disconnected, retrying"
		return m, tea.Tick(reconnectDelay, func(time.Time) tea.Msg { return reconnectMsg{} })

	case reconnectMsg:
		return m, dial(m.client)

	case touchResultMsg:
		if msg.err != nil {
			m.lastErr = fmt.Errorf("touch (%d,%d): %w", msg.x, msg.y, msg.err)
		} else {
			m.lastErr = nil
			m.status = fmt.Sprintf("touched (%d,%d)", msg.x, msg.y)
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	state := warnStyle.Render("offline")
	if m.connected {
		state = pendingStyle.Render("live")
	}
	b.WriteString(titleStyle.Render("AmpliPi keypad") + "  " + state + "  " + dimStyle.Render(m.status) + "\n\n")

	if m.snap == nil {
		b.WriteString(dimStyle.Render("waiting for the first frame") + "\n")
	} else {
		b.WriteString(panelStyle.Render(m.screenView(*m.snap)) + "\n")
		if m.snap.Warning {
			b.WriteString(warnStyle.Render(keypad.WarningText) + "\n")
		}
		if m.snap.Notice != "" {
			b.WriteString(noticeStyle.Render(m.snap.Notice) + "\n")
		}
	}
	if m.lastErr != nil {
		b.WriteString(warnStyle.Render(m.lastErr.Error()) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render(helpFor(m.snap)))
	return b.String()
}

func (m Model) screenView(snap keypad.Snapshot) string {
	switch snap.Screen {
	case keypad.ScreenSourceSelect:
		return sourceSelectView(snap)
	case keypad.ScreenSettings:
		return settingsView(snap)
	default:
		return metadataView(snap)
	}
}

func metadataView(snap keypad.Snapshot) string {
	md := snap.Metadata
	lines := []string{
		activeStyle.Render(orDash(md.SourceName)),
		labelStyle.Render("artist") + orDash(md.Artist),
		labelStyle.Render("song") + orDash(md.Song),
		labelStyle.Render("album") + orDash(md.Album),
		labelStyle.Render("status") + orDash(md.Status),
		"",
	}
	for i, z := range snap.Zones {
		lines = append(lines, zoneLine(i, z))
	}
	return strings.Join(lines, "\n")
}

func zoneLine(i int, z keypad.ZoneState) string {
	label := labelStyle.Render(fmt.Sprintf("zone %d", z.ID))
	if !z.Known {
		return label + dimStyle.Render("unknown")
	}
	return label + volumeBar(z.VolumePercent) + fmt.Sprintf(" %3.0f%%", z.VolumePercent) + muteMark(z.Muted)
}

func volumeBar(percent float64) string {
	filled := int(percent / 100 * barWidth)
	if filled < 0 {
		filled = 0
	}
	if filled > barWidth {
		filled = barWidth
	}
	return strings.Repeat("█", filled) + dimStyle.Render(strings.Repeat("░", barWidth-filled))
}

func muteMark(muted bool) string {
	if muted {
		return " " + warnStyle.Render("muted")
	}
	return ""
}

func sourceSelectView(snap keypad.Snapshot) string {
	lines := []string{activeStyle.Render("Select source")}
	end := snap.Offset + keypad.PageSize
	if end > len(snap.Streams) {
		end = len(snap.Streams)
	}
	for i := snap.Offset; i < end; i++ {
		lines = append(lines, fmt.Sprintf("%d  %s", i-snap.Offset+1, snap.Streams[i].DisplayName))
	}
	if len(snap.Streams) == 0 {
		lines = append(lines, dimStyle.Render("no streams"))
	} else {
		lines = append(lines, dimStyle.Render(fmt.Sprintf("%d-%d of %d", snap.Offset+1, end, len(snap.Streams))))
	}
	return strings.Join(lines, "\n")
}

func settingsView(snap keypad.Snapshot) string {
	p := snap.Pending
	zone2 := "off"
	if p.Zone2 != keypad.ZoneDisabled {
		zone2 = fmt.Sprint(p.Zone2)
	}
	return strings.Join([]string{
		activeStyle.Render("Settings"),
		labelStyle.Render("zone 1") + pendingStyle.Render(fmt.Sprint(p.Zone1)),
		labelStyle.Render("zone 2") + pendingStyle.Render(zone2),
		labelStyle.Render("source") + pendingStyle.Render(fmt.Sprint(p.Source)),
	}, "\n")
}

func helpFor(snap *keypad.Snapshot) string {
	if snap == nil {
		return "q:quit"
	}
	switch snap.Screen {
	case keypad.ScreenSourceSelect:
		return "1-6:select  p/n:page  c:cancel  ,:settings  q:quit"
	case keypad.ScreenSettings:
		return "a/z:zone1  s/x:zone2  d/c:source  R:reset network  K:recalibrate  enter:save  esc:cancel  q:quit"
	default:
		if snap.Dual {
			return "s:sources  m/M:mute  +/-:zone 1  ]/[:zone 2  q:quit"
		}
		return "s:sources  m:mute  +/-:volume  q:quit"
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
