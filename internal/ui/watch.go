package ui

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/openmotics-go/openmotics/pkg/events"
)

// DefaultWatchLimit is the number of events kept on screen
const DefaultWatchLimit = 20

// maxDataWidth truncates the payload column
const maxDataWidth = 60

// EventSource is the part of an event stream the watch view reads.
type EventSource interface {
	Events() <-chan events.Event
	State() events.State
}

type eventMsg events.Event

type streamClosedMsg struct{}

// WatchModel is a Bubble Tea model showing the latest events of a stream
// under a header, with a spinner and the connection state.
type WatchModel struct {
	header  *Header
	source  EventSource
	spinner spinner.Model
	state   events.State
	events  []events.Event
	total   int
	limit   int
	closed  bool
}

// NewWatchModel creates the watch view. limit <= 0 means DefaultWatchLimit.
func NewWatchModel(title, command string, params map[string]string, source EventSource, limit int) WatchModel {
	if limit <= 0 {
		limit = DefaultWatchLimit
	}
	return WatchModel{
		header: NewHeader(title, command, params),
		source: source,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(PrimaryColor)),
		),
		state: source.State(),
		limit: limit,
	}
}

func waitForEvent(ch <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg(ev)
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.source.Events()))
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.header.SetWidth(min(max(msg.Width, MinTerminalWidth), MaxContentWidth))
	case eventMsg:
		m.events = append(m.events, events.Event(msg))
		if len(m.events) > m.limit {
			m.events = m.events[len(m.events)-m.limit:]
		}
		m.total++
		return m, waitForEvent(m.source.Events())
	case streamClosedMsg:
		m.closed = true
		m.state = events.StateDisconnected
		return m, tea.Quit
	case spinner.TickMsg:
		m.state = m.source.State()
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder
	b.WriteString(m.header.Render())
	b.WriteString("\n")

	status := fmt.Sprintf("%s  %d events  (q to quit)", m.state, m.total)
	if m.closed {
		status = fmt.Sprintf("stream closed after %d events", m.total)
	} else if m.state != events.StateConnected {
		status = m.spinner.View() + " " + status
	}
	b.WriteString(StatusLineStyle.Render(status))
	b.WriteString("\n\n")

	t := NewTable("TIME", "TYPE", "ID", "DATA")
	for i := len(m.events) - 1; i >= 0; i-- {
		ev := m.events[i]
		t.AddRow(
			ev.ReceivedAt.Format("15:04:05"),
			EventTypeStyle.Render(ev.Type),
			strconv.Itoa(ev.ID),
			summarize(ev.Data),
		)
	}
	if len(t.Rows) > 0 {
		b.WriteString(t.Render())
		b.WriteString("\n")
	}
	return b.String()
}

// Events returns the events currently on screen, oldest first.
func (m WatchModel) Events() []events.Event {
	return m.events
}

// summarize compacts a JSON payload onto one truncated line.
func summarize(data json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		buf.Reset()
		buf.Write(data)
	}
	s := buf.String()
	if r := []rune(s); len(r) > maxDataWidth {
		s = string(r[:maxDataWidth-1]) + "…"
	}
	return s
}

// RunWatch runs the watch view until the user quits, the stream closes or
// ctx is cancelled.
func RunWatch(ctx context.Context, m WatchModel) error {
	p := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
