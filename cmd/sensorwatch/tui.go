package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
	"github.com/BYTE-6D65/sensorstream/pkg/stream"
)

const logLines = 8

// Message types
type messageType int

const (
	msgInfo messageType = iota
	msgWarning
	msgError
	msgSuccess
)

// userMessage is a line in the dashboard log
type userMessage struct {
	msgType messageType
	text    string
	at      time.Time
}

// firer is implemented by bindings that can fire triggers on demand.
type firer interface {
	DefaultDevice(kind sensor.Kind) (sensor.Device, bool)
	Fire(deviceID string) int
}

// model holds the state of the dashboard
type model struct {
	ctx     context.Context
	manager *stream.Manager
	feed    feed
	fire    firer

	kinds       []sensor.Kind
	triggerKind sensor.Kind

	latest   map[sensor.Kind]sensor.Reading
	accuracy map[sensor.Kind]sensor.Accuracy
	failures map[sensor.Kind]error

	trigger       *stream.Future[sensor.TriggerEvent]
	triggerStatus *userMessage

	log []userMessage

	width  int
	height int
	now    time.Time
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingLeft(2)

	kindStyle = lipgloss.NewStyle().
			Width(22).
			PaddingLeft(4)

	valuesStyle = lipgloss.NewStyle().
			Width(34)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingTop(1).
			PaddingLeft(2)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 2).
			MarginLeft(2)

	infoMessageStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00A9E0"))
	warningMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB800"))
	errorMessageStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555"))
	successMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#50FA7B"))

	accuracyStyles = map[sensor.Accuracy]lipgloss.Style{
		sensor.AccuracyHigh:       successMessageStyle,
		sensor.AccuracyMedium:     infoMessageStyle,
		sensor.AccuracyLow:        warningMessageStyle,
		sensor.AccuracyUnreliable: warningMessageStyle,
		sensor.AccuracyNoContact:  errorMessageStyle,
	}
)

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(250*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func newModel(ctx context.Context, m *stream.Manager, f feed, kinds []sensor.Kind, triggerKind sensor.Kind) model {
	return model{
		ctx:         ctx,
		manager:     m,
		feed:        f,
		kinds:       kinds,
		triggerKind: triggerKind,
		latest:      make(map[sensor.Kind]sensor.Reading),
		accuracy:    make(map[sensor.Kind]sensor.Accuracy),
		failures:    make(map[sensor.Kind]error),
		now:         time.Now(),
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.feed.wait(), tick())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		return m, tick()

	case readingMsg:
		m.latest[msg.kind] = msg.reading
		return m, m.feed.wait()

	case accuracyMsg:
		m.accuracy[msg.kind] = msg.accuracy
		return m, m.feed.wait()

	case streamEndMsg:
		if msg.kind != 0 {
			m.failures[msg.kind] = msg.err
		}
		level := msgError
		if errors.Is(msg.err, stream.ErrDiscoveryUnsupported) {
			level = msgWarning
		}
		m = m.appendLog(level, fmt.Sprintf("%s %s: %v", msg.kind, msg.name, msg.err))
		return m, m.feed.wait()

	case discoveryMsg:
		if msg.direction == sensor.Connected {
			m = m.appendLog(msgSuccess, "connected "+msg.device.String())
		} else {
			m = m.appendLog(msgWarning, "disconnected "+msg.device.String())
		}
		return m, m.feed.wait()

	case logMsg:
		m = m.appendLog(msgInfo, strings.TrimSpace(string(msg)))
		return m, m.feed.wait()

	case triggerMsg:
		m.trigger = nil
		switch {
		case msg.err == nil:
			m.triggerStatus = &userMessage{msgType: msgSuccess, text: fmt.Sprintf("triggered by %s %v", msg.event.Device, msg.event.Values), at: msg.event.Timestamp}
		case errors.Is(msg.err, stream.ErrCancelled):
			m.triggerStatus = &userMessage{msgType: msgInfo, text: "trigger cancelled"}
		default:
			m.triggerStatus = &userMessage{msgType: msgError, text: msg.err.Error()}
		}
		return m, nil
	}

	return m, nil
}

func (m model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		if m.trigger != nil {
			m.trigger.Cancel()
		}
		return m, tea.Quit

	case "t":
		if m.trigger != nil {
			return m, nil
		}
		f := m.manager.ObserveTrigger(m.ctx, m.triggerKind)
		m.trigger = f
		m.triggerStatus = &userMessage{msgType: msgInfo, text: fmt.Sprintf("waiting for %s...", m.triggerKind)}
		return m, awaitTrigger(m.ctx, f)

	case "c":
		if m.trigger != nil {
			m.trigger.Cancel()
		}

	case "f":
		if m.fire == nil || m.trigger == nil {
			return m, nil
		}
		if d, ok := m.fire.DefaultDevice(m.triggerKind); ok {
			m.fire.Fire(d.ID)
		}
	}
	return m, nil
}

func awaitTrigger(ctx context.Context, f *stream.Future[sensor.TriggerEvent]) tea.Cmd {
	return func() tea.Msg {
		ev, err := f.Wait(ctx)
		return triggerMsg{event: ev, err: err}
	}
}

func (m model) appendLog(t messageType, text string) model {
	m.log = append(m.log, userMessage{msgType: t, text: text, at: time.Now()})
	if len(m.log) > logLines {
		m.log = m.log[len(m.log)-logLines:]
	}
	return m
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("📡 sensorwatch") + "\n\n")

	for _, kind := range m.kinds {
		b.WriteString(m.renderKind(kind) + "\n")
	}

	b.WriteString("\n" + titleStyle.Render("Trigger: "+m.triggerKind.String()) + "\n")
	if m.triggerStatus != nil {
		b.WriteString(panelStyle.Render(renderUserMessage(*m.triggerStatus)) + "\n")
	}

	b.WriteString("\n" + titleStyle.Render("Log") + "\n")
	if len(m.log) == 0 {
		b.WriteString(helpStyle.Render("no events yet") + "\n")
	} else {
		lines := make([]string, len(m.log))
		for i, entry := range m.log {
			lines[i] = entry.at.Format("15:04:05") + " " + renderUserMessage(entry)
		}
		b.WriteString(panelStyle.Render(strings.Join(lines, "\n")) + "\n")
	}

	help := "t arm trigger • c cancel trigger • q quit"
	if m.fire != nil {
		help = "t arm trigger • f fire now • c cancel trigger • q quit"
	}
	b.WriteString(helpStyle.Render(help))
	return b.String()
}

func (m model) renderKind(kind sensor.Kind) string {
	name := kindStyle.Render(kind.String())
	if err, ok := m.failures[kind]; ok {
		return name + errorMessageStyle.Render(err.Error())
	}
	r, ok := m.latest[kind]
	if !ok {
		return name + helpStyle.UnsetPaddingTop().UnsetPaddingLeft().Render("waiting...")
	}

	values := make([]string, len(r.Values))
	for i, v := range r.Values {
		values[i] = fmt.Sprintf("%8.3f", v)
	}
	row := name + valuesStyle.Render(strings.Join(values, " "))

	acc, ok := m.accuracy[kind]
	if !ok {
		acc = r.Accuracy
	}
	style, ok := accuracyStyles[acc]
	if !ok {
		style = infoMessageStyle
	}
	row += style.Render(fmt.Sprintf("%-11s", acc))

	if !r.Timestamp.IsZero() && !m.now.IsZero() {
		age := m.now.Sub(r.Timestamp)
		if age < 0 {
			age = 0
		}
		row += helpStyle.UnsetPaddingTop().UnsetPaddingLeft().Render(" " + age.Round(time.Millisecond).String())
	}
	return row
}

func renderUserMessage(msg userMessage) string {
	var style lipgloss.Style
	switch msg.msgType {
	case msgInfo:
		style = infoMessageStyle
	case msgWarning:
		style = warningMessageStyle
	case msgError:
		style = errorMessageStyle
	case msgSuccess:
		style = successMessageStyle
	}
	return style.Render(msg.text)
}
