// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Thermoquad/shadestat/pkg/am43"
	"github.com/Thermoquad/shadestat/pkg/shade"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// logEntry is one line of the event log
type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// monitorModel is the Bubble Tea model for the monitor TUI
type monitorModel struct {
	driver   *shade.Driver
	connInfo string

	// Refreshed on every tick
	state    shade.State
	poll     shade.PollState
	watchdog int
	stats    am43.Statistics

	eventLog      []logEntry
	maxLogEntries int

	positionInput textinput.Model
	inputFocused  bool

	width    int
	height   int
	quitting bool
	stopped  error
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type monitorTickMsg time.Time

type driverEventMsg shade.Event

type driverStoppedMsg struct {
	err error
}

type controlResultMsg struct {
	description string
	err         error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialMonitorModel(driver *shade.Driver, connInfo string) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "0-100"
	ti.CharLimit = 3
	ti.Width = 5

	m := monitorModel{
		driver:        driver,
		connInfo:      connInfo,
		eventLog:      make([]logEntry, 0),
		maxLogEntries: 100,
		positionInput: ti,
		width:         80,
		height:        24,
	}
	m.refresh()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		m.refresh()
		return m, monitorTickCmd()

	case driverEventMsg:
		m.handleEvent(shade.Event(msg))
		m.refresh()

	case driverStoppedMsg:
		m.stopped = msg.err
		m.addLogEntry(fmt.Sprintf("Driver stopped: %v", msg.err), true)

	case controlResultMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s failed: %v", msg.description, msg.err), true)
		} else {
			m.addLogEntry(msg.description, false)
		}
		m.refresh()
	}

	return m, nil
}

func (m *monitorModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		m.inputFocused = !m.inputFocused
		if m.inputFocused {
			m.positionInput.Focus()
		} else {
			m.positionInput.Blur()
		}
		return m, nil
	}

	if m.inputFocused {
		if msg.String() == "enter" {
			return m, m.submitPosition()
		}
		var cmd tea.Cmd
		m.positionInput, cmd = m.positionInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "o":
		return m, m.sendAction(am43.ActionOpen)
	case "c":
		return m, m.sendAction(am43.ActionClose)
	case "s":
		return m, m.sendAction(am43.ActionStop)
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	s.WriteString(titleStyle.Render("SHADESTAT MONITOR"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.stopped != nil {
		connStatus = errorStyle.Render("DISCONNECTED")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | o=open c=close s=stop Tab=position q=quit", connStatus)))
	s.WriteString("\n\n")

	s.WriteString(m.renderCover(labelStyle, valueStyle, warningStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.renderSettings(labelStyle, valueStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle))
	s.WriteString("\n")
	s.WriteString(m.renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m monitorModel) renderCover(labelStyle, valueStyle, warningStyle, boxStyle lipgloss.Style) string {
	var content strings.Builder

	content.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s  %s %s\n",
		labelStyle.Render("Position:"), valueStyle.Render(fmt.Sprintf("%d%%", m.state.Position)),
		labelStyle.Render("Openness:"), valueStyle.Render(fmt.Sprintf("%.2f", m.state.Openness)),
		labelStyle.Render("Battery:"), valueStyle.Render(fmt.Sprintf("%d%%", m.state.Battery)),
		labelStyle.Render("Light:"), valueStyle.Render(fmt.Sprintf("%d", m.state.LightLevel))))

	discovery := valueStyle.Render(m.poll.String())
	if !m.state.Initialized {
		discovery = warningStyle.Render(m.poll.String() + " (discovering)")
	}
	watchdog := valueStyle.Render(strconv.Itoa(m.watchdog))
	if m.watchdog > defaultWatchdogThreshold/2 {
		watchdog = warningStyle.Render(strconv.Itoa(m.watchdog))
	}
	content.WriteString(fmt.Sprintf("%s %s  %s %s\n",
		labelStyle.Render("Discovery:"), discovery,
		labelStyle.Render("Watchdog:"), watchdog))

	content.WriteString(fmt.Sprintf("%s %s", labelStyle.Render("Set position:"), m.positionInput.View()))

	return boxStyle.Width(m.width - 4).Render(content.String())
}

func (m monitorModel) renderSettings(labelStyle, valueStyle, boxStyle lipgloss.Style) string {
	var content strings.Builder
	content.WriteString(labelStyle.Render("DEVICE"))
	content.WriteString(" | ")

	content.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s  %s %s\n",
		labelStyle.Render("Type:"), valueStyle.Render(m.state.DeviceType.String()),
		labelStyle.Render("Direction:"), valueStyle.Render(m.state.Direction.String()),
		labelStyle.Render("Mode:"), valueStyle.Render(m.state.OperationMode.String()),
		labelStyle.Render("Speed:"), valueStyle.Render(fmt.Sprintf("%d RPM", m.state.Speed))))

	content.WriteString(fmt.Sprintf("%s %s  %s %s  %s %s  %s %s\n",
		labelStyle.Render("Length:"), valueStyle.Render(fmt.Sprintf("%d mm", m.state.Length)),
		labelStyle.Render("Diameter:"), valueStyle.Render(fmt.Sprintf("%d mm", m.state.Diameter)),
		labelStyle.Render("Limits:"), valueStyle.Render(fmt.Sprintf("top=%t bottom=%t", m.state.TopLimitSet, m.state.BottomLimitSet)),
		labelStyle.Render("Light sensor:"), valueStyle.Render(fmt.Sprintf("%t", m.state.HasLightSensor))))

	content.WriteString(fmt.Sprintf("%s %s  %s %s",
		labelStyle.Render("Summer:"), valueStyle.Render(m.state.Summer.String()),
		labelStyle.Render("Winter:"), valueStyle.Render(m.state.Winter.String())))

	return boxStyle.Width(m.width - 4).Render(content.String())
}

func (m monitorModel) renderStatisticsBar(labelStyle, valueStyle, errorStyle, boxStyle lipgloss.Style) string {
	var validPercent float64
	if m.stats.TotalFrames > 0 {
		validPercent = float64(m.stats.ValidFrames) * 100.0 / float64(m.stats.TotalFrames)
	}

	errors := valueStyle.Render("0")
	if n := m.stats.Errors(); n > 0 {
		errors = errorStyle.Render(fmt.Sprintf("%d", n))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		labelStyle.Render("Frames:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.TotalFrames)),
		labelStyle.Render("Valid:"), valueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		labelStyle.Render("Errors:"), errors,
		labelStyle.Render("Sent:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.SentFrames)),
		labelStyle.Render("Resets:"), valueStyle.Render(fmt.Sprintf("%d", m.stats.WatchdogResets)),
		labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f f/s", m.stats.FrameRate)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m monitorModel) renderEventLog(labelStyle, warningStyle, errorStyle, headerStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(labelStyle.Render("EVENTS"))
	s.WriteString("\n")

	// Whatever is left of the screen below the panels
	logHeight := m.height - 20
	if logHeight < 3 {
		logHeight = 3
	}
	if len(m.eventLog) < logHeight {
		logHeight = len(m.eventLog)
	}
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for i := startIdx; i < len(m.eventLog); i++ {
		entry := m.eventLog[i]
		icon := "i"
		style := warningStyle
		if entry.isError {
			icon = "x"
			style = errorStyle
		}
		s.WriteString(fmt.Sprintf("%s %s %s\n",
			headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
			style.Render(icon),
			entry.message))
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

//////////////////////////////////////////////////////////////
// Driver Interaction
//////////////////////////////////////////////////////////////

// refresh copies the driver state into the model
func (m *monitorModel) refresh() {
	snap := m.driver.Snapshot()
	m.state = m.driver.State()
	m.poll = m.driver.PollState()
	m.watchdog = snap.WatchdogCounter
	m.stats = m.driver.Stats()
}

// handleEvent turns driver events into log entries. Plain frame and send
// events are too frequent to log.
func (m *monitorModel) handleEvent(ev shade.Event) {
	switch ev.Kind {
	case shade.EventChecksumMismatch:
		m.addLogEntry("Checksum mismatch", true)
	case shade.EventAdvance:
		m.addLogEntry(fmt.Sprintf("%s received, discovery at %s", am43.FormatCommand(ev.Command), ev.Poll), false)
	case shade.EventStallRestart:
		m.addLogEntry("Discovery stalled, restarting", true)
	case shade.EventCycleComplete:
		m.addLogEntry("Discovery cycle complete", false)
	case shade.EventWatchdogReset:
		if ev.Err != nil {
			m.addLogEntry(fmt.Sprintf("Watchdog reset failed: %v", ev.Err), true)
		} else {
			m.addLogEntry("Device unresponsive, reset pulsed", true)
		}
	case shade.EventSendFailed:
		m.addLogEntry(fmt.Sprintf("Send failed: %v", ev.Err), true)
	}
}

// sendAction runs the action off the UI goroutine, the driver observer
// feeds back into the program
func (m *monitorModel) sendAction(action am43.Action) tea.Cmd {
	if m.stopped != nil {
		m.addLogEntry("Cannot send command: driver stopped", true)
		return nil
	}
	driver := m.driver
	return func() tea.Msg {
		err := driver.SendAction(action)
		return controlResultMsg{description: "Sent " + am43.FormatAction(action), err: err}
	}
}

func (m *monitorModel) submitPosition() tea.Cmd {
	value := strings.TrimSpace(m.positionInput.Value())
	m.positionInput.SetValue("")

	percent, err := strconv.Atoi(value)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid position %q", value), true)
		return nil
	}
	if m.stopped != nil {
		m.addLogEntry("Cannot send command: driver stopped", true)
		return nil
	}

	driver := m.driver
	target := am43.ClampPercent(percent)
	return func() tea.Msg {
		err := driver.SetPosition(percent)
		return controlResultMsg{description: fmt.Sprintf("Position set to %d%%", target), err: err}
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
}
