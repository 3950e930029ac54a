package main

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"jarvis/controller"
	"jarvis/transcript"
)

// TUI message types
type StatusMsg struct{ Text string }
type CapturingMsg struct{ On bool }
type LevelMsg struct{ Level float64 }
type EntryMsg struct{ Entry transcript.Entry }
type ActionStateMsg struct {
	Action  controller.Action
	Enabled bool
}
type ToastMsg struct{ Text string }
type DeviceLineMsg struct{ Text string }
type HelpLineMsg struct{ Combo string }
type tickMsg time.Time

const toastDuration = 3200 * time.Millisecond

type toast struct {
	text    string
	expires time.Time
}

type tuiModel struct {
	frame         int
	capturing     bool
	level         float64 // 0..100
	status        string
	entries       []transcript.Entry
	enabled       map[controller.Action]bool
	toasts        []toast
	deviceLine    string
	combo         string
	width, height int
	onAction      func(controller.Action)
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
	tuiReady   = make(chan struct{})
	readyOnce  sync.Once
)

// Pre-computed pixel styles to avoid allocations in render loop
var (
	pixelColorsListen = []string{"", "51", "45", "39", "33", "27", "21", "19", "17", "236", "236", "236", "236", "236", "255", "249"}
	pixelColorsIdle   = []string{"", "195", "153", "117", "81", "75", "69", "61", "60", "236", "236", "236", "236", "236", "255", "249"}
	pixelStylesListen [16]lipgloss.Style
	pixelStylesIdle   [16]lipgloss.Style
	pixelBgListen     [16][16]lipgloss.Style
	pixelBgIdle       [16][16]lipgloss.Style
)

func init() {
	buildStyles(pixelColorsListen, &pixelStylesListen, &pixelBgListen)
	buildStyles(pixelColorsIdle, &pixelStylesIdle, &pixelBgIdle)
}

func buildStyles(colors []string, fg *[16]lipgloss.Style, bg *[16][16]lipgloss.Style) {
	for i, c := range colors {
		if c == "" {
			continue
		}
		fg[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c))
		for j, b := range colors {
			if b != "" {
				bg[i][j] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Background(lipgloss.Color(b))
			}
		}
	}
}

func NewTUIProgram(onAction func(controller.Action)) *tea.Program {
	m := tuiModel{
		status:   controller.StatusIdle,
		enabled:  make(map[controller.Action]bool),
		onAction: onAction,
	}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	readyOnce.Do(func() { close(tuiReady) })
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.fire(controller.ActionReplay)
		case "v":
			m.fire(controller.ActionVoice)
		case "s":
			m.fire(controller.ActionShare)
		}

	case tickMsg:
		m.frame++
		now := time.Time(msg)
		live := m.toasts[:0]
		for _, t := range m.toasts {
			if now.Before(t.expires) {
				live = append(live, t)
			}
		}
		m.toasts = live
		return m, tuiTick()

	case StatusMsg:
		m.status = msg.Text

	case CapturingMsg:
		m.capturing = msg.On
		if !msg.On {
			m.level = 0
		}

	case LevelMsg:
		m.level = msg.Level

	case EntryMsg:
		m.entries = append(m.entries, msg.Entry)

	case ActionStateMsg:
		m.enabled[msg.Action] = msg.Enabled

	case ToastMsg:
		m.toasts = append(m.toasts, toast{text: msg.Text, expires: time.Now().Add(toastDuration)})

	case DeviceLineMsg:
		m.deviceLine = msg.Text

	case HelpLineMsg:
		m.combo = msg.Combo
	}
	return m, nil
}

// fire runs the action off the UI goroutine; handlers may block on I/O.
func (m tuiModel) fire(a controller.Action) {
	if m.onAction == nil || !m.enabled[a] {
		return
	}
	go m.onAction(a)
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	const orbWidth = 45

	orb := renderOrb(m.frame, m.level/100, m.capturing)

	var infoLines []string

	statusColor := "245"
	if m.capturing {
		statusColor = "51"
	}
	infoLines = append(infoLines, lipgloss.NewStyle().Foreground(lipgloss.Color(statusColor)).Bold(m.capturing).Render(m.status))
	infoLines = append(infoLines, renderMeter(m.level, orbWidth-3))

	if m.deviceLine != "" {
		infoLines = append(infoLines, lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render(m.deviceLine))
	}
	infoLines = append(infoLines, "")
	infoLines = append(infoLines, m.renderActions())

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	boldStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	if m.combo != "" {
		infoLines = append(infoLines, boldStyle.Render("hold "+m.combo)+helpStyle.Render(" to talk"))
	}
	infoLines = append(infoLines, helpStyle.Render("jarvis "+version))

	for _, line := range infoLines {
		orb += line + "\n"
	}
	orbLines := strings.Split(orb, "\n")

	panelWidth := max(m.width-orbWidth-1, 20)
	wrapWidth := max(panelWidth-2, 10)

	var panel []string
	for _, t := range m.toasts {
		panel = append(panel, lipgloss.NewStyle().
			Foreground(lipgloss.Color("235")).
			Background(lipgloss.Color("216")).
			Bold(true).
			Padding(0, 1).
			Render(t.text), "")
	}

	if len(m.entries) == 0 {
		panel = append(panel, lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("No conversation yet"))
	}
	userStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	aiStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("117"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	var convo []string
	for _, e := range m.entries {
		style, label := userStyle, "you"
		if e.Speaker == transcript.SpeakerAI {
			style, label = aiStyle, "jarvis"
		}
		convo = append(convo, labelStyle.Render(label))
		for _, line := range wrapText(e.Text, wrapWidth) {
			convo = append(convo, style.Render(line))
		}
		convo = append(convo, "")
	}
	// keep the newest lines in view
	if room := m.height - len(panel); room > 0 && len(convo) > room {
		convo = convo[len(convo)-room:]
	}
	panel = append(panel, convo...)

	rightPanel := lipgloss.NewStyle().
		Width(panelWidth).
		Height(m.height).
		PaddingLeft(1).
		Render(strings.Join(panel, "\n"))

	orbPadded := make([]string, m.height)
	for i := range orbPadded {
		if i < len(orbLines) {
			orbPadded[i] = orbLines[i]
		} else {
			orbPadded[i] = strings.Repeat(" ", orbWidth-1)
		}
	}

	leftPanel := lipgloss.NewStyle().
		Width(orbWidth - 1).
		Height(m.height).
		Render(strings.Join(orbPadded, "\n"))

	return lipgloss.JoinHorizontal(lipgloss.Top, leftPanel, rightPanel)
}

func (m tuiModel) renderActions() string {
	on := lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	off := lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	var parts []string
	for _, a := range []struct {
		action controller.Action
		label  string
	}{
		{controller.ActionReplay, "[r] replay"},
		{controller.ActionVoice, "[v] voice"},
		{controller.ActionShare, "[s] share"},
	} {
		style := off
		if m.enabled[a.action] {
			style = on
		}
		parts = append(parts, style.Render(a.label))
	}
	return strings.Join(parts, "  ")
}

// renderMeter draws a horizontal bar filled to level percent.
func renderMeter(level float64, width int) string {
	filled := int(math.Round(level / 100 * float64(width)))
	filled = min(max(filled, 0), width)
	bar := lipgloss.NewStyle().Foreground(lipgloss.Color("216")).Render(strings.Repeat("█", filled))
	rest := lipgloss.NewStyle().Foreground(lipgloss.Color("237")).Render(strings.Repeat("░", width-filled))
	return bar + rest
}

// renderOrb draws the persona orb; level is 0..1 and widens the rings
// while listening.
func renderOrb(frame int, level float64, listening bool) string {
	const charsW = 44
	const charsH = 15
	const pixW = charsW
	const pixH = charsH * 2

	centerX := float64(pixW) / 2
	centerY := float64(pixH) / 2

	var breathe float64
	if listening {
		breathe = math.Sin(float64(frame)*0.10)*0.03 + level*0.5 - 0.05
	} else {
		breathe = math.Sin(float64(frame)*0.08)*0.02 - 0.05
	}

	pixels := make([][]int, pixH)
	for i := range pixels {
		pixels[i] = make([]int, pixW)
	}

	type ring struct {
		radius     float64
		breatheAmt float64
		colorIdx   int
	}

	rings := []ring{
		{0.6, 0.10, 1},
		{1.3, 0.12, 2},
		{2.0, 0.15, 3},
		{2.8, 0.35, 4},
		{3.5, 0.40, 5},
		{4.2, 0.38, 6},
		{5.0, 0.30, 7},
		{5.8, 0.15, 8},
		{6.5, 0.03, 9},
		{7.2, 0.0, 10},
		{8.0, 0.0, 11},
		{10.0, 0.0, 12},
		{12.0, 0.0, 13},
	}

	for y := 0; y < pixH; y++ {
		for x := 0; x < pixW; x++ {
			dx := float64(x) - centerX
			dy := float64(y) - centerY
			dist := math.Sqrt(dx*dx + dy*dy)
			for _, r := range rings {
				radius := min(r.radius+breathe*r.breatheAmt*20, 10.0)
				if dist < radius {
					pixels[y][x] = r.colorIdx
					break
				}
			}
		}
	}

	// highlights
	for _, s := range []struct{ ox, oy, radius float64 }{
		{-4.5, -6.0, 0.8},
		{-3.4, -4.6, 0.5},
	} {
		for y := 0; y < pixH; y++ {
			for x := 0; x < pixW; x++ {
				dx := float64(x) - centerX - s.ox
				dy := float64(y) - centerY - s.oy
				if dx*dx/4+dy*dy < s.radius*s.radius {
					pixels[y][x] = 14
				}
			}
		}
	}

	styles, bgStyles := &pixelStylesIdle, &pixelBgIdle
	if listening {
		styles, bgStyles = &pixelStylesListen, &pixelBgListen
	}

	var result strings.Builder
	for cy := 0; cy < charsH; cy++ {
		for cx := 0; cx < charsW; cx++ {
			top := pixels[cy*2][cx]
			bot := pixels[cy*2+1][cx]
			switch {
			case top == 0 && bot == 0:
				result.WriteString(" ")
			case top == bot:
				result.WriteString(styles[top].Render("█"))
			case bot == 0:
				result.WriteString(styles[top].Render("▀"))
			case top == 0:
				result.WriteString(styles[bot].Render("▄"))
			default:
				result.WriteString(bgStyles[top][bot].Render("▀"))
			}
		}
		result.WriteString("\n")
	}
	return result.String()
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}

// tuiView forwards controller updates to the running program.
type tuiView struct{}

func (tuiView) SetStatus(text string)          { tuiSend(StatusMsg{Text: text}) }
func (tuiView) SetCapturing(on bool)           { tuiSend(CapturingMsg{On: on}) }
func (tuiView) SetLevel(level float64)         { tuiSend(LevelMsg{Level: level}) }
func (tuiView) AppendEntry(e transcript.Entry) { tuiSend(EntryMsg{Entry: e}) }
func (tuiView) Notify(msg string)              { tuiSend(ToastMsg{Text: msg}) }

func (tuiView) SetActionEnabled(a controller.Action, on bool) {
	tuiSend(ActionStateMsg{Action: a, Enabled: on})
}

func deviceLineText(name string) string {
	if name == "" {
		name = "system default"
	}
	return fmt.Sprintf("mic: %s", name)
}
