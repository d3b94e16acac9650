// Package tui is the terminal front end: the helper (refinement) screen, the
// translator screen, the weather sidebar and the API key dialog, rendered
// with Bubble Tea over the session state holders.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/huulkit/huulkit/refine"
	"github.com/huulkit/huulkit/session"
	"github.com/huulkit/huulkit/weather"
)

// WeatherRefreshInterval is how often the sidebar refetches.
const WeatherRefreshInterval = 10 * time.Minute

const sidebarWidth = 26

// WeatherSource feeds the sidebar.
type WeatherSource interface {
	ForAll(ctx context.Context) ([]weather.Info, error)
}

// Services are the use cases behind the screens.
type Services struct {
	Refiner    session.Refiner
	Translator session.AllTranslator
	Weather    WeatherSource
	Keys       session.KeyStore
}

type refineDoneMsg struct {
	out string
	err error
}

type translateDoneMsg struct {
	results map[refine.Language]string
	err     error
}

type weatherMsg struct {
	infos []weather.Info
	err   error
}

type weatherTickMsg time.Time

// Model is the root Bubble Tea model.
type Model struct {
	ctx context.Context
	svc Services

	main       *session.Main
	refinement *session.Refinement
	translator *session.Translator
	dialog     *session.ConfigDialog

	input     textarea.Model
	boxes     []textarea.Model
	focused   int
	keyInputs []textinput.Model
	keyFocus  int
	spinner   spinner.Model

	weather    []weather.Info
	weatherErr string
	dialogErr  string

	width    int
	height   int
	quitting bool
}

// New builds the model. ctx bounds every request the screens start.
func New(ctx context.Context, svc Services) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	input := textarea.New()
	input.Placeholder = "Type the text to refine..."
	input.ShowLineNumbers = false
	input.Focus()

	boxes := make([]textarea.Model, len(refine.Languages))
	for i, lang := range refine.Languages {
		box := textarea.New()
		box.Placeholder = lang.String()
		box.ShowLineNumbers = false
		box.SetHeight(4)
		boxes[i] = box
	}

	keyInputs := make([]textinput.Model, 2)
	for i, label := range []string{"Gemini API key", "Weather API key"} {
		ti := textinput.New()
		ti.Placeholder = label
		ti.EchoMode = textinput.EchoPassword
		ti.CharLimit = 512
		ti.Width = 48
		keyInputs[i] = ti
	}

	return Model{
		ctx:        ctx,
		svc:        svc,
		main:       &session.Main{},
		refinement: session.NewRefinement(),
		translator: session.NewTranslator(),
		dialog:     session.NewConfigDialog(svc.Keys),
		input:      input,
		boxes:      boxes,
		keyInputs:  keyInputs,
		spinner:    s,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.fetchWeather(), weatherTick())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}
		if m.dialog.Visible() {
			return m.updateDialog(msg)
		}
		switch msg.String() {
		case "ctrl+t":
			return m.switchTab()
		case "ctrl+k":
			return m.openDialog()
		case "esc":
			m.quitting = true
			return m, tea.Quit
		}
		if m.main.SelectedTab() == session.TabTranslator {
			return m.updateTranslator(msg)
		}
		return m.updateHelper(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		w := max(msg.Width-sidebarWidth-8, 20)
		m.input.SetWidth(w)
		for i := range m.boxes {
			m.boxes[i].SetWidth(w)
		}
		return m, nil

	case refineDoneMsg:
		m.refinement.Finish(msg.out, msg.err)
		return m, nil

	case translateDoneMsg:
		m.translator.Finish(msg.results, msg.err)
		state := m.translator.State()
		for i, lang := range refine.Languages {
			m.boxes[i].SetValue(state.Texts[lang])
		}
		return m, nil

	case weatherMsg:
		m.weatherErr = ""
		if msg.err != nil {
			m.weatherErr = msg.err.Error()
		} else {
			m.weather = msg.infos
		}
		return m, nil

	case weatherTickMsg:
		return m, tea.Batch(m.fetchWeather(), weatherTick())

	case spinner.TickMsg:
		if !m.loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.forward(msg)
}

func (m Model) loading() bool {
	return m.refinement.State().Loading || m.translator.State().Loading
}

// forward passes non-key messages such as cursor blinks to the focused widget.
func (m Model) forward(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch {
	case m.dialog.Visible():
		m.keyInputs[m.keyFocus], cmd = m.keyInputs[m.keyFocus].Update(msg)
	case m.main.SelectedTab() == session.TabTranslator:
		m.boxes[m.focused], cmd = m.boxes[m.focused].Update(msg)
	default:
		m.input, cmd = m.input.Update(msg)
	}
	return m, cmd
}

func (m Model) switchTab() (tea.Model, tea.Cmd) {
	if m.main.SelectedTab() == session.TabHelper {
		m.main.SelectTab(session.TabTranslator)
		m.input.Blur()
		return m, m.boxes[m.focused].Focus()
	}
	m.main.SelectTab(session.TabHelper)
	m.boxes[m.focused].Blur()
	cmd := m.input.Focus()
	return m, cmd
}

func (m Model) updateHelper(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+s":
		if m.refinement.State().Loading {
			return m, nil
		}
		text, opts, ok := m.refinement.Begin()
		if !ok {
			return m, nil
		}
		return m, tea.Batch(m.spinner.Tick, m.runRefine(text, opts))
	case "f1":
		m.refinement.UpdateOptions(func(o *refine.Options) { o.Shorten = !o.Shorten })
		return m, nil
	case "f2":
		m.refinement.UpdateOptions(func(o *refine.Options) { o.Clarify = !o.Clarify })
		return m, nil
	case "f3":
		m.refinement.UpdateOptions(func(o *refine.Options) { o.MakeKinder = !o.MakeKinder })
		return m, nil
	case "f4":
		m.refinement.UpdateOptions(func(o *refine.Options) { o.Polish = !o.Polish })
		return m, nil
	case "f5":
		m.refinement.UpdateOptions(func(o *refine.Options) { o.CombineAll = !o.CombineAll })
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.refinement.SetInput(m.input.Value())
	return m, cmd
}

func (m Model) updateTranslator(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+s":
		if m.translator.State().Loading {
			return m, nil
		}
		text, src := m.translator.Begin()
		return m, tea.Batch(m.spinner.Tick, m.runTranslate(text, src))
	case "tab", "shift+tab":
		m.boxes[m.focused].Blur()
		step := 1
		if msg.String() == "shift+tab" {
			step = len(m.boxes) - 1
		}
		m.focused = (m.focused + step) % len(m.boxes)
		return m, m.boxes[m.focused].Focus()
	}

	before := m.boxes[m.focused].Value()
	var cmd tea.Cmd
	m.boxes[m.focused], cmd = m.boxes[m.focused].Update(msg)
	if after := m.boxes[m.focused].Value(); after != before {
		m.translator.SetText(refine.Languages[m.focused], after)
	}
	return m, cmd
}

func (m Model) openDialog() (tea.Model, tea.Cmd) {
	m.dialog.Show()
	gemini, wx := m.dialog.Inputs()
	m.keyInputs[0].SetValue(gemini)
	m.keyInputs[1].SetValue(wx)
	m.keyFocus = 0
	m.dialogErr = ""
	m.keyInputs[1].Blur()
	return m, m.keyInputs[0].Focus()
}

func (m Model) updateDialog(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.dialog.Hide()
		return m, nil
	case "tab", "shift+tab", "up", "down":
		m.keyInputs[m.keyFocus].Blur()
		m.keyFocus = (m.keyFocus + 1) % len(m.keyInputs)
		return m, m.keyInputs[m.keyFocus].Focus()
	case "enter":
		if err := m.dialog.Save(); err != nil {
			m.dialogErr = err.Error()
			return m, nil
		}
		m.dialogErr = ""
		return m, m.fetchWeather()
	}

	var cmd tea.Cmd
	m.keyInputs[m.keyFocus], cmd = m.keyInputs[m.keyFocus].Update(msg)
	m.dialog.SetGeminiInput(m.keyInputs[0].Value())
	m.dialog.SetWeatherInput(m.keyInputs[1].Value())
	return m, cmd
}

// Commands

func (m Model) runRefine(text string, opts refine.Options) tea.Cmd {
	return func() tea.Msg {
		out, err := m.svc.Refiner.Refine(m.ctx, text, opts)
		return refineDoneMsg{out: out, err: err}
	}
}

func (m Model) runTranslate(text string, src refine.Language) tea.Cmd {
	return func() tea.Msg {
		results, err := m.svc.Translator.TranslateAll(m.ctx, text, src)
		return translateDoneMsg{results: results, err: err}
	}
}

func (m Model) fetchWeather() tea.Cmd {
	if m.svc.Weather == nil {
		return nil
	}
	return func() tea.Msg {
		infos, err := m.svc.Weather.ForAll(m.ctx)
		return weatherMsg{infos: infos, err: err}
	}
}

func weatherTick() tea.Cmd {
	return tea.Tick(WeatherRefreshInterval, func(t time.Time) tea.Msg {
		return weatherTickMsg(t)
	})
}

// View

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Huulkit") + "\n")
	b.WriteString(m.viewTabs() + "\n")

	var body string
	if m.main.SelectedTab() == session.TabTranslator {
		body = m.viewTranslator()
	} else {
		body = m.viewHelper()
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, body, m.viewSidebar()))

	if m.dialog.Visible() {
		b.WriteString("\n" + m.viewDialog())
	}

	help := "ctrl+t: switch tab │ ctrl+k: API keys │ ctrl+s: run │ esc: quit"
	if m.main.SelectedTab() == session.TabHelper {
		help = "f1-f5: options │ " + help
	} else {
		help = "tab: next language │ " + help
	}
	b.WriteString(helpStyle.Render(" " + help))
	return b.String()
}

func (m Model) viewTabs() string {
	tabs := []session.Tab{session.TabHelper, session.TabTranslator}
	rendered := make([]string, len(tabs))
	for i, t := range tabs {
		style := tabStyle
		if t == m.main.SelectedTab() {
			style = activeTabStyle
		}
		rendered[i] = style.Render(t.String())
	}
	return lipgloss.JoinHorizontal(lipgloss.Bottom, rendered...)
}

func (m Model) viewHelper() string {
	state := m.refinement.State()

	var b strings.Builder
	b.WriteString(focusedBoxStyle.Render(m.input.View()) + "\n")

	opts := []struct {
		key   string
		label string
		on    bool
	}{
		{"f1", "Shorten", state.Options.Shorten},
		{"f2", "Clarify", state.Options.Clarify},
		{"f3", "Make kinder", state.Options.MakeKinder},
		{"f4", "Polish", state.Options.Polish},
		{"f5", "Combine all", state.Options.CombineAll},
	}
	parts := make([]string, len(opts))
	for i, o := range opts {
		box := "[ ]"
		if o.on {
			box = checkedStyle.Render("[x]")
		}
		parts[i] = fmt.Sprintf("%s %s %s", infoStyle.Render(o.key), box, o.label)
	}
	b.WriteString(strings.Join(parts, "  ") + "\n\n")

	if state.Loading {
		b.WriteString(m.spinner.View() + " Refining...\n")
	}
	if state.Error != "" {
		b.WriteString(errorStyle.Render(state.Error) + "\n")
	}
	output := state.Output
	if output == "" {
		output = infoStyle.Render("Refined text appears here")
	}
	b.WriteString(boxStyle.Width(m.input.Width() + 2).Render(output))
	return b.String()
}

func (m Model) viewTranslator() string {
	state := m.translator.State()

	var b strings.Builder
	for i, lang := range refine.Languages {
		style := boxStyle
		label := infoStyle.Render(lang.String())
		if i == m.focused {
			style = focusedBoxStyle
		}
		if lang == state.Source {
			label += checkedStyle.Render(" (source)")
		}
		b.WriteString(label + "\n" + style.Render(m.boxes[i].View()) + "\n")
	}
	if state.Loading {
		b.WriteString(m.spinner.View() + " Translating...\n")
	}
	if state.Error != "" {
		b.WriteString(errorStyle.Render(state.Error) + "\n")
	}
	return b.String()
}

func (m Model) viewSidebar() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Weather") + "\n")
	switch {
	case m.weatherErr != "":
		b.WriteString(errorStyle.Width(sidebarWidth - 4).Render(m.weatherErr))
	case len(m.weather) == 0:
		b.WriteString(infoStyle.Render("Loading..."))
	default:
		for _, info := range m.weather {
			fmt.Fprintf(&b, "%-10s %5s %s\n", info.City, info.Temperature, infoStyle.Render(info.LocalTime))
		}
	}
	return sidebarStyle.Width(sidebarWidth).Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) viewDialog() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("API keys") + "\n\n")
	b.WriteString("Gemini\n" + m.keyInputs[0].View() + "\n\n")
	b.WriteString("Weather\n" + m.keyInputs[1].View() + "\n")
	if m.dialogErr != "" {
		b.WriteString("\n" + errorStyle.Render(m.dialogErr) + "\n")
	}
	b.WriteString(helpStyle.Render("enter: save │ tab: next field │ esc: cancel"))
	return dialogStyle.Render(b.String())
}

// Run starts the front end and blocks until the user quits or ctx ends.
func Run(ctx context.Context, svc Services) error {
	p := tea.NewProgram(New(ctx, svc), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
