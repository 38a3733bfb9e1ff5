// Package main provides the pilot CLI entry point.
// This file implements the interactive chat interface using bubbletea.
package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"golang.org/x/sync/errgroup"

	"foampilot/cmd/pilot/config"
	"foampilot/cmd/pilot/ui"
	"foampilot/internal/attach"
	"foampilot/internal/history"
	"foampilot/internal/logging"
	"foampilot/internal/run"
)

// chatModel is the main model for the interactive chat interface
type chatModel struct {
	// UI components
	textinput textinput.Model
	viewport  viewport.Model
	spinner   spinner.Model
	styles    ui.Styles
	renderer  *glamour.TermRenderer

	// State
	history    []chatMessage
	liveLog    string // markdown block for the active job, replaced in place
	statusText string
	isLoading  bool
	err        error
	width      int
	height     int
	ready      bool
	config     config.Config

	// Backend
	orch    *run.Orchestrator
	meshes  *attach.Store
	records *history.Store
	events  chan tea.Msg
}

type chatMessage struct {
	role    string // "user" or "assistant"
	content string
	time    time.Time
}

// Messages for tea updates
type (
	noticeMsg   string
	statusMsg   string
	logBlockMsg struct {
		markdown  string
		streaming bool
	}
	finishedMsg run.Outcome
	readyMsg    struct {
		healthErr error
		profiles  []config.ModelProfile
	}
)

// chatSink forwards orchestrator events into the bubbletea loop. Calls
// arrive from the run goroutine; the channel hands them to Update.
type chatSink struct {
	events chan<- tea.Msg
}

func (s chatSink) Notice(markdown string) { s.events <- noticeMsg(markdown) }
func (s chatSink) Status(text string)     { s.events <- statusMsg(text) }
func (s chatSink) LogBlock(markdown string, streaming bool) {
	s.events <- logBlockMsg{markdown: markdown, streaming: streaming}
}
func (s chatSink) Finished(outcome run.Outcome) { s.events <- finishedMsg(outcome) }

// waitForEvent blocks until the orchestrator emits something. Re-issued
// after every received event.
func waitForEvent(events <-chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-events
	}
}

// initChat initializes the interactive chat model
func initChat() chatModel {
	cfg := loadConfig()

	styles := ui.NewStyles(ui.ThemeByName(cfg.Theme))

	ti := textinput.New()
	ti.Placeholder = "Describe your simulation... (Enter to send, Ctrl+C to exit)"
	ti.Focus()
	ti.Prompt = "│ "
	ti.CharLimit = 4096
	ti.Width = 80
	ti.PromptStyle = styles.Prompt
	ti.TextStyle = styles.UserInput

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)
	vp.SetContent("")

	var renderer *glamour.TermRenderer
	if styles.Theme.IsDark {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(80),
		)
	} else {
		renderer, _ = glamour.NewTermRenderer(
			glamour.WithStylePath("light"),
			glamour.WithWordWrap(80),
		)
	}

	events := make(chan tea.Msg, 64)

	orch := run.NewOrchestrator(newReasoner(cfg), newRunner(cfg), chatSink{events: events})
	orch.SetCaseName(cfg.CaseName)

	var meshStore *attach.Store
	if dir, err := config.AttachDirPath(cfg); err == nil {
		meshStore, err = attach.NewStore(dir)
		if err != nil {
			logging.Boot("attachment store unavailable: %v", err)
		} else {
			if err := meshStore.Watch(); err != nil {
				logging.Boot("attachment watcher unavailable: %v", err)
			}
			orch.SetMeshSource(meshStore)
		}
	}

	var records *history.Store
	if path, err := config.HistoryPath(); err == nil {
		records, err = history.Open(path)
		if err != nil {
			logging.Boot("history store unavailable: %v", err)
		} else {
			orch.SetRecorder(records)
		}
	}

	return chatModel{
		textinput: ti,
		viewport:  vp,
		spinner:   sp,
		styles:    styles,
		renderer:  renderer,
		history:   []chatMessage{},
		config:    cfg,
		orch:      orch,
		meshes:    meshStore,
		records:   records,
		events:    events,
	}
}

// probeBackends checks the bridge and loads the model registry in
// parallel before the first prompt.
func (m chatModel) probeBackends() tea.Cmd {
	cfg := m.config
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		var (
			healthErr error
			profiles  []config.ModelProfile
		)
		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			healthErr = newRunner(cfg).Health(ctx)
			return nil
		})
		g.Go(func() error {
			path, err := config.ProfilesPath()
			if err != nil {
				return nil
			}
			profiles, _ = config.LoadProfiles(path)
			return nil
		})
		_ = g.Wait()

		return readyMsg{healthErr: healthErr, profiles: profiles}
	}
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.spinner.Tick,
		waitForEvent(m.events),
		m.probeBackends(),
	)
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
		spCmd tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.orch.Close()
			return m, tea.Quit

		case tea.KeyEnter:
			return m.handleSubmit()
		}

		m.textinput, tiCmd = m.textinput.Update(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		headerHeight := 2
		footerHeight := 2
		inputHeight := 3

		if !m.ready {
			m.viewport = viewport.New(msg.Width-4, msg.Height-headerHeight-footerHeight-inputHeight)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width - 4
			m.viewport.Height = msg.Height - headerHeight - footerHeight - inputHeight
		}

		m.textinput.Width = msg.Width - 4

		if m.renderer != nil {
			m.renderer, _ = glamour.NewTermRenderer(
				glamour.WithAutoStyle(),
				glamour.WithWordWrap(msg.Width-8),
			)
		}
		m.refreshViewport()

	case spinner.TickMsg:
		if m.isLoading {
			m.spinner, spCmd = m.spinner.Update(msg)
			return m, spCmd
		}

	case noticeMsg:
		m.history = append(m.history, chatMessage{
			role:    "assistant",
			content: string(msg),
			time:    time.Now(),
		})
		m.refreshViewport()
		return m, waitForEvent(m.events)

	case statusMsg:
		m.statusText = string(msg)
		return m, waitForEvent(m.events)

	case logBlockMsg:
		m.liveLog = msg.markdown
		m.refreshViewport()
		return m, waitForEvent(m.events)

	case finishedMsg:
		m.isLoading = false
		m.statusText = ""
		// Fold the final log block into history so the next run starts
		// a fresh live block.
		if m.liveLog != "" {
			m.history = append(m.history, chatMessage{
				role:    "assistant",
				content: m.liveLog,
				time:    time.Now(),
			})
			m.liveLog = ""
		}
		m.refreshViewport()
		return m, waitForEvent(m.events)

	case readyMsg:
		if msg.healthErr != nil {
			m.history = append(m.history, chatMessage{
				role:    "assistant",
				content: fmt.Sprintf("⚠️ Job bridge unreachable: %v\n\nSubmissions will fail until it is back.", msg.healthErr),
				time:    time.Now(),
			})
		} else {
			m.history = append(m.history, chatMessage{
				role:    "assistant",
				content: "Job bridge online. Describe the flow you want to simulate, or `/help` for commands.",
				time:    time.Now(),
			})
		}
		m.refreshViewport()
	}

	m.viewport, vpCmd = m.viewport.Update(msg)

	return m, tea.Batch(tiCmd, vpCmd, spCmd)
}

func (m chatModel) handleSubmit() (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textinput.Value())
	if input == "" {
		return m, nil
	}

	if strings.HasPrefix(input, "/") {
		return m.handleCommand(input)
	}

	m.history = append(m.history, chatMessage{
		role:    "user",
		content: input,
		time:    time.Now(),
	})
	m.textinput.Reset()
	m.refreshViewport()

	if err := m.orch.Start(input); err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	m.isLoading = true
	m.liveLog = ""

	return m, m.spinner.Tick
}

func (m chatModel) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	cmd := parts[0]

	switch cmd {
	case "/quit", "/exit", "/q":
		m.orch.Close()
		return m, tea.Quit

	case "/cancel":
		m.textinput.Reset()
		if !m.orch.Active() {
			return m.reply("Nothing to cancel.")
		}
		// The standing waitForEvent command delivers the cancelled
		// notice and outcome.
		m.orch.Cancel()
		m.isLoading = false
		m.statusText = ""
		return m, nil

	case "/clear":
		m.history = []chatMessage{}
		m.liveLog = ""
		m.viewport.SetContent("")
		m.textinput.Reset()
		return m, nil

	case "/attach":
		m.textinput.Reset()
		if len(parts) < 2 {
			return m.reply("Usage: `/attach <path/to/mesh.msh>`")
		}
		if m.meshes == nil {
			return m.reply("Attachment directory unavailable.")
		}
		dest, err := m.meshes.Add(strings.Join(parts[1:], " "))
		if err != nil {
			return m.reply(fmt.Sprintf("❌ %v", err))
		}
		return m.reply(fmt.Sprintf("📎 Mesh queued: `%s`. The next submission will carry it.", dest))

	case "/meshes":
		m.textinput.Reset()
		if m.meshes == nil {
			return m.reply("Attachment directory unavailable.")
		}
		meshes, err := m.meshes.List()
		if err != nil {
			return m.reply(fmt.Sprintf("❌ %v", err))
		}
		if len(meshes) == 0 {
			return m.reply("No meshes queued. Use `/attach <path>` to add one.")
		}
		var sb strings.Builder
		sb.WriteString("## Queued meshes (newest first)\n\n")
		for i, mesh := range meshes {
			marker := ""
			if i == 0 {
				marker = " ← next submission"
			}
			sb.WriteString(fmt.Sprintf("- `%s` (%d bytes, %s)%s\n",
				mesh.Name, mesh.Size, mesh.ModTime.Format("2006-01-02 15:04"), marker))
		}
		return m.reply(sb.String())

	case "/history":
		m.textinput.Reset()
		if m.records == nil {
			return m.reply("History store unavailable.")
		}
		runs, err := m.records.List(10)
		if err != nil {
			return m.reply(fmt.Sprintf("❌ %v", err))
		}
		if len(runs) == 0 {
			return m.reply("No runs recorded yet.")
		}
		var sb strings.Builder
		sb.WriteString("## Recent runs\n\n")
		sb.WriteString("| Job | Case | Status | Submitted |\n")
		sb.WriteString("|-----|------|--------|-----------|\n")
		for _, r := range runs {
			sb.WriteString(fmt.Sprintf("| `%s` | %s | %s | %s |\n",
				r.JobID, r.CaseName, r.Status, r.CreatedAt.Format("2006-01-02 15:04")))
		}
		return m.reply(sb.String())

	case "/config":
		m.textinput.Reset()
		if len(parts) == 3 && parts[1] == "set-theme" {
			theme := parts[2]
			if theme != "light" && theme != "dark" {
				return m.reply("Invalid theme. Use 'light' or 'dark'.")
			}
			m.config.Theme = theme
			if err := config.Save(m.config); err != nil {
				return m.reply(fmt.Sprintf("Error saving config: %v", err))
			}
			return m.reply(fmt.Sprintf("✅ Theme set to '%s'. Restart to apply.", theme))
		}
		path, _ := config.File()
		return m.reply(fmt.Sprintf("Config: `%s`\n\nUsage: `/config set-theme <light|dark>`", path))

	case "/help":
		m.textinput.Reset()
		help := `## Available Commands

| Command | Description |
|---------|-------------|
| /help | Show this help message |
| /cancel | Stop the active run (the backend job keeps running) |
| /attach <path> | Queue a .msh mesh for the next submission |
| /meshes | List queued meshes |
| /history | Show recent runs |
| /config set-theme <theme> | Set theme (light/dark) |
| /clear | Clear chat history |
| /quit, /exit, /q | Exit |

## Tips
- Type a plain-English requirement to start a run.
- A blocked run shows missing parameters and a resubmittable request
  with suggested defaults filled in. Paste and edit it.
- **Ctrl+C** or **Esc** to exit
`
		return m.reply(help)

	default:
		m.textinput.Reset()
		return m.reply(fmt.Sprintf("Unknown command `%s`. Try `/help`.", cmd))
	}
}

// reply appends an assistant message without touching the run state.
func (m chatModel) reply(markdown string) (tea.Model, tea.Cmd) {
	m.history = append(m.history, chatMessage{
		role:    "assistant",
		content: markdown,
		time:    time.Now(),
	})
	m.refreshViewport()
	return m, nil
}

func (m *chatModel) refreshViewport() {
	m.viewport.SetContent(m.renderHistory())
	m.viewport.GotoBottom()
}

func (m chatModel) renderHistory() string {
	var sb strings.Builder

	for _, msg := range m.history {
		if msg.role == "user" {
			userStyle := m.styles.Body.
				Foreground(m.styles.Theme.Primary).
				Bold(true).
				MarginTop(1)
			sb.WriteString(userStyle.Render("You") + "\n")
			sb.WriteString(m.styles.UserInput.Render(msg.content))
			sb.WriteString("\n\n")
		} else {
			assistantStyle := m.styles.Body.
				Foreground(m.styles.Theme.Accent).
				Bold(true).
				MarginTop(1)
			sb.WriteString(assistantStyle.Render("⛵ pilot") + "\n")
			sb.WriteString(m.safeRenderMarkdown(msg.content))
			sb.WriteString("\n")
		}
	}

	if m.liveLog != "" {
		liveStyle := m.styles.Body.
			Foreground(m.styles.Theme.Accent).
			Bold(true).
			MarginTop(1)
		sb.WriteString(liveStyle.Render("⛵ pilot") + "\n")
		sb.WriteString(m.safeRenderMarkdown(m.liveLog))
		sb.WriteString("\n")
	}

	return sb.String()
}

// safeRenderMarkdown renders markdown, falling back to raw text when the
// renderer is unavailable or panics on malformed input.
func (m chatModel) safeRenderMarkdown(content string) (out string) {
	if m.renderer == nil {
		return content
	}
	defer func() {
		if r := recover(); r != nil {
			logging.SessionDebug("markdown render panic: %v", r)
			out = content
		}
	}()
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

func (m chatModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	header := m.styles.Header.Width(m.width).Render("⛵ foampilot — OpenFOAM case pilot")

	chatView := m.viewport.View()

	if m.isLoading {
		line := m.statusText
		if line == "" {
			line = "Working..."
		}
		chatView += "\n" + m.styles.Spinner.Render(m.spinner.View()) + " " + m.styles.StatusLine.Render(line)
	}

	if m.err != nil {
		chatView += "\n" + m.styles.Error.Render("Error: "+m.err.Error())
	}

	inputStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(m.styles.Theme.Accent).
		Padding(0, 1)
	inputArea := inputStyle.Render(m.textinput.View())

	footer := m.styles.Footer.Render(fmt.Sprintf(
		"bridge %s · model %s · /help for commands", m.config.BridgeURL, m.config.Model))

	return lipgloss.JoinVertical(
		lipgloss.Left,
		header,
		chatView,
		inputArea,
		footer,
	)
}

// runInteractiveChat starts the interactive chat interface
func runInteractiveChat() error {
	m := initChat()
	defer func() {
		m.orch.Close()
		if m.meshes != nil {
			m.meshes.Close()
		}
		if m.records != nil {
			m.records.Close()
		}
	}()

	p := tea.NewProgram(
		m,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	_, err := p.Run()
	return err
}
