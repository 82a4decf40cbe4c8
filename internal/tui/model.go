package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog/log"

	"solana-wallet-trace/internal/client"
	"solana-wallet-trace/internal/gateway"
	"solana-wallet-trace/internal/storage"
	"solana-wallet-trace/internal/trade"
)

var (
	ColorBorder = lipgloss.Color("#2e7de9")
	ColorText   = lipgloss.Color("#a9b1d6")
	ColorActive = lipgloss.Color("#7aa2f7")
	ColorError  = lipgloss.Color("#f7768e")
	ColorOK     = lipgloss.Color("#9ece6a")

	stylePanel = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorBorder).
			Foreground(ColorText)

	stylePanelActive = stylePanel.Copy().
				BorderForeground(ColorActive)

	styleTitle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorActive)

	styleError = lipgloss.NewStyle().Foreground(ColorError)
	styleOK    = lipgloss.NewStyle().Foreground(ColorOK)
)

// panel identifies one of the four regions of the screen.
type panel int

const (
	panelStream panel = iota
	panelHistory
	panelLogs
	panelInput
	panelCount
)

func (p panel) title() string {
	switch p {
	case panelStream:
		return "Stream"
	case panelHistory:
		return "Repl History"
	case panelLogs:
		return "Logs"
	default:
		return "Repl"
	}
}

// KeyMap holds the global key bindings.
type KeyMap struct {
	Tab  key.Binding
	Up   key.Binding
	Down key.Binding
	Quit key.Binding
}

var keys = KeyMap{
	Tab:  key.NewBinding(key.WithKeys("tab")),
	Up:   key.NewBinding(key.WithKeys("up")),
	Down: key.NewBinding(key.WithKeys("down")),
	Quit: key.NewBinding(key.WithKeys("ctrl+c")),
}

// Messages delivered to Update.
type (
	streamMsg       string
	streamClosedMsg struct{}
	logMsg          string
	subscribedMsg   struct {
		stream <-chan string
	}
	replyMsg struct {
		text  string
		isErr bool
	}
)

// journalBacklog caps how many journaled events seed the Stream panel
// at startup.
const journalBacklog = 50

// Model is the four-panel REPL over the wallet-trace API: a live
// stream view, the repl history, the log tail and the input line.
type Model struct {
	api     *client.Client
	journal *storage.DB
	wallet  string

	focus  panel
	width  int
	height int

	stream  viewport.Model
	history viewport.Model
	logs    viewport.Model
	input   textinput.Model

	streamLines  []string
	historyLines []string
	logLines     []string

	streamCh <-chan string
	logCh    <-chan string

	subscribed bool
}

// NewModel builds the TUI around an initialized API client. journal
// may be nil to disable the local event log.
func NewModel(api *client.Client, journal *storage.DB, wallet string, logCh <-chan string) Model {
	input := textinput.New()
	input.Placeholder = "sub | unsub | hold | tx <signature> | stats | exit"
	input.Focus()

	m := Model{
		api:     api,
		journal: journal,
		wallet:  wallet,
		focus:   panelInput,
		stream:  viewport.New(0, 0),
		history: viewport.New(0, 0),
		logs:    viewport.New(0, 0),
		input:   input,
		logCh:   logCh,
	}

	if journal != nil {
		events, err := journal.RecentEvents(journalBacklog)
		if err != nil {
			log.Warn().Err(err).Msg("journal backfill failed")
		}
		// The journal returns newest first; the panel reads top down.
		for i := len(events) - 1; i >= 0; i-- {
			if e := events[i]; e.Kind == "stream" {
				m.streamLines = append(m.streamLines, e.Payload)
			}
		}
		m.stream.SetContent(strings.Join(m.streamLines, "\n"))
	}

	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.listenLogs())
}

func (m Model) listenLogs() tea.Cmd {
	if m.logCh == nil {
		return nil
	}
	ch := m.logCh
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg(line)
	}
}

func (m Model) listenStream() tea.Cmd {
	if m.streamCh == nil {
		return nil
	}
	ch := m.streamCh
	return func() tea.Msg {
		line, ok := <-ch
		if !ok {
			return streamClosedMsg{}
		}
		return streamMsg(line)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.layout()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, keys.Tab):
			m.focus = (m.focus + 1) % panelCount
			if m.focus == panelInput {
				m.input.Focus()
			} else {
				m.input.Blur()
			}
			return m, nil
		case key.Matches(msg, keys.Up), key.Matches(msg, keys.Down):
			if m.focus != panelInput {
				return m.scrollFocused(msg), nil
			}
		}

		if m.focus == panelInput && msg.Type == tea.KeyEnter {
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			return m.runCommand(line)
		}

		if m.focus == panelInput {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		return m, nil

	case streamMsg:
		m.journalEvent("stream", string(msg))
		m.streamLines = append(m.streamLines, string(msg))
		m.stream.SetContent(strings.Join(m.streamLines, "\n"))
		m.stream.GotoBottom()
		return m, m.listenStream()

	case streamClosedMsg:
		m.subscribed = false
		m.streamCh = nil
		m.streamLines = append(m.streamLines, "(stream closed)")
		m.stream.SetContent(strings.Join(m.streamLines, "\n"))
		m.stream.GotoBottom()
		return m, nil

	case subscribedMsg:
		m.subscribed = true
		m.streamCh = msg.stream
		return m, tea.Batch(reply(false, "subscribed"), m.listenStream())

	case logMsg:
		m.logLines = append(m.logLines, strings.TrimRight(string(msg), "\n"))
		m.logs.SetContent(strings.Join(m.logLines, "\n"))
		m.logs.GotoBottom()
		return m, m.listenLogs()

	case replyMsg:
		text := msg.text
		if msg.isErr {
			text = styleError.Render(text)
		}
		m.historyLines = append(m.historyLines, text)
		m.history.SetContent(strings.Join(m.historyLines, "\n"))
		m.history.GotoBottom()
		return m, nil
	}

	return m, nil
}

func (m Model) scrollFocused(msg tea.KeyMsg) Model {
	var vp *viewport.Model
	switch m.focus {
	case panelStream:
		vp = &m.stream
	case panelHistory:
		vp = &m.history
	case panelLogs:
		vp = &m.logs
	default:
		return m
	}
	if key.Matches(msg, keys.Up) {
		vp.LineUp(1)
	} else {
		vp.LineDown(1)
	}
	return m
}

// runCommand parses and executes one repl line.
func (m Model) runCommand(line string) (tea.Model, tea.Cmd) {
	m.journalEvent("command", line)
	m.historyLines = append(m.historyLines, styleTitle.Render("> ")+line)
	m.history.SetContent(strings.Join(m.historyLines, "\n"))
	m.history.GotoBottom()

	fields := strings.Fields(line)
	switch fields[0] {
	case "exit", "quit":
		return m, tea.Quit

	case "sub":
		if m.subscribed {
			return m, reply(true, "already subscribed")
		}
		api := m.api
		return m, func() tea.Msg {
			stream, err := api.Subscribe(context.Background())
			if err != nil {
				return replyMsg{text: err.Error(), isErr: true}
			}
			return subscribedMsg{stream: stream}
		}

	case "unsub":
		api := m.api
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			msg, err := api.Unsubscribe(ctx)
			if err != nil {
				return replyMsg{text: err.Error(), isErr: true}
			}
			return replyMsg{text: msg}
		}

	case "hold":
		api := m.api
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			holdings, err := api.Holdings(ctx)
			if err != nil {
				return replyMsg{text: err.Error(), isErr: true}
			}
			return replyMsg{text: renderHoldings(holdings)}
		}

	case "tx":
		if len(fields) != 2 {
			return m, reply(true, "usage: tx <signature>")
		}
		api := m.api
		sig := fields[1]
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			result, err := api.GetTrade(ctx, sig)
			if err != nil {
				return replyMsg{text: err.Error(), isErr: true}
			}
			if result == nil {
				return replyMsg{text: "no trade for this wallet"}
			}
			return replyMsg{text: result.Message}
		}

	case "stats":
		if m.journal == nil {
			return m, reply(true, "no journal configured")
		}
		journal := m.journal
		return m, func() tea.Msg {
			stats, err := journal.EventStats()
			if err != nil {
				return replyMsg{text: err.Error(), isErr: true}
			}
			return replyMsg{text: renderStats(stats)}
		}

	default:
		return m, reply(true, "unknown command: "+fields[0])
	}
}

func renderStats(stats map[string]int) string {
	if len(stats) == 0 {
		return "journal is empty"
	}

	kinds := make([]string, 0, len(stats))
	for kind := range stats {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	var b strings.Builder
	for i, kind := range kinds {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%-10s %d", kind, stats[kind])
	}
	return b.String()
}

func reply(isErr bool, text string) tea.Cmd {
	return func() tea.Msg {
		return replyMsg{text: text, isErr: isErr}
	}
}

func renderHoldings(holdings []gateway.Holding) string {
	if len(holdings) == 0 {
		return "no holdings"
	}

	var b strings.Builder
	for i, h := range holdings {
		if i > 0 {
			b.WriteString("\n")
		}
		price := "N/A"
		if h.USDPrice != nil {
			price = trade.FmtUSD(*h.USDPrice)
		}
		value := "N/A"
		if h.USDValue != nil {
			value = trade.FmtUSD(*h.USDValue)
		}
		fmt.Fprintf(&b, "%-10s %14s @ %s = %s", h.Symbol, h.Balance, price, value)
	}
	return b.String()
}

func (m *Model) journalEvent(kind, payload string) {
	if m.journal == nil {
		return
	}
	_ = m.journal.InsertEvent(&storage.Event{Kind: kind, Wallet: m.wallet, Payload: payload})
}

// layout recomputes panel sizes after a resize. The stream takes the
// left half; history and logs split the right; the input is one line
// at the bottom.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}

	inputHeight := 3
	bodyHeight := m.height - inputHeight
	if bodyHeight < 4 {
		bodyHeight = 4
	}

	leftWidth := m.width / 2
	rightWidth := m.width - leftWidth

	m.stream.Width = leftWidth - 2
	m.stream.Height = bodyHeight - 2

	m.history.Width = rightWidth - 2
	m.history.Height = bodyHeight/2 - 2

	m.logs.Width = rightWidth - 2
	m.logs.Height = bodyHeight - bodyHeight/2 - 2

	m.input.Width = m.width - 6
}

func (m Model) renderPanel(p panel, content string, width, height int) string {
	style := stylePanel
	if m.focus == p {
		style = stylePanelActive
	}
	title := p.title()
	if p == panelStream && m.subscribed {
		title += " " + styleOK.Render("(live)")
	}

	header := styleTitle.Render(truncate(title, width))
	return style.Width(width).Height(height).Render(header + "\n" + content)
}

func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	left := m.renderPanel(panelStream, m.stream.View(), m.stream.Width, m.stream.Height+1)
	topRight := m.renderPanel(panelHistory, m.history.View(), m.history.Width, m.history.Height+1)
	bottomRight := m.renderPanel(panelLogs, m.logs.View(), m.logs.Width, m.logs.Height+1)

	right := lipgloss.JoinVertical(lipgloss.Left, topRight, bottomRight)
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	input := m.renderPanel(panelInput, m.input.View(), m.width-2, 1)

	return lipgloss.JoinVertical(lipgloss.Left, body, input)
}
