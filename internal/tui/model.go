package tui

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Zacy-Sokach/PolyChat/internal/conversation"
	"github.com/Zacy-Sokach/PolyChat/internal/export"
	"github.com/Zacy-Sokach/PolyChat/internal/render"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Version 是当前的 PolyChat 版本，由 main 包设置
var Version = "dev"

// Message types for Bubble Tea
type outcomeMsg struct {
	outcome conversation.Outcome
}

type cooldownExpiredMsg struct {
	token uint64
}

type countdownTickMsg struct {
	token uint64
}

type exportedMsg struct {
	path string
	err  error
}

// Options 配置 Model
type Options struct {
	Sender   conversation.Sender
	Renderer render.Renderer
	Exporter *export.Exporter
	Cooldown time.Duration
	Endpoint string
	Logger   *slog.Logger
	// Now 默认为 time.Now，测试时替换
	Now func() time.Time
}

// Model is the bubbletea model. It is also the conversation.Surface the
// controller drives, so it must be used through a pointer.
type Model struct {
	viewport viewport.Model
	textarea textarea.Model
	keys     keyMap
	ready    bool

	ctrl     *conversation.Controller
	renderer render.Renderer
	exporter *export.Exporter
	endpoint string
	logger   *slog.Logger
	now      func() time.Time
	ctx      context.Context

	inputEnabled bool
	entries      []conversation.Entry
	rendered     map[string]string // 已渲染的 bot 消息，按消息 ID 缓存
	renderWidth  int
	notice       string
}

var _ conversation.Surface = (*Model)(nil)

func NewModel(opts Options) *Model {
	keys := defaultKeyMap()

	ta := textarea.New()
	ta.Placeholder = "Type your message..."
	ta.Focus()
	ta.CharLimit = 0
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetKeys(keys.Newline.Keys()...)

	vp := viewport.New(80, 20)

	m := &Model{
		viewport:     vp,
		textarea:     ta,
		keys:         keys,
		renderer:     opts.Renderer,
		exporter:     opts.Exporter,
		endpoint:     opts.Endpoint,
		logger:       opts.Logger,
		now:          opts.Now,
		ctx:          context.Background(),
		inputEnabled: true,
		rendered:     make(map[string]string),
		renderWidth:  80,
	}
	if m.logger == nil {
		m.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.renderer == nil {
		m.renderer = render.NewTerminal("auto", 0)
	}

	m.ctrl = conversation.New(opts.Sender, m,
		conversation.WithCooldown(opts.Cooldown),
		conversation.WithLogger(m.logger),
		conversation.WithClock(m.now),
	)
	m.refreshViewport()
	return m
}

// Controller exposes the conversation state, mainly for tests.
func (m *Model) Controller() *conversation.Controller {
	return m.ctrl
}

func (m *Model) Init() tea.Cmd {
	return textarea.Blink
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m, m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case outcomeMsg:
		cd := m.ctrl.Complete(msg.outcome)
		if cd == nil {
			return m, nil
		}
		return m, tea.Batch(scheduleExpiry(*cd), scheduleCountdown(cd.Token))

	case cooldownExpiredMsg:
		m.ctrl.Expire(msg.token)
		return m, nil

	case countdownTickMsg:
		if cd, ok := m.ctrl.Cooldown(); ok && cd.Token == msg.token {
			return m, scheduleCountdown(msg.token)
		}
		return m, nil

	case exportedMsg:
		if msg.err != nil {
			m.logger.Warn("transcript export failed", "error", msg.err)
			m.notice = fmt.Sprintf("Export failed: %v", msg.err)
		} else {
			m.logger.Info("transcript exported", "path", msg.path)
			m.notice = "Transcript saved to " + msg.path
		}
		return m, nil
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Export):
		return m.exportTranscript()
	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd
	}

	// 输入被禁用时，触发面不响应任何按键
	if !m.inputEnabled {
		return nil
	}

	// 冷却结束后不会自动聚焦，由下一次按键恢复
	var focusCmd tea.Cmd
	if !m.textarea.Focused() {
		focusCmd = m.textarea.Focus()
	}

	if key.Matches(msg, m.keys.Send) || key.Matches(msg, m.keys.SendControl) {
		return tea.Batch(focusCmd, m.send())
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return tea.Batch(focusCmd, cmd)
}

// send submits the input text. The request runs as a tea.Cmd and comes
// back to the loop as an outcomeMsg.
func (m *Model) send() tea.Cmd {
	m.notice = ""
	ex, err := m.ctrl.Submit(m.textarea.Value())
	if err != nil {
		return nil
	}

	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		return outcomeMsg{outcome: ctrl.Perform(ctx, ex)}
	}
}

func scheduleExpiry(cd conversation.Cooldown) tea.Cmd {
	return tea.Tick(cd.Duration, func(time.Time) tea.Msg {
		return cooldownExpiredMsg{token: cd.Token}
	})
}

func scheduleCountdown(token uint64) tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return countdownTickMsg{token: token}
	})
}

func (m *Model) exportTranscript() tea.Cmd {
	if m.exporter == nil {
		return nil
	}
	entries := m.ctrl.Entries()
	exporter, at := m.exporter, m.now()
	return func() tea.Msg {
		path, err := exporter.Write(entries, at)
		return exportedMsg{path: path, err: err}
	}
}

// SetInputEnabled implements conversation.Surface.
func (m *Model) SetInputEnabled(enabled bool) {
	m.inputEnabled = enabled
	if !enabled {
		m.textarea.Blur()
	}
}

// ClearInput implements conversation.Surface.
func (m *Model) ClearInput() {
	m.textarea.Reset()
}

// FocusInput implements conversation.Surface.
func (m *Model) FocusInput() {
	m.textarea.Focus()
}

// Append implements conversation.Surface.
func (m *Model) Append(e conversation.Entry) {
	m.entries = append(m.entries, e)
	m.refreshViewport()
}

func (m *Model) resize(width, height int) {
	height = max(height-6, 1)
	if !m.ready {
		m.viewport = viewport.New(width, height)
		m.viewport.YPosition = 0
		m.ready = true
	} else {
		m.viewport.Width = width
		m.viewport.Height = height
	}
	m.textarea.SetWidth(width)

	if width != m.renderWidth {
		m.renderWidth = width
		m.rendered = make(map[string]string)
	}
	m.refreshViewport()
}

// refreshViewport 重新生成消息内容并滚动到最新一条
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.transcript())
	m.viewport.GotoBottom()
}

func (m *Model) transcript() string {
	var sb strings.Builder
	sb.Grow(len(m.entries)*200 + 256)

	sb.WriteString(m.banner())
	for _, e := range m.entries {
		sb.WriteString(labelFor(e.Role))
		sb.WriteString(" ")
		sb.WriteString(m.renderEntry(e))
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func (m *Model) banner() string {
	var sb strings.Builder
	sb.WriteString(bannerStyle.Render("Welcome to PolyChat!"))
	sb.WriteString(" ")
	sb.WriteString(helpStyle.Render(Version))
	sb.WriteString("\n")
	if m.endpoint != "" {
		sb.WriteString(helpStyle.Render("Connected to " + m.endpoint))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

// renderEntry 只有 bot 的格式化消息经过 Markdown 渲染，其余一律按纯文本显示
func (m *Model) renderEntry(e conversation.Entry) string {
	width := max(m.renderWidth-2, 20)
	if e.Formatted && e.Role == conversation.RoleBot {
		if out, ok := m.rendered[e.ID]; ok {
			return out
		}
		out, err := m.renderer.Render(e.Text, width)
		if err != nil {
			m.logger.Warn("markdown render failed, showing plain text", "entry_id", e.ID, "error", err)
			out = render.Plain(e.Text)
		}
		out = "\n" + out
		m.rendered[e.ID] = out
		return out
	}
	return textStyleFor(e.Role).Width(width).Render(render.Plain(e.Text))
}

func (m *Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	return fmt.Sprintf(
		"%s\n\n%s\n%s",
		m.viewport.View(),
		m.textarea.View(),
		m.helpView(),
	)
}

func (m *Model) helpView() string {
	if m.ctrl.InFlight() {
		return busyStyle.Render("Waiting for reply...")
	}
	if cd, ok := m.ctrl.Cooldown(); ok {
		return busyStyle.Render("Rate limited. Sending unlocks in " + formatRemaining(cd.Remaining(m.now())))
	}

	parts := make([]string, 0, 4)
	for _, b := range m.keys.shortHelp() {
		h := b.Help()
		parts = append(parts, h.Key+": "+h.Desc)
	}
	help := helpStyle.Render(strings.Join(parts, " • "))
	if m.notice != "" {
		help = lipgloss.JoinVertical(lipgloss.Left, noticeStyle.Render(m.notice), help)
	}
	return help
}

func formatRemaining(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	mnt := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mnt, s)
	}
	return fmt.Sprintf("%02d:%02d", mnt, s)
}
