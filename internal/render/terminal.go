package render

import (
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/lipgloss"
)

// hasDarkBackground queries the terminal, so it must only run before
// bubbletea takes over stdin.
var hasDarkBackground = lipgloss.HasDarkBackground

// Terminal renders markdown to ANSI text with glamour.
// One glamour renderer is kept per wrap width.
type Terminal struct {
	style    string
	maxWidth int

	mu        sync.Mutex
	renderers map[int]*glamour.TermRenderer
}

// NewTerminal 创建终端渲染器
// style: "auto"、glamour 标准样式名或样式 JSON 文件路径
// "auto" 在这里一次性解析为 dark 或 light，必须在 tea.NewProgram 之前调用
// maxWidth: 换行宽度上限，0 表示只按视口宽度换行
func NewTerminal(style string, maxWidth int) *Terminal {
	return &Terminal{
		style:     ResolveStyle(style),
		maxWidth:  maxWidth,
		renderers: make(map[int]*glamour.TermRenderer),
	}
}

// Render 渲染 Markdown 为 ANSI 文本，单个换行会被保留
func (t *Terminal) Render(markdown string, width int) (string, error) {
	if strings.TrimSpace(markdown) == "" {
		return "", nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	r, err := t.rendererLocked(t.wrapWidth(width))
	if err != nil {
		return "", err
	}

	out, err := r.Render(NeutralizeMarkup(markdown))
	if err != nil {
		return "", fmt.Errorf("渲染 Markdown 失败: %w", err)
	}
	return strings.Trim(out, "\n"), nil
}

// ResolveStyle maps "auto" (or empty) to the standard dark or light style
// by asking the terminal once. Other values are returned unchanged.
func ResolveStyle(style string) string {
	if style != "" && style != styles.AutoStyle {
		return style
	}
	if hasDarkBackground() {
		return styles.DarkStyle
	}
	return styles.LightStyle
}

// Style returns the resolved style name or path.
func (t *Terminal) Style() string {
	return t.style
}

func (t *Terminal) wrapWidth(width int) int {
	if t.maxWidth > 0 && (width <= 0 || width > t.maxWidth) {
		return t.maxWidth
	}
	if width <= 0 {
		return 80
	}
	return width
}

func (t *Terminal) rendererLocked(width int) (*glamour.TermRenderer, error) {
	if r, ok := t.renderers[width]; ok {
		return r, nil
	}

	styleOpt := glamour.WithStylePath(t.style)
	if _, ok := styles.DefaultStyles[t.style]; ok {
		styleOpt = glamour.WithStandardStyle(t.style)
	}

	r, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithWordWrap(width),
		glamour.WithPreservedNewLines(),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 Markdown 渲染器失败: %w", err)
	}
	t.renderers[width] = r
	return r, nil
}
