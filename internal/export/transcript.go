// Package export writes the in-memory transcript to a standalone HTML file.
// Files are only written, never read back.
package export

import (
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Zacy-Sokach/PolyChat/internal/conversation"
	"github.com/Zacy-Sokach/PolyChat/internal/render"
)

// maxNameAttempts 同一秒内最多导出的文件数
const maxNameAttempts = 100

// Exporter renders transcripts to HTML.
type Exporter struct {
	dir      string
	renderer render.Renderer
}

// NewExporter 创建导出器，dir 为输出目录，renderer 为 nil 时使用 render.NewHTML
func NewExporter(dir string, renderer render.Renderer) *Exporter {
	if dir == "" {
		dir = "."
	}
	if renderer == nil {
		renderer = render.NewHTML()
	}
	return &Exporter{dir: dir, renderer: renderer}
}

// FileName 返回某一时刻导出文件的名字
func FileName(at time.Time) string {
	return fmt.Sprintf("polychat-%s.html", at.Format("20060102-150405"))
}

// Write 把 entries 写成 HTML 文件并返回路径
func (e *Exporter) Write(entries []conversation.Entry, at time.Time) (string, error) {
	if len(entries) == 0 {
		return "", fmt.Errorf("没有可导出的消息")
	}

	page, err := e.HTML(entries, at)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(e.dir, 0755); err != nil {
		return "", fmt.Errorf("创建导出目录失败: %w", err)
	}

	f, path, err := e.create(at)
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(page); err != nil {
		f.Close()
		return "", fmt.Errorf("写入导出文件失败: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("写入导出文件失败: %w", err)
	}
	return path, nil
}

// create opens a new export file for at without replacing an existing one.
// Later exports within the same second get a -2, -3, ... suffix.
func (e *Exporter) create(at time.Time) (*os.File, string, error) {
	base := strings.TrimSuffix(FileName(at), ".html")
	for i := 1; i <= maxNameAttempts; i++ {
		name := base + ".html"
		if i > 1 {
			name = fmt.Sprintf("%s-%d.html", base, i)
		}
		path := filepath.Join(e.dir, name)

		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("创建导出文件失败: %w", err)
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("导出文件过多: %s", base)
}

// HTML 生成完整的 HTML 页面；只有 bot 消息按 Markdown 渲染，其余一律转义
func (e *Exporter) HTML(entries []conversation.Entry, at time.Time) (string, error) {
	var sb strings.Builder
	sb.Grow(len(entries) * 256)

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html lang=\"en\">\n")
	sb.WriteString("<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <title>PolyChat transcript</title>\n")
	sb.WriteString("    <meta name=\"generator\" content=\"polychat\">\n")
	sb.WriteString(fmt.Sprintf("    <meta name=\"date\" content=\"%s\">\n", at.Format(time.RFC3339)))
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	sb.WriteString("<body>\n")
	sb.WriteString("    <main class=\"chat-messages\">\n")

	for _, entry := range entries {
		body, err := e.entryBody(entry)
		if err != nil {
			return "", err
		}
		sb.WriteString(fmt.Sprintf("        <div class=\"%s\" id=\"m-%s\" title=\"%s\">\n",
			entryClass(entry), html.EscapeString(entry.ID), entry.At.Format(time.RFC3339)))
		sb.WriteString(body)
		sb.WriteString("\n        </div>\n")
	}

	sb.WriteString("    </main>\n")
	sb.WriteString("</body>\n")
	sb.WriteString("</html>\n")
	return sb.String(), nil
}

func (e *Exporter) entryBody(entry conversation.Entry) (string, error) {
	if entry.Formatted && entry.Role == conversation.RoleBot {
		out, err := e.renderer.Render(entry.Text, 0)
		if err != nil {
			return "", fmt.Errorf("渲染消息 %s 失败: %w", entry.ID, err)
		}
		return out, nil
	}
	return render.PlainHTML(entry.Text), nil
}

func entryClass(entry conversation.Entry) string {
	switch entry.Role {
	case conversation.RoleUser:
		return "user-message"
	case conversation.RoleError:
		return "bot-message error"
	case conversation.RoleSystem:
		return "bot-message system"
	default:
		return "bot-message"
	}
}

const css = `    <style>
        body { font-family: system-ui, sans-serif; max-width: 48rem; margin: 2rem auto; }
        .chat-messages > div { padding: 0.6rem 0.9rem; margin: 0.4rem 0; border-radius: 0.5rem; }
        .user-message { background: #e3f2fd; margin-left: 20%; white-space: pre-wrap; }
        .bot-message { background: #f5f5f5; margin-right: 20%; }
        .bot-message.error { background: #ffebee; color: #b71c1c; }
        .bot-message.system { background: #fffde7; color: #6d5d00; font-style: italic; }
        pre { overflow-x: auto; }
    </style>
`
