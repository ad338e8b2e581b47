package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/pkg/utils"
)

func (m Model) paneWidths() (sidebar, view, chatW int) {
	w := m.width
	if w <= 0 {
		w = 120
	}
	sidebar = w / 5
	if sidebar < 22 {
		sidebar = 22
	}
	chatW = w / 3
	view = w - sidebar - chatW
	if view < 20 {
		view = 20
	}
	return sidebar, view, chatW
}

// refreshHistory re-renders the conversation into the history viewport.
func (m *Model) refreshHistory() {
	var sb strings.Builder
	for _, msg := range m.deps.Assembler.Messages() {
		sb.WriteString(m.renderMessage(msg))
		sb.WriteString("\n")
	}
	m.history.SetContent(sb.String())
	m.history.GotoBottom()
}

func (m Model) renderMessage(msg models.Message) string {
	if msg.Role == models.RoleUser {
		return m.styles.User.Render("You") + "\n" + msg.Content + "\n"
	}
	body := msg.Content
	if m.renderer != nil && !m.deps.Assembler.State().Busy() {
		if out, err := m.renderer.Render(msg.Content); err == nil {
			body = strings.TrimRight(out, "\n")
		}
	}
	var sb strings.Builder
	sb.WriteString(m.styles.Assistant.Render("DocIQ"))
	sb.WriteString("\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	for _, c := range msg.Sources {
		sb.WriteString(m.styles.Citation.Render("  " + c.String() + "  " + utils.Truncate(c.Excerpt, 80)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// View renders the three panes and the status line.
func (m Model) View() string {
	sideW, viewW, chatW := m.paneWidths()
	h := m.height
	if h <= 0 {
		h = 30
	}
	paneH := h - 3
	if paneH < 5 {
		paneH = 5
	}
	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		m.pane(focusSidebar, sideW, paneH).Render(m.sidebarView(paneH)),
		m.pane(focusViewer, viewW, paneH).Render(m.viewerView(viewW-4, paneH)),
		m.pane(focusChat, chatW, paneH).Render(m.chatView()),
	)
	return panes + "\n" + m.statusLine()
}

func (m Model) pane(f focus, w, h int) lipgloss.Style {
	st := m.styles.Pane
	if m.focus == f {
		st = m.styles.FocusedPane
	}
	return st.Width(max(w-2, 1)).Height(max(h-2, 1))
}

func (m Model) sidebarView(h int) string {
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render("Workspaces"))
	sb.WriteString("\n")
	for _, name := range m.workspaces {
		if name == m.workspace {
			sb.WriteString(m.styles.Selected.Render("▸ " + name))
		} else {
			sb.WriteString("  " + name)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	title := "Documents"
	if m.filter != "" {
		title += " /" + m.filter
	}
	sb.WriteString(m.styles.Title.Render(title))
	sb.WriteString("\n")
	if len(m.docs) == 0 {
		sb.WriteString(m.styles.Muted.Render("  (none)"))
		sb.WriteString("\n")
	}
	selected := m.deps.Assembler.SelectedDocument()
	for i := range m.docs {
		d := &m.docs[i]
		line := utils.ShortenFilename(d.DisplayTitle())
		if d.ID == selected {
			line = "● " + line
		} else {
			line = "  " + line
		}
		if i == m.docCursor && m.focus == focusSidebar {
			line = m.styles.Cursor.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if m.deps.Drive != nil {
		sb.WriteString("\n")
		if m.drive.Connected {
			sb.WriteString(m.styles.Selected.Render("Drive: connected"))
		} else {
			sb.WriteString(m.styles.Muted.Render("Drive: not connected"))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) viewerView(w, h int) string {
	if m.opening != "" {
		return m.spinner.View() + " Loading document..."
	}
	v := m.viewer
	if v == nil {
		return m.styles.Muted.Render("Open a document from the sidebar.")
	}
	var sb strings.Builder
	sb.WriteString(m.styles.Title.Render(utils.ShortenFilename(v.Filename())))
	sb.WriteString(m.styles.Muted.Render(fmt.Sprintf("  page %d/%d", v.Page(), v.PageCount())))
	sb.WriteString("\n")

	from, to, selecting := v.SelectedRange()
	lines := v.Lines()
	visible := h - 4
	start := 0
	if v.Cursor() >= visible {
		start = v.Cursor() - visible + 1
	}
	for i := start; i < len(lines) && i < start+visible; i++ {
		line := utils.Truncate(lines[i], max(w-3, 10))
		switch {
		case i == v.Cursor():
			line = m.styles.Cursor.Render(line)
		case selecting && i >= from && i <= to:
			line = m.styles.Marked.Render(line)
		}
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	if m.deps.Bridge.Affordance().Visible {
		sb.WriteString(m.styles.Affordance.Render("Ask AI (a)"))
		sb.WriteString("\n")
	}
	return sb.String()
}

func (m Model) chatView() string {
	asm := m.deps.Assembler
	var sb strings.Builder
	scope := "selected document"
	if asm.Global() {
		scope = "all documents"
	}
	sb.WriteString(m.styles.Title.Render("Chat"))
	sb.WriteString(m.styles.Muted.Render("  " + scope))
	sb.WriteString("\n")
	sb.WriteString(m.history.View())
	sb.WriteString("\n")
	for _, s := range asm.Snippets() {
		sb.WriteString(m.styles.Chip.Render(fmt.Sprintf("[%s p.%d] %s",
			utils.ShortenFilename(s.Filename), s.Page, utils.Truncate(s.Text, 30))))
		sb.WriteString("\n")
	}
	if asm.State().Busy() {
		sb.WriteString(m.spinner.View() + " " + asm.State().String())
		sb.WriteString("\n")
	}
	sb.WriteString(m.input.View())
	return sb.String()
}

func (m Model) statusLine() string {
	help := "tab focus • ctrl+g scope • ctrl+c quit"
	switch m.focus {
	case focusSidebar:
		help = "←/→ workspace • enter open • / filter • m move • n new • r refresh • " + help
	case focusViewer:
		help = "↑/↓ line • v mark • a ask AI • n/p page • esc clear • " + help
	case focusChat:
		help = "enter send • ctrl+x drop snippet • " + help
	}
	if m.status == "" {
		return m.styles.Status.Render(help)
	}
	if m.err != nil {
		return m.styles.Error.Render(m.status)
	}
	return m.styles.Status.Render(m.status + " • " + help)
}
