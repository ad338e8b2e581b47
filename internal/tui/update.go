package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/hyperjump/dociq/internal/chat"
	"github.com/hyperjump/dociq/internal/drive"
	"github.com/hyperjump/dociq/internal/models"
	"go.uber.org/zap"
)

// viewerTop is the screen row of the first page line inside the viewer pane.
const viewerTop = 2

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case chatUpdateMsg:
		m.refreshHistory()
		return m, m.waitForUpdate()

	case docsChangedMsg:
		m.deps.Logger.Debug("documents changed", zap.String("reason", msg.Reason))
		m.workspaces = m.deps.Workspaces.ListWorkspaces()
		return m, tea.Batch(m.loadDocuments(), m.waitForChange())

	case docsMsg:
		if msg.workspace != m.workspace {
			return m, nil
		}
		if msg.err != nil {
			m.setError("Failed to load documents", msg.err)
			return m, nil
		}
		m.docs = msg.docs
		if m.docCursor >= len(m.docs) {
			m.docCursor = len(m.docs) - 1
		}
		if m.docCursor < 0 {
			m.docCursor = 0
		}
		return m, nil

	case viewerMsg:
		if msg.ref.ID != m.opening {
			return m, nil
		}
		m.opening = ""
		if msg.err != nil {
			m.setError("Failed to open document", msg.err)
			return m, nil
		}
		m.viewer = msg.viewer
		m.focus = focusViewer
		m.input.Blur()
		m.status = fmt.Sprintf("%s: %d pages", msg.ref.DisplayTitle(), m.viewer.PageCount())
		return m, nil

	case movedMsg:
		if msg.err != nil {
			m.setError("Failed to move document", msg.err)
			return m, nil
		}
		m.workspaces = m.deps.Workspaces.ListWorkspaces()
		if msg.id == m.deps.Assembler.SelectedDocument() && m.deps.Workspaces.ResolveWorkspace(msg.id) != m.workspace {
			m.deselect()
		}
		m.status = fmt.Sprintf("Moved to %s", msg.workspace)
		return m, m.loadDocuments()

	case workspaceCreatedMsg:
		if msg.err != nil {
			m.setError("Failed to create workspace", msg.err)
			return m, nil
		}
		m.workspaces = m.deps.Workspaces.ListWorkspaces()
		return m.switchWorkspace(strings.TrimSpace(msg.name))

	case driveMsg:
		m.drive = drive.Status(msg)
		return m, m.pollDrive(driveRefresh)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	m.width, m.height = w, h
	_, _, chatW := m.paneWidths()
	m.history.Width = max(chatW-4, 10)
	m.history.Height = max(h-8, 3)
	m.input.Width = max(chatW-6, 10)
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(max(chatW-6, 20)),
	)
	if err == nil {
		m.renderer = r
	}
	m.refreshHistory()
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.mode == modeChat {
			m.focus = (m.focus + 1) % 3
			m.syncInputFocus()
		}
		return m, nil
	case "ctrl+g":
		m.deps.Assembler.SetScope(!m.deps.Assembler.Global())
		if m.deps.Assembler.Global() {
			m.status = "Scope: all documents"
		} else {
			m.status = "Scope: selected document"
		}
		return m, nil
	}

	if m.mode != modeChat {
		return m.handlePromptKey(msg)
	}
	switch m.focus {
	case focusSidebar:
		return m.handleSidebarKey(msg)
	case focusViewer:
		return m.handleViewerKey(msg)
	default:
		return m.handleChatKey(msg)
	}
}

func (m *Model) syncInputFocus() {
	if m.focus == focusChat || m.mode != modeChat {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.setMode(modeChat)
		m.syncInputFocus()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		mode := m.mode
		m.setMode(modeChat)
		m.syncInputFocus()
		switch mode {
		case modeFilter:
			m.filter = value
			m.docCursor = 0
			return m, m.loadDocuments()
		case modeMove:
			doc, ok := m.selectedDoc()
			if !ok || value == "" {
				return m, nil
			}
			return m, m.moveDocument(doc.ID, value)
		case modeNewWorkspace:
			if value == "" {
				return m, nil
			}
			return m, m.createWorkspace(value)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.docCursor > 0 {
			m.docCursor--
		}
	case "down", "j":
		if m.docCursor < len(m.docs)-1 {
			m.docCursor++
		}
	case "left", "h":
		return m.shiftWorkspace(-1)
	case "right", "l":
		return m.shiftWorkspace(1)
	case "enter":
		doc, ok := m.selectedDoc()
		if !ok {
			return m, nil
		}
		return m.open(doc)
	case "/":
		m.setMode(modeFilter)
		m.syncInputFocus()
	case "m":
		if _, ok := m.selectedDoc(); ok {
			m.setMode(modeMove)
			m.syncInputFocus()
		}
	case "n":
		m.setMode(modeNewWorkspace)
		m.syncInputFocus()
	case "r":
		m.deps.Catalog.Invalidate()
		return m, m.loadDocuments()
	}
	return m, nil
}

func (m Model) open(doc models.DocumentRef) (tea.Model, tea.Cmd) {
	m.deps.Assembler.SelectDocument(doc.ID)
	m.deps.Bridge.SetActiveDocument(doc.ID, doc.DisplayTitle())
	m.viewer = nil
	m.opening = doc.ID
	m.status = "Opening " + doc.DisplayTitle() + "..."
	m.err = nil
	return m, m.openDocument(doc)
}

// deselect forgets the selected document everywhere.
func (m *Model) deselect() {
	m.deps.Assembler.SelectDocument("")
	m.deps.Bridge.ClearActiveDocument()
	m.viewer = nil
	m.opening = ""
}

func (m Model) shiftWorkspace(delta int) (tea.Model, tea.Cmd) {
	if len(m.workspaces) == 0 {
		return m, nil
	}
	idx := 0
	for i, name := range m.workspaces {
		if name == m.workspace {
			idx = i
		}
	}
	idx = (idx + delta + len(m.workspaces)) % len(m.workspaces)
	return m.switchWorkspace(m.workspaces[idx])
}

func (m Model) switchWorkspace(name string) (tea.Model, tea.Cmd) {
	m.workspace = name
	m.docs = nil
	m.docCursor = 0
	return m, m.loadDocuments()
}

func (m Model) handleViewerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "q" {
		return m, tea.Quit
	}
	v := m.viewer
	if v == nil {
		return m, nil
	}
	switch msg.String() {
	case "up", "k":
		v.MoveCursor(-1)
		m.release()
	case "down", "j":
		v.MoveCursor(1)
		m.release()
	case "pgdown", "right", "n":
		if v.NextPage() {
			m.deps.Bridge.Clear()
		}
	case "pgup", "left", "p":
		if v.PrevPage() {
			m.deps.Bridge.Clear()
		}
	case "v", " ":
		v.Mark()
		m.release()
	case "a", "enter":
		if snip, ok := m.deps.Bridge.Activate(); ok {
			v.ClearSelection()
			m.status = fmt.Sprintf("Added snippet from page %d", snip.Page)
		}
	case "esc":
		v.ClearSelection()
		m.deps.Bridge.Clear()
	}
	return m, nil
}

// release hands the current line selection to the bridge, which shows or hides the affordance.
func (m *Model) release() {
	if m.viewer == nil || !m.viewer.Selecting() {
		m.deps.Bridge.Clear()
		return
	}
	m.deps.Bridge.Release(m.viewer.Selection(viewerTop))
}

func (m Model) handleChatKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	asm := m.deps.Assembler
	switch msg.String() {
	case "enter":
		asm.SetInput(m.input.Value())
		err := asm.Submit(m.ctx)
		switch {
		case err == nil:
			m.input.SetValue("")
			m.status = ""
			m.err = nil
			m.refreshHistory()
		case errors.Is(err, chat.ErrNoScope):
			m.status = "Select a document or press ctrl+g to ask across all documents"
		case errors.Is(err, chat.ErrEmptyQuery), errors.Is(err, chat.ErrBusy):
		default:
			m.setError("Failed to ask", err)
		}
		return m, nil
	case "ctrl+x":
		snips := asm.Snippets()
		if len(snips) > 0 {
			asm.RemoveSnippet(snips[len(snips)-1].ID)
		}
		return m, nil
	}
	if !asm.InputEnabled() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	asm.SetInput(m.input.Value())
	return m, cmd
}

func (m *Model) setError(prefix string, err error) {
	m.err = err
	m.status = fmt.Sprintf("%s: %v", prefix, err)
	m.deps.Logger.Warn(strings.ToLower(prefix), zap.Error(err))
}
