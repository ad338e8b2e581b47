// Package tui is the interactive terminal client: a workspace sidebar, a page viewer
// and the chat pane.
package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/hyperjump/dociq/internal/catalog"
	"github.com/hyperjump/dociq/internal/chat"
	"github.com/hyperjump/dociq/internal/drive"
	"github.com/hyperjump/dociq/internal/events"
	"github.com/hyperjump/dociq/internal/extract"
	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/internal/selection"
	"github.com/hyperjump/dociq/internal/viewer"
	"github.com/hyperjump/dociq/internal/workspace"
	"go.uber.org/zap"
)

type focus int

const (
	focusSidebar focus = iota
	focusViewer
	focusChat
)

// inputMode decides what the shared text input is collecting.
type inputMode int

const (
	modeChat inputMode = iota
	modeFilter
	modeMove
	modeNewWorkspace
)

// Deps are the services the model drives. Drive and Bus may be nil.
type Deps struct {
	Assembler  *chat.Assembler
	Bridge     *selection.Bridge
	Workspaces *workspace.Store
	Catalog    *catalog.Catalog
	Source     viewer.Source
	Extractor  *extract.Extractor
	Drive      *drive.Poller
	Bus        *events.Bus
	Logger     *zap.Logger
}

// Model is the bubbletea model of the client.
type Model struct {
	ctx  context.Context
	deps Deps

	styles   Styles
	width    int
	height   int
	focus    focus
	mode     inputMode
	input    textinput.Model
	history  viewport.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer

	updates <-chan chat.Update
	changes chan events.DocumentsChanged

	workspaces []string
	workspace  string
	filter     string
	docs       []models.DocumentRef
	docCursor  int
	viewer     *viewer.Viewer
	opening    string

	drive  drive.Status
	status string
	err    error
}

// New builds the model. ctx bounds every background request the model issues.
func New(ctx context.Context, deps Deps) Model {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Extractor == nil {
		deps.Extractor = extract.NewExtractor()
	}

	in := textinput.New()
	in.Placeholder = "Ask about the selected document..."
	in.Prompt = "› "
	in.CharLimit = 4000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	m := Model{
		ctx:        ctx,
		deps:       deps,
		styles:     DefaultStyles(),
		focus:      focusChat,
		input:      in,
		history:    viewport.New(60, 20),
		spinner:    sp,
		updates:    deps.Assembler.Subscribe(),
		workspace:  models.DefaultWorkspace,
		workspaces: deps.Workspaces.ListWorkspaces(),
	}
	if deps.Bus != nil {
		m.changes = make(chan events.DocumentsChanged, 8)
		changes := m.changes
		err := deps.Bus.OnDocumentsChanged(ctx, func(ev events.DocumentsChanged) {
			select {
			case changes <- ev:
			default:
			}
		})
		if err != nil {
			deps.Logger.Warn("subscribe to document changes", zap.Error(err))
			m.changes = nil
		}
	}
	m.refreshHistory()
	return m
}

// Init starts the listeners and the first document load.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		textinput.Blink,
		m.spinner.Tick,
		m.waitForUpdate(),
		m.loadDocuments(),
	}
	if m.changes != nil {
		cmds = append(cmds, m.waitForChange())
	}
	if m.deps.Drive != nil {
		cmds = append(cmds, m.pollDrive(0))
	}
	return tea.Batch(cmds...)
}

// selectedDoc returns the document under the sidebar cursor.
func (m Model) selectedDoc() (models.DocumentRef, bool) {
	if m.docCursor < 0 || m.docCursor >= len(m.docs) {
		return models.DocumentRef{}, false
	}
	return m.docs[m.docCursor], true
}

func (m *Model) setMode(mode inputMode) {
	m.mode = mode
	m.input.SetValue("")
	switch mode {
	case modeFilter:
		m.input.Prompt = "filter › "
		m.input.Placeholder = "title words"
		m.input.SetValue(m.filter)
	case modeMove:
		m.input.Prompt = "move to › "
		m.input.Placeholder = "workspace name"
	case modeNewWorkspace:
		m.input.Prompt = "new workspace › "
		m.input.Placeholder = "name"
	default:
		m.input.Prompt = "› "
		m.input.Placeholder = "Ask about the selected document..."
		m.input.SetValue(m.deps.Assembler.Input())
	}
	m.input.CursorEnd()
}
