package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hyperjump/dociq/internal/chat"
	"github.com/hyperjump/dociq/internal/drive"
	"github.com/hyperjump/dociq/internal/events"
	"github.com/hyperjump/dociq/internal/models"
	"github.com/hyperjump/dociq/internal/viewer"
)

const driveRefresh = 5 * time.Second

type chatUpdateMsg chat.Update

type docsChangedMsg events.DocumentsChanged

type docsMsg struct {
	workspace string
	docs      []models.DocumentRef
	err       error
}

type viewerMsg struct {
	ref    models.DocumentRef
	viewer *viewer.Viewer
	err    error
}

type movedMsg struct {
	id        string
	workspace string
	err       error
}

type workspaceCreatedMsg struct {
	name string
	err  error
}

type driveMsg drive.Status

// waitForUpdate listens for assembler notifications.
func (m Model) waitForUpdate() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return chatUpdateMsg(u)
	}
}

func (m Model) waitForChange() tea.Cmd {
	ch := m.changes
	ctx := m.ctx
	return func() tea.Msg {
		select {
		case ev := <-ch:
			return docsChangedMsg(ev)
		case <-ctx.Done():
			return nil
		}
	}
}

func (m Model) loadDocuments() tea.Cmd {
	ctx, cat := m.ctx, m.deps.Catalog
	ws, filter := m.workspace, m.filter
	return func() tea.Msg {
		docs, err := cat.Visible(ctx, ws, filter)
		return docsMsg{workspace: ws, docs: docs, err: err}
	}
}

func (m Model) openDocument(ref models.DocumentRef) tea.Cmd {
	ctx, src, ex := m.ctx, m.deps.Source, m.deps.Extractor
	return func() tea.Msg {
		v, err := viewer.Open(ctx, src, ex, ref)
		return viewerMsg{ref: ref, viewer: v, err: err}
	}
}

func (m Model) moveDocument(id, ws string) tea.Cmd {
	ctx, cat := m.ctx, m.deps.Catalog
	return func() tea.Msg {
		err := cat.Move(ctx, id, ws)
		return movedMsg{id: id, workspace: ws, err: err}
	}
}

func (m Model) createWorkspace(name string) tea.Cmd {
	ctx, store := m.ctx, m.deps.Workspaces
	return func() tea.Msg {
		return workspaceCreatedMsg{name: name, err: store.CreateWorkspace(ctx, name)}
	}
}

// pollDrive reads the poller's last known status after delay.
func (m Model) pollDrive(delay time.Duration) tea.Cmd {
	p := m.deps.Drive
	if delay <= 0 {
		return func() tea.Msg { return driveMsg(p.Status()) }
	}
	return tea.Tick(delay, func(time.Time) tea.Msg { return driveMsg(p.Status()) })
}
