// Package chat assembles snippets and typed text into questions, submits them
// and reveals the answers.
package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/dociq/internal/models"
	"go.uber.org/zap"
)

// Defaults used when no option overrides them.
const (
	DefaultRevealDelay = 18 * time.Millisecond
	DefaultErrorText   = "⚠️ Backend error"
)

// Submit refusals. None of them changes the conversation.
var (
	ErrEmptyQuery = errors.New("nothing to ask: no text and no snippets")
	ErrNoScope    = errors.New("no document selected and global search is off")
	ErrBusy       = errors.New("previous answer still in progress")
	ErrClosed     = errors.New("chat closed")
)

// updateBuffer is the per-subscriber queue length. Updates beyond it are dropped.
const updateBuffer = 64

// Answerer resolves a question. *api.Client satisfies it.
type Answerer interface {
	Search(ctx context.Context, req models.SearchRequest) (*models.SearchResponse, error)
}

// Assembler owns the conversation, the pending snippets and the typed input.
// It is safe for concurrent use by the terminal UI and the bridge server.
type Assembler struct {
	answerer    Answerer
	logger      *zap.Logger
	revealDelay time.Duration
	errorText   string
	greeting    string

	mu          sync.Mutex
	state       State
	input       string
	snippets    []models.Snippet
	messages    []models.Message
	selectedDoc string
	global      bool
	idle        chan struct{} // closed when the current question settles; nil when not busy
	subscribers []chan Update
	closed      bool

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Option configures an Assembler.
type Option func(*Assembler)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(a *Assembler) { a.logger = l }
}

// WithRevealDelay sets the per-character reveal delay. Zero or negative reveals at once.
func WithRevealDelay(d time.Duration) Option {
	return func(a *Assembler) { a.revealDelay = d }
}

// WithErrorText sets the assistant text shown when a request fails.
func WithErrorText(text string) Option {
	return func(a *Assembler) {
		if text != "" {
			a.errorText = text
		}
	}
}

// WithGreeting opens the conversation with an assistant message.
func WithGreeting(text string) Option {
	return func(a *Assembler) { a.greeting = text }
}

// NewAssembler creates an Assembler that asks answerer.
func NewAssembler(answerer Answerer, opts ...Option) *Assembler {
	a := &Assembler{
		answerer:    answerer,
		logger:      zap.NewNop(),
		revealDelay: DefaultRevealDelay,
		errorText:   DefaultErrorText,
		state:       StateIdle,
		stop:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.greeting != "" {
		a.messages = append(a.messages, newMessage(models.RoleAssistant, a.greeting, nil))
	}
	return a
}

func newMessage(role models.Role, content string, sources []models.Citation) models.Message {
	return models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
		Sources:   sources,
	}
}

// Emit adds a snippet captured by the selection bridge.
func (a *Assembler) Emit(s models.Snippet) {
	a.AddSnippet(s)
}

// AddSnippet appends s to the pending list, assigning an ID when missing.
// Snippets may be collected while an answer is still rendering.
func (a *Assembler) AddSnippet(s models.Snippet) models.Snippet {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	a.mu.Lock()
	a.snippets = append(a.snippets, s)
	a.recomposeLocked()
	state := a.state
	a.mu.Unlock()

	a.notify(Update{State: state})
	return s
}

// RemoveSnippet drops a pending snippet. It reports whether the id was found.
func (a *Assembler) RemoveSnippet(id string) bool {
	a.mu.Lock()
	found := false
	for i, s := range a.snippets {
		if s.ID == id {
			a.snippets = append(a.snippets[:i], a.snippets[i+1:]...)
			found = true
			break
		}
	}
	a.recomposeLocked()
	state := a.state
	a.mu.Unlock()

	if found {
		a.notify(Update{State: state})
	}
	return found
}

// Snippets returns a copy of the pending snippets.
func (a *Assembler) Snippets() []models.Snippet {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Snippet{}, a.snippets...)
}

// SetInput replaces the typed text.
func (a *Assembler) SetInput(text string) {
	a.mu.Lock()
	a.input = text
	a.recomposeLocked()
	a.mu.Unlock()
}

// Input returns the typed text.
func (a *Assembler) Input() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.input
}

// SetScope toggles searching across all documents.
func (a *Assembler) SetScope(global bool) {
	a.mu.Lock()
	a.global = global
	a.mu.Unlock()
}

// Global reports whether questions go to all documents.
func (a *Assembler) Global() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.global
}

// SelectDocument sets the document questions are scoped to. Empty deselects.
func (a *Assembler) SelectDocument(id string) {
	a.mu.Lock()
	a.selectedDoc = id
	a.mu.Unlock()
}

// SelectedDocument returns the scoped document id, or "".
func (a *Assembler) SelectedDocument() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selectedDoc
}

// Messages returns a snapshot of the conversation in append order.
func (a *Assembler) Messages() []models.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Message, len(a.messages))
	copy(out, a.messages)
	return out
}

// State returns the current state.
func (a *Assembler) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// InputEnabled reports whether a new question can be submitted.
func (a *Assembler) InputEnabled() bool {
	return !a.State().Busy()
}

// Subscribe returns a channel of change notifications. It is closed by Close.
func (a *Assembler) Subscribe() <-chan Update {
	ch := make(chan Update, updateBuffer)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		close(ch)
		return ch
	}
	a.subscribers = append(a.subscribers, ch)
	return ch
}

// Submit sends the assembled question. On success it returns once the request has been
// issued; the answer is appended and revealed in the background.
// ErrEmptyQuery, ErrNoScope and ErrBusy leave everything unchanged.
func (a *Assembler) Submit(ctx context.Context) error {
	a.mu.Lock()
	return a.submitLocked(ctx, a.input, a.selectedDoc, a.global, true)
}

// Ask submits text with its own scope, together with the pending snippets. The typed
// input, scope toggle and selected document are neither read nor changed, so callers
// outside the interactive session cannot disturb it. Errors are those of Submit.
func (a *Assembler) Ask(ctx context.Context, text, docID string, global bool) error {
	a.mu.Lock()
	return a.submitLocked(ctx, text, docID, global, false)
}

// submitLocked is called with a.mu held and releases it.
func (a *Assembler) submitLocked(ctx context.Context, input, docID string, global, fromInput bool) error {
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.state.Busy() {
		a.mu.Unlock()
		return ErrBusy
	}
	query := AssembleQuery(a.snippets, input)
	if query == "" {
		a.mu.Unlock()
		return ErrEmptyQuery
	}
	if !global && docID == "" {
		a.mu.Unlock()
		return ErrNoScope
	}
	req := models.SearchRequest{Query: query}
	if !global {
		req.DocID = docID
	}

	user := newMessage(models.RoleUser, input, nil)
	a.messages = append(a.messages, user)
	if fromInput {
		a.input = ""
	}
	a.snippets = nil
	a.state = StateSubmitting
	idle := make(chan struct{})
	a.idle = idle
	a.wg.Add(1)
	a.mu.Unlock()

	a.logger.Debug("submitting question",
		zap.Int("query_len", len(query)),
		zap.String("doc_id", req.DocID))
	a.notify(Update{MessageID: user.ID, State: StateSubmitting})

	go a.answer(ctx, req, idle)
	return nil
}

func (a *Assembler) answer(ctx context.Context, req models.SearchRequest, idle chan struct{}) {
	defer a.wg.Done()
	defer close(idle)

	resp, err := a.answerer.Search(ctx, req)
	if err != nil {
		a.logger.Warn("answer request failed", zap.Error(err))
		msg := newMessage(models.RoleAssistant, a.errorText, []models.Citation{})
		a.mu.Lock()
		a.messages = append(a.messages, msg)
		a.settleLocked()
		state := a.state
		a.mu.Unlock()
		a.notify(Update{MessageID: msg.ID, State: state})
		return
	}

	text := []rune(resp.Text())
	msg := newMessage(models.RoleAssistant, "", resp.Citations())
	a.mu.Lock()
	a.messages = append(a.messages, msg)
	a.state = StateRendering
	a.mu.Unlock()
	a.notify(Update{MessageID: msg.ID, State: StateRendering})

	a.reveal(msg.ID, text)

	a.mu.Lock()
	a.settleLocked()
	state := a.state
	a.mu.Unlock()
	a.notify(Update{MessageID: msg.ID, State: state})
}

// reveal shows one more rune per tick, so rune k is visible no earlier than k ticks after start.
func (a *Assembler) reveal(id string, text []rune) {
	if a.revealDelay <= 0 || len(text) == 0 {
		a.setContent(id, string(text))
		return
	}
	ticker := time.NewTicker(a.revealDelay)
	defer ticker.Stop()
	for k := 1; k <= len(text); k++ {
		select {
		case <-ticker.C:
		case <-a.stop:
			a.setContent(id, string(text))
			return
		}
		a.setContent(id, string(text[:k]))
		a.notify(Update{MessageID: id, State: StateRendering})
	}
}

func (a *Assembler) setContent(id, content string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := len(a.messages) - 1; i >= 0; i-- {
		if a.messages[i].ID == id {
			a.messages[i].Content = content
			return
		}
	}
}

// settleLocked ends the busy period.
func (a *Assembler) settleLocked() {
	a.state = StateIdle
	a.idle = nil
	a.recomposeLocked()
}

// recomposeLocked moves between Idle and Composing depending on pending content.
func (a *Assembler) recomposeLocked() {
	if a.state.Busy() {
		return
	}
	if strings.TrimSpace(a.input) != "" || len(a.snippets) > 0 {
		a.state = StateComposing
	} else {
		a.state = StateIdle
	}
}

// Wait blocks until no question is in flight or being revealed.
func (a *Assembler) Wait(ctx context.Context) error {
	a.mu.Lock()
	idle := a.idle
	a.mu.Unlock()
	if idle == nil {
		return nil
	}
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Assembler) notify(u Update) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range a.subscribers {
		select {
		case ch <- u:
		default:
		}
	}
}

// Close finishes any reveal at once, waits for the in-flight request and closes subscriptions.
func (a *Assembler) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	a.stopOnce.Do(func() { close(a.stop) })
	a.wg.Wait()

	a.mu.Lock()
	for _, ch := range a.subscribers {
		close(ch)
	}
	a.subscribers = nil
	a.mu.Unlock()
	return nil
}
