// Package hosttest provides in-memory host views for tests.
package hosttest

import (
	"context"
	"errors"
	"sync"

	"inboxtriage/internal/host"
	"inboxtriage/internal/model"
)

// ErrRejected is returned by AddLabel when a view is configured to reject labels.
var ErrRejected = errors.New("host rejected label")

type base struct {
	mu      sync.Mutex
	subject string
	labels  []host.Label
	applied []model.LabelSpec
	reject  bool
}

func (b *base) Subject() string { return b.subject }

func (b *base) Labels() []host.Label {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]host.Label, len(b.labels))
	copy(out, b.labels)
	return out
}

func (b *base) AddLabel(_ context.Context, spec model.LabelSpec) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reject {
		return ErrRejected
	}
	b.applied = append(b.applied, spec)
	b.labels = append(b.labels, host.Label{Title: spec.Title})
	return nil
}

// Applied returns the label specs attached through AddLabel.
func (b *base) Applied() []model.LabelSpec {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.LabelSpec, len(b.applied))
	copy(out, b.applied)
	return out
}

// RejectLabels makes AddLabel fail.
func (b *base) RejectLabels() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reject = true
}

// Row is a fake ThreadRow.
type Row struct {
	base
	snippet  string
	contacts []host.Contact
}

func NewRow(subject, snippet string, contacts []host.Contact, labels ...string) *Row {
	r := &Row{snippet: snippet, contacts: contacts}
	r.subject = subject
	for _, l := range labels {
		r.labels = append(r.labels, host.Label{Title: l})
	}
	return r
}

func (r *Row) Kind() model.SourceKind   { return model.SourceThreadRow }
func (r *Row) Snippet() string          { return r.snippet }
func (r *Row) Contacts() []host.Contact { return r.contacts }

// Body is a fake Renderable.
type Body string

func (b Body) TextContent() string { return string(b) }

// Message is a fake OpenedMessage.
type Message struct {
	base
	sender  host.Contact
	body    host.Renderable
	bodyErr error
}

func NewMessage(subject string, sender host.Contact, body host.Renderable, labels ...string) *Message {
	m := &Message{sender: sender, body: body}
	m.subject = subject
	for _, l := range labels {
		m.labels = append(m.labels, host.Label{Title: l})
	}
	return m
}

// FailBody makes BodyElement return err.
func (m *Message) FailBody(err error) { m.bodyErr = err }

func (m *Message) Kind() model.SourceKind { return model.SourceOpenedMessage }
func (m *Message) Sender() host.Contact   { return m.sender }

func (m *Message) BodyElement(context.Context) (host.Renderable, error) {
	if m.bodyErr != nil {
		return nil, m.bodyErr
	}
	return m.body, nil
}

// Surface is a fake host.Surface whose events are fired manually.
type Surface struct {
	mu       sync.Mutex
	visible  []host.ThreadRow
	rowHs    []func(host.ThreadRow)
	openedHs []func(host.OpenedMessage)
}

func NewSurface(visible ...host.ThreadRow) *Surface {
	return &Surface{visible: visible}
}

func (s *Surface) OnThreadRowRendered(h func(host.ThreadRow)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowHs = append(s.rowHs, h)
}

func (s *Surface) OnMessageOpened(h func(host.OpenedMessage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openedHs = append(s.openedHs, h)
}

func (s *Surface) AllVisibleThreadRows(context.Context) ([]host.ThreadRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]host.ThreadRow, len(s.visible))
	copy(out, s.visible)
	return out, nil
}

// Render fires the row-rendered hooks.
func (s *Surface) Render(row host.ThreadRow) {
	s.mu.Lock()
	hs := append([]func(host.ThreadRow){}, s.rowHs...)
	s.mu.Unlock()
	for _, h := range hs {
		h(row)
	}
}

// Open fires the message-opened hooks.
func (s *Surface) Open(msg host.OpenedMessage) {
	s.mu.Lock()
	hs := append([]func(host.OpenedMessage){}, s.openedHs...)
	s.mu.Unlock()
	for _, h := range hs {
		h(msg)
	}
}
