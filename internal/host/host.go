// Package host describes the mail-client surface the triage runner attaches to.
// Views are owned by the host; the runner only reads them and asks the host to
// attach labels.
package host

import (
	"context"

	"inboxtriage/internal/model"
)

// Label is a label already attached to a view.
type Label struct {
	Title string
}

// Contact is a participant address as rendered by the host.
type Contact struct {
	Name         string
	EmailAddress string
}

// View is the part of the contract shared by every entry kind. Kind is the tag used
// to dispatch; callers type-assert to ThreadRow or OpenedMessage based on it.
type View interface {
	Kind() model.SourceKind
	Subject() string
	Labels() []Label
	AddLabel(ctx context.Context, spec model.LabelSpec) error
}

// ThreadRow is a rendered list row.
type ThreadRow interface {
	View
	Snippet() string
	Contacts() []Contact
}

// Renderable is the materialized body of an opened message.
type Renderable interface {
	TextContent() string
}

// OpenedMessage is a message the user opened. BodyElement may block until the body
// materializes; a nil Renderable means no body is available.
type OpenedMessage interface {
	View
	Sender() Contact
	BodyElement(ctx context.Context) (Renderable, error)
}

// Surface exposes the registration hooks of the host.
type Surface interface {
	OnThreadRowRendered(handler func(ThreadRow))
	OnMessageOpened(handler func(OpenedMessage))
	AllVisibleThreadRows(ctx context.Context) ([]ThreadRow, error)
}

// LabelTitles flattens a view's labels to their titles.
func LabelTitles(v View) []string {
	labels := v.Labels()
	titles := make([]string, 0, len(labels))
	for _, l := range labels {
		titles = append(titles, l.Title)
	}
	return titles
}
