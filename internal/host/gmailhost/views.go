package gmailhost

import (
	"context"
	"fmt"
	"sync"

	"inboxtriage/internal/host"
	"inboxtriage/internal/model"
)

// thread 一次轮询得到的线程快照
type thread struct {
	id            string
	lastMessageID string
	subject       string
	snippet       string
	from          host.Contact
	labelIDs      []string
	unread        bool
}

type view struct {
	surface *Surface
	t       thread

	mu    sync.Mutex
	added []string
}

func (v *view) Subject() string { return v.t.subject }

// Labels 快照中的标签加上本进程刚加上的标签
func (v *view) Labels() []host.Label {
	v.mu.Lock()
	defer v.mu.Unlock()
	labels := v.surface.labelTitles(v.t.labelIDs)
	for _, title := range v.added {
		labels = append(labels, host.Label{Title: title})
	}
	return labels
}

func (v *view) AddLabel(ctx context.Context, spec model.LabelSpec) error {
	if err := v.surface.applyLabel(ctx, v.t.id, spec); err != nil {
		return fmt.Errorf("thread %s: %w", v.t.id, err)
	}
	v.mu.Lock()
	v.added = append(v.added, spec.Title)
	v.mu.Unlock()
	return nil
}

type threadRow struct{ *view }

func (r threadRow) Kind() model.SourceKind { return model.SourceThreadRow }
func (r threadRow) Snippet() string        { return r.t.snippet }

func (r threadRow) Contacts() []host.Contact {
	if r.t.from.EmailAddress == "" {
		return nil
	}
	return []host.Contact{r.t.from}
}

type openedMessage struct{ *view }

func (m openedMessage) Kind() model.SourceKind { return model.SourceOpenedMessage }
func (m openedMessage) Sender() host.Contact   { return m.t.from }

// BodyElement 拉取最后一封邮件的完整正文
func (m openedMessage) BodyElement(ctx context.Context) (host.Renderable, error) {
	if m.t.lastMessageID == "" {
		return nil, nil
	}
	text, err := m.surface.messageText(ctx, m.t.lastMessageID)
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}
	return textBody(text), nil
}
