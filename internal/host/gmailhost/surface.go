// Package gmailhost implements the host surface over the Gmail API. Inbox threads
// are polled: a thread seen for the first time is a rendered row, a thread that went
// from unread to read is an opened message.
package gmailhost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"sync"
	"time"

	"go.uber.org/zap"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"inboxtriage/internal/host"
	"inboxtriage/internal/model"
	"inboxtriage/pkg/logger"
)

const labelUnread = "UNREAD"

type Options struct {
	User         string
	Query        string
	MaxThreads   int64
	PollInterval time.Duration
}

type Surface struct {
	users  *gmail.UsersService
	opts   Options
	logger *zap.Logger

	mu       sync.Mutex
	rowHs    []func(host.ThreadRow)
	openedHs []func(host.OpenedMessage)
	// threadID -> 上次轮询时是否未读
	seen   map[string]bool
	seeded bool

	labelsMu   sync.Mutex
	labelNames map[string]string // id -> name
	labelIDs   map[string]string // name -> id
}

func NewSurface(svc *gmail.Service, opts Options, log *zap.Logger) *Surface {
	if opts.User == "" {
		opts.User = "me"
	}
	if opts.Query == "" {
		opts.Query = "in:inbox"
	}
	if opts.MaxThreads <= 0 {
		opts.MaxThreads = 50
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Surface{
		users:      svc.Users,
		opts:       opts,
		logger:     logger.Named(log, "gmail-host"),
		seen:       make(map[string]bool),
		labelNames: make(map[string]string),
		labelIDs:   make(map[string]string),
	}
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

// AllVisibleThreadRows 当前收件箱中的线程；返回的线程之后不会再作为新行触发
func (s *Surface) AllVisibleThreadRows(ctx context.Context) ([]host.ThreadRow, error) {
	threads, err := s.fetch(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	for _, t := range threads {
		s.seen[t.id] = t.unread
	}
	s.seeded = true
	s.mu.Unlock()

	rows := make([]host.ThreadRow, 0, len(threads))
	for _, t := range threads {
		rows = append(rows, threadRow{&view{surface: s, t: t}})
	}
	return rows, nil
}

// Run 按 PollInterval 轮询直到 ctx 取消
func (s *Surface) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		if err := s.Poll(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("Inbox poll failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll 拉取一次收件箱并触发钩子。第一次轮询只记录已有线程。
func (s *Surface) Poll(ctx context.Context) error {
	threads, err := s.fetch(ctx)
	if err != nil {
		return err
	}

	var rendered, opened []thread
	s.mu.Lock()
	seeded := s.seeded
	for _, t := range threads {
		wasUnread, known := s.seen[t.id]
		switch {
		case !seeded:
		case !known:
			rendered = append(rendered, t)
		case wasUnread && !t.unread:
			opened = append(opened, t)
		}
		s.seen[t.id] = t.unread
	}
	s.seeded = true
	rowHs := append([]func(host.ThreadRow){}, s.rowHs...)
	openedHs := append([]func(host.OpenedMessage){}, s.openedHs...)
	s.mu.Unlock()

	for _, t := range rendered {
		row := threadRow{&view{surface: s, t: t}}
		for _, h := range rowHs {
			h(row)
		}
	}
	for _, t := range opened {
		msg := openedMessage{&view{surface: s, t: t}}
		for _, h := range openedHs {
			h(msg)
		}
	}

	if len(rendered) > 0 || len(opened) > 0 {
		s.logger.Debug("Inbox changes",
			zap.Int("rendered", len(rendered)),
			zap.Int("opened", len(opened)),
		)
	}
	return nil
}

func (s *Surface) fetch(ctx context.Context) ([]thread, error) {
	if err := s.refreshLabels(ctx); err != nil {
		return nil, err
	}

	res, err := s.users.Threads.List(s.opts.User).
		Q(s.opts.Query).
		MaxResults(s.opts.MaxThreads).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}

	threads := make([]thread, 0, len(res.Threads))
	for _, t := range res.Threads {
		full, err := s.users.Threads.Get(s.opts.User, t.Id).
			Format("metadata").
			MetadataHeaders("Subject", "From").
			Context(ctx).
			Do()
		if err != nil {
			// 单个线程失败不影响其它线程
			s.logger.Debug("Skipping thread", zap.String("thread_id", t.Id), zap.Error(err))
			continue
		}
		threads = append(threads, toThread(full, t.Snippet))
	}
	return threads, nil
}

func toThread(t *gmail.Thread, snippet string) thread {
	out := thread{id: t.Id, snippet: snippet}
	if out.snippet == "" {
		out.snippet = t.Snippet
	}

	labelSet := make(map[string]bool)
	for i, m := range t.Messages {
		for _, id := range m.LabelIds {
			if id == labelUnread {
				out.unread = true
			}
			if !labelSet[id] {
				labelSet[id] = true
				out.labelIDs = append(out.labelIDs, id)
			}
		}
		if m.Payload == nil {
			continue
		}
		headers := headerMap(m.Payload.Headers)
		if i == 0 {
			out.subject = headers["Subject"]
		}
		if from := headers["From"]; from != "" {
			out.from = parseContact(from)
		}
		out.lastMessageID = m.Id
		if m.Snippet != "" && snippet == "" {
			out.snippet = m.Snippet
		}
	}
	return out
}

func parseContact(from string) host.Contact {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return host.Contact{EmailAddress: from}
	}
	return host.Contact{Name: addr.Name, EmailAddress: addr.Address}
}

func headerMap(headers []*gmail.MessagePartHeader) map[string]string {
	m := make(map[string]string, len(headers))
	for _, h := range headers {
		m[h.Name] = h.Value
	}
	return m
}

func (s *Surface) refreshLabels(ctx context.Context) error {
	res, err := s.users.Labels.List(s.opts.User).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("list labels: %w", err)
	}
	s.labelsMu.Lock()
	defer s.labelsMu.Unlock()
	for _, l := range res.Labels {
		s.labelNames[l.Id] = l.Name
		s.labelIDs[l.Name] = l.Id
	}
	return nil
}

func (s *Surface) labelTitles(ids []string) []host.Label {
	s.labelsMu.Lock()
	defer s.labelsMu.Unlock()
	labels := make([]host.Label, 0, len(ids))
	for _, id := range ids {
		name, ok := s.labelNames[id]
		if !ok {
			name = id
		}
		labels = append(labels, host.Label{Title: name})
	}
	return labels
}

// ensureLabel 按名字查找标签，不存在时按 spec 的颜色创建
func (s *Surface) ensureLabel(ctx context.Context, spec model.LabelSpec) (string, error) {
	s.labelsMu.Lock()
	id, ok := s.labelIDs[spec.Title]
	s.labelsMu.Unlock()
	if ok {
		return id, nil
	}

	created, err := s.users.Labels.Create(s.opts.User, &gmail.Label{
		Name:                  spec.Title,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
		Color: &gmail.LabelColor{
			BackgroundColor: HexColor(spec.BackgroundColor),
			TextColor:       HexColor(spec.ForegroundColor),
		},
	}).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			// 并发创建，重新读取
			if err := s.refreshLabels(ctx); err != nil {
				return "", err
			}
			s.labelsMu.Lock()
			id, ok = s.labelIDs[spec.Title]
			s.labelsMu.Unlock()
			if ok {
				return id, nil
			}
		}
		return "", fmt.Errorf("create label %q: %w", spec.Title, err)
	}

	s.labelsMu.Lock()
	s.labelIDs[created.Name] = created.Id
	s.labelNames[created.Id] = created.Name
	s.labelsMu.Unlock()
	return created.Id, nil
}

func (s *Surface) applyLabel(ctx context.Context, threadID string, spec model.LabelSpec) error {
	id, err := s.ensureLabel(ctx, spec)
	if err != nil {
		return err
	}
	_, err = s.users.Threads.Modify(s.opts.User, threadID, &gmail.ModifyThreadRequest{
		AddLabelIds: []string{id},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("modify thread: %w", err)
	}
	return nil
}

func (s *Surface) messageText(ctx context.Context, messageID string) (string, error) {
	msg, err := s.users.Messages.Get(s.opts.User, messageID).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		return "", fmt.Errorf("get message %s: %w", messageID, err)
	}
	return extractText(msg.Payload), nil
}
