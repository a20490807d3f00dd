package gmailhost

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"inboxtriage/internal/host"
	"inboxtriage/internal/model"
)

// fakeGmail 模拟 Gmail REST API 的一小部分
type fakeGmail struct {
	mu       sync.Mutex
	labels   []*gmail.Label
	threads  []*gmail.Thread
	bodies   map[string]string
	modified map[string][]string
	created  []*gmail.Label
}

func newFakeGmail() *fakeGmail {
	return &fakeGmail{
		labels: []*gmail.Label{
			{Id: "INBOX", Name: "INBOX"},
			{Id: "UNREAD", Name: "UNREAD"},
			{Id: "Label_1", Name: "READ"},
		},
		bodies:   make(map[string]string),
		modified: make(map[string][]string),
	}
}

func (f *fakeGmail) addThread(id, subject, from string, labelIDs ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.threads = append(f.threads, &gmail.Thread{
		Id:      id,
		Snippet: "snippet of " + subject,
		Messages: []*gmail.Message{{
			Id:       id + "-m1",
			ThreadId: id,
			LabelIds: labelIDs,
			Payload: &gmail.MessagePart{Headers: []*gmail.MessagePartHeader{
				{Name: "Subject", Value: subject},
				{Name: "From", Value: from},
			}},
		}},
	})
}

func (f *fakeGmail) markRead(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.threads {
		if t.Id != id {
			continue
		}
		for _, m := range t.Messages {
			var kept []string
			for _, l := range m.LabelIds {
				if l != "UNREAD" {
					kept = append(kept, l)
				}
			}
			m.LabelIds = kept
		}
	}
}

func (f *fakeGmail) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := strings.Index(r.URL.Path, "/users/me/")
	if idx < 0 {
		http.NotFound(w, r)
		return
	}
	parts := strings.Split(strings.Trim(r.URL.Path[idx+len("/users/me/"):], "/"), "/")

	switch {
	case parts[0] == "labels" && r.Method == http.MethodGet:
		writeJSON(w, &gmail.ListLabelsResponse{Labels: f.labels})
	case parts[0] == "labels" && r.Method == http.MethodPost:
		var l gmail.Label
		_ = json.NewDecoder(r.Body).Decode(&l)
		l.Id = "Label_" + l.Name
		f.labels = append(f.labels, &l)
		f.created = append(f.created, &l)
		writeJSON(w, &l)
	case parts[0] == "threads" && len(parts) == 1:
		var list []*gmail.Thread
		for _, t := range f.threads {
			list = append(list, &gmail.Thread{Id: t.Id, Snippet: t.Snippet})
		}
		writeJSON(w, &gmail.ListThreadsResponse{Threads: list})
	case parts[0] == "threads" && len(parts) == 2:
		for _, t := range f.threads {
			if t.Id == parts[1] {
				writeJSON(w, t)
				return
			}
		}
		http.NotFound(w, r)
	case parts[0] == "threads" && len(parts) == 3 && parts[2] == "modify":
		var req gmail.ModifyThreadRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.modified[parts[1]] = append(f.modified[parts[1]], req.AddLabelIds...)
		for _, t := range f.threads {
			if t.Id == parts[1] {
				t.Messages[0].LabelIds = append(t.Messages[0].LabelIds, req.AddLabelIds...)
			}
		}
		writeJSON(w, &gmail.Thread{Id: parts[1]})
	case parts[0] == "messages" && len(parts) == 2:
		body := f.bodies[parts[1]]
		writeJSON(w, &gmail.Message{Id: parts[1], Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Parts: []*gmail.MessagePart{
				{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: base64.RawURLEncoding.EncodeToString([]byte("<p>" + body + "</p>"))}},
			},
		}})
	default:
		http.NotFound(w, r)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newTestSurface(t *testing.T, fake *fakeGmail) *Surface {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)
	return NewSurface(svc, Options{}, nil)
}

func TestAllVisibleThreadRows(t *testing.T) {
	fake := newFakeGmail()
	fake.addThread("t1", "Offer: Senior Engineer", `"HR Team" <hr@acme.com>`, "INBOX", "UNREAD")
	fake.addThread("t2", "Digest", "news@site.com", "INBOX", "Label_1")
	s := newTestSurface(t, fake)

	rows, err := s.AllVisibleThreadRows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, model.SourceThreadRow, rows[0].Kind())
	assert.Equal(t, "Offer: Senior Engineer", rows[0].Subject())
	assert.Equal(t, "snippet of Offer: Senior Engineer", rows[0].Snippet())
	assert.Equal(t, []host.Contact{{Name: "HR Team", EmailAddress: "hr@acme.com"}}, rows[0].Contacts())
	assert.Contains(t, host.LabelTitles(rows[1]), "READ")
}

func TestAddLabelCreatesLabelOnce(t *testing.T) {
	fake := newFakeGmail()
	fake.addThread("t1", "Offer", "hr@acme.com", "INBOX")
	fake.addThread("t2", "Another offer", "hr@acme.com", "INBOX")
	s := newTestSurface(t, fake)

	rows, err := s.AllVisibleThreadRows(context.Background())
	require.NoError(t, err)

	spec := model.LabelSpec{Title: "Job/Recruiter", BackgroundColor: model.ColorPurple, ForegroundColor: model.ColorWhite}
	require.NoError(t, rows[0].AddLabel(context.Background(), spec))
	require.NoError(t, rows[1].AddLabel(context.Background(), spec))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Len(t, fake.created, 1)
	assert.Equal(t, "#a479e2", fake.created[0].Color.BackgroundColor)
	assert.Equal(t, "#ffffff", fake.created[0].Color.TextColor)
	assert.Equal(t, []string{"Label_Job/Recruiter"}, fake.modified["t1"])
	assert.Equal(t, []string{"Label_Job/Recruiter"}, fake.modified["t2"])
	assert.Contains(t, host.LabelTitles(rows[0]), "Job/Recruiter")
}

func TestPollFiresRenderedAndOpened(t *testing.T) {
	fake := newFakeGmail()
	fake.addThread("t1", "Existing", "a@b.c", "INBOX", "UNREAD")
	s := newTestSurface(t, fake)

	var rendered []host.ThreadRow
	var opened []host.OpenedMessage
	s.OnThreadRowRendered(func(r host.ThreadRow) { rendered = append(rendered, r) })
	s.OnMessageOpened(func(m host.OpenedMessage) { opened = append(opened, m) })

	// 第一次轮询只记录
	require.NoError(t, s.Poll(context.Background()))
	assert.Empty(t, rendered)
	assert.Empty(t, opened)

	fake.addThread("t2", "New mail", "x@y.z", "INBOX", "UNREAD")
	fake.markRead("t1")
	fake.mu.Lock()
	fake.bodies["t1-m1"] = "Hello   there"
	fake.mu.Unlock()
	require.NoError(t, s.Poll(context.Background()))

	require.Len(t, rendered, 1)
	assert.Equal(t, "New mail", rendered[0].Subject())
	require.Len(t, opened, 1)
	assert.Equal(t, "Existing", opened[0].Subject())
	assert.Equal(t, "a@b.c", opened[0].Sender().EmailAddress)

	body, err := opened[0].BodyElement(context.Background())
	require.NoError(t, err)
	require.NotNil(t, body)
	assert.Contains(t, body.TextContent(), "Hello   there")

	// 没有变化时不触发
	require.NoError(t, s.Poll(context.Background()))
	assert.Len(t, rendered, 1)
	assert.Len(t, opened, 1)
}

func TestHexColor(t *testing.T) {
	assert.Equal(t, "#cc3a21", HexColor(model.ColorRed))
	assert.Equal(t, "#4a86e8", HexColor(model.ColorBlue))
	assert.Equal(t, "#000000", HexColor(model.ColorBlack))
	assert.Equal(t, "#666666", HexColor(model.Color("teal")))
}

func TestExtractText(t *testing.T) {
	enc := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }
	payload := &gmail.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmail.MessagePart{
			{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: enc("<b>html</b>")}},
			{MimeType: "text/plain", Body: &gmail.MessagePartBody{Data: enc("plain text")}},
		},
	}
	assert.Equal(t, "plain text", extractText(payload))

	htmlOnly := &gmail.MessagePart{MimeType: "text/html", Body: &gmail.MessagePartBody{Data: enc("<style>p{}</style><p>Hi</p>")}}
	assert.Equal(t, "Hi", strings.TrimSpace(extractText(htmlOnly)))
	assert.Equal(t, "", extractText(nil))
}

func TestLoadToken(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "token.json")
	write := func(content string) error { return os.WriteFile(path, []byte(content), 0o600) }
	require.NoError(t, write(`{"access_token":"abc","refresh_token":"r1","token_type":"Bearer"}`))
	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)

	require.NoError(t, write(`{"token":"py","refresh_token":"r2","expiry":"2024-01-02T03:04:05.123456Z"}`))
	tok, err = LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "py", tok.AccessToken)
	assert.Equal(t, "r2", tok.RefreshToken)
	assert.Equal(t, 2024, tok.Expiry.Year())

	require.NoError(t, write(`{}`))
	_, err = LoadToken(path)
	assert.Error(t, err)
}

func TestSaveTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, SaveToken(path, &oauth2.Token{AccessToken: "a", RefreshToken: "r"}))

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)
	assert.Equal(t, "r", tok.RefreshToken)
}
