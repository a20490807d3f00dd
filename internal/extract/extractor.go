// Package extract turns host views into EmailSummary records.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"inboxtriage/internal/host"
	"inboxtriage/internal/model"
)

// MaxSnippetRunes caps the opened-message body sent as snippet.
const MaxSnippetRunes = 500

// ErrExtraction is matched by every ExtractionError.
var ErrExtraction = errors.New("extraction failed")

// ExtractionError reports a missing mandatory field.
type ExtractionError struct {
	Kind  model.SourceKind
	Field string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: missing %s", e.Kind, e.Field)
}

func (e *ExtractionError) Is(target error) bool {
	return target == ErrExtraction
}

// Extract reads a summary from v. Only the subject is mandatory.
func Extract(ctx context.Context, v host.View) (model.EmailSummary, error) {
	if v == nil {
		return model.EmailSummary{}, &ExtractionError{Field: "view"}
	}

	switch v.Kind() {
	case model.SourceThreadRow:
		row, ok := v.(host.ThreadRow)
		if !ok {
			return model.EmailSummary{}, &ExtractionError{Kind: v.Kind(), Field: "thread row contract"}
		}
		return fromThreadRow(row)
	case model.SourceOpenedMessage:
		msg, ok := v.(host.OpenedMessage)
		if !ok {
			return model.EmailSummary{}, &ExtractionError{Kind: v.Kind(), Field: "opened message contract"}
		}
		return fromOpenedMessage(ctx, msg)
	default:
		return model.EmailSummary{}, &ExtractionError{Kind: v.Kind(), Field: "source kind"}
	}
}

func fromThreadRow(row host.ThreadRow) (model.EmailSummary, error) {
	subject := strings.TrimSpace(row.Subject())
	if subject == "" {
		return model.EmailSummary{}, &ExtractionError{Kind: model.SourceThreadRow, Field: "subject"}
	}

	var sender string
	if contacts := row.Contacts(); len(contacts) > 0 {
		sender = contacts[0].EmailAddress
	}

	return model.EmailSummary{
		Subject:    subject,
		Snippet:    row.Snippet(),
		Sender:     sender,
		SourceKind: model.SourceThreadRow,
	}, nil
}

func fromOpenedMessage(ctx context.Context, msg host.OpenedMessage) (model.EmailSummary, error) {
	subject := strings.TrimSpace(msg.Subject())
	if subject == "" {
		return model.EmailSummary{}, &ExtractionError{Kind: model.SourceOpenedMessage, Field: "subject"}
	}

	// body 拿不到时为空，不算错误
	var body string
	if el, err := msg.BodyElement(ctx); err == nil && el != nil {
		body = Snippet(el.TextContent(), MaxSnippetRunes)
	}

	return model.EmailSummary{
		Subject:    subject,
		Snippet:    body,
		Sender:     msg.Sender().EmailAddress,
		SourceKind: model.SourceOpenedMessage,
	}, nil
}

// Snippet collapses whitespace and truncates text to max runes.
func Snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max])
}
