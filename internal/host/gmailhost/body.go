package gmailhost

import (
	"encoding/base64"
	"regexp"
	"strings"

	gmail "google.golang.org/api/gmail/v1"
)

var (
	tagPattern   = regexp.MustCompile(`(?s)<[^>]*>`)
	stylePattern = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
)

// textBody 是打开邮件的正文文本
type textBody string

func (b textBody) TextContent() string { return string(b) }

// extractText 优先 text/plain，其次去标签后的 text/html
func extractText(payload *gmail.MessagePart) string {
	if payload == nil {
		return ""
	}
	if text := findPart(payload, "text/plain"); text != "" {
		return text
	}
	if html := findPart(payload, "text/html"); html != "" {
		return stripTags(html)
	}
	return ""
}

func findPart(part *gmail.MessagePart, mimeType string) string {
	if strings.HasPrefix(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		if decoded, err := decodeBase64URL(part.Body.Data); err == nil {
			return decoded
		}
	}
	for _, p := range part.Parts {
		if text := findPart(p, mimeType); text != "" {
			return text
		}
	}
	return ""
}

func stripTags(html string) string {
	html = stylePattern.ReplaceAllString(html, " ")
	return tagPattern.ReplaceAllString(html, " ")
}

// decodeBase64URL Gmail 正文是 base64url，可能没有 padding
func decodeBase64URL(data string) (string, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
