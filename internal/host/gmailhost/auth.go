package gmailhost

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Scopes 读取收件箱并修改标签
var Scopes = []string{
	gmail.GmailModifyScope,
	gmail.GmailLabelsScope,
}

// pythonToken token.json written by google-auth (python) tooling
type pythonToken struct {
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	Expiry       string `json:"expiry"`
}

// NewService 用 credentials.json + token.json 创建已认证的 Gmail 服务
func NewService(ctx context.Context, credentialsPath, tokenPath string, logger *zap.Logger) (*gmail.Service, error) {
	client, err := httpClient(ctx, credentialsPath, tokenPath, logger)
	if err != nil {
		return nil, fmt.Errorf("get oauth client: %w", err)
	}
	return gmail.NewService(ctx, option.WithHTTPClient(client))
}

func httpClient(ctx context.Context, credentialsPath, tokenPath string, logger *zap.Logger) (*http.Client, error) {
	data, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read credentials from %s: %w", credentialsPath, err)
	}
	config, err := google.ConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	token, err := LoadToken(tokenPath)
	if err != nil {
		return nil, fmt.Errorf("load token from %s: %w", tokenPath, err)
	}

	ts := config.TokenSource(ctx, token)
	fresh, err := ts.Token()
	if err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	if fresh.AccessToken != token.AccessToken {
		if err := SaveToken(tokenPath, fresh); err != nil {
			logger.Warn("Could not save refreshed token", zap.Error(err))
		}
	}

	return oauth2.NewClient(ctx, ts), nil
}

// LoadToken 读取 oauth2.Token JSON，兼容 google-auth 的 token.json 格式
func LoadToken(path string) (*oauth2.Token, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var pt pythonToken
	if err := json.Unmarshal(data, &pt); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if pt.Token == "" {
		var tok oauth2.Token
		if err := json.Unmarshal(data, &tok); err != nil {
			return nil, fmt.Errorf("parse token: %w", err)
		}
		if tok.AccessToken == "" && tok.RefreshToken == "" {
			return nil, fmt.Errorf("token file %s has no credentials", path)
		}
		return &tok, nil
	}

	var expiry time.Time
	for _, layout := range []string{"2006-01-02T15:04:05.999999Z", time.RFC3339Nano} {
		if t, err := time.Parse(layout, pt.Expiry); err == nil {
			expiry = t
			break
		}
	}
	return &oauth2.Token{
		AccessToken:  pt.Token,
		RefreshToken: pt.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       expiry,
	}, nil
}

// SaveToken 以 oauth2.Token JSON 格式写回
func SaveToken(path string, tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
