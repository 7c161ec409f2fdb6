package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2/clientcredentials"
)

const (
	defaultGraphBaseURL = "https://graph.microsoft.com/v1.0"
	graphScope          = "https://graph.microsoft.com/.default"
)

// GraphConfig configures Microsoft Graph delivery.
type GraphConfig struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	// SenderID is the directory object id of the account that sends messages.
	SenderID string
	// BaseURL and TokenURL override the public endpoints; used in tests.
	BaseURL  string
	TokenURL string
}

// Enabled reports whether enough settings are present to talk to Graph.
func (c GraphConfig) Enabled() bool {
	return c.TenantID != "" && c.ClientID != "" && c.ClientSecret != "" && c.SenderID != ""
}

// GraphNotifier sends a one-on-one Teams chat message from a service
// account to the recipient.
type GraphNotifier struct {
	client   *http.Client
	baseURL  string
	senderID string
	logger   *slog.Logger
}

// NewGraphNotifier builds a notifier whose HTTP client obtains app-only
// tokens through the client credentials flow.
func NewGraphNotifier(ctx context.Context, cfg GraphConfig, logger *slog.Logger) (*GraphNotifier, error) {
	if !cfg.Enabled() {
		return nil, errors.New("graph notifier: tenant, client id, client secret and sender id are required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	tokenURL := cfg.TokenURL
	if tokenURL == "" {
		tokenURL = fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", url.PathEscape(cfg.TenantID))
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultGraphBaseURL
	}

	credentials := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{graphScope},
	}

	return &GraphNotifier{
		client:   credentials.Client(ctx),
		baseURL:  baseURL,
		senderID: cfg.SenderID,
		logger:   logger.With("component", "notifier", "channel", "graph"),
	}, nil
}

// Notify resolves the recipient, opens (or reuses) the one-on-one chat, and
// posts the message.
func (n *GraphNotifier) Notify(ctx context.Context, recipient, message string) error {
	var user struct {
		ID string `json:"id"`
	}
	if err := n.do(ctx, http.MethodGet, "/users/"+url.PathEscape(recipient), nil, &user); err != nil {
		return fmt.Errorf("resolve recipient %s: %w", recipient, err)
	}

	chatRequest := map[string]any{
		"chatType": "oneOnOne",
		"members": []map[string]any{
			member(n.baseURL, n.senderID),
			member(n.baseURL, user.ID),
		},
	}
	var chat struct {
		ID string `json:"id"`
	}
	if err := n.do(ctx, http.MethodPost, "/chats", chatRequest, &chat); err != nil {
		return fmt.Errorf("open chat with %s: %w", recipient, err)
	}

	body := map[string]any{
		"body": map[string]string{"contentType": "text", "content": message},
	}
	if err := n.do(ctx, http.MethodPost, "/chats/"+url.PathEscape(chat.ID)+"/messages", body, nil); err != nil {
		return fmt.Errorf("post message to %s: %w", recipient, err)
	}
	return nil
}

func member(baseURL, userID string) map[string]any {
	return map[string]any{
		"@odata.type":     "#microsoft.graph.aadUserConversationMember",
		"roles":           []string{"owner"},
		"user@odata.bind": fmt.Sprintf("%s/users('%s')", baseURL, userID),
	}
}

func (n *GraphNotifier) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, n.baseURL+path, body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("graph %s %s: status %d: %s", method, path, resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
