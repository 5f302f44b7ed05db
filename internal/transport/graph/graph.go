// Package graph implements a sendmail.Transport that submits MIME messages
// through the Microsoft Graph sendMail endpoint.
package graph

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/shineum/smtp-send-lite/sendmail"
)

const (
	defaultGraphURL = "https://graph.microsoft.com/v1.0"
	tokenURLFormat  = "https://login.microsoftonline.com/%s/oauth2/v2.0/token"
)

// Config holds the Azure AD application used for client-credentials auth.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string
}

// Transport sends messages via Microsoft Graph using OAuth2 client
// credentials. The mailbox is the message's envelope sender.
type Transport struct {
	graphURL   string
	httpClient *http.Client
	token      *tokenCache
}

// New creates a Transport for the given application.
func New(cfg Config) *Transport {
	client := &http.Client{Timeout: 30 * time.Second}
	return newWithOverrides(cfg, defaultGraphURL, fmt.Sprintf(tokenURLFormat, url.PathEscape(cfg.TenantID)), client)
}

// newWithOverrides creates a Transport with custom URLs and HTTP client,
// used for testing.
func newWithOverrides(cfg Config, graphURL, tokenURL string, client *http.Client) *Transport {
	return &Transport{
		graphURL:   graphURL,
		httpClient: client,
		token:      newTokenCache(tokenURL, cfg.ClientID, cfg.ClientSecret, client),
	}
}

// Name returns the transport name.
func (t *Transport) Name() string {
	return "msgraph"
}

// Submit posts msg once as base64 MIME. Graph derives recipients from the
// headers, so the Bcc header is kept in the upload; Graph strips it before
// delivery. A 401 drops the cached token for the next call.
func (t *Transport) Submit(ctx context.Context, msg *sendmail.Message) error {
	raw, err := msg.Render(true)
	if err != nil {
		return fmt.Errorf("failed to build MIME message: %w", err)
	}

	token, err := t.token.Token(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", t.graphURL, url.PathEscape(msg.From.Address))
	body := base64.StdEncoding.EncodeToString(raw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted || resp.StatusCode == http.StatusOK {
		slog.Debug("Graph accepted message",
			"message_id", msg.MessageID,
			"status", resp.StatusCode,
		)
		return nil
	}

	if resp.StatusCode == http.StatusUnauthorized {
		t.token.Invalidate()
	}

	respBody, _ := io.ReadAll(resp.Body)
	return newSendError(resp.StatusCode, respBody)
}

// SendError is a non-success response from the sendMail endpoint.
type SendError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *SendError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("Graph API error (HTTP %d, %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("Graph API error (HTTP %d): %s", e.StatusCode, e.Message)
}

func newSendError(statusCode int, body []byte) *SendError {
	var graphErrResp graphErrorResponse
	if err := json.Unmarshal(body, &graphErrResp); err == nil && graphErrResp.Error.Message != "" {
		return &SendError{
			StatusCode: statusCode,
			Code:       graphErrResp.Error.Code,
			Message:    graphErrResp.Error.Message,
		}
	}
	return &SendError{StatusCode: statusCode, Message: string(body)}
}
