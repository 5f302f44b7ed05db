package graph

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shineum/smtp-send-lite/internal/parser"
	"github.com/shineum/smtp-send-lite/sendmail"
)

func testMessage() *sendmail.Message {
	return &sendmail.Message{
		From:      sendmail.Mailbox{Name: "Alice", Address: "alice@example.com"},
		ReplyTo:   sendmail.Mailbox{Address: "alice@example.com"},
		To:        []sendmail.Mailbox{{Address: "bob@example.com"}},
		Bcc:       []sendmail.Mailbox{{Address: "hidden@example.com"}},
		Subject:   "Quarterly report",
		Date:      time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		MessageID: "abc@example.com",
		Body:      sendmail.TextPart{ContentType: "text/html", Text: "<p>Hi</p>"},
		Attachments: []sendmail.Attachment{
			{Filename: "q1.csv", ContentType: "text/plain", Content: []byte("a,b\n")},
		},
	}
}

// graphServer serves both the token endpoint and the sendMail endpoint.
type graphServer struct {
	*httptest.Server
	tokenCalls atomic.Int32
	sendCalls  atomic.Int32

	mu         sync.Mutex
	lastPath   string
	lastAuth   string
	lastType   string
	lastBody   []byte
	status     int
	errBody    string
}

func newGraphServer(t *testing.T, status int, errBody string) *graphServer {
	t.Helper()

	gs := &graphServer{status: status, errBody: errBody}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		gs.tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(tokenResponse{AccessToken: "graph-token", ExpiresIn: 3600})
	})
	mux.HandleFunc("/v1.0/", func(w http.ResponseWriter, r *http.Request) {
		gs.sendCalls.Add(1)
		body, _ := io.ReadAll(r.Body)

		gs.mu.Lock()
		gs.lastPath = r.URL.Path
		gs.lastAuth = r.Header.Get("Authorization")
		gs.lastType = r.Header.Get("Content-Type")
		gs.lastBody = body
		status, errBody := gs.status, gs.errBody
		gs.mu.Unlock()

		w.WriteHeader(status)
		if errBody != "" {
			w.Write([]byte(errBody))
		}
	})
	gs.Server = httptest.NewServer(mux)
	t.Cleanup(gs.Close)
	return gs
}

func (gs *graphServer) respondWith(status int, errBody string) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	gs.status = status
	gs.errBody = errBody
}

func (gs *graphServer) last() (path, auth, contentType string, body []byte) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	return gs.lastPath, gs.lastAuth, gs.lastType, gs.lastBody
}

func (gs *graphServer) transport() *Transport {
	return newWithOverrides(
		Config{TenantID: "tenant", ClientID: "cid", ClientSecret: "secret"},
		gs.URL+"/v1.0", gs.URL+"/token", gs.Client(),
	)
}

func TestName(t *testing.T) {
	t.Parallel()
	tr := New(Config{TenantID: "t", ClientID: "c", ClientSecret: "s"})
	if got := tr.Name(); got != "msgraph" {
		t.Errorf("Name(): got %q, want %q", got, "msgraph")
	}
}

func TestSubmit_Success(t *testing.T) {
	t.Parallel()

	gs := newGraphServer(t, http.StatusAccepted, "")
	tr := gs.transport()

	if err := tr.Submit(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	path, auth, contentType, body := gs.last()
	if path != "/v1.0/users/alice@example.com/sendMail" {
		t.Errorf("path: got %q, want %q", path, "/v1.0/users/alice@example.com/sendMail")
	}
	if auth != "Bearer graph-token" {
		t.Errorf("Authorization: got %q, want %q", auth, "Bearer graph-token")
	}
	if contentType != "text/plain" {
		t.Errorf("Content-Type: got %q, want %q", contentType, "text/plain")
	}

	raw, err := base64.StdEncoding.DecodeString(string(body))
	if err != nil {
		t.Fatalf("body is not base64: %v", err)
	}
	msg, err := parser.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse uploaded MIME: %v", err)
	}
	if msg.Subject != "Quarterly report" {
		t.Errorf("Subject: got %q, want %q", msg.Subject, "Quarterly report")
	}
	if len(msg.Bcc) != 1 || msg.Bcc[0].Address != "hidden@example.com" {
		t.Errorf("Bcc: got %v, want [hidden@example.com]", msg.Bcc)
	}
	if msg.Body.ContentType != "text/html" || msg.Body.Text != "<p>Hi</p>" {
		t.Errorf("Body: got %+v", msg.Body)
	}
	if len(msg.Attachments) != 1 || msg.Attachments[0].Filename != "q1.csv" {
		t.Errorf("Attachments: got %+v, want [q1.csv]", msg.Attachments)
	}
}

func TestSubmit_ReusesToken(t *testing.T) {
	t.Parallel()

	gs := newGraphServer(t, http.StatusAccepted, "")
	tr := gs.transport()

	for i := 0; i < 3; i++ {
		if err := tr.Submit(context.Background(), testMessage()); err != nil {
			t.Fatalf("submit %d: unexpected error: %v", i, err)
		}
	}
	if gs.tokenCalls.Load() != 1 {
		t.Errorf("token calls: got %d, want 1", gs.tokenCalls.Load())
	}
	if gs.sendCalls.Load() != 3 {
		t.Errorf("send calls: got %d, want 3", gs.sendCalls.Load())
	}
}

func TestSubmit_GraphError(t *testing.T) {
	t.Parallel()

	gs := newGraphServer(t, http.StatusForbidden,
		`{"error":{"code":"ErrorAccessDenied","message":"Access is denied."}}`)
	tr := gs.transport()

	err := tr.Submit(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var sendErr *SendError
	if !errors.As(err, &sendErr) {
		t.Fatalf("error type: got %T, want *SendError", err)
	}
	if sendErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode: got %d, want %d", sendErr.StatusCode, http.StatusForbidden)
	}
	if sendErr.Code != "ErrorAccessDenied" {
		t.Errorf("Code: got %q, want %q", sendErr.Code, "ErrorAccessDenied")
	}
	if !strings.Contains(err.Error(), "Access is denied.") {
		t.Errorf("message: got %q", err.Error())
	}
	if gs.sendCalls.Load() != 1 {
		t.Errorf("send calls: got %d, want 1", gs.sendCalls.Load())
	}
}

func TestSubmit_ServerErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	gs := newGraphServer(t, http.StatusServiceUnavailable, "upstream unavailable")
	tr := gs.transport()

	err := tr.Submit(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "upstream unavailable") {
		t.Errorf("message: got %q", err.Error())
	}
	if gs.sendCalls.Load() != 1 {
		t.Errorf("send calls: got %d, want 1", gs.sendCalls.Load())
	}
}

func TestSubmit_UnauthorizedDropsToken(t *testing.T) {
	t.Parallel()

	gs := newGraphServer(t, http.StatusUnauthorized, `{"error":{"code":"InvalidAuthenticationToken","message":"expired"}}`)
	tr := gs.transport()

	if err := tr.Submit(context.Background(), testMessage()); err == nil {
		t.Fatal("expected error, got nil")
	}
	if gs.sendCalls.Load() != 1 {
		t.Errorf("send calls: got %d, want 1", gs.sendCalls.Load())
	}

	gs.respondWith(http.StatusAccepted, "")
	if err := tr.Submit(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gs.tokenCalls.Load() != 2 {
		t.Errorf("token calls: got %d, want 2", gs.tokenCalls.Load())
	}
}

func TestSubmit_TokenFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer server.Close()

	tr := newWithOverrides(Config{ClientID: "cid", ClientSecret: "bad"}, server.URL, server.URL, server.Client())

	err := tr.Submit(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to get access token") {
		t.Errorf("message: got %q", err.Error())
	}
}
