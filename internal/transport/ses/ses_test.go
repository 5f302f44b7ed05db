package ses

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"

	"github.com/shineum/smtp-send-lite/internal/parser"
	"github.com/shineum/smtp-send-lite/sendmail"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	sendFn    func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.sendFn != nil {
		return m.sendFn(ctx, params, optFns...)
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func testMessage() *sendmail.Message {
	return &sendmail.Message{
		From:      sendmail.Mailbox{Name: "Alice", Address: "alice@example.com"},
		ReplyTo:   sendmail.Mailbox{Address: "alice@example.com"},
		To:        []sendmail.Mailbox{{Address: "to@example.com"}},
		Cc:        []sendmail.Mailbox{{Address: "cc@example.com"}},
		Bcc:       []sendmail.Mailbox{{Address: "bcc@example.com"}},
		Subject:   "Test Subject",
		Date:      time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		MessageID: "abc@example.com",
		Body:      sendmail.TextPart{ContentType: "text/plain", Text: "Hello, World!"},
		Attachments: []sendmail.Attachment{
			{Filename: "report.txt", ContentType: "text/plain", Content: []byte("numbers")},
		},
	}
}

func TestName(t *testing.T) {
	t.Parallel()
	tr := NewWithClient(&mockSESClient{})
	if got := tr.Name(); got != "ses" {
		t.Errorf("Name(): got %q, want %q", got, "ses")
	}
}

func TestSubmit_RawMessage(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	tr := NewWithClient(mock)

	if err := tr.Submit(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}

	input := mock.lastInput
	if input.Content.Simple != nil {
		t.Error("expected raw content, got simple")
	}
	if input.Content.Raw == nil {
		t.Fatal("expected raw message content, got nil")
	}
	if got := aws.ToString(input.FromEmailAddress); got != "alice@example.com" {
		t.Errorf("FromEmailAddress: got %q, want %q", got, "alice@example.com")
	}

	wantRcpts := []string{"to@example.com", "cc@example.com", "bcc@example.com"}
	gotRcpts := input.Destination.ToAddresses
	if strings.Join(gotRcpts, ",") != strings.Join(wantRcpts, ",") {
		t.Errorf("ToAddresses: got %v, want %v", gotRcpts, wantRcpts)
	}
	if input.ConfigurationSetName != nil {
		t.Errorf("ConfigurationSetName: got %q, want nil", aws.ToString(input.ConfigurationSetName))
	}

	raw := input.Content.Raw.Data
	if strings.Contains(string(raw), "bcc@example.com") {
		t.Error("raw message must not contain the Bcc address")
	}

	parsed, err := parser.Parse(raw)
	if err != nil {
		t.Fatalf("failed to parse raw message: %v", err)
	}
	if parsed.Subject != "Test Subject" {
		t.Errorf("Subject: got %q, want %q", parsed.Subject, "Test Subject")
	}
	if parsed.Body.Text != "Hello, World!" {
		t.Errorf("Body: got %q, want %q", parsed.Body.Text, "Hello, World!")
	}
	if len(parsed.Attachments) != 1 || parsed.Attachments[0].Filename != "report.txt" {
		t.Errorf("Attachments: got %+v, want [report.txt]", parsed.Attachments)
	}
}

func TestSubmit_ConfigurationSet(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{}
	tr := NewWithClient(mock)
	tr.configurationSet = "transactional"

	if err := tr.Submit(context.Background(), testMessage()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := aws.ToString(mock.lastInput.ConfigurationSetName); got != "transactional" {
		t.Errorf("ConfigurationSetName: got %q, want %q", got, "transactional")
	}
}

func TestSubmit_ErrorIsNotRetried(t *testing.T) {
	t.Parallel()

	apiErr := errors.New("throttling: rate exceeded")
	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, apiErr
		},
	}
	tr := NewWithClient(mock)

	err := tr.Submit(context.Background(), testMessage())
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !errors.Is(err, apiErr) {
		t.Errorf("error chain: got %v, want it to wrap %v", err, apiErr)
	}
	if mock.callCount != 1 {
		t.Errorf("call count: got %d, want 1", mock.callCount)
	}
}

func TestSubmit_ThroughSend(t *testing.T) {
	t.Parallel()

	mock := &mockSESClient{
		sendFn: func(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
			return nil, errors.New("access denied")
		},
	}

	sender, err := sendmail.NewSender("alice@example.com", "", "", sendmail.Gmail, "alice@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	bob, err := sendmail.AddressOnly("bob@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = sendmail.Send(context.Background(), sender, sendmail.PlainContent("Hi", "Hello"),
		[]sendmail.Recipient{bob}, sendmail.WithTransport(NewWithClient(mock)))
	if !errors.Is(err, sendmail.ErrTransport) {
		t.Errorf("error: got %v, want ErrTransport", err)
	}
}

func TestNew_StaticCredentials(t *testing.T) {
	t.Parallel()

	tr, err := New(context.Background(), Config{
		Region:           "us-east-1",
		AccessKeyID:      "AKIDEXAMPLE",
		SecretAccessKey:  "secret",
		ConfigurationSet: "cs",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tr.client == nil {
		t.Error("client is nil")
	}
	if tr.configurationSet != "cs" {
		t.Errorf("configurationSet: got %q, want %q", tr.configurationSet, "cs")
	}
}
