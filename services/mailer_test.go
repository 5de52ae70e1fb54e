package services

import (
	"testing"

	"agentic-rag-platform/internal/config"
)

func TestSendChatSummaryDisabled(t *testing.T) {
	m := NewMailer(&config.Config{})

	if err := m.SendChatSummary("user@example.com", "q", "a"); err != nil {
		t.Errorf("disabled mailer should be a no-op, got %v", err)
	}
}

func TestSendChatSummaryMissingRecipient(t *testing.T) {
	m := NewMailer(&config.Config{
		EmailChatSummaries: true,
		SMTPHost:           "localhost",
		SMTPPort:           "587",
		SMTPFrom:           "noreply@example.com",
	})

	if err := m.SendChatSummary("", "q", "a"); err == nil {
		t.Error("expected an error for a missing recipient")
	}
}

func TestSendChatSummarySurfacesSendFailure(t *testing.T) {
	// Port 1 has no listener; the dial fails and the error must propagate
	// to the caller instead of being swallowed.
	m := NewMailer(&config.Config{
		EmailChatSummaries: true,
		SMTPHost:           "127.0.0.1",
		SMTPPort:           "1",
		SMTPFrom:           "noreply@example.com",
	})

	if err := m.SendChatSummary("user@example.com", "q", "a"); err == nil {
		t.Error("expected the SMTP failure to propagate")
	}
}
