package services

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"
	"text/template"

	"agentic-rag-platform/internal/config"
	"agentic-rag-platform/internal/logger"
	"agentic-rag-platform/models"
)

// Mailer sends operational email: indexer run failures to admins and,
// optionally, final chat summaries.
type Mailer struct {
	cfg *config.Config
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{cfg: cfg}
}

func (m *Mailer) enabled() bool {
	return m.cfg.SMTPHost != "" && m.cfg.SMTPFrom != ""
}

func (m *Mailer) adminRecipients() []string {
	var recipients []string
	for _, addr := range m.cfg.AdminEmails {
		if addr = strings.TrimSpace(addr); addr != "" {
			recipients = append(recipients, addr)
		}
	}
	return recipients
}

// NotifyRunFailure implements indexer.FailureNotifier. Failures to send are
// logged, never propagated: mail must not break the pipeline.
func (m *Mailer) NotifyRunFailure(doc *models.Document, run *models.IndexerRun, cause error) {
	if !m.cfg.EmailOnRunFailure || !m.enabled() {
		return
	}

	recipients := m.adminRecipients()
	if len(recipients) == 0 {
		logger.Warn("Run failure email enabled but no admin emails configured")
		return
	}

	data := struct {
		Title    string
		RunID    string
		Stage    string
		Error    string
		Pages    int
		Chunks   int
		Embedded int
	}{
		Title:    doc.Title,
		RunID:    run.ID.Hex(),
		Stage:    run.Stage,
		Error:    cause.Error(),
		Pages:    run.Counters.Pages,
		Chunks:   run.Counters.Chunks,
		Embedded: run.Counters.Embedded,
	}

	subject := fmt.Sprintf("Indexing run failed: %s", doc.Title)
	body, err := renderMailTemplate(runFailureTemplate, data)
	if err != nil {
		logger.Error("Failed to render run failure email", "error", err)
		return
	}

	if err := m.send(recipients, subject, body); err != nil {
		logger.Error("Failed to send run failure email", "run_id", run.ID.Hex(), "error", err)
	}
}

// SendChatSummary mails the final answer of a chat run to the given address.
func (m *Mailer) SendChatSummary(to, query, answer string) error {
	if !m.cfg.EmailChatSummaries || !m.enabled() {
		return nil
	}
	if to == "" {
		return fmt.Errorf("no recipient for chat summary")
	}

	data := struct {
		Query  string
		Answer string
	}{Query: query, Answer: answer}

	body, err := renderMailTemplate(chatSummaryTemplate, data)
	if err != nil {
		return fmt.Errorf("failed to render chat summary email: %w", err)
	}

	return m.send([]string{to}, "Your research summary", body)
}

func (m *Mailer) send(recipients []string, subject, body string) error {
	var auth smtp.Auth
	if m.cfg.SMTPUser != "" {
		auth = smtp.PlainAuth("", m.cfg.SMTPUser, m.cfg.SMTPPass, m.cfg.SMTPHost)
	}

	message := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		m.cfg.SMTPFrom, strings.Join(recipients, ", "), subject, body)

	addr := fmt.Sprintf("%s:%s", m.cfg.SMTPHost, m.cfg.SMTPPort)
	return smtp.SendMail(addr, auth, m.cfg.SMTPFrom, recipients, []byte(message))
}

func renderMailTemplate(tpl string, data interface{}) (string, error) {
	t, err := template.New("mail").Parse(tpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const runFailureTemplate = `Indexing run {{.RunID}} failed.

Document: {{.Title}}
Failed stage: {{.Stage}}
Error: {{.Error}}

Progress before failure:
  Pages extracted: {{.Pages}}
  Chunks produced: {{.Chunks}}
  Chunks embedded: {{.Embedded}}

Re-upload the document or inspect the worker logs for details.`

const chatSummaryTemplate = `Here is the summary you requested.

Query:
{{.Query}}

Answer:
{{.Answer}}`
