package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/smtp"
	"strings"
	"time"

	"github.com/quizforge/quiz-service/internal/config"
	"github.com/quizforge/quiz-service/internal/models"
	"github.com/quizforge/quiz-service/internal/repositories"
)

// emailService persists outbound mail and hands delivery to the worker
// through the event bus. Delivery tries the HTTP API provider first and
// falls back to plain SMTP.
type emailService struct {
	repo   repositories.Repository
	logger *slog.Logger
	cfg    config.EmailConfig
	events NotificationEventService
	client *http.Client
}

func NewEmailService(repo repositories.Repository, logger *slog.Logger, cfg config.EmailConfig, events NotificationEventService) EmailService {
	return &emailService{
		repo:   repo,
		logger: logger,
		cfg:    cfg,
		events: events,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (s *emailService) Enqueue(ctx context.Context, msg *models.EmailMessage) error {
	msg.Status = models.EmailQueued

	if err := s.repo.Email().Create(ctx, nil, msg); err != nil {
		return fmt.Errorf("failed to queue email: %w", err)
	}

	if err := s.events.PublishEmailQueued(ctx, msg.ID); err != nil {
		// The periodic queue sweep will still pick the row up.
		s.logger.Warn("Failed to announce queued email", "message_id", msg.ID, "error", err)
	}

	s.logger.Info("Email queued", "message_id", msg.ID, "to", msg.To)
	return nil
}

func (s *emailService) EnqueueResultEmail(ctx context.Context, attempt *models.Attempt, quiz *models.Quiz, student *models.Student) error {
	attemptID := attempt.ID
	msg := &models.EmailMessage{
		To:        student.Email,
		Subject:   fmt.Sprintf("Your results: %s", quiz.Title),
		Body:      buildResultEmailBody(attempt, quiz, student),
		AttemptID: &attemptID,
	}
	return s.Enqueue(ctx, msg)
}

// Deliver sends one queued message. Each provider failure is recorded on
// the row; the message fails permanently once MaxAttempts is exhausted.
func (s *emailService) Deliver(ctx context.Context, messageID uint) error {
	msg, err := s.repo.Email().GetByID(ctx, nil, messageID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrEmailNotFound
		}
		return fmt.Errorf("failed to get email message: %w", err)
	}
	if msg.Status != models.EmailQueued {
		return ErrEmailNotQueued
	}

	maxAttempts := s.cfg.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 3
	}

	var deliverErr error
	var provider string

	if s.cfg.APIURL != "" {
		provider = "api"
		deliverErr = s.sendViaAPI(ctx, msg)
	}
	if (s.cfg.APIURL == "" || deliverErr != nil) && s.cfg.SMTPHost != "" {
		if deliverErr != nil {
			s.logger.Warn("API delivery failed, falling back to SMTP", "message_id", msg.ID, "error", deliverErr)
		}
		provider = "smtp"
		deliverErr = s.sendViaSMTP(msg)
	}
	if s.cfg.APIURL == "" && s.cfg.SMTPHost == "" {
		deliverErr = ErrServiceNotEnabled
	}

	msg.Attempts++

	if deliverErr != nil {
		reason := deliverErr.Error()
		msg.LastError = &reason
		if msg.Attempts >= maxAttempts {
			msg.Status = models.EmailFailed
			s.logger.Error("Email delivery failed permanently",
				"message_id", msg.ID, "attempts", msg.Attempts, "error", deliverErr)
		}
		if err := s.repo.Email().Update(ctx, nil, msg); err != nil {
			s.logger.Error("Failed to record email failure", "message_id", msg.ID, "error", err)
		}
		return deliverErr
	}

	now := time.Now()
	msg.Status = models.EmailSent
	msg.Provider = provider
	msg.SentAt = &now
	msg.LastError = nil

	if err := s.repo.Email().Update(ctx, nil, msg); err != nil {
		return fmt.Errorf("failed to record email delivery: %w", err)
	}

	s.logger.Info("Email delivered", "message_id", msg.ID, "provider", provider, "to", msg.To)
	return nil
}

type apiEmailPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

func (s *emailService) sendViaAPI(ctx context.Context, msg *models.EmailMessage) error {
	payload, err := json.Marshal(apiEmailPayload{
		From:    fmt.Sprintf("%s <%s>", s.cfg.FromName, s.cfg.FromAddress),
		To:      msg.To,
		Subject: msg.Subject,
		Text:    msg.Body,
	})
	if err != nil {
		return fmt.Errorf("marshal email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("email API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("email API returned status %d", resp.StatusCode)
	}
	return nil
}

func (s *emailService) sendViaSMTP(msg *models.EmailMessage) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.SMTPHost, s.cfg.SMTPPort)

	var auth smtp.Auth
	if s.cfg.SMTPUsername != "" {
		auth = smtp.PlainAuth("", s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPHost)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "From: %s <%s>\r\n", s.cfg.FromName, s.cfg.FromAddress)
	fmt.Fprintf(&body, "To: %s\r\n", msg.To)
	fmt.Fprintf(&body, "Subject: %s\r\n", msg.Subject)
	body.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	body.WriteString(msg.Body)

	if err := smtp.SendMail(addr, auth, s.cfg.FromAddress, []string{msg.To}, []byte(body.String())); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func buildResultEmailBody(attempt *models.Attempt, quiz *models.Quiz, student *models.Student) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nYour attempt on %q has been graded.\n\n", student.FullName, quiz.Title)
	fmt.Fprintf(&b, "Score: %.2f / %.2f (%.2f%%)\n", attempt.TotalMarks, attempt.MaxMarks, attempt.Percentage)
	if attempt.Passed {
		fmt.Fprintf(&b, "Result: PASSED (passing score %d%%)\n", quiz.PassingScore)
	} else {
		fmt.Fprintf(&b, "Result: NOT PASSED (passing score %d%%)\n", quiz.PassingScore)
	}
	if attempt.AutoSubmitted {
		fmt.Fprintf(&b, "\nNote: this attempt was submitted automatically (%s).\n", attempt.EndReason)
	}
	return b.String()
}
