package email

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"html/template"
	"regexp"
	"strings"
	"time"

	"truelens-inquiry-api/config"
	"truelens-inquiry-api/internal/domain"

	"github.com/microcosm-cc/bluemonday"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	notificationSubjectPrefix = "New Contact Form Submission: "
	timestampLayout           = "January 2, 2006 at 3:04 PM MST"
)

// notificationData holds the fields rendered into the business copy
type notificationData struct {
	BrandName    string
	Name         string
	Email        string
	Phone        string
	Subject      string
	MessageLines []string
	Timestamp    string
}

// acknowledgmentData holds the fields rendered into the auto-reply
type acknowledgmentData struct {
	BrandName    string
	Name         string
	Email        string
	Phone        string
	Subject      string
	SupportEmail string
}

// Composer renders the notification and acknowledgment copies of an inquiry.
// html/template escapes every user-supplied field.
type Composer struct {
	tmpl           *template.Template
	text           *bluemonday.Policy
	brandName      string
	formSenderName string
	fromAddress    string
	businessInbox  string
	supportEmail   string
}

// NewComposer parses the embedded templates once
func NewComposer(cfg *config.Config) (*Composer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}

	return &Composer{
		tmpl:           tmpl,
		text:           bluemonday.StrictPolicy(),
		brandName:      cfg.BrandName,
		formSenderName: cfg.FormSenderName,
		fromAddress:    cfg.SMTPUsername,
		businessInbox:  cfg.BusinessInbox(),
		supportEmail:   cfg.SupportEmail,
	}, nil
}

// Notification builds the copy sent to the business inbox
func (c *Composer) Notification(req *domain.InquiryRequest, receivedAt time.Time) (*domain.OutboundMessage, error) {
	body, err := c.render("notification.html", notificationData{
		BrandName:    c.brandName,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Subject:      subjectOrDefault(req.Subject),
		MessageLines: splitLines(req.Message),
		Timestamp:    receivedAt.Format(timestampLayout),
	})
	if err != nil {
		return nil, err
	}

	return &domain.OutboundMessage{
		Kind:        domain.KindNotification,
		FromName:    c.formSenderName,
		FromAddress: c.fromAddress,
		ToAddress:   c.businessInbox,
		ReplyTo:     req.Email,
		Subject:     notificationSubjectPrefix + subjectOrDefault(req.Subject),
		HTMLBody:    body,
		TextBody:    c.plainText(body),
	}, nil
}

// Acknowledgment builds the auto-reply sent back to the submitter
func (c *Composer) Acknowledgment(req *domain.InquiryRequest) (*domain.OutboundMessage, error) {
	body, err := c.render("acknowledgment.html", acknowledgmentData{
		BrandName:    c.brandName,
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		Subject:      subjectOrDefault(req.Subject),
		SupportEmail: c.supportEmail,
	})
	if err != nil {
		return nil, err
	}

	return &domain.OutboundMessage{
		Kind:        domain.KindAcknowledgment,
		FromName:    c.brandName,
		FromAddress: c.fromAddress,
		ToAddress:   req.Email,
		Subject:     "Thank you for contacting " + c.brandName,
		HTMLBody:    body,
		TextBody:    c.plainText(body),
	}, nil
}

func (c *Composer) render(name string, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := c.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

var (
	blockBreak = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|h[1-6]|li)>`)
	blankRuns  = regexp.MustCompile(`\n\s*\n+`)
)

// plainText derives the text/plain alternative from rendered HTML
func (c *Composer) plainText(body string) string {
	withBreaks := blockBreak.ReplaceAllString(body, "$0\n")
	stripped := html.UnescapeString(c.text.Sanitize(withBreaks))

	lines := strings.Split(stripped, "\n")
	for i, l := range lines {
		lines[i] = strings.Join(strings.Fields(l), " ")
	}
	return strings.TrimSpace(blankRuns.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

func subjectOrDefault(subject string) string {
	if strings.TrimSpace(subject) == "" {
		return domain.DefaultInquirySubject
	}
	return subject
}

// splitLines turns message newlines into separate lines for <br> rendering
func splitLines(message string) []string {
	normalized := strings.ReplaceAll(message, "\r\n", "\n")
	return strings.Split(normalized, "\n")
}
