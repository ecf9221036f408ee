package domain

import (
	"context"
	"fmt"
	"time"
)

// DefaultInquirySubject is used when the visitor leaves the subject blank
const DefaultInquirySubject = "General Inquiry"

// InquiryRequest represents one contact form submission. All fields are untrusted.
type InquiryRequest struct {
	Name    string `json:"name" validate:"required" example:"Jane Doe"`
	Email   string `json:"email" validate:"required,inquiry_email" example:"jane@example.com"`
	Phone   string `json:"phone,omitempty" example:"+1-555-0100"`
	Subject string `json:"subject,omitempty" example:"Bulk order"`
	Message string `json:"message" validate:"required" example:"Hello"`
}

// MessageKind distinguishes the two copies produced for every inquiry
type MessageKind string

const (
	KindNotification   MessageKind = "notification"
	KindAcknowledgment MessageKind = "acknowledgment"
)

// OutboundMessage is a fully rendered email. It is built once and never mutated.
type OutboundMessage struct {
	Kind        MessageKind
	FromName    string
	FromAddress string
	ToAddress   string
	ReplyTo     string
	Subject     string
	HTMLBody    string
	TextBody    string
}

// DeliveryOutcome records what happened to one outbound message
type DeliveryOutcome struct {
	Kind      MessageKind `json:"kind"`
	Recipient string      `json:"recipient"`
	Sent      bool        `json:"sent"`
	Error     string      `json:"error,omitempty"`
}

// DeliveryReport holds the per-message outcome of a submission.
// It is filled even when the submission fails as a whole.
type DeliveryReport struct {
	Outcomes []DeliveryOutcome `json:"outcomes"`
}

// Failed returns the outcomes that did not send
func (r *DeliveryReport) Failed() []DeliveryOutcome {
	if r == nil {
		return nil
	}
	var failed []DeliveryOutcome
	for _, o := range r.Outcomes {
		if !o.Sent {
			failed = append(failed, o)
		}
	}
	return failed
}

// InquiryResult is returned on a successful submission
type InquiryResult struct {
	Message     string
	SubmittedAt time.Time
	Report      DeliveryReport
}

// Validation error codes
const (
	CodeMissingFields = "missing_fields"
	CodeInvalidEmail  = "invalid_email"
)

// ValidationError means the input was malformed or incomplete. No mail is sent.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TransportError means the mail transport could not be verified or a send failed
type TransportError struct {
	Op     string // "verify" or "send"
	Err    error
	Report *DeliveryReport
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("mail transport %s failed: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

var (
	ErrMissingFields = &ValidationError{Code: CodeMissingFields, Message: "Name, email, and message are required fields."}
	ErrInvalidEmail  = &ValidationError{Code: CodeInvalidEmail, Message: "Please provide a valid email address."}
)

// MailTransport delivers rendered messages over an authenticated channel
type MailTransport interface {
	// Verify confirms the channel is reachable and the credentials are accepted
	Verify(ctx context.Context) error
	// Send delivers a single message over its own session
	Send(ctx context.Context, msg *OutboundMessage) error
}

// MessageComposer renders the two copies for an inquiry
type MessageComposer interface {
	Notification(req *InquiryRequest, receivedAt time.Time) (*OutboundMessage, error)
	Acknowledgment(req *InquiryRequest) (*OutboundMessage, error)
}

// InquiryUsecase defines the contact form pipeline
type InquiryUsecase interface {
	// SubmitInquiry validates the request and dispatches both emails
	SubmitInquiry(ctx context.Context, req *InquiryRequest) (*InquiryResult, error)
}
