package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"truelens-inquiry-api/internal/domain"
	"truelens-inquiry-api/pkg/security"
	"truelens-inquiry-api/pkg/validation"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
)

// InquirySuccessMessage is shown to the visitor verbatim after both emails go out
const InquirySuccessMessage = "Thank you for your message! We have received your inquiry and will get back to you soon."

type inquiryUsecase struct {
	transport domain.MailTransport
	composer  domain.MessageComposer
	validate  *validator.Validate
	audit     *security.SecurityLogger
	timeout   time.Duration
	now       func() time.Time
}

// InquiryOption customises the inquiry usecase
type InquiryOption func(*inquiryUsecase)

// WithClock overrides the clock used for the notification timestamp
func WithClock(now func() time.Time) InquiryOption {
	return func(uc *inquiryUsecase) { uc.now = now }
}

// WithAuditLogger sets the logger that records inquiry events
func WithAuditLogger(l *security.SecurityLogger) InquiryOption {
	return func(uc *inquiryUsecase) { uc.audit = l }
}

// NewInquiryUsecase creates the contact form pipeline.
// timeout bounds transport verification and, separately, the wait for both sends.
func NewInquiryUsecase(transport domain.MailTransport, composer domain.MessageComposer, validate *validator.Validate, timeout time.Duration, opts ...InquiryOption) domain.InquiryUsecase {
	uc := &inquiryUsecase{
		transport: transport,
		composer:  composer,
		validate:  validate,
		timeout:   timeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	if uc.audit == nil {
		uc.audit = security.DefaultLogger()
	}
	return uc
}

// SubmitInquiry validates the request, verifies the transport and sends both copies
func (uc *inquiryUsecase) SubmitInquiry(ctx context.Context, req *domain.InquiryRequest) (*domain.InquiryResult, error) {
	if req == nil {
		return nil, domain.ErrMissingFields
	}
	in := normalize(req)

	if err := uc.validate.Struct(in); err != nil {
		vErr := classify(err)
		uc.logEvent(ctx, security.EventInquiryRejected, in.Email, map[string]interface{}{
			"reason":   rejectionCode(vErr),
			"fields":   validation.FailedFields(err),
			"problems": validation.FormatValidationErrors(err),
		})
		return nil, vErr
	}

	receivedAt := uc.now()
	uc.logEvent(ctx, security.EventInquiryReceived, in.Email, map[string]interface{}{
		"subject":   in.Subject,
		"has_phone": in.Phone != "",
	})

	if err := uc.verify(ctx); err != nil {
		uc.logEvent(ctx, security.EventDeliveryFailed, in.Email, map[string]interface{}{
			"op":    "verify",
			"error": err.Error(),
		})
		return nil, &domain.TransportError{Op: "verify", Err: err}
	}

	notification, err := uc.composer.Notification(in, receivedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to build notification email: %w", err)
	}
	acknowledgment, err := uc.composer.Acknowledgment(in)
	if err != nil {
		return nil, fmt.Errorf("failed to build acknowledgment email: %w", err)
	}

	report, err := uc.dispatch(ctx, notification, acknowledgment)
	if err != nil {
		uc.logEvent(ctx, security.EventDeliveryFailed, in.Email, map[string]interface{}{
			"op":       "send",
			"error":    err.Error(),
			"outcomes": report.Outcomes,
		})
		return nil, &domain.TransportError{Op: "send", Err: err, Report: report}
	}

	uc.logEvent(ctx, security.EventInquiryDelivered, in.Email, map[string]interface{}{
		"outcomes": report.Outcomes,
	})

	return &domain.InquiryResult{
		Message:     InquirySuccessMessage,
		SubmittedAt: receivedAt,
		Report:      *report,
	}, nil
}

// classify maps validator failures onto the two user-facing rejections.
// Missing fields win over a malformed email.
func classify(err error) error {
	switch {
	case validation.HasTag(err, "required"):
		return domain.ErrMissingFields
	case validation.HasTag(err, "inquiry_email"):
		return domain.ErrInvalidEmail
	default:
		return fmt.Errorf("failed to validate inquiry: %w", err)
	}
}

func (uc *inquiryUsecase) verify(ctx context.Context) error {
	verifyCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- uc.transport.Verify(verifyCtx) }()

	select {
	case err := <-done:
		return err
	case <-verifyCtx.Done():
		return fmt.Errorf("verification timed out: %w", verifyCtx.Err())
	}
}

// dispatch sends every message concurrently and waits for all of them.
// Both sends are always attempted; the first error is returned alongside the full report.
func (uc *inquiryUsecase) dispatch(ctx context.Context, msgs ...*domain.OutboundMessage) (*domain.DeliveryReport, error) {
	sendCtx, cancel := context.WithTimeout(ctx, uc.timeout)
	defer cancel()

	var mu sync.Mutex
	outcomes := make([]domain.DeliveryOutcome, len(msgs))
	for i, msg := range msgs {
		outcomes[i] = domain.DeliveryOutcome{Kind: msg.Kind, Recipient: msg.ToAddress, Error: "pending"}
	}

	var g errgroup.Group
	for i, msg := range msgs {
		g.Go(func() error {
			err := uc.transport.Send(sendCtx, msg)

			mu.Lock()
			outcomes[i].Sent = err == nil
			outcomes[i].Error = ""
			if err != nil {
				outcomes[i].Error = err.Error()
			}
			mu.Unlock()

			if err != nil {
				return fmt.Errorf("%s copy to %s: %w", msg.Kind, msg.ToAddress, err)
			}
			return nil
		})
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()

	var err error
	select {
	case err = <-done:
	case <-sendCtx.Done():
		select {
		case err = <-done:
		default:
			err = fmt.Errorf("waiting for delivery: %w", sendCtx.Err())
		}
	}

	mu.Lock()
	report := &domain.DeliveryReport{Outcomes: append([]domain.DeliveryOutcome(nil), outcomes...)}
	mu.Unlock()

	return report, err
}

func (uc *inquiryUsecase) logEvent(ctx context.Context, event security.EventType, email string, details map[string]interface{}) {
	uc.audit.LogInquiry(ctx, event, email,
		domain.StringFromContext(ctx, domain.KeyClientIP),
		domain.StringFromContext(ctx, domain.KeyUserAgent),
		domain.StringFromContext(ctx, domain.KeyRequestID),
		details,
	)
}

// normalize trims a copy of the request and fills the default subject
func normalize(req *domain.InquiryRequest) *domain.InquiryRequest {
	in := &domain.InquiryRequest{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Phone:   strings.TrimSpace(req.Phone),
		Subject: strings.TrimSpace(req.Subject),
		Message: strings.TrimSpace(req.Message),
	}
	if in.Subject == "" {
		in.Subject = domain.DefaultInquirySubject
	}
	return in
}

func rejectionCode(err error) string {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return vErr.Code
	}
	return "invalid"
}
