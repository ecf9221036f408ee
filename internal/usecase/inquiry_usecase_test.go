package usecase_test

import (
	"context"
	"errors"
	"html"
	"net"
	"strings"
	"testing"
	"time"

	"truelens-inquiry-api/config"
	"truelens-inquiry-api/internal/domain"
	"truelens-inquiry-api/internal/usecase"
	"truelens-inquiry-api/pkg/email"
	"truelens-inquiry-api/pkg/email/mailsink"
	"truelens-inquiry-api/pkg/security"
	"truelens-inquiry-api/pkg/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// MockTransport records every verification and send
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Verify(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockTransport) Send(ctx context.Context, msg *domain.OutboundMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *MockTransport) sent() []*domain.OutboundMessage {
	var out []*domain.OutboundMessage
	for _, c := range m.Calls {
		if c.Method == "Send" {
			out = append(out, c.Arguments.Get(1).(*domain.OutboundMessage))
		}
	}
	return out
}

func (m *MockTransport) sentKind(kind domain.MessageKind) *domain.OutboundMessage {
	for _, msg := range m.sent() {
		if msg.Kind == kind {
			return msg
		}
	}
	return nil
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		SMTPUsername:   "sales@truelens.test",
		ContactEmailTo: "inbox@truelens.test",
		BrandName:      "TrueLens International",
		FormSenderName: "TrueLens Contact Form",
		SupportEmail:   "orders@truelens.test",
	}
}

func newUsecase(t *testing.T, transport domain.MailTransport, timeout time.Duration) domain.InquiryUsecase {
	t.Helper()
	composer, err := email.NewComposer(testConfig())
	require.NoError(t, err)
	return usecase.NewInquiryUsecase(transport, composer, validation.New(), timeout,
		usecase.WithClock(func() time.Time { return fixedNow }))
}

func validRequest() *domain.InquiryRequest {
	return &domain.InquiryRequest{Name: "Jane Doe", Email: "jane@example.com", Message: "Hello"}
}

func TestSubmitInquiryValidation(t *testing.T) {
	tests := []struct {
		name string
		req  domain.InquiryRequest
		want *domain.ValidationError
	}{
		{"missing name", domain.InquiryRequest{Email: "jane@example.com", Message: "Hello"}, domain.ErrMissingFields},
		{"missing email", domain.InquiryRequest{Name: "Jane", Message: "Hello"}, domain.ErrMissingFields},
		{"missing message", domain.InquiryRequest{Name: "Jane", Email: "jane@example.com"}, domain.ErrMissingFields},
		{"all missing", domain.InquiryRequest{}, domain.ErrMissingFields},
		{"whitespace name", domain.InquiryRequest{Name: "   ", Email: "jane@example.com", Message: "Hello"}, domain.ErrMissingFields},
		{"missing field wins over bad email", domain.InquiryRequest{Email: "nope", Message: "Hello"}, domain.ErrMissingFields},
		{"not an email", domain.InquiryRequest{Name: "Jane", Email: "not-an-email", Message: "Hello"}, domain.ErrInvalidEmail},
		{"no dot in domain", domain.InquiryRequest{Name: "Jane", Email: "a@b", Message: "Hello"}, domain.ErrInvalidEmail},
		{"no local part", domain.InquiryRequest{Name: "Jane", Email: "@x.com", Message: "Hello"}, domain.ErrInvalidEmail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := new(MockTransport)
			uc := newUsecase(t, transport, time.Second)

			req := tt.req
			res, err := uc.SubmitInquiry(context.Background(), &req)
			assert.Nil(t, res)

			var vErr *domain.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.want.Code, vErr.Code)
			assert.Equal(t, tt.want.Message, vErr.Message)

			transport.AssertNotCalled(t, "Verify", mock.Anything)
			transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestSubmitInquiryInvalidPayloadNeverSends(t *testing.T) {
	transport := new(MockTransport)
	uc := newUsecase(t, transport, time.Second)

	for i := 0; i < 5; i++ {
		_, err := uc.SubmitInquiry(context.Background(), &domain.InquiryRequest{Name: "Jane", Email: "a@b", Message: "x"})
		require.Error(t, err)
		_, err = uc.SubmitInquiry(context.Background(), nil)
		require.Error(t, err)
	}

	assert.Empty(t, transport.sent())
	assert.Empty(t, transport.Calls)
}

func TestSubmitInquirySuccess(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Verify", mock.Anything).Return(nil).Once()
	transport.On("Send", mock.Anything, mock.Anything).Return(nil).Twice()
	uc := newUsecase(t, transport, time.Second)

	res, err := uc.SubmitInquiry(context.Background(), validRequest())
	require.NoError(t, err)
	transport.AssertExpectations(t)

	assert.Equal(t, usecase.InquirySuccessMessage, res.Message)
	assert.Equal(t, fixedNow, res.SubmittedAt)
	require.Len(t, res.Report.Outcomes, 2)
	assert.Empty(t, res.Report.Failed())

	notification := transport.sentKind(domain.KindNotification)
	require.NotNil(t, notification)
	assert.Equal(t, "New Contact Form Submission: General Inquiry", notification.Subject)
	assert.Equal(t, "inbox@truelens.test", notification.ToAddress)
	assert.Equal(t, "sales@truelens.test", notification.FromAddress)
	assert.Equal(t, "TrueLens Contact Form", notification.FromName)
	assert.Equal(t, "jane@example.com", notification.ReplyTo)
	assert.Contains(t, notification.HTMLBody, "March 14, 2026 at 9:30 AM UTC")

	ack := transport.sentKind(domain.KindAcknowledgment)
	require.NotNil(t, ack)
	assert.Equal(t, "jane@example.com", ack.ToAddress)
	assert.Equal(t, "Thank you for contacting TrueLens International", ack.Subject)
	assert.Contains(t, ack.HTMLBody, "Dear Jane Doe,")
	assert.Contains(t, ack.HTMLBody, "General Inquiry")
}

func TestSubmitInquiryPhoneLine(t *testing.T) {
	run := func(t *testing.T, phone string) *MockTransport {
		transport := new(MockTransport)
		transport.On("Verify", mock.Anything).Return(nil)
		transport.On("Send", mock.Anything, mock.Anything).Return(nil)
		uc := newUsecase(t, transport, time.Second)

		req := validRequest()
		req.Phone = phone
		_, err := uc.SubmitInquiry(context.Background(), req)
		require.NoError(t, err)
		return transport
	}

	t.Run("present when supplied", func(t *testing.T) {
		transport := run(t, "+1-555-0100")
		// html/template encodes "+" as &#43;
		notification := transport.sentKind(domain.KindNotification)
		assert.Contains(t, notification.HTMLBody, "Phone:")
		assert.Contains(t, notification.HTMLBody, "&#43;1-555-0100")
		assert.Contains(t, html.UnescapeString(notification.HTMLBody), `href="tel:+1-555-0100"`)
		assert.Contains(t, notification.TextBody, "+1-555-0100")

		acknowledgment := transport.sentKind(domain.KindAcknowledgment)
		assert.Contains(t, html.UnescapeString(acknowledgment.HTMLBody), "+1-555-0100")
		assert.Contains(t, acknowledgment.TextBody, "+1-555-0100")
	})

	t.Run("absent when omitted", func(t *testing.T) {
		transport := run(t, "")
		assert.NotContains(t, transport.sentKind(domain.KindNotification).HTMLBody, "Phone:")
		assert.NotContains(t, transport.sentKind(domain.KindAcknowledgment).HTMLBody, "Phone:")
	})
}

func TestSubmitInquiryEscapesUserInput(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Verify", mock.Anything).Return(nil)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil)
	uc := newUsecase(t, transport, time.Second)

	req := &domain.InquiryRequest{
		Name:    `<script>alert("x")</script>`,
		Email:   "jane@example.com",
		Subject: "<b>Bulk</b>",
		Message: "line one\nline <i>two</i>",
	}
	_, err := uc.SubmitInquiry(context.Background(), req)
	require.NoError(t, err)

	body := transport.sentKind(domain.KindNotification).HTMLBody
	assert.NotContains(t, body, "<script>")
	assert.Contains(t, body, "&lt;script&gt;")
	assert.NotContains(t, body, "<i>two</i>")
	assert.Contains(t, body, "line one<br>line &lt;i&gt;two&lt;/i&gt;")

	// Subject header is plain text, not HTML
	assert.Equal(t, "New Contact Form Submission: <b>Bulk</b>", transport.sentKind(domain.KindNotification).Subject)
	assert.NotContains(t, transport.sentKind(domain.KindAcknowledgment).HTMLBody, "<b>Bulk</b>")
}

func TestSubmitInquiryVerifyFailure(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Verify", mock.Anything).Return(errors.New("535 authentication failed"))
	uc := newUsecase(t, transport, time.Second)

	res, err := uc.SubmitInquiry(context.Background(), validRequest())
	assert.Nil(t, res)

	var tErr *domain.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "verify", tErr.Op)
	assert.Contains(t, tErr.Error(), "authentication failed")
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSubmitInquiryPartialSendFailure(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Verify", mock.Anything).Return(nil)
	transport.On("Send", mock.Anything, mock.MatchedBy(func(m *domain.OutboundMessage) bool {
		return m.Kind == domain.KindNotification
	})).Return(nil)
	transport.On("Send", mock.Anything, mock.MatchedBy(func(m *domain.OutboundMessage) bool {
		return m.Kind == domain.KindAcknowledgment
	})).Return(errors.New("550 mailbox unavailable"))
	uc := newUsecase(t, transport, time.Second)

	_, err := uc.SubmitInquiry(context.Background(), validRequest())

	var tErr *domain.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "send", tErr.Op)
	transport.AssertNumberOfCalls(t, "Send", 2)

	require.NotNil(t, tErr.Report)
	failed := tErr.Report.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, domain.KindAcknowledgment, failed[0].Kind)
	assert.Equal(t, "jane@example.com", failed[0].Recipient)
	assert.Contains(t, failed[0].Error, "mailbox unavailable")
}

func TestSubmitInquirySendTimeout(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Verify", mock.Anything).Return(nil)
	transport.On("Send", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(context.DeadlineExceeded)
	uc := newUsecase(t, transport, 50*time.Millisecond)

	start := time.Now()
	_, err := uc.SubmitInquiry(context.Background(), validRequest())
	assert.Less(t, time.Since(start), 2*time.Second)

	var tErr *domain.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "send", tErr.Op)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Len(t, tErr.Report.Failed(), 2)
}

func TestSubmitInquiryVerifyTimeout(t *testing.T) {
	transport := new(MockTransport)
	transport.On("Verify", mock.Anything).Run(func(args mock.Arguments) {
		<-args.Get(0).(context.Context).Done()
	}).Return(context.DeadlineExceeded)
	uc := newUsecase(t, transport, 50*time.Millisecond)

	_, err := uc.SubmitInquiry(context.Background(), validRequest())

	var tErr *domain.TransportError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, "verify", tErr.Op)
	assert.True(t, strings.Contains(err.Error(), "deadline exceeded"))
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestSubmitInquiryThroughSMTP(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	sink := mailsink.New(mailsink.NewStore(), mailsink.Options{Username: "sales@truelens.test", Password: "secret"})
	go func() { _ = sink.Serve(l) }()
	t.Cleanup(func() { _ = sink.Close() })

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)

	cfg := testConfig()
	cfg.SMTPHost = host
	cfg.SMTPPort = port
	cfg.SMTPTLSMode = config.TLSModeStartTLS
	cfg.SMTPPassword = "secret"

	uc := newUsecase(t, email.NewSMTPTransport(cfg), 5*time.Second)

	res, err := uc.SubmitInquiry(context.Background(), &domain.InquiryRequest{
		Name:    "Jane Doe",
		Email:   "jane@example.com",
		Subject: "Bulk order",
		Message: "Hello",
	})
	require.NoError(t, err)
	assert.Equal(t, usecase.InquirySuccessMessage, res.Message)

	// verify plus one session per copy
	assert.Equal(t, 3, sink.Sessions())
	require.Len(t, sink.Store().To("inbox@truelens.test"), 1)
	require.Len(t, sink.Store().To("jane@example.com"), 1)
	assert.Equal(t, "New Contact Form Submission: Bulk order", sink.Store().To("inbox@truelens.test")[0].Subject)
	assert.Equal(t, "Thank you for contacting TrueLens International", sink.Store().To("jane@example.com")[0].Subject)
}

func TestSubmitInquiryAuditTrail(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	audit := security.NewSecurityLogger(zap.New(core), "truelens-inquiry-api", "test")

	transport := new(MockTransport)
	transport.On("Verify", mock.Anything).Return(nil)
	transport.On("Send", mock.Anything, mock.Anything).Return(nil)

	composer, err := email.NewComposer(testConfig())
	require.NoError(t, err)
	uc := usecase.NewInquiryUsecase(transport, composer, validation.New(), time.Second, usecase.WithAuditLogger(audit))

	ctx := context.WithValue(context.Background(), domain.KeyRequestID, "req-42")

	_, err = uc.SubmitInquiry(ctx, &domain.InquiryRequest{Name: "Jane", Email: "bad", Message: "Hi"})
	require.Error(t, err)
	_, err = uc.SubmitInquiry(ctx, validRequest())
	require.NoError(t, err)

	rejected := logs.FilterMessage(string(security.EventInquiryRejected)).All()
	require.Len(t, rejected, 1)
	fields := rejected[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Contains(t, fields["details"], `"reason":"invalid_email"`)
	assert.Contains(t, fields["details"], `"fields":["email"]`)

	assert.Equal(t, 1, logs.FilterMessage(string(security.EventInquiryReceived)).Len())
	delivered := logs.FilterMessage(string(security.EventInquiryDelivered)).All()
	require.Len(t, delivered, 1)
	assert.Equal(t, "j***@example.com", delivered[0].ContextMap()["subject_value"])
}
