package validation

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Regex patterns
var (
	// local "@" domain-with-dot, no whitespace; deliverability is not checked
	inquiryEmailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// New returns a validator with the custom inquiry rules registered
func New() *validator.Validate {
	v := validator.New()
	RegisterValidators(v)
	return v
}

// RegisterValidators registers custom validators to the validator instance
func RegisterValidators(v *validator.Validate) {
	_ = v.RegisterValidation("inquiry_email", InquiryEmail)
}

// InquiryEmail checks the basic local@domain.tld shape.
// Empty values pass; combine with required.
func InquiryEmail(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	return IsInquiryEmail(val)
}

// IsInquiryEmail is InquiryEmail for callers without a validator
func IsInquiryEmail(s string) bool {
	return inquiryEmailRegex.MatchString(s)
}
