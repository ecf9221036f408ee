package v1

import (
	"errors"
	"net/http"

	"truelens-inquiry-api/internal/delivery/http/response"
	"truelens-inquiry-api/internal/domain"
	"truelens-inquiry-api/pkg/apperror"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidBody = "Invalid request body."
	msgSendFailed  = "There was an error sending your message. Please try again or contact us directly."
)

type InquiryHandler struct {
	inquiryUC domain.InquiryUsecase
}

// NewInquiryHandler registers the contact routes (public, no auth required)
func NewInquiryHandler(public *gin.RouterGroup, inquiryUC domain.InquiryUsecase, middlewares ...gin.HandlerFunc) {
	handler := &InquiryHandler{
		inquiryUC: inquiryUC,
	}

	public.POST("/contact", append(middlewares, handler.SubmitInquiry)...)
}

// SubmitInquiry godoc
// @Summary      Submit Contact Form
// @Description  Sends the inquiry to the business inbox and an acknowledgment to the visitor. Both must succeed.
// @Tags         contact
// @Accept       json
// @Produce      json
// @Param        inquiry  body      domain.InquiryRequest  true  "Contact Form Data"
// @Success      200      {object}  response.Response
// @Failure      400      {object}  response.ErrorResponse
// @Failure      429      {object}  response.ErrorResponse
// @Failure      500      {object}  response.ErrorResponse
// @Router       /contact [post]
func (h *InquiryHandler) SubmitInquiry(c *gin.Context) {
	var req domain.InquiryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperror.New(http.StatusBadRequest, msgInvalidBody, err))
		return
	}

	result, err := h.inquiryUC.SubmitInquiry(c.Request.Context(), &req)
	if err != nil {
		c.Error(mapInquiryError(err))
		return
	}

	response.Success(c, http.StatusOK, result.Message, nil)
}

func mapInquiryError(err error) *apperror.AppError {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		return apperror.BadRequest(vErr.Message)
	}

	appErr := apperror.New(http.StatusInternalServerError, msgSendFailed, err)

	var tErr *domain.TransportError
	if errors.As(err, &tErr) {
		details := gin.H{"op": tErr.Op, "error": tErr.Err.Error()}
		if tErr.Report != nil {
			details["outcomes"] = tErr.Report.Outcomes
		}
		appErr.WithDetails(details)
	}
	return appErr
}
