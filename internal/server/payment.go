package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	paymentdomain "github.com/creditera/cobranza/internal/payment/domain"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type processPaymentRequest struct {
	Amount       decimal.Decimal `json:"amount"`
	Method       string          `json:"method"`
	WeekHint     int             `json:"week_hint"`
	ApplyExtraTo string          `json:"apply_extra_to"`
	ReceivedBy   string          `json:"received_by"`
}

func (s *Server) ProcessPayment(c *gin.Context) {
	loanID, err := parseIDParam(c, "loanId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req processPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	disposition := paymentdomain.SurplusReport
	switch strings.TrimSpace(req.ApplyExtraTo) {
	case "", string(paymentdomain.SurplusReport):
	case string(paymentdomain.SurplusToCapital):
		disposition = paymentdomain.SurplusToCapital
	default:
		AbortWithError(c, newValidationError("apply_extra_to", "invalid_value", "expected report or capital"))
		return
	}

	result, err := s.paymentSvc.ProcessPayment(c.Request.Context(), paymentdomain.ProcessPaymentInput{
		LoanID:       loanID,
		Amount:       req.Amount,
		Method:       loandomain.PaymentMethod(strings.TrimSpace(req.Method)),
		WeekHint:     req.WeekHint,
		ApplyExtraTo: disposition,
		ReceivedBy:   strings.TrimSpace(req.ReceivedBy),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}

type assessPenaltiesRequest struct {
	LoanID string `json:"loan_id"`
}

// AssessPenalties runs the daily accrual. Without a loan_id it sweeps
// every loan with overdue installments.
func (s *Server) AssessPenalties(c *gin.Context) {
	var req assessPenaltiesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	var loanID snowflake.ID
	if raw := strings.TrimSpace(req.LoanID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
		loanID = parsed
	}

	result, err := s.paymentSvc.AssessPenalties(c.Request.Context(), loanID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
