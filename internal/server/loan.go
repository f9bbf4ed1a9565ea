package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	loandomain "github.com/creditera/cobranza/internal/loan/domain"
	"github.com/creditera/cobranza/pkg/db/pagination"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const dateOnlyLayout = "2006-01-02"

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param(name))
	if raw == "" {
		return 0, invalidRequestError()
	}
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, invalidRequestError()
	}
	return id, nil
}

type createLoanRequest struct {
	CustomerRef  string          `json:"customer_ref"`
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	TermWeeks    int             `json:"term_weeks"`
	FirstDueDate string          `json:"first_due_date"`
}

func (s *Server) CreateLoan(c *gin.Context) {
	var req createLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	firstDue, err := time.Parse(dateOnlyLayout, strings.TrimSpace(req.FirstDueDate))
	if err != nil {
		AbortWithError(c, newValidationError("first_due_date", "invalid_date", "expected YYYY-MM-DD"))
		return
	}

	loan, installments, err := s.loanSvc.CreateLoan(c.Request.Context(), loandomain.CreateLoanInput{
		CustomerRef:  strings.TrimSpace(req.CustomerRef),
		Principal:    req.Principal,
		InterestRate: req.InterestRate,
		TermWeeks:    req.TermWeeks,
		FirstDueDate: firstDue,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"loan":         loan,
		"installments": installments,
	}})
}

func (s *Server) ListLoans(c *gin.Context) {
	var query struct {
		pagination.Pagination
		Status      string `form:"status"`
		CustomerRef string `form:"customer_ref"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.loanSvc.ListLoans(c.Request.Context(), loandomain.ListLoanRequest{
		Status:      loandomain.LoanStatus(strings.TrimSpace(query.Status)),
		CustomerRef: query.CustomerRef,
		PageToken:   query.PageToken,
		PageSize:    query.PageSize,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetLoan(c *gin.Context) {
	id, err := parseIDParam(c, "loanId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	loan, err := s.loanSvc.GetLoan(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": loan})
}

func (s *Server) ListInstallments(c *gin.Context) {
	id, err := parseIDParam(c, "loanId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	installments, err := s.loanSvc.GetInstallments(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": installments})
}

func (s *Server) ListPayments(c *gin.Context) {
	id, err := parseIDParam(c, "loanId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	payments, err := s.loanSvc.GetPayments(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": payments})
}

func (s *Server) ApproveLoan(c *gin.Context) {
	id, err := parseIDParam(c, "loanId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.loanSvc.Approve(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": loandomain.LoanStatusApproved}})
}

type deliverLoanRequest struct {
	Cost decimal.Decimal `json:"cost"`
}

func (s *Server) DeliverLoan(c *gin.Context) {
	id, err := parseIDParam(c, "loanId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req deliverLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	if err := s.loanSvc.Deliver(c.Request.Context(), id, req.Cost); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": loandomain.LoanStatusDelivered}})
}

func (s *Server) WriteOffLoan(c *gin.Context) {
	id, err := parseIDParam(c, "loanId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.loanSvc.WriteOff(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"status": loandomain.LoanStatusWrittenOff}})
}
