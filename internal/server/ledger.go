package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func (s *Server) TrialBalance(c *gin.Context) {
	balances, err := s.ledgerSvc.TrialBalance(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": balances})
}

func (s *Server) ListJournalLines(c *gin.Context) {
	entryID, err := parseIDParam(c, "entryId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	lines, err := s.ledgerSvc.Lines(c.Request.Context(), entryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": lines})
}

type reverseEntryRequest struct {
	Description string `json:"description"`
}

// ReverseJournalEntry posts the mirror image of an existing entry.
// Posted entries are immutable; corrections go through here.
func (s *Server) ReverseJournalEntry(c *gin.Context) {
	entryID, err := parseIDParam(c, "entryId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req reverseEntryRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	// Post writes the entry header and its lines as separate inserts;
	// they must land atomically.
	var reversalID snowflake.ID
	txErr := s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		id, err := s.ledgerSvc.Reverse(c.Request.Context(), tx, entryID, strings.TrimSpace(req.Description))
		if err != nil {
			return err
		}
		reversalID = id
		return nil
	})
	if txErr != nil {
		AbortWithError(c, txErr)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"reversal_entry_id": reversalID.String()}})
}
