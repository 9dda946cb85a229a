package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	bridgedomain "github.com/smallbiznis/groupledger/internal/bridge/domain"
)

type memberEventRequest struct {
	EventID         string          `json:"event_id"`
	MemberID        string          `json:"member_id"`
	ProductID       string          `json:"product_id"`
	Type            string          `json:"type"`
	Status          string          `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate string          `json:"transaction_date"`
	Description     string          `json:"description"`
}

// PostMemberEvent mirrors a member savings or loan transaction into the
// ledger. Replays of the same event id return the existing entry.
func (s *Server) PostMemberEvent(c *gin.Context) {
	var req memberEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	memberID, err := parseSnowflake("member_id", req.MemberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	txDate, err := parseDate("transaction_date", req.TransactionDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entry, err := s.bridgeSvc.PostEvent(c.Request.Context(), bridgedomain.MemberEvent{
		TenantID:        tenantID(c),
		EventID:         req.EventID,
		MemberID:        memberID,
		ProductID:       req.ProductID,
		Type:            bridgedomain.MemberEventType(req.Type),
		Status:          req.Status,
		Amount:          req.Amount,
		TransactionDate: txDate,
		Description:     req.Description,
		CreatedBy:       actorID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}
