package server

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	ledgerdomain "github.com/smallbiznis/groupledger/internal/ledger/domain"
)

type createAccountRequest struct {
	Code                 string           `json:"code"`
	Name                 string           `json:"name"`
	Currency             string           `json:"currency"`
	OpeningDate          string           `json:"opening_date"`
	OpeningBalance       decimal.Decimal  `json:"opening_balance"`
	MinimumBalance       *decimal.Decimal `json:"minimum_balance"`
	MaximumBalance       *decimal.Decimal `json:"maximum_balance"`
	AllowNegativeBalance bool             `json:"allow_negative_balance"`
}

func (s *Server) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	openingDate, err := parseDate("opening_date", req.OpeningDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	account, err := s.ledgerSvc.CreateAccount(c.Request.Context(), ledgerdomain.CreateAccountRequest{
		TenantID:             tenantID(c),
		Code:                 req.Code,
		Name:                 req.Name,
		Currency:             req.Currency,
		OpeningDate:          openingDate,
		OpeningBalance:       req.OpeningBalance,
		MinimumBalance:       req.MinimumBalance,
		MaximumBalance:       req.MaximumBalance,
		AllowNegativeBalance: req.AllowNegativeBalance,
		CreatedBy:            actorID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": account})
}

func (s *Server) ListAccounts(c *gin.Context) {
	accounts, err := s.ledgerSvc.ListAccounts(c.Request.Context(), tenantID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": accounts})
}

func (s *Server) GetAccount(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	account, err := s.ledgerSvc.GetAccount(c.Request.Context(), tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) ListEntries(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	entries, err := s.ledgerSvc.ListEntries(c.Request.Context(), tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entries})
}

func (s *Server) RecalculateBalance(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	result, err := s.ledgerSvc.RecalculateBalance(c.Request.Context(), tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ReconcileTenant(c *gin.Context) {
	summary, err := s.ledgerSvc.ReconcileTenant(c.Request.Context(), tenantID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summary})
}

type createEntryRequest struct {
	AccountID       string          `json:"account_id"`
	Amount          decimal.Decimal `json:"amount"`
	Direction       string          `json:"direction"`
	Type            string          `json:"type"`
	TransactionDate string          `json:"transaction_date"`
	Description     string          `json:"description"`
	Status          string          `json:"status"`
}

func (s *Server) CreateEntry(c *gin.Context) {
	var req createEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	accountID, err := parseSnowflake("account_id", req.AccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	txDate, err := parseDate("transaction_date", req.TransactionDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entry, err := s.ledgerSvc.CreateEntry(c.Request.Context(), ledgerdomain.CreateEntryRequest{
		TenantID:        tenantID(c),
		AccountID:       accountID,
		Amount:          req.Amount,
		Direction:       ledgerdomain.Direction(req.Direction),
		Type:            ledgerdomain.EntryType(req.Type),
		TransactionDate: txDate,
		Description:     req.Description,
		CreatedBy:       actorID(c),
		Status:          ledgerdomain.EntryStatus(req.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": entry})
}

func (s *Server) ApproveEntry(c *gin.Context) {
	s.transitionEntry(c, s.ledgerSvc.Approve)
}

func (s *Server) RejectEntry(c *gin.Context) {
	s.transitionEntry(c, s.ledgerSvc.Reject)
}

func (s *Server) CancelEntry(c *gin.Context) {
	s.transitionEntry(c, s.ledgerSvc.Cancel)
}

type entryTransition func(ctx context.Context, tenantID, entryID snowflake.ID) (*ledgerdomain.LedgerEntry, error)

func (s *Server) transitionEntry(c *gin.Context, fn entryTransition) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	entry, err := fn(c.Request.Context(), tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": entry})
}
