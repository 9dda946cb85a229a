package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	cycledomain "github.com/smallbiznis/groupledger/internal/cycle/domain"
)

type openCycleRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Notes     string `json:"notes"`
}

type cycleResponse struct {
	*cycledomain.Cycle
	Phase cycledomain.Phase `json:"phase"`
}

func (s *Server) OpenCycle(c *gin.Context) {
	var req openCycleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	end, err := parseDate("end_date", req.EndDate)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	cycle, err := s.cycleSvc.Open(c.Request.Context(), cycledomain.OpenCycleRequest{
		TenantID:  tenantID(c),
		Name:      req.Name,
		StartDate: start,
		EndDate:   end,
		Notes:     req.Notes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": cycle})
}

func (s *Server) ListCycles(c *gin.Context) {
	cycles, err := s.cycleSvc.ListCycles(c.Request.Context(), tenantID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cycles})
}

func (s *Server) GetCycle(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	ctx := c.Request.Context()
	cycle, err := s.cycleSvc.GetCycle(ctx, tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	phase, err := s.cycleSvc.GetPhase(ctx, tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cycleResponse{Cycle: cycle, Phase: phase}})
}

type closeWindowRequest struct {
	At string `json:"at"`
}

func (s *Server) CloseCycleWindow(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req closeWindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	at, err := parseDate("at", req.At)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	cycle, err := s.cycleSvc.CloseWindow(c.Request.Context(), tenantID(c), id, at)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cycle})
}

func (s *Server) CalculateCycleTotals(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	cycle, err := s.cycleSvc.CalculateTotals(c.Request.Context(), tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cycle})
}

func (s *Server) ValidateCycleIntegrity(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	problems, err := s.cycleSvc.ValidateFinancialIntegrity(c.Request.Context(), tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if problems == nil {
		problems = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"valid": len(problems) == 0, "problems": problems}})
}

func (s *Server) ArchiveCycle(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	cycle, err := s.cycleSvc.Archive(c.Request.Context(), tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cycle})
}

type recordContributionRequest struct {
	MemberID        string          `json:"member_id"`
	Type            string          `json:"type"`
	Amount          decimal.Decimal `json:"amount"`
	TransactionDate string          `json:"transaction_date"`
	Status          string          `json:"status"`
}

func (s *Server) RecordContribution(c *gin.Context) {
	cycleID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	var req recordContributionRequest
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

	contribution, err := s.cycleSvc.RecordContribution(c.Request.Context(), cycledomain.RecordContributionRequest{
		TenantID:        tenantID(c),
		CycleID:         cycleID,
		MemberID:        memberID,
		Type:            cycledomain.ContributionType(req.Type),
		Amount:          req.Amount,
		TransactionDate: txDate,
		Status:          cycledomain.ContributionStatus(req.Status),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": contribution})
}

func (s *Server) ApproveContribution(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	contribution, err := s.cycleSvc.ApproveContribution(c.Request.Context(), tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": contribution})
}
