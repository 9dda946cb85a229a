package server

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	shareoutdomain "github.com/smallbiznis/groupledger/internal/shareout/domain"
)

func (s *Server) SettleCycle(c *gin.Context) {
	s.settle(c, s.shareoutSvc.SettleCycle)
}

// ResumeSettlement finishes a settlement whose allocation step failed.
func (s *Server) ResumeSettlement(c *gin.Context) {
	s.settle(c, s.shareoutSvc.ResumeSettlement)
}

func (s *Server) settle(c *gin.Context, fn func(context.Context, snowflake.ID, snowflake.ID) (*shareoutdomain.SettlementResult, error)) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	result, err := fn(c.Request.Context(), tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": result})
}

func (s *Server) ListAllocations(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	allocations, err := s.shareoutSvc.ListAllocations(c.Request.Context(), tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": allocations})
}

// CalculateMemberAllocation previews a member's allocation without storing it.
func (s *Server) CalculateMemberAllocation(c *gin.Context) {
	cycleID, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	memberID, err := pathID(c, "member_id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	allocation, err := s.shareoutSvc.CalculateForMember(c.Request.Context(), tenantID(c), cycleID, memberID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": allocation})
}

func (s *Server) ApproveAllocation(c *gin.Context) {
	s.transitionAllocation(c, s.shareoutSvc.ApproveAllocation)
}

func (s *Server) MarkAllocationPaid(c *gin.Context) {
	s.transitionAllocation(c, s.shareoutSvc.MarkPaid)
}

func (s *Server) CancelAllocation(c *gin.Context) {
	s.transitionAllocation(c, s.shareoutSvc.CancelAllocation)
}

func (s *Server) transitionAllocation(c *gin.Context, fn func(context.Context, snowflake.ID, snowflake.ID) (*shareoutdomain.Allocation, error)) {
	id, err := pathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	allocation, err := fn(c.Request.Context(), tenantID(c), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": allocation})
}
