package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type linkAccountRequest struct {
	Purpose   string `json:"purpose"`
	AccountID string `json:"account_id"`
}

func (s *Server) LinkAccount(c *gin.Context) {
	var req linkAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	accountID, err := parseSnowflake("account_id", req.AccountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	link, err := s.linkSvc.Link(c.Request.Context(), tenantID(c), req.Purpose, accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": link})
}

func (s *Server) ListAccountLinks(c *gin.Context) {
	links, err := s.linkSvc.List(c.Request.Context(), tenantID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": links})
}
