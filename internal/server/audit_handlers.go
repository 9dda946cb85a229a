package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/groupledger/internal/audit/domain"
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	filter := auditdomain.ListFilter{
		TenantID:   tenantID(c),
		EntityKind: auditdomain.EntityKind(strings.TrimSpace(c.Query("entity_kind"))),
		Action:     strings.TrimSpace(c.Query("action")),
		Limit:      queryLimit(c, 50, 100),
	}
	if raw := strings.TrimSpace(c.Query("entity_id")); raw != "" {
		id, err := parseSnowflake("entity_id", raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		filter.EntityID = id
	}
	for param, dst := range map[string]**time.Time{"start_at": &filter.StartAt, "end_at": &filter.EndAt} {
		at, err := parseDate(param, c.Query(param))
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if !at.IsZero() {
			value := at
			*dst = &value
		}
	}

	logs, err := s.auditSvc.List(c.Request.Context(), filter)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": logs})
}
