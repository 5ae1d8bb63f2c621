package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/autobank/internal/model"
	"github.com/Veraticus/autobank/internal/scheduler"
)

func (s *Server) handleListExecutions(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	executions, err := s.storage.ListExecutions(c.Request.Context(), limit)
	if err != nil {
		s.serverError(c, err)
		return
	}
	if executions == nil {
		executions = []model.RuleExecution{}
	}
	c.JSON(http.StatusOK, gin.H{"executions": executions})
}

func (s *Server) handleGetExecution(c *gin.Context) {
	execution, err := s.storage.GetExecution(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, execution)
}

func (s *Server) handleListAccounts(c *gin.Context) {
	data, err := s.bank.GetAccounts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to fetch accounts: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, data)
}

func (s *Server) handleQueryAudit(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	entries, err := s.storage.QueryAudit(c.Request.Context(), limit)
	if err != nil {
		s.serverError(c, err)
		return
	}
	if entries == nil {
		entries = []model.AuditEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (s *Server) handleGetAuditEntry(c *gin.Context) {
	entry, err := s.storage.GetAuditEntry(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"scheduler_enabled": s.scheduler.IsEnabled(),
		"poll_interval":     s.scheduler.Interval().String(),
	})
}

func (s *Server) handleTriggerPoll(c *gin.Context) {
	stats, err := s.scheduler.TriggerPoll(c.Request.Context())
	if err != nil {
		if errors.Is(err, scheduler.ErrPollInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.serverError(c, err)
		return
	}

	s.audit(c, model.AuditPollTriggered, "scheduler", "", gin.H{
		"accounts_polled":    stats.AccountsPolled,
		"transfers_executed": stats.TransfersExecuted,
	})
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleEnableScheduler(c *gin.Context) {
	s.scheduler.Enable()
	s.audit(c, model.AuditSchedulerEnabled, "scheduler", "", nil)
	c.JSON(http.StatusOK, gin.H{"scheduler_enabled": true})
}

func (s *Server) handleDisableScheduler(c *gin.Context) {
	s.scheduler.Disable()
	s.audit(c, model.AuditSchedulerDisabled, "scheduler", "", nil)
	c.JSON(http.StatusOK, gin.H{"scheduler_enabled": false})
}
