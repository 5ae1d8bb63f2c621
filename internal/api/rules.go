package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Veraticus/autobank/internal/common"
	"github.com/Veraticus/autobank/internal/model"
)

func (s *Server) handleListRules(c *gin.Context) {
	rules, err := s.storage.ListRules(c.Request.Context())
	if err != nil {
		s.serverError(c, err)
		return
	}
	if rules == nil {
		rules = []model.Rule{}
	}
	c.JSON(http.StatusOK, gin.H{"rules": rules})
}

func (s *Server) handleGetRule(c *gin.Context) {
	rule, err := s.storage.GetRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storageError(c, err)
		return
	}
	c.JSON(http.StatusOK, rule)
}

func (s *Server) handleCreateRule(c *gin.Context) {
	var rule model.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule: " + err.Error()})
		return
	}

	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().Unix()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := s.storage.CreateRule(c.Request.Context(), &rule); err != nil {
		s.storageError(c, err)
		return
	}

	s.audit(c, model.AuditRuleCreated, "rule", rule.ID, gin.H{"name": rule.Name})
	c.JSON(http.StatusCreated, rule)
}

func (s *Server) handleUpdateRule(c *gin.Context) {
	var rule model.Rule
	if err := c.ShouldBindJSON(&rule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid rule: " + err.Error()})
		return
	}

	rule.ID = c.Param("id")
	rule.UpdatedAt = time.Now().Unix()

	if err := s.storage.UpdateRule(c.Request.Context(), &rule); err != nil {
		s.storageError(c, err)
		return
	}

	s.audit(c, model.AuditRuleUpdated, "rule", rule.ID, gin.H{"name": rule.Name})
	c.JSON(http.StatusOK, rule)
}

func (s *Server) handleDeleteRule(c *gin.Context) {
	id := c.Param("id")
	if err := s.storage.DeleteRule(c.Request.Context(), id); err != nil {
		s.storageError(c, err)
		return
	}

	s.audit(c, model.AuditRuleDeleted, "rule", id, nil)
	c.Status(http.StatusNoContent)
}

func (s *Server) handleEnableRule(c *gin.Context) {
	s.setRuleEnabled(c, true, model.AuditRuleEnabled)
}

func (s *Server) handleDisableRule(c *gin.Context) {
	s.setRuleEnabled(c, false, model.AuditRuleDisabled)
}

func (s *Server) setRuleEnabled(c *gin.Context, enabled bool, eventType string) {
	id := c.Param("id")
	if err := s.storage.SetRuleEnabled(c.Request.Context(), id, enabled); err != nil {
		s.storageError(c, err)
		return
	}

	s.audit(c, eventType, "rule", id, nil)
	c.JSON(http.StatusOK, gin.H{"id": id, "enabled": enabled})
}

func (s *Server) handleRuleExecutions(c *gin.Context) {
	executions, err := s.storage.GetRuleExecutions(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.storageError(c, err)
		return
	}
	if executions == nil {
		executions = []model.RuleExecution{}
	}
	c.JSON(http.StatusOK, gin.H{"executions": executions})
}

// storageError maps storage errors onto HTTP statuses.
func (s *Server) storageError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, common.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, common.ErrDuplicateEntry):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.serverError(c, err)
	}
}

func (s *Server) serverError(c *gin.Context, err error) {
	s.logger.Error("request failed",
		"method", c.Request.Method, "path", c.Request.URL.Path, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// audit records an audit entry for a mutating request. Audit failures are
// logged but never fail the request.
func (s *Server) audit(c *gin.Context, eventType, resourceType, resourceID string, details any) {
	entry := model.NewAuditEntry(eventType, "api", details).
		WithResource(resourceType, resourceID).
		WithRequest(c.ClientIP(), c.Request.UserAgent())
	if err := s.storage.LogAudit(c.Request.Context(), entry); err != nil {
		s.logger.Error("failed to write audit entry", "event_type", eventType, "error", err)
	}
}
