package handlers

import (
	"net/http"

	"BloodLink/internal/models"
	"BloodLink/pkg/logger"
	"BloodLink/pkg/middleware"
	"BloodLink/pkg/response"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	sessionUsername = "username"
	sessionRole     = "role"
	sessionEntityID = "entity_id"
)

// loadSessionUser copies the logged-in account into the request context so
// the operation log can attribute writes.
func (h *Handlers) loadSessionUser(c *gin.Context) {
	s := sessions.Default(c)
	if u, ok := s.Get(sessionUsername).(string); ok && u != "" {
		c.Set(middleware.CtxUsername, u)
		if role, ok := s.Get(sessionRole).(string); ok {
			c.Set(middleware.CtxRole, role)
		}
	}
	c.Next()
}

// AuthRequired rejects requests without a session.
func AuthRequired(c *gin.Context) {
	if c.GetString(middleware.CtxUsername) == "" {
		response.Fail(c, http.StatusUnauthorized, "login required")
		return
	}
	c.Next()
}

func (h *Handlers) handleLogin(c *gin.Context) {
	var form models.LoginForm
	if err := c.ShouldBindJSON(&form); err != nil {
		response.Fail(c, http.StatusBadRequest, "username and password are required")
		return
	}
	acct, err := h.repo.Authenticate(form)
	if err != nil {
		response.Error(c, err)
		return
	}

	s := sessions.Default(c)
	s.Set(sessionUsername, acct.Username)
	s.Set(sessionRole, acct.Role)
	s.Set(sessionEntityID, acct.EntityID)
	if err := s.Save(); err != nil {
		logger.Warn("save session", zap.Error(err))
		response.Fail(c, http.StatusInternalServerError, "could not start session")
		return
	}
	c.Set(middleware.CtxUsername, acct.Username)
	c.Set(middleware.CtxRole, acct.Role)
	response.Success(c, "login successful", gin.H{"user": acct})
}

func (h *Handlers) handleLogout(c *gin.Context) {
	s := sessions.Default(c)
	s.Clear()
	s.Options(sessions.Options{Path: "/", MaxAge: -1})
	_ = s.Save()
	response.Success(c, "logged out", nil)
}

func (h *Handlers) handleMe(c *gin.Context) {
	s := sessions.Default(c)
	response.Success(c, "", gin.H{"user": models.Account{
		Username: c.GetString(middleware.CtxUsername),
		Role:     c.GetString(middleware.CtxRole),
		EntityID: stringValue(s.Get(sessionEntityID)),
	}})
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}
