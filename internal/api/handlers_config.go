// handlers_config.go - Runtime configuration handlers
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/svg-workbench/backend/internal/models"
	"github.com/svg-workbench/backend/internal/parser"
)

// ConfigHandlerImpl implements the ConfigHandler interface
type ConfigHandlerImpl struct {
	rules *parser.RulesFile
}

// NewConfigHandler creates a new config handler
func NewConfigHandler(rules *parser.RulesFile) ConfigHandler {
	return &ConfigHandlerImpl{rules: rules}
}

// HandleGetEditRules returns the active edit rules
func (h *ConfigHandlerImpl) HandleGetEditRules(c echo.Context) error {
	if h.rules == nil {
		return NewServiceUnavailableError("edit rules are not configured")
	}
	return c.JSON(http.StatusOK, h.rules.Rules())
}

// HandleUpdateEditRules replaces the edit rules and persists them
func (h *ConfigHandlerImpl) HandleUpdateEditRules(c echo.Context) error {
	if h.rules == nil {
		return NewServiceUnavailableError("edit rules are not configured")
	}

	var rules models.EditRules
	if err := c.Bind(&rules); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if err := rules.Validate(); err != nil {
		return NewBadRequestError("invalid edit rules", err)
	}
	if err := h.rules.Replace(rules); err != nil {
		return NewInternalError("failed to save edit rules", err)
	}
	return c.JSON(http.StatusOK, h.rules.Rules())
}
