package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/service"
)

// AdminHandler exposes administrative overrides. The gateway restricts this
// group to operators.
type AdminHandler struct {
	logger   *zap.Logger
	policies service.PolicyService
	devices  service.TrustedDeviceManager
}

func NewAdminHandler(logger *zap.Logger, policies service.PolicyService, devices service.TrustedDeviceManager) *AdminHandler {
	return &AdminHandler{logger: logger, policies: policies, devices: devices}
}

// UnlockUser clears a verification lockout before its cooldown elapses.
func (h *AdminHandler) UnlockUser(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid user ID", "invalid_input", h.logger)
		return
	}

	if err := h.policies.AdminUnlock(c.Request.Context(), userID); err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	h.logger.Info("lockout cleared by administrator", zap.String("user_id", userID.String()))
	RespondWithMessage(c, http.StatusOK, "Lockout cleared")
}

type setEnforcedRequest struct {
	Enforced *bool `json:"enforced" binding:"required"`
}

// SetEnforced pins or lifts MFA enforcement for a user. Administrative
// override is the only way to lift it.
func (h *AdminHandler) SetEnforced(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid user ID", "invalid_input", h.logger)
		return
	}

	var req setEnforcedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request payload", "invalid_input", h.logger)
		return
	}

	if err := h.policies.AdminSetEnforced(c.Request.Context(), userID, *req.Enforced); err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	h.logger.Info("enforcement updated by administrator",
		zap.String("user_id", userID.String()),
		zap.Bool("enforced", *req.Enforced))
	RespondWithMessage(c, http.StatusOK, "Enforcement updated")
}

// RevokeUserDevices revokes every trusted device of a user.
func (h *AdminHandler) RevokeUserDevices(c *gin.Context) {
	userID, err := uuid.Parse(c.Param("userId"))
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid user ID", "invalid_input", h.logger)
		return
	}

	revoked, err := h.devices.RevokeAll(c.Request.Context(), userID, "revoked by administrator")
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{"revoked": revoked})
}
