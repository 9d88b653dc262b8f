package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	domainErrors "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/errors"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/service"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/handler/http/middleware"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/infrastructure/security"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/utils/metrics"
)

// MFAHandler exposes the verification subsystem over REST.
type MFAHandler struct {
	logger          *zap.Logger
	registry        service.MethodRegistry
	engine          service.VerificationEngine
	policies        service.PolicyService
	devices         service.TrustedDeviceManager
	challengeTokens security.ChallengeTokenService
}

func NewMFAHandler(
	logger *zap.Logger,
	registry service.MethodRegistry,
	engine service.VerificationEngine,
	policies service.PolicyService,
	devices service.TrustedDeviceManager,
	challengeTokens security.ChallengeTokenService,
) *MFAHandler {
	return &MFAHandler{
		logger:          logger,
		registry:        registry,
		engine:          engine,
		policies:        policies,
		devices:         devices,
		challengeTokens: challengeTokens,
	}
}

// GetStatus renders the MFA status aggregate for the current user.
func (h *MFAHandler) GetStatus(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	status, err := h.policies.GetStatus(c.Request.Context(), userID)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, status)
}

type enrollTOTPRequest struct {
	AccountName string `json:"account_name" binding:"required"`
}

// EnrollTOTP starts authenticator-app enrollment. The secret and
// provisioning URL in the response are shown exactly once.
func (h *MFAHandler) EnrollTOTP(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req enrollTOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request payload", "invalid_input", h.logger)
		return
	}

	enrollment, err := h.registry.EnrollTOTP(c.Request.Context(), userID, req.AccountName)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	metrics.EnrollmentsTotal.WithLabelValues(string(models.MethodTypeTOTP), "started").Inc()
	RespondWithData(c, http.StatusCreated, enrollment)
}

type enrollChannelRequest struct {
	Type        string `json:"type" binding:"required"`
	Destination string `json:"destination" binding:"required"`
}

// EnrollChannel starts SMS or email enrollment and dispatches a setup code.
func (h *MFAHandler) EnrollChannel(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req enrollChannelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request payload", "invalid_input", h.logger)
		return
	}
	methodType := models.MethodType(req.Type)
	if !methodType.IsChannel() {
		RespondWithError(c, http.StatusBadRequest, "Type must be sms or email", "invalid_input", h.logger)
		return
	}

	enrollment, err := h.registry.EnrollChannel(c.Request.Context(), userID, methodType, req.Destination)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	metrics.EnrollmentsTotal.WithLabelValues(req.Type, "started").Inc()
	RespondWithData(c, http.StatusCreated, enrollment)
}

type activateRequest struct {
	MethodID string `json:"method_id" binding:"required"`
	Code     string `json:"code" binding:"required"`
}

// ActivateMethod completes two-phase enrollment with the submitted code.
// A first verified method comes back with the one-time backup code batch.
func (h *MFAHandler) ActivateMethod(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req activateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request payload", "invalid_input", h.logger)
		return
	}
	methodID, err := uuid.Parse(req.MethodID)
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid method ID", "invalid_input", h.logger)
		return
	}

	result, err := h.registry.CompleteEnrollment(c.Request.Context(), userID, methodID, req.Code)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	metrics.EnrollmentsTotal.WithLabelValues(string(result.Method.Type), "activated").Inc()
	RespondWithData(c, http.StatusOK, result)
}

type challengeRequest struct {
	Fingerprint string `json:"fingerprint"`
}

// Challenge decides whether the login flow must demand a second factor for
// this user and device. The response carries a short-lived challenge token
// when it must.
func (h *MFAHandler) Challenge(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	// body is optional; an absent fingerprint falls back to the request's
	// user agent and IP
	var req challengeRequest
	_ = c.ShouldBindJSON(&req)
	if req.Fingerprint == "" {
		req.Fingerprint = security.ParseDevice(c.Request.UserAgent(), c.ClientIP()).Fingerprint()
	}

	required, token, methods, err := h.policies.Challenge(c.Request.Context(), userID, req.Fingerprint)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{
		"mfa_required":    required,
		"challenge_token": token,
		"methods":         methods,
	})
}

type sendCodeRequest struct {
	MethodType string `json:"method_type"`
	Purpose    string `json:"purpose"`
}

// SendChallengeCode issues and dispatches a channel code for a pending
// verification.
func (h *MFAHandler) SendChallengeCode(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req sendCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request payload", "invalid_input", h.logger)
		return
	}
	purpose := models.CodePurpose(req.Purpose)
	if purpose == "" {
		purpose = models.CodePurposeLogin
	}
	if !purpose.Valid() {
		RespondWithError(c, http.StatusBadRequest, "Invalid purpose", "invalid_input", h.logger)
		return
	}

	sent, err := h.engine.SendChallengeCode(c.Request.Context(), userID, models.MethodType(req.MethodType), purpose)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	metrics.CodesIssuedTotal.WithLabelValues(string(purpose)).Inc()
	RespondWithData(c, http.StatusOK, gin.H{"sent": sent})
}

type verifyRequest struct {
	Code           string `json:"code" binding:"required"`
	MethodType     string `json:"method_type"`
	Purpose        string `json:"purpose"`
	ChallengeToken string `json:"challenge_token"`
	RememberDevice bool   `json:"remember_device"`
	FriendlyName   string `json:"friendly_name"`
}

// Verify validates a submitted code against the user's enrolled methods or
// backup codes. Identity comes from the gateway header or, during login,
// from the challenge token.
func (h *MFAHandler) Verify(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request payload", "invalid_input", h.logger)
		return
	}

	userID, ok := middleware.UserID(c)
	if !ok {
		if req.ChallengeToken == "" {
			RespondWithError(c, http.StatusUnauthorized, "Challenge token is required", "unauthorized", h.logger)
			return
		}
		var err error
		userID, _, err = h.challengeTokens.Parse(req.ChallengeToken)
		if err != nil {
			RespondWithError(c, http.StatusUnauthorized, "Invalid or expired challenge token", "unauthorized", h.logger)
			return
		}
	}

	purpose := models.CodePurpose(req.Purpose)
	if purpose == "" {
		purpose = models.CodePurposeLogin
	}
	if !purpose.Valid() {
		RespondWithError(c, http.StatusBadRequest, "Invalid purpose", "invalid_input", h.logger)
		return
	}

	device := security.ParseDevice(c.Request.UserAgent(), c.ClientIP())
	friendlyName := req.FriendlyName
	if friendlyName == "" {
		friendlyName = device.FriendlyName()
	}

	result, err := h.engine.Verify(c.Request.Context(), models.VerifyRequest{
		UserID:         userID,
		Code:           req.Code,
		MethodTypeHint: models.MethodType(req.MethodType),
		Purpose:        purpose,
		RememberDevice: req.RememberDevice,
		Fingerprint:    device.Fingerprint(),
		FriendlyName:   friendlyName,
		ClientIP:       c.ClientIP(),
	})
	if err != nil {
		metrics.VerificationAttemptsTotal.WithLabelValues(req.MethodType, "failure").Inc()
		RespondWithDomainError(c, err, h.logger)
		return
	}

	metrics.VerificationAttemptsTotal.WithLabelValues(string(result.MethodUsed), "success").Inc()
	if result.UsedBackup {
		metrics.BackupCodesConsumedTotal.Inc()
	}
	if result.Device != nil {
		metrics.TrustedDevicesMintedTotal.Inc()
	}
	RespondWithData(c, http.StatusOK, result)
}

type credentialRequest struct {
	Credential string `json:"credential" binding:"required"`
}

// Disable turns MFA off after primary-credential re-validation.
func (h *MFAHandler) Disable(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request payload", "invalid_input", h.logger)
		return
	}

	if err := h.engine.Disable(c.Request.Context(), userID, req.Credential); err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithMessage(c, http.StatusOK, "Multi-factor authentication disabled")
}

// RegenerateBackupCodes replaces the backup code batch. The new plaintext
// codes are shown exactly once.
func (h *MFAHandler) RegenerateBackupCodes(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request payload", "invalid_input", h.logger)
		return
	}

	codes, err := h.engine.RegenerateBackupCodes(c.Request.Context(), userID, req.Credential)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{"backup_codes": codes})
}

// ListMethods returns the user's enrolled methods.
func (h *MFAHandler) ListMethods(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	methods, err := h.registry.List(c.Request.Context(), userID)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{"methods": methods})
}

// SetPrimaryMethod marks a verified method as the preferred factor.
func (h *MFAHandler) SetPrimaryMethod(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	methodID, err := uuid.Parse(c.Param("methodId"))
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid method ID", "invalid_input", h.logger)
		return
	}

	if err := h.registry.SetPrimary(c.Request.Context(), userID, methodID); err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithMessage(c, http.StatusOK, "Primary method updated")
}

type updateSettingsRequest struct {
	RequireForSensitiveActions *bool `json:"require_for_sensitive_actions"`
	DeviceTrustEnabled         *bool `json:"device_trust_enabled"`
	DeviceTrustDurationDays    *int  `json:"device_trust_duration_days"`
}

// UpdateSettings applies user-editable policy settings.
func (h *MFAHandler) UpdateSettings(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid request payload", "invalid_input", h.logger)
		return
	}

	policy, err := h.policies.UpdateSettings(c.Request.Context(), userID, models.UpdateMFAPolicyRequest{
		RequireForSensitiveActions: req.RequireForSensitiveActions,
		DeviceTrustEnabled:         req.DeviceTrustEnabled,
		DeviceTrustDurationDays:    req.DeviceTrustDurationDays,
	})
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, policy)
}

// ListDevices returns the user's trusted devices, revoked ones included.
func (h *MFAHandler) ListDevices(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	devices, err := h.devices.List(c.Request.Context(), userID)
	if err != nil {
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithData(c, http.StatusOK, gin.H{"devices": devices})
}

// RevokeDevice revokes trust for one device.
func (h *MFAHandler) RevokeDevice(c *gin.Context) {
	userID, _ := middleware.UserID(c)

	deviceID, err := uuid.Parse(c.Param("deviceId"))
	if err != nil {
		RespondWithError(c, http.StatusBadRequest, "Invalid device ID", "invalid_input", h.logger)
		return
	}

	if err := h.devices.Revoke(c.Request.Context(), userID, deviceID, "revoked by user"); err != nil {
		if errors.Is(err, domainErrors.ErrDeviceNotFound) || errors.Is(err, domainErrors.ErrNotFound) {
			RespondWithError(c, http.StatusNotFound, "Device not found", "not_found", h.logger)
			return
		}
		RespondWithDomainError(c, err, h.logger)
		return
	}
	RespondWithNoContent(c)
}
