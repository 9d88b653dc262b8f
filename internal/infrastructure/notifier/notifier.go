// Package notifier delivers verification codes to their out-of-band
// destinations (SMS gateway or SMTP).
package notifier

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	domainErrors "github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/errors"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/models"
	"github.com/agrovista/farm_platform/backend/services/mfa-service/internal/domain/service"
)

// CodeNotifier routes a verification code to the transport matching the
// method type. It implements service.Notifier.
type CodeNotifier struct {
	sms    *SMSClient
	email  *EmailClient
	logger *zap.Logger
}

func NewCodeNotifier(sms *SMSClient, email *EmailClient, logger *zap.Logger) *CodeNotifier {
	return &CodeNotifier{sms: sms, email: email, logger: logger}
}

func (n *CodeNotifier) SendCode(ctx context.Context, methodType models.MethodType, destination, code string, purpose models.CodePurpose) error {
	switch methodType {
	case models.MethodTypeSMS:
		message := fmt.Sprintf("Your AgroVista verification code is %s. It expires in 10 minutes.", code)
		if err := n.sms.Send(ctx, destination, message); err != nil {
			n.logger.Error("sms delivery failed",
				zap.String("purpose", string(purpose)),
				zap.Error(err))
			return domainErrors.ErrDeliveryFailed
		}
	case models.MethodTypeEmail:
		subject := emailSubject(purpose)
		body := fmt.Sprintf("Your AgroVista verification code is %s.\r\n\r\nIt expires in 10 minutes. If you did not request this code, you can ignore this message.", code)
		if err := n.email.Send(ctx, destination, subject, body); err != nil {
			n.logger.Error("email delivery failed",
				zap.String("purpose", string(purpose)),
				zap.Error(err))
			return domainErrors.ErrDeliveryFailed
		}
	default:
		return fmt.Errorf("no transport for method type %q: %w", methodType, domainErrors.ErrInvalidInput)
	}

	n.logger.Info("verification code dispatched",
		zap.String("method_type", string(methodType)),
		zap.String("purpose", string(purpose)))
	return nil
}

func emailSubject(purpose models.CodePurpose) string {
	switch purpose {
	case models.CodePurposeSetup:
		return "Confirm your two-factor authentication method"
	case models.CodePurposeDisable:
		return "Confirm disabling two-factor authentication"
	case models.CodePurposeRecovery:
		return "Your account recovery code"
	default:
		return "Your sign-in verification code"
	}
}

var _ service.Notifier = (*CodeNotifier)(nil)
