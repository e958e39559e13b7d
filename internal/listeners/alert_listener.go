package listeners

import (
	"context"
	"time"

	"BloodLink/internal/models"
	"BloodLink/pkg/logger"
	"BloodLink/pkg/notification"
	"BloodLink/pkg/util"

	"go.uber.org/zap"
)

// InitAlertListeners sends the donation confirmation email when an alert is
// accepted for a donor. done, when set, is called after each send attempt.
func InitAlertListeners(repo *models.Repo, mailer notification.Mailer, timeout time.Duration, done func(error)) {
	util.Sig().Connect(models.SigAlertAccepted, func(sender any, params ...any) {
		ev, ok := sender.(*models.AlertAccepted)
		if !ok {
			return
		}
		donor, err := repo.GetDonor(ev.DonorID)
		if err != nil || donor["email"] == "" {
			logger.Warn("no email for accepted donor", zap.String("donor_id", ev.DonorID), zap.Error(err))
			if done != nil {
				done(err)
			}
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			err := notification.SendDonationConfirmEmail(ctx, mailer, donor["email"], donor["name"], ev.AlertID, ev.BloodGroup)
			if err != nil {
				logger.Warn("send mail failed", zap.String("donor_id", ev.DonorID), zap.Error(err))
			}
			if done != nil {
				done(err)
			}
		}()
	})
}
