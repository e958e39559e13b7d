package models

import (
	"context"
	"strings"

	"BloodLink/pkg/errors"
	"BloodLink/pkg/notification"
)

// NotifyDonor appends message to the donor's private list. It is best
// effort towards the caller: only a missing donor id or message is an error.
func (r *Repo) NotifyDonor(ctx context.Context, donorID, message string) (notification.Entry, error) {
	donorID = strings.TrimSpace(donorID)
	message = strings.TrimSpace(message)
	if donorID == "" {
		return notification.Entry{}, errors.Validation("donor_id is required")
	}
	if message == "" {
		return notification.Entry{}, errors.Validation("message is required")
	}
	e := notification.Entry{Type: notification.TypeDonorAlert, Message: message, DonorID: donorID}
	if r.notes == nil {
		return e, nil
	}
	if err := r.notes.AppendFor(ctx, notification.ScopeDonor, donorID, e, r.caps.Donor); err != nil {
		return e, err
	}
	return e, nil
}

func (r *Repo) DonorNotifications(donorID string) ([]notification.Entry, error) {
	if r.notes == nil {
		return []notification.Entry{}, nil
	}
	return r.notes.ListFor(notification.ScopeDonor, donorID)
}
