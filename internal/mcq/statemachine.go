// Package mcq implements the clarification-card lifecycle: a card is active
// until it is resolved, cancelled, expired, or overridden, and every
// non-active state is terminal.
package mcq

import (
	"time"

	"finchat-engine/internal/models"
)

// ExpiryWindow is how long a card accepts answers. Expiry is checked lazily
// on render/poll, never by a background timer.
const ExpiryWindow = 2 * time.Minute

// Card wraps MCQData with pure transition functions. All transitions return
// the updated card plus whether the transition was applied; attempts against
// a terminal state are rejected no-ops.
type Card struct {
	Data models.MCQData
}

// New creates an active card.
func New(mcqType models.MCQType, question string, options []models.MCQOption, now time.Time) Card {
	if mcqType == models.MCQWriteConfirmation && !hasCancel(options) {
		options = append(options, models.MCQOption{
			Label: "Cancel",
			Value: models.CancelOptionValue,
		})
	}
	return Card{Data: models.MCQData{
		MCQType:   mcqType,
		Question:  question,
		Options:   options,
		CreatedAt: now,
		Status:    models.MCQActive,
	}}
}

func hasCancel(options []models.MCQOption) bool {
	for _, o := range options {
		if o.Value == models.CancelOptionValue {
			return true
		}
	}
	return false
}

// IsActive reports whether the card still accepts transitions.
func (c Card) IsActive() bool {
	return c.Data.Status == models.MCQActive
}

// IsExpired reports whether an active card has outlived the expiry window at
// the given instant. Terminal cards never report expired.
func (c Card) IsExpired(now time.Time) bool {
	return c.IsActive() && now.Sub(c.Data.CreatedAt) > ExpiryWindow
}

// CheckExpiry lazily transitions an active card past its window to expired.
func (c Card) CheckExpiry(now time.Time) (Card, bool) {
	if !c.IsExpired(now) {
		return c, false
	}
	c.Data.Status = models.MCQExpired
	return c, true
}

// Select applies a user selection. The reserved cancel value transitions to
// cancelled; that value is only offered on write_confirmation cards. An
// unknown option value is rejected.
func (c Card) Select(value string, now time.Time) (Card, bool) {
	if expired, did := c.CheckExpiry(now); did {
		return expired, false
	}
	if !c.IsActive() || !c.Data.HasOption(value) {
		return c, false
	}

	if value == models.CancelOptionValue {
		c.Data.Status = models.MCQCancelled
	} else {
		c.Data.Status = models.MCQResolved
	}
	c.Data.SelectedValue = value
	return c, true
}

// Override applies when the user sends new free text while the card is
// active; free text always takes precedence over a pending clarification.
func (c Card) Override(now time.Time) (Card, bool) {
	if expired, did := c.CheckExpiry(now); did {
		return expired, false
	}
	if !c.IsActive() {
		return c, false
	}
	c.Data.Status = models.MCQOverridden
	return c, true
}
