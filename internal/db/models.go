package db

import (
	"time"

	"github.com/google/uuid"

	"github.com/lalithlochan/beacon/internal/platform"
)

// Row statuses of local_notifications.
const (
	StatusPending   = "pending"
	StatusDelivered = "delivered"
)

// LocalNotification is a legacy-tier notification row.
type LocalNotification struct {
	ID             uuid.UUID
	FireDate       time.Time
	AlertTitle     string
	AlertBody      string
	AlertAction    string
	SoundName      string
	RepeatInterval time.Duration
	Status         string
	CreatedAt      time.Time
	DeliveredAt    *time.Time
}

// Legacy returns the platform view of the row.
func (n *LocalNotification) Legacy() platform.LegacyNotification {
	return platform.LegacyNotification{
		FireDate:       n.FireDate,
		AlertTitle:     n.AlertTitle,
		AlertBody:      n.AlertBody,
		AlertAction:    n.AlertAction,
		SoundName:      n.SoundName,
		RepeatInterval: n.RepeatInterval,
	}
}

func fromLegacy(n platform.LegacyNotification) *LocalNotification {
	return &LocalNotification{
		ID:             uuid.New(),
		FireDate:       n.FireDate,
		AlertTitle:     n.AlertTitle,
		AlertBody:      n.AlertBody,
		AlertAction:    n.AlertAction,
		SoundName:      n.SoundName,
		RepeatInterval: n.RepeatInterval,
		Status:         StatusPending,
	}
}
