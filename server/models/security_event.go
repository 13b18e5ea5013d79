package models

import "time"

const (
	EMERGENCY_TRIGGERED_EVENT = "emergency_triggered"
)

// SecurityEvent is an append-only audit record. Rows are only ever
// created or purged by the retention job - never updated.
type SecurityEvent struct {
	BaseModel
	UserID    uint    `json:"user_id" gorm:"not null"`
	Event     string  `json:"event" gorm:"not null"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Location  string  `json:"location"`
	Outcomes  string  `json:"outcomes"`
}

func CreateSecurityEvent(event *SecurityEvent) error {
	return db.Create(event).Error
}

func SecurityEventsForUser(userID interface{}) ([]SecurityEvent, error) {
	events := []SecurityEvent{}

	err := db.Order("created_at DESC").Limit(500).Find(&events, "user_id = ?", userID).Error
	if err != nil {
		return nil, err
	}

	return events, nil
}

func PurgeSecurityEventsBefore(horizon time.Time) (int64, error) {
	result := db.Where("created_at < ?", horizon).Delete(&SecurityEvent{})
	return result.RowsAffected, result.Error
}
