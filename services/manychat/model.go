package manychat

import (
	"time"

	"gorm.io/datatypes"
)

const (
	EventRejected = "rejected"
	EventFailed   = "failed"
)

// InboundEvent is the audit trail of every webhook delivery, accepted or not.
type InboundEvent struct {
	ID            string         `gorm:"column:id;primaryKey;type:varchar(32)" json:"id"`
	RequestID     string         `gorm:"column:request_id;type:varchar(64);index" json:"requestId"`
	SubscriberID  string         `gorm:"column:subscriber_id;type:varchar(128);index" json:"subscriberId"`
	ParticipantID string         `gorm:"column:participant_id;type:varchar(32);index" json:"userId"`
	ProjectID     string         `gorm:"column:project_id;type:varchar(32)" json:"projectId"`
	DayNumber     int            `gorm:"column:day_number" json:"dayNumber"`
	Status        string         `gorm:"column:status;type:varchar(16);not null" json:"status"`
	Error         string         `gorm:"column:error;type:text" json:"error,omitempty"`
	Payload       datatypes.JSON `gorm:"column:payload" json:"payload"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (InboundEvent) TableName() string {
	return "inbound_events"
}
