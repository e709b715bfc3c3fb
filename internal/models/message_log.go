package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MessageDirection tells whether a logged message was received or sent
type MessageDirection string

const (
	DirectionInbound  MessageDirection = "inbound"
	DirectionOutbound MessageDirection = "outbound"
)

// MessageLog records every interchange message crossing the service
// boundary together with the acknowledgment outcome.
type MessageLog struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Direction   MessageDirection `gorm:"type:varchar(10);not null;index" json:"direction"`
	MessageType string           `gorm:"type:varchar(20);index" json:"message_type"`
	ControlID   string           `gorm:"type:varchar(64);index" json:"control_id"`
	Counterpart string           `gorm:"type:varchar(100)" json:"counterpart"`
	AckCode     string           `gorm:"type:varchar(4)" json:"ack_code"`
	Outcome     string           `gorm:"type:varchar(20);index" json:"outcome"` // applied, ignored, failed
	Payload     string           `gorm:"type:text" json:"payload"`
	CreatedAt   time.Time        `gorm:"index" json:"timestamp"`
}

// TableName overrides the table name
func (MessageLog) TableName() string {
	return "message_logs"
}

// BeforeCreate hook
func (m *MessageLog) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
