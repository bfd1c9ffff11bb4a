package webhook

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EventRecord is the audit row written for every callback delivery and
// sweep, including the ones that change nothing.
type EventRecord struct {
	ID               uint           `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderID          *snowflake.ID  `json:"order_id" gorm:"index"`
	PaymentReference string         `json:"payment_reference" gorm:"type:text;index"`
	EventName        string         `json:"event_name" gorm:"type:text"`
	Outcome          string         `json:"outcome" gorm:"type:text;not null"`
	Payload          datatypes.JSON `json:"payload"`
	CreatedAt        time.Time      `json:"created_at"`
}

func (EventRecord) TableName() string { return "payment_events" }

// Reconciliation outcomes kept in the event log and metrics.
const (
	OutcomeSettled        = "settled"
	OutcomeFailed         = "failed"
	OutcomeAbandoned      = "abandoned"
	OutcomeDuplicate      = "duplicate"
	OutcomeIgnored        = "ignored"
	OutcomeConcludeFailed = "conclude_failed"
	OutcomeError          = "error"
)
