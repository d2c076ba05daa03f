package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// RefundMethod is how the customer wants their money back.
const (
	RefundMethodOriginal = "original"
	RefundMethodWallet   = "wallet"
)

// Inspection outcomes.
const (
	OutcomeAccept     = "accept"
	OutcomeReject     = "reject"
	OutcomeRepair     = "repair"
	OutcomeQuarantine = "quarantine"
)

// Courier statuses that produce an RTO log entry.
const (
	CourierStatusDeliveryFailed = "delivery_failed"
	CourierStatusRTOInitiated   = "rto_initiated"
)

// RTOStatusInitiated is the only status an rto_log row is created with.
const RTOStatusInitiated = "initiated"

// ReturnRequest is the authoritative record of a customer return. The
// status column is only ever written through the transition table in
// transitions.go.
type ReturnRequest struct {
	ID           snowflake.ID   `json:"-" gorm:"primaryKey"`
	Code         string         `json:"id" gorm:"type:text;not null;uniqueIndex"`
	OrderID      string         `json:"order_id" gorm:"type:text;not null;index"`
	UserID       string         `json:"user_id" gorm:"type:text;not null;index"`
	Reason       string         `json:"reason" gorm:"type:text;not null"`
	Description  string         `json:"description" gorm:"type:text"`
	Images       datatypes.JSON `json:"images" gorm:"type:jsonb"`
	PickupSlot   *time.Time     `json:"pickup_slot,omitempty"`
	RefundMethod string         `json:"refund_method" gorm:"type:text;not null"`
	Status       Status         `json:"status" gorm:"type:text;not null;index"`
	CreatedAt    time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt    time.Time      `json:"updated_at" gorm:"not null"`
}

func (ReturnRequest) TableName() string { return "return_requests" }

// ReturnItem is one line of a return request. Rows are owned by the parent
// request and only ever created together with it.
type ReturnItem struct {
	ID              snowflake.ID `json:"-" gorm:"primaryKey"`
	ReturnRequestID snowflake.ID `json:"-" gorm:"not null;index"`
	OrderItemID     string       `json:"order_item_id" gorm:"type:text;not null"`
	Quantity        int          `json:"quantity" gorm:"not null"`
	Reason          string       `json:"reason" gorm:"type:text"`
	Condition       string       `json:"condition" gorm:"type:text"`
	Status          string       `json:"status" gorm:"type:text;not null"`
}

func (ReturnItem) TableName() string { return "return_items" }

// Inspection is an append-only record of one physical inspection attempt.
type Inspection struct {
	ID              snowflake.ID   `json:"-" gorm:"primaryKey"`
	ReturnRequestID snowflake.ID   `json:"-" gorm:"not null;index"`
	InspectorID     string         `json:"inspector_id" gorm:"type:text;not null"`
	Outcome         string         `json:"outcome" gorm:"type:text;not null"`
	Notes           string         `json:"notes" gorm:"type:text"`
	Images          datatypes.JSON `json:"images" gorm:"type:jsonb"`
	RestockBatchID  *snowflake.ID  `json:"restock_batch_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at" gorm:"not null"`
}

func (Inspection) TableName() string { return "inspections" }

// RTOLog records a courier-initiated return-to-origin event. Independent of
// the customer return lifecycle; append-only.
type RTOLog struct {
	ID             snowflake.ID `json:"-" gorm:"primaryKey"`
	OrderID        string       `json:"order_id" gorm:"type:text;not null;index"`
	CourierID      string       `json:"courier_id" gorm:"type:text;not null"`
	CourierEventID *string      `json:"courier_event_id,omitempty" gorm:"type:text;uniqueIndex"`
	Reason         string       `json:"reason" gorm:"type:text"`
	Status         string       `json:"status" gorm:"type:text;not null"`
	ReceivedAt     time.Time    `json:"received_at" gorm:"not null"`
}

func (RTOLog) TableName() string { return "rto_logs" }
