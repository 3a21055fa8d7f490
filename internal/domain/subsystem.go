package domain

import "time"

// Subsystem tracks the subscription state of one mailing-list subsystem
// (e.g. "rust-for-linux"). Only subscribed subsystems are polled.
type Subsystem struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Subscribed bool      `json:"subscribed"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Operation log actions.
const (
	ActionSubscribe    = "subscribe"
	ActionUnsubscribe  = "unsubscribe"
	ActionStartMonitor = "start_monitor"
	ActionStopMonitor  = "stop_monitor"
	ActionRunMonitor   = "run_monitor"
	ActionWatch        = "watch"
)

// OperationLog is one append-only audit record of a user-initiated operation.
type OperationLog struct {
	ID            int64     `json:"id"`
	OperatorID    string    `json:"operator_id"`
	OperatorName  string    `json:"operator_name"`
	Action        string    `json:"action"`
	TargetName    string    `json:"target_name"`
	SubsystemName string    `json:"subsystem_name,omitempty"`
	Details       string    `json:"details,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
