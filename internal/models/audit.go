package models

import (
	"encoding/json"
	"time"
)

type AuditEntry struct {
	ID           string
	TargetUserID string
	ActionType   ActionType
	PerformedBy  string
	PerformedAt  time.Time
	Reason       string
	OldData      json.RawMessage
	NewData      json.RawMessage
}

type AuditQuery struct {
	TargetUserID string
	ActionType   ActionType
	Limit        int
}
