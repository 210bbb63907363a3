package models

import (
	"encoding/json"
	"time"
)

// Well-known organization setting keys.
const (
	SettingIntakeDisplayLabels   = "intake_display_labels"
	SettingIntakeImportantFields = "intake_important_fields"
)

// OrgSetting is a per-organization key/value JSON setting. Settings drive
// rendering only; they never gate state transitions.
type OrgSetting struct {
	OrgID     string          `db:"org_id" json:"org_id"`
	Key       string          `db:"key" json:"key"`
	Value     json.RawMessage `db:"value" json:"value"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
