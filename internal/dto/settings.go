package dto

import "encoding/json"

// UpdateSettingRequest upserts one organization setting.
type UpdateSettingRequest struct {
	Key   string          `json:"key" validate:"required"`
	Value json.RawMessage `json:"value" validate:"required"`
}
