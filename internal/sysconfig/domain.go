package sysconfig

import "time"

// Setting is one configuration key-value pair. Values are stored as strings;
// callers parse them into the type they need.
type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}
