// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldRequestID = "request_id"
	FieldZone      = "zone"
	FieldServerID  = "server_id"
	FieldPort      = "port"
	FieldClipID    = "clip_id"
	FieldCopyID    = "copy_id"
	FieldChannel   = "channel"

	// Process fields
	FieldEvent     = "event"
	FieldComponent = "component"

	// State fields
	FieldOldStatus = "old_status"
	FieldNewStatus = "new_status"

	// Path / URL fields
	FieldPath    = "path"
	FieldBaseURL = "base_url"
	FieldMethod  = "method"

	// Network fields
	FieldISA = "isa"
)
