// SPDX-License-Identifier: MIT

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldSubject = "subject"
	FieldRole    = "role"
	FieldUserID  = "user_id"
	FieldOrderID = "order_id"
	FieldEventID = "event_id"

	// Routing / discovery fields
	FieldService  = "target_service"
	FieldProfile  = "profile"
	FieldInstance = "instance"
	FieldPath     = "path"

	// Pipeline fields
	FieldTopic   = "topic"
	FieldGroup   = "group"
	FieldAttempt = "attempt"
	FieldLockKey = "lock_key"

	// Process fields
	FieldComponent = "component"
)
