package logging

import "log/slog"

// Common field names for consistent logging across the service.
const (
	FieldService   = "service"
	FieldUserID    = "user_id"
	FieldUsername  = "username"
	FieldRole      = "role"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldDuration  = "duration_ms"
	FieldError     = "error"
	FieldEventID   = "event_id"
	FieldAlertID   = "alert_id"
	FieldAnomalyID = "anomaly_id"
	FieldCategory  = "category"
	FieldScore     = "score"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// UserID returns a slog attribute for the user ID.
func UserID(id string) slog.Attr {
	return slog.String(FieldUserID, id)
}

// Username returns a slog attribute for the username.
func Username(name string) slog.Attr {
	return slog.String(FieldUsername, name)
}

// Role returns a slog attribute for the viewer role.
func Role(role string) slog.Attr {
	return slog.String(FieldRole, role)
}

// Method returns a slog attribute for the HTTP method.
func Method(method string) slog.Attr {
	return slog.String(FieldMethod, method)
}

// Path returns a slog attribute for the HTTP path.
func Path(path string) slog.Attr {
	return slog.String(FieldPath, path)
}

// Status returns a slog attribute for the HTTP status code.
func Status(code int) slog.Attr {
	return slog.Int(FieldStatus, code)
}

// Duration returns a slog attribute for duration in milliseconds.
func Duration(ms int64) slog.Attr {
	return slog.Int64(FieldDuration, ms)
}

// Error returns a slog attribute for an error message.
func Error(err error) slog.Attr {
	return slog.String(FieldError, err.Error())
}

// EventID returns a slog attribute for a raw event ID.
func EventID(id string) slog.Attr {
	return slog.String(FieldEventID, id)
}

// AlertID returns a slog attribute for an alert ID.
func AlertID(id string) slog.Attr {
	return slog.String(FieldAlertID, id)
}

// AnomalyID returns a slog attribute for an anomaly ID.
func AnomalyID(id string) slog.Attr {
	return slog.String(FieldAnomalyID, id)
}

// Category returns a slog attribute for a telemetry category.
func Category(c string) slog.Attr {
	return slog.String(FieldCategory, c)
}

// Score returns a slog attribute for an anomaly score.
func Score(s float64) slog.Attr {
	return slog.Float64(FieldScore, s)
}
