// Package models provides the shared data models for the DriftWatch pipeline.
package models

import "time"

// Category identifies the feature domain of a prepared record.
type Category string

const (
	CategorySensor      Category = "sensor"
	CategoryTransaction Category = "transaction"
	CategoryTraffic     Category = "traffic"
)

// Role is a viewer's access scope. Each role sees exactly one category.
type Role string

const (
	RoleSecurity  Role = "security"
	RoleEquipment Role = "equipment"
	RoleFraud     Role = "fraud"
)

// roleCategories maps each role onto the single category it may see.
var roleCategories = map[Role]Category{
	RoleSecurity:  CategoryTraffic,
	RoleEquipment: CategorySensor,
	RoleFraud:     CategoryTransaction,
}

// CategoryForRole returns the category visible to the given role.
// Unknown roles match no category.
func CategoryForRole(r Role) (Category, bool) {
	c, ok := roleCategories[r]
	return c, ok
}

// Severity classifies how far an anomaly exceeds its threshold.
type Severity string

const (
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RawEvent is one ingested telemetry event.
// Attributes always carries a "type" discriminant ("1"|"2"|"3"); numeric
// fields are encoded as decimal strings.
type RawEvent struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Source     string            `json:"source"`
	Attributes map[string]string `json:"attributes"`
}

// PreparedRecord is the extracted feature view of a RawEvent.
// ID equals the source event's ID. Features holds exactly one value for
// every current category.
type PreparedRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Category  Category  `json:"category"`
	Features  []float64 `json:"features"`
}

// DetectionSettings is the per-user tunable detection configuration.
// Sensitivity outside [0,1] is a caller error; repositories do not clamp.
type DetectionSettings struct {
	UserID           string   `json:"user_id" yaml:"user_id"`
	Sensitivity      float64  `json:"sensitivity" yaml:"sensitivity"`
	MonitoredSources []string `json:"monitored_sources" yaml:"monitored_sources"`
}

// DefaultSensitivity is the detection sensitivity used when a user has no
// stored settings.
const DefaultSensitivity = 0.5

// SourceWildcard matches every event source in a monitored-sources list.
const SourceWildcard = "any"

// DefaultSettings returns the settings applied to users with nothing stored.
func DefaultSettings(userID string) DetectionSettings {
	return DetectionSettings{
		UserID:           userID,
		Sensitivity:      DefaultSensitivity,
		MonitoredSources: []string{SourceWildcard},
	}
}

// Anomaly is a flagged deviation. Immutable once created.
// Description keeps the "<category>: ..." prefix so prefix-based filters
// and the Category field agree.
type Anomaly struct {
	ID          string    `json:"id"`
	DataID      string    `json:"data_id"`
	DetectedAt  time.Time `json:"detected_at"`
	Score       float64   `json:"score"`
	Description string    `json:"description"`
	Category    Category  `json:"category"`
	Severity    Severity  `json:"severity"`
}

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertStatusOpen          AlertStatus = "open"
	AlertStatusConfirmed     AlertStatus = "confirmed"
	AlertStatusFalsePositive AlertStatus = "false_positive"
	AlertStatusAcknowledged  AlertStatus = "acknowledged"
)

// Alert is the human-facing notification raised for an anomaly.
type Alert struct {
	ID        string      `json:"id"`
	AnomalyID string      `json:"anomaly_id"`
	RaisedAt  time.Time   `json:"raised_at"`
	Message   string      `json:"message"`
	Status    AlertStatus `json:"status"`
}

// User is an operator account. PasswordHash is a bcrypt hash.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         Role   `json:"role"`
}
