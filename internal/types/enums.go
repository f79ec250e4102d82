package types

// Frequency is the recurrence period class for a recipient's summary.
type Frequency string

const (
	FreqDaily     Frequency = "daily"
	FreqWeekly    Frequency = "weekly"
	FreqMonthly   Frequency = "monthly"
	FreqQuarterly Frequency = "quarterly"
	FreqAnnually  Frequency = "annually"
)

// AllFrequencies lists every valid Frequency value. Used by validators
// when checking schedule and recipient payloads.
var AllFrequencies = []Frequency{
	FreqDaily,
	FreqWeekly,
	FreqMonthly,
	FreqQuarterly,
	FreqAnnually,
}

// Valid reports whether f is a recognized frequency.
func (f Frequency) Valid() bool {
	switch f {
	case FreqDaily, FreqWeekly, FreqMonthly, FreqQuarterly, FreqAnnually:
		return true
	}
	return false
}

// MessageType selects which template variant a recipient receives.
type MessageType string

const (
	MessageAdmin MessageType = "admin"
	MessageUser  MessageType = "user"
)

// DeliveryStatus enumerates the states of a delivery log entry.
// These values MUST match the CHECK constraint on delivery_logs.status.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "pending"
	DeliverySent    DeliveryStatus = "sent"
	DeliveryFailed  DeliveryStatus = "failed"
)

// CronRunStatus enumerates the states of a scheduler invocation record.
type CronRunStatus string

const (
	CronRunStarted   CronRunStatus = "started"
	CronRunCompleted CronRunStatus = "completed"
	CronRunFailed    CronRunStatus = "failed"
)

// JobType identifies the kind of scheduled job a CronRun record belongs to.
type JobType string

const (
	JobDeliverySweep JobType = "delivery_sweep"
)

// SenderNameMaxLen is the gateway's alphanumeric sender-id limit.
const SenderNameMaxLen = 11

// MaxMessageLen is the single-segment SMS content limit enforced by the
// formatter and the gateway client.
const MaxMessageLen = 160

// ErrorTextMaxLen bounds the error text stored on a delivery log entry.
const ErrorTextMaxLen = 500
