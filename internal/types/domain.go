// Package types holds the domain entities, enums, and shared interfaces for
// the RollCall platform. It has no dependencies on other internal packages so
// that every layer (repositories, sweep engine, API handlers) can share these
// definitions without import cycles.
package types

import (
	"strconv"
	"time"
)

// Recipient is a phone number subscribed to a recurring attendance summary
// under one schedule.
//
// Retry state invariants, enforced by the retry package and the sweep driver:
//   - Active=false recipients are never selected for delivery.
//   - RetryAttempts resets to 0 on every successful send.
//   - NextRetryAt, when set, is strictly in the future relative to the
//     evaluation instant that set it.
//   - LastSent, once non-nil, is monotonically non-decreasing.
type Recipient struct {
	ID            string      `json:"id"`
	ScheduleID    string      `json:"schedule_id"`
	Phone         string      `json:"phone"`
	Frequency     Frequency   `json:"frequency"`
	MessageType   MessageType `json:"message_type"`
	TenantCode    string      `json:"tenant_code"`
	StartDate     time.Time   `json:"start_date"`
	LastSent      *time.Time  `json:"last_sent,omitempty"`
	RetryAttempts int         `json:"retry_attempts"`
	NextRetryAt   *time.Time  `json:"next_retry_at,omitempty"`
	Active        bool        `json:"active"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Schedule is a named recurring-report definition owned by a tenant.
// The scheduling core treats schedules as read-only; they are created and
// edited via the CRUD API.
type Schedule struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	SenderName    string    `json:"sender_name"` // SMS sender id, <= SenderNameMaxLen chars
	Frequency     Frequency `json:"frequency"`
	DeliveryTime  string    `json:"delivery_time,omitempty"` // "HH:MM" local anchor, empty = deliver whenever a sweep runs
	Timezone      string    `json:"timezone"`
	Template      string    `json:"template"`       // user-facing token template
	AdminTemplate string    `json:"admin_template"` // admin variant, falls back to Template when empty
	EventID       string    `json:"event_id"`       // attendance meeting event to summarize
	TenantCode    string    `json:"tenant_code"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TemplateFor returns the template variant for the given message type.
func (s *Schedule) TemplateFor(mt MessageType) string {
	if mt == MessageAdmin && s.AdminTemplate != "" {
		return s.AdminTemplate
	}
	return s.Template
}

// DeliveryLog is an immutable audit record of one attempted send.
// Write-once: never mutated after persistence.
type DeliveryLog struct {
	ID            string         `json:"id"`
	Phone         string         `json:"phone"`
	Content       string         `json:"content"`
	Status        DeliveryStatus `json:"status"`
	ProviderMsgID string         `json:"provider_message_id,omitempty"`
	ErrorText     string         `json:"error_text,omitempty"` // truncated to ErrorTextMaxLen
	Frequency     Frequency      `json:"frequency"`
	TenantCode    string         `json:"tenant_code"`
	Admin         bool           `json:"admin"`
	CreatedAt     time.Time      `json:"created_at"`
}

// CronRun is one record per scheduler invocation, for operational visibility.
// Created at job start with status=started and finalized at job end.
type CronRun struct {
	ID         string        `json:"id"`
	JobType    JobType       `json:"job_type"`
	Status     CronRunStatus `json:"status"`
	Processed  int           `json:"processed"`
	Failed     int           `json:"failed"`
	Detail     string        `json:"detail,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// ReportWindow is the [Start, End) date range summarized in a delivery's
// message content. Both bounds are calendar dates (midnight UTC, no
// time-of-day component) formatted for the attendance API.
type ReportWindow struct {
	Start time.Time
	End   time.Time
}

// windowDateFormat is the calendar-date wire format for the attendance API.
const windowDateFormat = "2006-01-02"

// StartDate returns the window start as a calendar-date string.
func (w ReportWindow) StartDate() string { return w.Start.Format(windowDateFormat) }

// EndDate returns the window end as a calendar-date string.
func (w ReportWindow) EndDate() string { return w.End.Format(windowDateFormat) }

// AttendanceRecord is a single clock-in/out record returned by the external
// attendance source.
type AttendanceRecord struct {
	MemberID   string     `json:"member_id"`
	MemberName string     `json:"member_name"`
	ClockIn    *time.Time `json:"clock_in,omitempty"`
	ClockOut   *time.Time `json:"clock_out,omitempty"`
	Late       bool       `json:"late"` // past the event's lateness threshold
}

// AttendanceSummary aggregates the records of one reporting window into the
// values the message formatter substitutes into templates.
type AttendanceSummary struct {
	FirstName string
	ClockIns  int
	ClockOuts int
	LateCount int
	Window    ReportWindow
}

// TokenValues flattens the summary into the named token map consumed by
// message.Format. Numeric values use their natural decimal representation;
// dates use the calendar-date format.
func (s AttendanceSummary) TokenValues() map[string]string {
	return map[string]string{
		"FirstName": s.FirstName,
		"ClockIns":  strconv.Itoa(s.ClockIns),
		"ClockOuts": strconv.Itoa(s.ClockOuts),
		"LateCount": strconv.Itoa(s.LateCount),
		"StartDate": s.Window.StartDate(),
		"EndDate":   s.Window.EndDate(),
	}
}

// TruncateErrorText bounds error text for storage on a delivery log entry.
func TruncateErrorText(s string) string {
	if len(s) <= ErrorTextMaxLen {
		return s
	}
	return s[:ErrorTextMaxLen]
}
