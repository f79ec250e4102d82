// Package sweep implements the delivery sweep engine: one invocation walks
// every active recipient, decides who is due, fetches attendance data,
// formats and sends the summary message, and applies the retry policy to the
// outcome. The trigger in this package decides when sweeps run; the driver
// only knows how to run one.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"rollcall/internal/external"
	"rollcall/internal/message"
	"rollcall/internal/metrics"
	"rollcall/internal/recurrence"
	"rollcall/internal/retry"
	"rollcall/internal/types"
)

// RecipientStore is the recipient access the driver needs.
type RecipientStore interface {
	ListActive(ctx context.Context) ([]*types.Recipient, error)
	UpdateDeliveryState(ctx context.Context, rec *types.Recipient) error
}

// ScheduleStore resolves the schedules of due recipients.
type ScheduleStore interface {
	GetManyByIDs(ctx context.Context, ids []string) (map[string]*types.Schedule, error)
}

// DeliveryLogStore appends audit records for attempted sends.
type DeliveryLogStore interface {
	Create(ctx context.Context, l *types.DeliveryLog) error
}

// CronRunStore brackets each sweep with a started/finished record.
type CronRunStore interface {
	Start(ctx context.Context, jobType types.JobType) (string, error)
	Finish(ctx context.Context, id string, status types.CronRunStatus, processed, failed int, detail string) error
}

// Gateway sends a single SMS.
type Gateway interface {
	Send(ctx context.Context, senderID, phone, content string) (external.DeliveryAck, error)
}

// AttendanceSource fetches the records a summary is computed from.
type AttendanceSource interface {
	FetchRecords(ctx context.Context, phone string, window types.ReportWindow, eventID string) ([]types.AttendanceRecord, error)
}

// Driver runs delivery sweeps.
type Driver struct {
	recipients RecipientStore
	schedules  ScheduleStore
	logs       DeliveryLogStore
	runs       CronRunStore
	gateway    Gateway
	attendance AttendanceSource
	clock      types.Clock
	logger     *slog.Logger
	stagger    time.Duration
}

// DriverConfig wires a Driver's collaborators.
type DriverConfig struct {
	Recipients RecipientStore
	Schedules  ScheduleStore
	Logs       DeliveryLogStore
	Runs       CronRunStore
	Gateway    Gateway
	Attendance AttendanceSource
	Clock      types.Clock
	Logger     *slog.Logger
	// Stagger is the pause between consecutive recipients within one sweep,
	// smoothing load on the gateway.
	Stagger time.Duration
}

// NewDriver creates a sweep Driver.
func NewDriver(cfg DriverConfig) *Driver {
	clock := cfg.Clock
	if clock == nil {
		clock = types.RealClock{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Driver{
		recipients: cfg.Recipients,
		schedules:  cfg.Schedules,
		logs:       cfg.Logs,
		runs:       cfg.Runs,
		gateway:    cfg.Gateway,
		attendance: cfg.Attendance,
		clock:      clock,
		logger:     logger,
		stagger:    cfg.Stagger,
	}
}

// Result summarizes one sweep.
type Result struct {
	Due       int
	Processed int
	Failed    int
	Skipped   int
}

// Run executes one full sweep. Each recipient is evaluated and processed in
// isolation: a failure for one never aborts the rest. The sweep is bracketed
// by a cron run record so a crashed sweep is visible as a row stuck in
// status=started.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	start := d.clock.Now()

	runID, err := d.runs.Start(ctx, types.JobDeliverySweep)
	if err != nil {
		metrics.IncSweeps("failed")
		return Result{}, fmt.Errorf("starting cron run: %w", err)
	}

	res, runErr := d.sweep(ctx, start)

	status := types.CronRunCompleted
	detail := ""
	if runErr != nil {
		status = types.CronRunFailed
		detail = types.TruncateErrorText(runErr.Error())
	} else if ctx.Err() != nil {
		detail = "interrupted by shutdown"
	}
	if finErr := d.runs.Finish(ctx, runID, status, res.Processed, res.Failed, detail); finErr != nil {
		d.logger.ErrorContext(ctx, "failed to finalize cron run",
			"run_id", runID,
			"error", finErr,
		)
	}

	metrics.ObserveSweepDuration(d.clock.Now().Sub(start).Seconds())
	metrics.IncSweeps(string(status))

	d.logger.InfoContext(ctx, "sweep finished",
		"run_id", runID,
		"status", string(status),
		"due", res.Due,
		"processed", res.Processed,
		"failed", res.Failed,
		"skipped", res.Skipped,
	)
	return res, runErr
}

func (d *Driver) sweep(ctx context.Context, now time.Time) (Result, error) {
	var res Result

	active, err := d.recipients.ListActive(ctx)
	if err != nil {
		return res, fmt.Errorf("listing active recipients: %w", err)
	}

	var due []*types.Recipient
	for _, rec := range active {
		if retry.WaitingForRetry(rec, now) {
			metrics.IncDeliveriesSkipped("waiting_retry")
			res.Skipped++
			continue
		}
		if !recurrence.IsDue(rec.Frequency, rec.StartDate, rec.LastSent, now) {
			metrics.IncDeliveriesSkipped("not_due")
			res.Skipped++
			continue
		}
		due = append(due, rec)
	}
	res.Due = len(due)
	metrics.SetSweepRecipientsDue(len(due))

	if len(due) == 0 {
		return res, nil
	}

	scheduleIDs := make([]string, 0, len(due))
	seen := make(map[string]bool, len(due))
	for _, rec := range due {
		if !seen[rec.ScheduleID] {
			seen[rec.ScheduleID] = true
			scheduleIDs = append(scheduleIDs, rec.ScheduleID)
		}
	}
	schedules, err := d.schedules.GetManyByIDs(ctx, scheduleIDs)
	if err != nil {
		return res, fmt.Errorf("loading schedules: %w", err)
	}

	for i, rec := range due {
		if i > 0 && d.stagger > 0 {
			if !d.wait(ctx, d.stagger) {
				return res, nil
			}
		}
		if ctx.Err() != nil {
			return res, nil
		}

		sched, ok := schedules[rec.ScheduleID]
		if !ok {
			d.logger.ErrorContext(ctx, "recipient references missing schedule",
				"recipient_id", rec.ID,
				"schedule_id", rec.ScheduleID,
			)
			metrics.IncDeliveriesSkipped("missing_schedule")
			res.Skipped++
			continue
		}

		if d.beforeScheduleAnchor(sched, now) {
			d.logger.InfoContext(ctx, "schedule anchor not reached, deferring recipient",
				"recipient_id", rec.ID,
				"schedule_id", sched.ID,
				"delivery_time", sched.DeliveryTime,
				"timezone", sched.Timezone,
			)
			metrics.IncDeliveriesSkipped("before_anchor")
			res.Skipped++
			continue
		}

		switch d.process(ctx, rec, sched, now) {
		case outcomeProcessed:
			res.Processed++
		case outcomeSkipped:
			res.Skipped++
		default:
			res.Failed++
		}
	}

	return res, nil
}

// beforeScheduleAnchor reports whether the schedule's local delivery anchor
// is still ahead of now today. Schedules without a delivery time deliver
// whenever the sweep reaches them. Malformed values are logged and treated
// as unanchored; the API validator rejects them on write.
func (d *Driver) beforeScheduleAnchor(sched *types.Schedule, now time.Time) bool {
	if sched.DeliveryTime == "" {
		return false
	}
	hour, minute, err := parseTimeOfDay(sched.DeliveryTime)
	if err != nil {
		d.logger.Warn("schedule carries malformed delivery time",
			"schedule_id", sched.ID,
			"delivery_time", sched.DeliveryTime,
		)
		return false
	}
	loc := time.UTC
	if sched.Timezone != "" {
		l, err := time.LoadLocation(sched.Timezone)
		if err != nil {
			d.logger.Warn("schedule carries unknown timezone",
				"schedule_id", sched.ID,
				"timezone", sched.Timezone,
			)
		} else {
			loc = l
		}
	}
	local := now.In(loc)
	anchor := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	return local.Before(anchor)
}

// outcome classifies how process handled one due recipient.
type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeFailed
	outcomeSkipped
)

// process handles one due recipient end to end. Data-fetch and format
// failures are their own failure domains: they leave the recipient untouched
// without charging the retry budget, because only actual delivery failures
// feed the backoff ladder. A window with no attendance records is a skip,
// not a send: the recipient stays due for the next sweep.
func (d *Driver) process(ctx context.Context, rec *types.Recipient, sched *types.Schedule, now time.Time) outcome {
	log := d.logger.With(
		"recipient_id", rec.ID,
		"phone", rec.Phone,
		"frequency", string(rec.Frequency),
	)

	window := recurrence.ResolveWindow(rec.Frequency, now, rec.LastSent)

	records, err := d.attendance.FetchRecords(ctx, rec.Phone, window, sched.EventID)
	if err != nil {
		log.ErrorContext(ctx, "attendance fetch failed, skipping recipient",
			"window_start", window.StartDate(),
			"window_end", window.EndDate(),
			"error", err,
		)
		metrics.IncDeliveriesFailed(string(rec.Frequency), string(types.ErrCodeDataFetchFailed))
		return outcomeFailed
	}

	if len(records) == 0 {
		log.InfoContext(ctx, "no attendance records in window, skipping recipient",
			"window_start", window.StartDate(),
			"window_end", window.EndDate(),
		)
		metrics.IncDeliveriesSkipped("no_records")
		return outcomeSkipped
	}

	summary := Summarize(records, window)

	content, unresolved, err := message.Format(sched.TemplateFor(rec.MessageType), summary.TokenValues())
	if err != nil {
		log.ErrorContext(ctx, "message formatting failed, skipping recipient",
			"template_len", len(sched.TemplateFor(rec.MessageType)),
			"error", err,
		)
		metrics.IncDeliveriesFailed(string(rec.Frequency), string(types.ErrCodeFormatTooLong))
		return outcomeFailed
	}
	if len(unresolved) > 0 {
		log.WarnContext(ctx, "template contains unresolved tokens",
			"tokens", unresolved,
			"schedule_id", sched.ID,
		)
	}

	ack, sendErr := d.gateway.Send(ctx, sched.SenderName, rec.Phone, content)

	state := retry.FromRecipient(rec)
	entry := &types.DeliveryLog{
		Phone:      rec.Phone,
		Content:    content,
		Frequency:  rec.Frequency,
		TenantCode: rec.TenantCode,
		Admin:      rec.MessageType == types.MessageAdmin,
	}

	if sendErr != nil {
		state = retry.OnFailure(state, now)
		entry.Status = types.DeliveryFailed
		entry.ErrorText = types.TruncateErrorText(sendErr.Error())
		metrics.IncDeliveriesFailed(string(rec.Frequency), errorType(sendErr))

		log.WarnContext(ctx, "delivery failed",
			"attempts", state.Attempts,
			"error", sendErr,
		)
		if state.Phase == retry.PhaseDeactivated {
			metrics.IncRecipientsDeactivated()
			log.ErrorContext(ctx, "recipient deactivated after exhausting retries",
				"attempts", state.Attempts,
			)
		}
	} else {
		state = retry.OnSuccess(state, now)
		entry.Status = types.DeliverySent
		entry.ProviderMsgID = ack.MessageID
		metrics.IncDeliveriesSent(string(rec.Frequency))
	}

	state.Apply(rec)

	ok := sendErr == nil
	if err := d.recipients.UpdateDeliveryState(ctx, rec); err != nil {
		// The message may already be out; a failed state write risks a
		// duplicate send on the next sweep.
		log.ErrorContext(ctx, "failed to persist delivery state after send attempt",
			"sent", sendErr == nil,
			"error", err,
		)
		ok = false
	}
	if err := d.logs.Create(ctx, entry); err != nil {
		log.ErrorContext(ctx, "failed to write delivery log",
			"status", string(entry.Status),
			"error", err,
		)
		ok = false
	}
	if ok {
		return outcomeProcessed
	}
	return outcomeFailed
}

// wait sleeps for the stagger delay unless the context is cancelled first.
// Returns false when the sweep should stop.
func (d *Driver) wait(ctx context.Context, delay time.Duration) bool {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// errorType extracts the AppError code for metric labels, falling back to a
// generic bucket for unexpected error values.
func errorType(err error) string {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return string(appErr.Code)
	}
	return string(types.ErrCodeDeliveryFailed)
}
