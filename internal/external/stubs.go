package external

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"rollcall/internal/types"
)

// StubGateway logs messages instead of sending them. Used in local
// development when no gateway API key is configured.
type StubGateway struct {
	logger *slog.Logger
}

// NewStubGateway creates a StubGateway.
func NewStubGateway(logger *slog.Logger) *StubGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubGateway{logger: logger}
}

// Send logs the message and returns a synthetic acknowledgement.
func (s *StubGateway) Send(ctx context.Context, senderID, phone, content string) (DeliveryAck, error) {
	id := "stub_" + uuid.NewString()
	s.logger.InfoContext(ctx, "stub gateway: message not sent",
		"sender_id", senderID,
		"phone", phone,
		"content_len", len(content),
		"provider_message_id", id,
	)
	return DeliveryAck{MessageID: id}, nil
}

// StubAttendance returns no records. Used in local development when no
// attendance API is configured.
type StubAttendance struct {
	logger *slog.Logger
}

// NewStubAttendance creates a StubAttendance.
func NewStubAttendance(logger *slog.Logger) *StubAttendance {
	if logger == nil {
		logger = slog.Default()
	}
	return &StubAttendance{logger: logger}
}

// FetchRecords always returns an empty record set.
func (s *StubAttendance) FetchRecords(ctx context.Context, phone string, window types.ReportWindow, eventID string) ([]types.AttendanceRecord, error) {
	s.logger.InfoContext(ctx, "stub attendance: returning no records",
		"phone", phone,
		"start", window.StartDate(),
		"end", window.EndDate(),
	)
	return nil, nil
}
