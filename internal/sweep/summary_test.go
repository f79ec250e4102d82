package sweep

import (
	"testing"
	"time"

	"rollcall/internal/types"
)

func TestSummarize(t *testing.T) {
	window := types.ReportWindow{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
	}
	in := time.Date(2024, 1, 3, 9, 0, 0, 0, time.UTC)
	out := time.Date(2024, 1, 3, 17, 0, 0, 0, time.UTC)

	tests := []struct {
		name          string
		records       []types.AttendanceRecord
		wantFirstName string
		wantClockIns  int
		wantClockOuts int
		wantLate      int
	}{
		{
			name:    "empty records produce zero-count summary",
			records: nil,
		},
		{
			name: "counts clock events and lateness",
			records: []types.AttendanceRecord{
				{MemberName: "Ama Mensah", ClockIn: &in, ClockOut: &out},
				{MemberName: "Ama Mensah", ClockIn: &in, Late: true},
				{MemberName: "Ama Mensah", ClockIn: &in, ClockOut: &out, Late: true},
			},
			wantFirstName: "Ama",
			wantClockIns:  3,
			wantClockOuts: 2,
			wantLate:      2,
		},
		{
			name: "first name from first named record",
			records: []types.AttendanceRecord{
				{ClockIn: &in},
				{MemberName: "Kofi Boateng", ClockIn: &in},
			},
			wantFirstName: "Kofi",
			wantClockIns:  2,
		},
		{
			name: "single-word name used as-is",
			records: []types.AttendanceRecord{
				{MemberName: "Ama", ClockIn: &in},
			},
			wantFirstName: "Ama",
			wantClockIns:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(tt.records, window)
			if got.FirstName != tt.wantFirstName {
				t.Errorf("FirstName = %q, want %q", got.FirstName, tt.wantFirstName)
			}
			if got.ClockIns != tt.wantClockIns {
				t.Errorf("ClockIns = %d, want %d", got.ClockIns, tt.wantClockIns)
			}
			if got.ClockOuts != tt.wantClockOuts {
				t.Errorf("ClockOuts = %d, want %d", got.ClockOuts, tt.wantClockOuts)
			}
			if got.LateCount != tt.wantLate {
				t.Errorf("LateCount = %d, want %d", got.LateCount, tt.wantLate)
			}
			if got.Window != window {
				t.Errorf("Window = %v, want %v", got.Window, window)
			}
		})
	}
}
