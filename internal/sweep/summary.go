package sweep

import (
	"strings"

	"rollcall/internal/types"
)

// Summarize aggregates a reporting window's attendance records into the
// values the formatter substitutes into templates. The first name comes from
// the first record carrying a member name. Callers skip recipients with an
// empty record set before summarizing.
func Summarize(records []types.AttendanceRecord, window types.ReportWindow) types.AttendanceSummary {
	s := types.AttendanceSummary{Window: window}
	for _, rec := range records {
		if s.FirstName == "" && rec.MemberName != "" {
			s.FirstName = firstName(rec.MemberName)
		}
		if rec.ClockIn != nil {
			s.ClockIns++
		}
		if rec.ClockOut != nil {
			s.ClockOuts++
		}
		if rec.Late {
			s.LateCount++
		}
	}
	return s
}

func firstName(full string) string {
	name := strings.TrimSpace(full)
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}
