package digest

import (
	"fmt"
	"html"
	"strings"
	"time"

	"attendance/internal/ledger"
)

// ReportRow is one unsent attendance entry joined with its event and roster
// data, in the order the report lists it: roll ascending, then scan time.
type ReportRow struct {
	AttendanceID     int64
	EventTitle       string
	EventDescription string
	Roll             string
	StudentName      string
	Status           ledger.Status
	ScannedAt        time.Time
}

// Subject names the date (in the report timezone), timeslot label and branch.
func Subject(now time.Time, slot, branch string) string {
	return fmt.Sprintf("Event attendance for students on %s at %s for department: %s",
		now.Format("2006-01-02"), slot, branch)
}

// FormatReport renders the plain-text and HTML bodies of a digest.
//
// Rows arrive sorted by roll then scan time, not by event. A new section
// starts whenever the event title changes from the previous row, so an
// event whose rows are interleaved with another event's in roll order shows
// up as multiple separate sections. That boundary detection is part of the
// observable mail format; do not replace it with a group-by.
func FormatReport(branch string, rows []ReportRow) (plainBody, htmlBody string) {
	if len(rows) == 0 {
		return "No new attendance records to report.", "<p>No new attendance records to report.</p>"
	}

	plainLines := []string{fmt.Sprintf("Attendance Report for department: %s", branch), ""}
	htmlParts := []string{fmt.Sprintf("<h2>Attendance Report for department: %s</h2>", html.EscapeString(branch))}

	currentTitle := ""
	started := false
	var tableRows []string

	flush := func() {
		if len(tableRows) == 0 {
			return
		}
		htmlParts = append(htmlParts,
			"<table border=1 cellpadding=6 cellspacing=0 style='border-collapse:collapse;width:100%;margin-bottom:18px;'>",
			"<thead><tr><th>Roll</th><th>Name</th><th>Status</th><th>Scanned At (UTC)</th></tr></thead>",
			"<tbody>")
		htmlParts = append(htmlParts, tableRows...)
		htmlParts = append(htmlParts, "</tbody></table>")
		tableRows = tableRows[:0]
	}

	for _, row := range rows {
		if !started || currentTitle != row.EventTitle {
			flush()
			started = true
			currentTitle = row.EventTitle

			plainLines = append(plainLines,
				fmt.Sprintf("Event: %s", row.EventTitle),
				fmt.Sprintf("Description: %s", row.EventDescription),
				"Student details:")
			htmlParts = append(htmlParts,
				fmt.Sprintf("<h3 style='margin-bottom:6px;'>Event: %s</h3>", html.EscapeString(row.EventTitle)),
				fmt.Sprintf("<div style='margin-bottom:8px;color:#555;'>%s</div>", html.EscapeString(row.EventDescription)))
		}

		scanned := row.ScannedAt.UTC().Format(time.RFC3339)
		plainLines = append(plainLines,
			fmt.Sprintf("- %s - %s (Status: %s, Scanned: %s)", row.Roll, row.StudentName, row.Status, scanned))

		name := row.StudentName
		if name == "" {
			name = "Unknown"
		}
		tableRows = append(tableRows, fmt.Sprintf(
			"<tr><td style='padding:6px'>%s</td><td style='padding:6px'>%s</td><td style='padding:6px'>%s</td><td style='padding:6px'>%s</td></tr>",
			html.EscapeString(row.Roll), html.EscapeString(name), row.Status, scanned))
	}
	flush()

	return strings.Join(plainLines, "\n"), strings.Join(htmlParts, "")
}
