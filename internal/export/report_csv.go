package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"canvas-sync/internal/sync"
)

// Keep header order EXACT: downstream imports read columns by position.
var reportHeader = []string{
	"ENTITY_TYPE",
	"ID",
	"NAME",
	"STATUS",
	"REASON",
}

// WriteReportCSV writes one row per entity outcome of a run, courses first.
func WriteReportCSV(w io.Writer, rep sync.RunReport) error {
	cw := csv.NewWriter(w)
	// match typical templates
	cw.UseCRLF = true

	if err := cw.Write(reportHeader); err != nil {
		return err
	}
	for _, r := range []sync.Report{rep.Courses, rep.Assignments} {
		for _, d := range r.Details {
			row := []string{
				r.EntityType,
				d.ID,
				cleanCell(d.Name),
				string(d.Status),
				cleanCell(d.Reason),
			}
			if err := cw.Write(row); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReportFileName is sync_<owner>_<yyyymmddThhmmss>.csv.
func ReportFileName(rep sync.RunReport) string {
	return fmt.Sprintf("sync_%s_%s.csv", safeName(rep.Owner), rep.StartedAt.UTC().Format("20060102T150405"))
}

// cleanCell flattens newlines so every outcome stays on one line.
func cleanCell(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func safeName(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	if b.Len() == 0 {
		return "owner"
	}
	return b.String()
}
