package report

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/amitoj1996/fieldops-web/internal/domain/entity"
)

// Header lists the CSV/XLSX columns in output order.
func Header() []string {
	cols := []string{
		"taskId", "title", "type", "assignee", "status",
		"slaStart", "slaEnd", "checkInAt", "checkOutAt", "slaBreached",
		"items",
	}
	cols = append(cols, entity.Categories()...)
	return append(cols, "total", "pending", "approved", "rejected")
}

// WriteCSV streams rows as CSV, header first.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (r Row) record() []string {
	rec := []string{
		r.TaskID, r.Title, r.Type, r.Assignee, r.Status,
		r.SLAStart, r.SLAEnd, r.CheckInAt, r.CheckOutAt, boolString(r.SLABreached),
		r.Items,
	}
	for _, c := range entity.Categories() {
		rec = append(rec, r.Categories[c])
	}
	return append(rec, r.Total,
		strconv.Itoa(r.Pending), strconv.Itoa(r.Approved), strconv.Itoa(r.Rejected))
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
