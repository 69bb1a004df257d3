package service

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/commandgrid/pmt/internal/model"
)

// Chat report formats.
const (
	ReportFormatCSV = "csv"
	ReportFormatPDF = "pdf"
)

var chatReportHeader = []string{"created_at", "sender_name", "room_name", "project_name", "message"}

// ChatReport is a rendered report attachment.
type ChatReport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// reportRange parses the report bounds. Date-only values cover whole UTC days,
// so an end date of 2024-05-31 includes messages sent that day.
func reportRange(start, end string) (time.Time, time.Time, error) {
	if start == "" || end == "" {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	from, _, err := parseReportTime(start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, dateOnly, err := parseReportTime(end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if dateOnly {
		to = to.AddDate(0, 0, 1)
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return from, to, nil
}

func parseReportTime(v string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), false, nil
	}
	t, err := time.Parse(meetingDateLayout, v)
	if err != nil {
		return time.Time{}, false, ErrInvalidDateRange
	}
	return t, true, nil
}

func renderCSVReport(rows []model.ChatReportRow) (*ChatReport, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(chatReportHeader); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.CreatedAt.UTC().Format(time.RFC3339),
			row.SenderName,
			row.RoomName,
			row.ProjectName,
			row.Message,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}
	return &ChatReport{Filename: "chat-report.csv", ContentType: "text/csv", Body: buf.Bytes()}, nil
}

func renderPDFReport(rows []model.ChatReportRow, from, to, generatedAt time.Time) (*ChatReport, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Chat Report", true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, "Chat Report", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	period := fmt.Sprintf("Period: %s to %s", from.Format(meetingDateLayout), to.Add(-time.Nanosecond).Format(meetingDateLayout))
	pdf.CellFormat(0, 6, period, "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, "Generated: "+generatedAt.UTC().Format(time.RFC1123), "", 1, "C", false, 0, "")
	pdf.Ln(6)

	if len(rows) == 0 {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.CellFormat(0, 8, "No messages in this period.", "", 1, "L", false, 0, "")
	}
	for _, row := range rows {
		heading := fmt.Sprintf("%s  %s in %s", row.CreatedAt.UTC().Format("2006-01-02 15:04"), row.SenderName, row.RoomName)
		if row.ProjectName != "" {
			heading += " (" + row.ProjectName + ")"
		}
		pdf.SetFont("Helvetica", "B", 10)
		pdf.MultiCell(0, 5, tr(heading), "", "L", false)
		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, tr(row.Message), "", "L", false)
		pdf.Ln(3)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return &ChatReport{Filename: "chat-report.pdf", ContentType: "application/pdf", Body: buf.Bytes()}, nil
}
