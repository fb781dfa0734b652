package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

type LongRow struct {
	SubmissionID     string
	PollingStationID string
	ObserverID       string
	QuestionID       string
	QuestionCode     string
	Answer           string
	SubmittedAt      string // RFC 3339
}

// ExportLongCSV renders one row per recorded answer.
func ExportLongCSV(rows []LongRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"submission_id", "polling_station_id", "observer_id", "question_id", "question_code", "answer", "submitted_at"})
	for _, r := range rows {
		rec := []string{
			r.SubmissionID,
			r.PollingStationID,
			r.ObserverID,
			r.QuestionID,
			r.QuestionCode,
			r.Answer,
			r.SubmittedAt,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// WideRow is one submission with its answers keyed by column.
type WideRow struct {
	SubmissionID     string
	PollingStationID string
	ObserverID       string
	Complete         bool
	SubmittedAt      string
	Cells            map[string]string
}

// ExportWideCSV renders a wide-format CSV with one row per submission and one column per
// entry of columns, in the given order.
func ExportWideCSV(columns []string, rows []WideRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := append([]string{"submission_id", "polling_station_id", "observer_id", "complete", "submitted_at"}, columns...)
	_ = w.Write(header)
	for _, r := range rows {
		row := make([]string, 0, len(header))
		row = append(row, r.SubmissionID, r.PollingStationID, r.ObserverID, strconv.FormatBool(r.Complete), r.SubmittedAt)
		for _, c := range columns {
			row = append(row, r.Cells[c])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func itoa(i int) string { return strconv.Itoa(i) }
