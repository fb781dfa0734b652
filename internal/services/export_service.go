package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tudoramariei/votemonitor/internal/forms"
)

type ExportStore interface {
	FormReader
	ListSubmissions(ctx context.Context, formID string) ([]*Submission, error)
}

type ExportParams struct {
	FormID string
	Format string
	// Labels renders select answers as option texts in Lang instead of option ids.
	Labels bool
	Lang   string
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService struct {
	store ExportStore
}

func NewExportService(store ExportStore) *ExportService {
	return &ExportService{store: store}
}

func (s *ExportService) ExportCSV(ctx context.Context, ngoID string, params ExportParams) (*ExportResult, error) {
	if params.FormID == "" {
		return nil, NewInvalidError("form id required")
	}
	format := params.Format
	if format == "" {
		format = "long"
	}
	if format != "long" && format != "wide" {
		return nil, NewInvalidError("unsupported format")
	}
	f, err := loadForm(ctx, s.store, ngoID, params.FormID)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubmissions(ctx, params.FormID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(subs, func(i, j int) bool { return subs[i].SubmittedAt.Before(subs[j].SubmittedAt) })
	render := answerRenderer(f, params)
	name := f.Code
	if name == "" {
		name = f.ID
	}

	switch format {
	case "wide":
		b, err := ExportWideCSV(questionCodes(f), buildWideRows(f, subs, render))
		if err != nil {
			return nil, err
		}
		return &ExportResult{Filename: name + "-wide.csv", ContentType: "text/csv; charset=utf-8", Data: b}, nil
	default:
		b, err := ExportLongCSV(buildLongRows(f, subs, render))
		if err != nil {
			return nil, err
		}
		return &ExportResult{Filename: name + "-long.csv", ContentType: "text/csv; charset=utf-8", Data: b}, nil
	}
}

func questionCodes(f *forms.Form) []string {
	out := make([]string, len(f.Questions))
	for i, q := range f.Questions {
		out[i] = q.Code
	}
	return out
}

func buildLongRows(f *forms.Form, subs []*Submission, render func(forms.Question, forms.AnswerValue) string) []LongRow {
	out := []LongRow{}
	for _, sub := range subs {
		for _, q := range f.Questions {
			a, ok := sub.Answers[q.ID]
			if !ok || !a.Recorded() {
				continue
			}
			out = append(out, LongRow{
				SubmissionID:     sub.ID,
				PollingStationID: sub.PollingStationID,
				ObserverID:       sub.ObserverID,
				QuestionID:       q.ID,
				QuestionCode:     q.Code,
				Answer:           render(q, a),
				SubmittedAt:      sub.SubmittedAt.Format(time.RFC3339),
			})
		}
	}
	return out
}

func buildWideRows(f *forms.Form, subs []*Submission, render func(forms.Question, forms.AnswerValue) string) []WideRow {
	out := make([]WideRow, 0, len(subs))
	for _, sub := range subs {
		row := WideRow{
			SubmissionID:     sub.ID,
			PollingStationID: sub.PollingStationID,
			ObserverID:       sub.ObserverID,
			Complete:         sub.Complete,
			SubmittedAt:      sub.SubmittedAt.Format(time.RFC3339),
			Cells:            map[string]string{},
		}
		for _, q := range f.Questions {
			if a, ok := sub.Answers[q.ID]; ok && a.Recorded() {
				row.Cells[q.Code] = render(q, a)
			}
		}
		out = append(out, row)
	}
	return out
}

func answerRenderer(f *forms.Form, params ExportParams) func(forms.Question, forms.AnswerValue) string {
	if !params.Labels {
		return func(_ forms.Question, a forms.AnswerValue) string { return a.String() }
	}
	view := forms.Localize(f, params.Lang)
	labels := map[string]map[string]string{}
	for _, q := range view.Questions {
		if len(q.Options) == 0 {
			continue
		}
		labels[q.ID] = make(map[string]string, len(q.Options))
		for _, o := range q.Options {
			labels[q.ID][o.ID] = o.Text
		}
	}
	return func(q forms.Question, a forms.AnswerValue) string {
		m, ok := labels[q.ID]
		if !ok {
			return a.String()
		}
		ids := a.Set
		if !a.IsSet {
			ids = []string{a.Scalar}
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			if l, ok := m[id]; ok {
				out[i] = l
			} else {
				out[i] = id
			}
		}
		return strings.Join(out, "|")
	}
}
