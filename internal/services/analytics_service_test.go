package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/tudoramariei/votemonitor/internal/forms"
)

func readCSV(b []byte) ([][]string, error) {
	r := csv.NewReader(strings.NewReader(string(b)))
	return r.ReadAll()
}

func storeWithSubmissions(t *testing.T) *stubFormStore {
	t.Helper()
	store, svc := publishedForm(t)
	days := []time.Time{
		time.Date(2024, 6, 9, 8, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 9, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 6, 10, 8, 0, 0, 0, time.UTC),
	}
	answers := []forms.Answers{
		{"q1": forms.Scalar("yes"), "q2": forms.Scalar("queue")},
		{"q1": forms.Scalar("no")},
		{"q1": forms.Scalar("yes")},
	}
	for i := range answers {
		day := days[i]
		svc.now = func() time.Time { return day }
		if _, err := svc.Submit(context.Background(), "N1", "F1", SubmitRequest{ObserverID: "o" + itoa(i), Answers: answers[i]}); err != nil {
			t.Fatalf("Submit returned error: %v", err)
		}
	}
	return store
}

func TestAnalyticsSummary(t *testing.T) {
	store := storeWithSubmissions(t)
	svc := NewAnalyticsService(store)
	sum, err := svc.Summary(context.Background(), "N1", "F1", "ro")
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}
	if sum.TotalSubmissions != 3 || sum.Complete != 2 || sum.Language != "RO" {
		t.Fatalf("summary = %+v", sum)
	}
	q1 := sum.Questions[0]
	if q1.Answered != 3 || q1.Options[0].Count != 2 || q1.Options[1].Count != 1 || q1.Options[0].Text != "Da" {
		t.Fatalf("q1 = %+v", q1)
	}
	if sum.FlaggedAnswers != 1 {
		t.Fatalf("flagged = %d, want 1", sum.FlaggedAnswers)
	}
	if len(sum.Timeseries) != 2 || sum.Timeseries[0].Count != 2 || sum.Timeseries[1].Date != "2024-06-10" {
		t.Fatalf("timeseries = %+v", sum.Timeseries)
	}
	if _, err := svc.Summary(context.Background(), "N2", "F1", ""); err == nil {
		t.Fatalf("expected forbidden")
	}
}

func TestRatingStats(t *testing.T) {
	f, err := forms.NewForm(forms.FormInput{ID: "F", Code: "F", Languages: []string{"en"}, DefaultLanguage: "en"})
	if err != nil {
		t.Fatalf("NewForm returned error: %v", err)
	}
	f, err = f.AddQuestion(forms.KindRating, forms.QuestionInput{ID: "r", Code: "R", Text: tt("EN", "r"), Scale: &forms.RatingScale{Min: 1, Max: 5}})
	if err != nil {
		t.Fatalf("AddQuestion returned error: %v", err)
	}
	subs := []*Submission{
		{Answers: forms.Answers{"r": forms.Scalar("1")}},
		{Answers: forms.Answers{"r": forms.Scalar("4")}},
		{Answers: forms.Answers{"r": forms.Scalar("4")}},
	}
	qs, _ := buildAnalyticsQuestions(f, forms.Localize(f, ""), subs)
	r := qs[0]
	if len(r.Histogram) != 5 || r.Histogram[0] != 1 || r.Histogram[3] != 2 {
		t.Fatalf("histogram = %v", r.Histogram)
	}
	if r.Mean == nil || *r.Mean != 3 || *r.Min != 1 || *r.Max != 4 {
		t.Fatalf("stats = %v %v %v", r.Mean, r.Min, r.Max)
	}
}

func TestNumberStatsSkipNonFinite(t *testing.T) {
	f, err := forms.NewForm(forms.FormInput{ID: "F", Code: "F", Languages: []string{"en"}, DefaultLanguage: "en"})
	if err != nil {
		t.Fatalf("NewForm returned error: %v", err)
	}
	f, err = f.AddQuestion(forms.KindNumber, forms.QuestionInput{ID: "n", Code: "N", Text: tt("EN", "n")})
	if err != nil {
		t.Fatalf("AddQuestion returned error: %v", err)
	}
	subs := []*Submission{
		{Answers: forms.Answers{"n": forms.Scalar("2")}},
		{Answers: forms.Answers{"n": forms.Scalar("NaN")}},
		{Answers: forms.Answers{"n": forms.Scalar("+Inf")}},
		{Answers: forms.Answers{"n": forms.Scalar("6")}},
	}
	qs, _ := buildAnalyticsQuestions(f, forms.Localize(f, ""), subs)
	n := qs[0]
	if n.Mean == nil || *n.Mean != 4 || *n.Min != 2 || *n.Max != 6 {
		t.Fatalf("stats = %v %v %v", n.Mean, n.Min, n.Max)
	}
	if _, err := json.Marshal(qs); err != nil {
		t.Fatalf("json.Marshal returned error: %v", err)
	}
}

func TestExportLongAndWide(t *testing.T) {
	store := storeWithSubmissions(t)
	svc := NewExportService(store)
	res, err := svc.ExportCSV(context.Background(), "N1", ExportParams{FormID: "F1"})
	if err != nil {
		t.Fatalf("ExportCSV returned error: %v", err)
	}
	if res.Filename != "OPEN-long.csv" {
		t.Fatalf("filename = %s", res.Filename)
	}
	recs, err := readCSV(res.Data)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	// header + 4 recorded answers
	if len(recs) != 5 {
		t.Fatalf("rows = %d, want 5", len(recs))
	}
	if got := strings.Join(recs[0], ","); got != "submission_id,polling_station_id,observer_id,question_id,question_code,answer,submitted_at" {
		t.Fatalf("bad header: %s", got)
	}

	res, err = svc.ExportCSV(context.Background(), "N1", ExportParams{FormID: "F1", Format: "wide", Labels: true, Lang: "ro"})
	if err != nil {
		t.Fatalf("ExportCSV wide returned error: %v", err)
	}
	recs, err = readCSV(res.Data)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(recs) != 4 || strings.Join(recs[0][5:], ",") != "A1,A2" {
		t.Fatalf("wide = %v", recs)
	}
	if recs[1][5] != "Da" || recs[1][6] != "queue" || recs[2][5] != "Nu" || recs[2][6] != "" {
		t.Fatalf("wide rows = %v", recs[1:])
	}
	if _, err := svc.ExportCSV(context.Background(), "N1", ExportParams{FormID: "F1", Format: "score"}); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}
