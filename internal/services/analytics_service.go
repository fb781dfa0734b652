package services

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/tudoramariei/votemonitor/internal/forms"
)

type AnalyticsStore interface {
	FormReader
	ListSubmissions(ctx context.Context, formID string) ([]*Submission, error)
}

type AnalyticsService struct {
	store AnalyticsStore
}

type OptionCount struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Count   int    `json:"count"`
	Flagged bool   `json:"flagged,omitempty"`
}

// AnalyticsQuestion aggregates one question. Histogram counts rating answers from scale min
// to scale max.
type AnalyticsQuestion struct {
	ID        string             `json:"id"`
	Code      string             `json:"code"`
	Kind      forms.QuestionKind `json:"$questionType"`
	Text      string             `json:"text"`
	Answered  int                `json:"answered"`
	Options   []OptionCount      `json:"options,omitempty"`
	Histogram []int              `json:"histogram,omitempty"`
	Mean      *float64           `json:"mean,omitempty"`
	Min       *float64           `json:"min,omitempty"`
	Max       *float64           `json:"max,omitempty"`
}

type AnalyticsTimeseries struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type AnalyticsSummary struct {
	FormID           string                `json:"formId"`
	Language         string                `json:"language"`
	TotalSubmissions int                   `json:"totalSubmissions"`
	Complete         int                   `json:"complete"`
	FlaggedAnswers   int                   `json:"flaggedAnswers"`
	Questions        []AnalyticsQuestion   `json:"questions"`
	Timeseries       []AnalyticsTimeseries `json:"timeseries"`
}

func NewAnalyticsService(store AnalyticsStore) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// Summary aggregates every stored submission of a form. Question and option texts are
// rendered in lang with default-language fallback.
func (s *AnalyticsService) Summary(ctx context.Context, ngoID, formID, lang string) (*AnalyticsSummary, error) {
	f, err := loadForm(ctx, s.store, ngoID, formID)
	if err != nil {
		return nil, err
	}
	subs, err := s.store.ListSubmissions(ctx, formID)
	if err != nil {
		return nil, err
	}
	view := forms.Localize(f, lang)
	questions, flagged := buildAnalyticsQuestions(f, view, subs)
	complete := 0
	countsByDay := map[string]int{}
	for _, sub := range subs {
		if sub.Complete {
			complete++
		}
		countsByDay[sub.SubmittedAt.UTC().Format("2006-01-02")]++
	}
	return &AnalyticsSummary{
		FormID:           f.ID,
		Language:         view.Language,
		TotalSubmissions: len(subs),
		Complete:         complete,
		FlaggedAnswers:   flagged,
		Questions:        questions,
		Timeseries:       buildTimeseries(countsByDay),
	}, nil
}

type numericStats struct {
	n             int
	sum, min, max float64
}

func (st *numericStats) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	if st.n == 0 || v < st.min {
		st.min = v
	}
	if st.n == 0 || v > st.max {
		st.max = v
	}
	st.n++
	st.sum += v
}

func (st *numericStats) apply(q *AnalyticsQuestion) {
	if st.n == 0 {
		return
	}
	mean := math.Round(st.sum/float64(st.n)*100) / 100
	min, max := st.min, st.max
	q.Mean, q.Min, q.Max = &mean, &min, &max
}

func buildAnalyticsQuestions(f *forms.Form, view *forms.LocalizedForm, subs []*Submission) ([]AnalyticsQuestion, int) {
	out := make([]AnalyticsQuestion, len(f.Questions))
	stats := make([]numericStats, len(f.Questions))
	optionIndex := make([]map[string]int, len(f.Questions))
	for i, q := range f.Questions {
		lq := view.Questions[i]
		out[i] = AnalyticsQuestion{ID: q.ID, Code: q.Code, Kind: q.Kind, Text: lq.Text}
		if q.Kind.IsSelect() {
			optionIndex[i] = make(map[string]int, len(q.Options))
			for j, o := range q.Options {
				out[i].Options = append(out[i].Options, OptionCount{ID: o.ID, Text: lq.Options[j].Text, Flagged: o.IsFlagged})
				optionIndex[i][o.ID] = j
			}
		}
		if q.Kind == forms.KindRating && q.Scale != nil {
			out[i].Histogram = make([]int, q.Scale.Max-q.Scale.Min+1)
		}
	}
	flagged := 0
	for _, sub := range subs {
		for i, q := range f.Questions {
			a, ok := sub.Answers[q.ID]
			if !ok || !a.Recorded() {
				continue
			}
			out[i].Answered++
			switch q.Kind {
			case forms.KindSingleSelect, forms.KindMultiSelect:
				ids := a.Set
				if !a.IsSet {
					ids = []string{a.Scalar}
				}
				for _, id := range ids {
					if j, ok := optionIndex[i][id]; ok {
						out[i].Options[j].Count++
						if out[i].Options[j].Flagged {
							flagged++
						}
					}
				}
			case forms.KindNumber:
				if v, err := strconv.ParseFloat(strings.TrimSpace(a.Scalar), 64); err == nil {
					stats[i].add(v)
				}
			case forms.KindRating:
				v, err := strconv.Atoi(strings.TrimSpace(a.Scalar))
				if err != nil {
					continue
				}
				stats[i].add(float64(v))
				if q.Scale != nil && v >= q.Scale.Min && v <= q.Scale.Max {
					out[i].Histogram[v-q.Scale.Min]++
				}
			}
		}
	}
	for i := range out {
		stats[i].apply(&out[i])
	}
	return out, flagged
}

func buildTimeseries(counts map[string]int) []AnalyticsTimeseries {
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]AnalyticsTimeseries, 0, len(days))
	for _, d := range days {
		out = append(out, AnalyticsTimeseries{Date: d, Count: counts[d]})
	}
	return out
}
