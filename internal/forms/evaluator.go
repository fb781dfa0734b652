package forms

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EvaluateVisibility returns the ids of the questions shown under answers, in form order.
//
// It is a single forward pass: display logic only references earlier questions, so the
// visibility of a question's prerequisite is already known when the question is reached.
// A question whose prerequisite is hidden is hidden too, whatever the prerequisite's raw
// answer says.
func EvaluateVisibility(f *Form, answers Answers) []string {
	visible := visibilitySet(f, answers)
	out := make([]string, 0, len(visible))
	for _, q := range f.Questions {
		if visible[q.ID] {
			out = append(out, q.ID)
		}
	}
	return out
}

func visibilitySet(f *Form, answers Answers) map[string]bool {
	visible := make(map[string]bool, len(f.Questions))
	for _, q := range f.Questions {
		l := q.DisplayLogic
		if l == nil {
			visible[q.ID] = true
			continue
		}
		if !visible[l.QuestionID] {
			continue
		}
		a, ok := answers[l.QuestionID]
		if !ok || !a.Recorded() {
			continue
		}
		visible[q.ID] = l.matches(a)
	}
	return visible
}

func (l *DisplayLogic) matches(a AnswerValue) bool {
	switch l.Operator {
	case OperatorEquals:
		return answerEquals(a, l.Value)
	case OperatorNotEquals:
		return !answerEquals(a, l.Value)
	case OperatorIn:
		for _, v := range l.Values {
			if a.IsSet && a.contains(v) || !a.IsSet && a.Scalar == v {
				return true
			}
		}
	}
	return false
}

// answerEquals is an exact, case-sensitive match. A selection equals v only when v is its
// sole member.
func answerEquals(a AnswerValue, v string) bool {
	if a.IsSet {
		return len(a.Set) == 1 && a.Set[0] == v
	}
	return a.Scalar == v
}

// IsSubmissionComplete reports whether every visible question has a recorded answer.
// Answers to hidden questions are ignored.
func IsSubmissionComplete(f *Form, answers Answers) bool {
	return CheckSubmission(f, answers).Complete
}

// SubmissionReport classifies a set of answers against a form.
type SubmissionReport struct {
	Visible  []string `json:"visible"`
	Missing  []string `json:"missing"`
	Hidden   []string `json:"hidden"`
	Unknown  []string `json:"unknown"`
	Complete bool     `json:"complete"`
}

// CheckSubmission evaluates visibility and reports unanswered visible questions (Missing),
// leftover answers to hidden questions (Hidden) and answers to questions the form does not
// have (Unknown). Leftovers are informational, not errors.
func CheckSubmission(f *Form, answers Answers) SubmissionReport {
	visible := visibilitySet(f, answers)
	r := SubmissionReport{Visible: []string{}, Missing: []string{}, Hidden: []string{}, Unknown: []string{}}
	known := make(map[string]struct{}, len(f.Questions))
	for _, q := range f.Questions {
		known[q.ID] = struct{}{}
		a, answered := answers[q.ID]
		answered = answered && a.Recorded()
		switch {
		case visible[q.ID]:
			r.Visible = append(r.Visible, q.ID)
			if !answered {
				r.Missing = append(r.Missing, q.ID)
			}
		case answered:
			r.Hidden = append(r.Hidden, q.ID)
		}
	}
	for id := range answers {
		if _, ok := known[id]; !ok {
			r.Unknown = append(r.Unknown, id)
		}
	}
	sort.Strings(r.Unknown)
	r.Complete = len(r.Missing) == 0
	return r
}

// Progress counts answered questions among the visible ones.
type Progress struct {
	Answered int `json:"answered"`
	Total    int `json:"total"`
}

func FormProgress(f *Form, answers Answers) Progress {
	r := CheckSubmission(f, answers)
	return Progress{Answered: len(r.Visible) - len(r.Missing), Total: len(r.Visible)}
}

// ValidateAnswers checks the shape and range of every recorded answer to a visible question.
// Hidden leftovers and unknown ids are not validated.
func ValidateAnswers(f *Form, answers Answers) error {
	visible := visibilitySet(f, answers)
	var vs []Violation
	for _, q := range f.Questions {
		a, ok := answers[q.ID]
		if !ok || !a.Recorded() || !visible[q.ID] {
			continue
		}
		if msg := answerProblem(q, a); msg != "" {
			vs = append(vs, Violation{Path: "answers/" + q.ID, Message: msg})
		}
	}
	return asError(vs)
}

func answerProblem(q Question, a AnswerValue) string {
	if q.Kind == KindMultiSelect {
		if !a.IsSet {
			return "expects a selection of option ids"
		}
		seen := map[string]struct{}{}
		for _, id := range a.Set {
			if !hasOption(q.Options, id) {
				return fmt.Sprintf("unknown option %q", id)
			}
			if _, dup := seen[id]; dup {
				return fmt.Sprintf("option %q selected twice", id)
			}
			seen[id] = struct{}{}
		}
		return ""
	}
	if a.IsSet {
		return "expects a single value"
	}
	v := strings.TrimSpace(a.Scalar)
	switch q.Kind {
	case KindNumber:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return fmt.Sprintf("%q is not a number", v)
		}
		if q.Min != nil && n < *q.Min {
			return fmt.Sprintf("%v is below minimum %v", n, *q.Min)
		}
		if q.Max != nil && n > *q.Max {
			return fmt.Sprintf("%v is above maximum %v", n, *q.Max)
		}
	case KindDate:
		t, err := ParseDateAnswer(v)
		if err != nil {
			return fmt.Sprintf("%q is not a date", v)
		}
		if q.MinDate != nil && t.Before(*q.MinDate) {
			return "date is before " + q.MinDate.Format(time.RFC3339)
		}
		if q.MaxDate != nil && t.After(*q.MaxDate) {
			return "date is after " + q.MaxDate.Format(time.RFC3339)
		}
	case KindSingleSelect:
		if !hasOption(q.Options, v) {
			return fmt.Sprintf("unknown option %q", v)
		}
	case KindRating:
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Sprintf("%q is not a rating", v)
		}
		if q.Scale != nil && (n < q.Scale.Min || n > q.Scale.Max) {
			return fmt.Sprintf("rating %d is outside %d..%d", n, q.Scale.Min, q.Scale.Max)
		}
	}
	return ""
}

// ParseDateAnswer accepts RFC 3339 timestamps and plain YYYY-MM-DD dates (UTC midnight).
func ParseDateAnswer(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
