package forms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// AnswerValue is a recorded answer: a scalar for text, number, date, single-select and
// rating questions, or a set of option ids for multi-select questions.
type AnswerValue struct {
	Scalar string
	Set    []string
	IsSet  bool
}

// Answers maps a question id to its recorded answer.
type Answers map[string]AnswerValue

// Clone returns a deep copy.
func (a Answers) Clone() Answers {
	if a == nil {
		return nil
	}
	out := make(Answers, len(a))
	for id, v := range a {
		if v.IsSet {
			v.Set = append([]string{}, v.Set...)
		}
		out[id] = v
	}
	return out
}

func Scalar(v string) AnswerValue { return AnswerValue{Scalar: v} }

func Selection(ids ...string) AnswerValue {
	return AnswerValue{Set: append([]string{}, ids...), IsSet: true}
}

// Recorded reports whether the answer carries any content.
func (a AnswerValue) Recorded() bool {
	if a.IsSet {
		return len(a.Set) > 0
	}
	return strings.TrimSpace(a.Scalar) != ""
}

func (a AnswerValue) contains(v string) bool {
	for _, s := range a.Set {
		if s == v {
			return true
		}
	}
	return false
}

// String renders the answer for exports; set members are joined with "|".
func (a AnswerValue) String() string {
	if a.IsSet {
		return strings.Join(a.Set, "|")
	}
	return a.Scalar
}

func (a AnswerValue) MarshalJSON() ([]byte, error) {
	if a.IsSet {
		set := a.Set
		if set == nil {
			set = []string{}
		}
		return json.Marshal(set)
	}
	return json.Marshal(a.Scalar)
}

// UnmarshalJSON accepts a string, a number, or an array of strings.
func (a *AnswerValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*a = AnswerValue{}
		return nil
	}
	switch b[0] {
	case '[':
		var set []string
		if err := json.Unmarshal(b, &set); err != nil {
			return fmt.Errorf("answer: %w", err)
		}
		*a = Selection(set...)
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("answer: %w", err)
		}
		*a = Scalar(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("answer: expected string, number or array")
		}
		*a = Scalar(n.String())
	}
	return nil
}
