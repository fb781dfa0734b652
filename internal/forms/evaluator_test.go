package forms

import (
	"reflect"
	"strings"
	"testing"
)

func chainForm(t *testing.T, steps ...func(f *Form) (*Form, error)) *Form {
	t.Helper()
	f, err := NewForm(FormInput{ID: "F", Code: "F", Languages: []string{"en"}, DefaultLanguage: "en"})
	if err != nil {
		t.Fatalf("NewForm returned error: %v", err)
	}
	for i, step := range steps {
		next, err := step(f)
		if err != nil {
			t.Fatalf("step %d returned error: %v", i, err)
		}
		f = next
	}
	return f
}

func addText(id string, logic *DisplayLogic) func(f *Form) (*Form, error) {
	return func(f *Form) (*Form, error) {
		return f.AddQuestion(KindText, QuestionInput{ID: id, Code: strings.ToUpper(id), Text: text("EN", id), DisplayLogic: logic})
	}
}

func addSelect(kind QuestionKind, id string, logic *DisplayLogic, optionIDs ...string) func(f *Form) (*Form, error) {
	return func(f *Form) (*Form, error) {
		return f.AddQuestion(kind, QuestionInput{ID: id, Code: strings.ToUpper(id), Text: text("EN", id),
			DisplayLogic: logic, Options: options(f.Languages, optionIDs...)})
	}
}

func TestHiddenPrerequisitePropagates(t *testing.T) {
	f := chainForm(t,
		addText("q1", nil),
		addText("q2", &DisplayLogic{QuestionID: "q1", Operator: OperatorEquals, Value: "yes"}),
		addText("q3", &DisplayLogic{QuestionID: "q2", Operator: OperatorEquals, Value: "x"}),
	)
	got := EvaluateVisibility(f, Answers{"q1": Scalar("no"), "q2": Scalar("x")})
	if !reflect.DeepEqual(got, []string{"q1"}) {
		t.Fatalf("visible = %v, want [q1]", got)
	}
	got = EvaluateVisibility(f, Answers{"q1": Scalar("yes"), "q2": Scalar("x")})
	if !reflect.DeepEqual(got, []string{"q1", "q2", "q3"}) {
		t.Fatalf("visible = %v, want [q1 q2 q3]", got)
	}
}

func TestEvaluateVisibilityIsRepeatable(t *testing.T) {
	f := sampleForm(t)
	answers := Answers{"q1": Scalar("yes"), "q2": Scalar("go")}
	first := EvaluateVisibility(f, answers)
	second := EvaluateVisibility(f, answers)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("evaluations differ: %v vs %v", first, second)
	}
	if !reflect.DeepEqual(first, []string{"q1", "q2", "q3"}) {
		t.Fatalf("visible = %v", first)
	}
}

func TestInOperatorOnMultiSelect(t *testing.T) {
	f := chainForm(t,
		addSelect(KindMultiSelect, "q1", nil, "a", "b", "c", "d"),
		addText("q2", &DisplayLogic{QuestionID: "q1", Operator: OperatorIn, Values: []string{"a", "b"}}),
	)
	if got := EvaluateVisibility(f, Answers{"q1": Selection("b", "c")}); len(got) != 2 {
		t.Fatalf("visible = %v, want q2 shown", got)
	}
	if got := EvaluateVisibility(f, Answers{"q1": Selection("c", "d")}); len(got) != 1 {
		t.Fatalf("visible = %v, want q2 hidden", got)
	}
	if got := EvaluateVisibility(f, Answers{"q1": Selection()}); len(got) != 1 {
		t.Fatalf("visible = %v, empty selection must hide q2", got)
	}
}

func TestEqualsAndNotEquals(t *testing.T) {
	f := chainForm(t,
		addSelect(KindMultiSelect, "q1", nil, "a", "b"),
		addText("q2", &DisplayLogic{QuestionID: "q1", Operator: OperatorEquals, Value: "a"}),
		addText("q3", &DisplayLogic{QuestionID: "q1", Operator: OperatorNotEquals, Value: "a"}),
	)
	cases := []struct {
		answer AnswerValue
		want   []string
	}{
		{Selection("a"), []string{"q1", "q2"}},
		{Selection("a", "b"), []string{"q1", "q3"}},
		{Selection("b"), []string{"q1", "q3"}},
	}
	for _, c := range cases {
		if got := EvaluateVisibility(f, Answers{"q1": c.answer}); !reflect.DeepEqual(got, c.want) {
			t.Fatalf("answer %v: visible = %v, want %v", c.answer, got, c.want)
		}
	}
	if got := EvaluateVisibility(f, Answers{}); !reflect.DeepEqual(got, []string{"q1"}) {
		t.Fatalf("unanswered prerequisite: visible = %v, want [q1]", got)
	}
}

func TestSubmissionCompleteness(t *testing.T) {
	f := chainForm(t,
		addText("q1", nil),
		addText("q2", &DisplayLogic{QuestionID: "q1", Operator: OperatorEquals, Value: "yes"}),
		addText("q3", nil),
	)
	if !IsSubmissionComplete(f, Answers{"q1": Scalar("no"), "q3": Scalar("done")}) {
		t.Fatalf("expected complete with q2 hidden")
	}
	if IsSubmissionComplete(f, Answers{"q1": Scalar("no")}) {
		t.Fatalf("expected incomplete without q3")
	}
	if IsSubmissionComplete(f, Answers{"q1": Scalar("no"), "q3": Scalar("  ")}) {
		t.Fatalf("blank answer must not count as recorded")
	}
}

func TestCheckSubmissionReportsLeftovers(t *testing.T) {
	f := chainForm(t,
		addText("q1", nil),
		addText("q2", &DisplayLogic{QuestionID: "q1", Operator: OperatorEquals, Value: "yes"}),
		addText("q3", nil),
	)
	r := CheckSubmission(f, Answers{"q1": Scalar("no"), "q2": Scalar("stale"), "zz": Scalar("?")})
	if !reflect.DeepEqual(r.Visible, []string{"q1", "q3"}) {
		t.Fatalf("visible = %v", r.Visible)
	}
	if !reflect.DeepEqual(r.Missing, []string{"q3"}) || r.Complete {
		t.Fatalf("missing = %v complete = %v", r.Missing, r.Complete)
	}
	if !reflect.DeepEqual(r.Hidden, []string{"q2"}) || !reflect.DeepEqual(r.Unknown, []string{"zz"}) {
		t.Fatalf("hidden = %v unknown = %v", r.Hidden, r.Unknown)
	}
	p := FormProgress(f, Answers{"q1": Scalar("no")})
	if p.Answered != 1 || p.Total != 2 {
		t.Fatalf("progress = %+v, want 1/2", p)
	}
}

func TestValidateAnswers(t *testing.T) {
	min, max := 0.0, 100.0
	f := chainForm(t,
		addSelect(KindSingleSelect, "q1", nil, "a", "b"),
		addSelect(KindMultiSelect, "q2", nil, "x", "y"),
		func(f *Form) (*Form, error) {
			return f.AddQuestion(KindNumber, QuestionInput{ID: "q3", Code: "Q3", Text: text("EN", "n"), Min: &min, Max: &max})
		},
		func(f *Form) (*Form, error) {
			return f.AddQuestion(KindRating, QuestionInput{ID: "q4", Code: "Q4", Text: text("EN", "r"), Scale: &RatingScale{Min: 1, Max: 5}})
		},
		func(f *Form) (*Form, error) {
			return f.AddQuestion(KindDate, QuestionInput{ID: "q5", Code: "Q5", Text: text("EN", "d")})
		},
	)
	ok := Answers{"q1": Scalar("a"), "q2": Selection("x", "y"), "q3": Scalar("42"), "q4": Scalar("5"), "q5": Scalar("2024-06-09")}
	if err := ValidateAnswers(f, ok); err != nil {
		t.Fatalf("ValidateAnswers returned error: %v", err)
	}
	bad := Answers{"q1": Scalar("c"), "q2": Scalar("x"), "q3": Scalar("101"), "q4": Scalar("six"), "q5": Scalar("June")}
	err := ValidateAnswers(f, bad)
	for _, q := range []string{"q1", "q2", "q3", "q4", "q5"} {
		if !hasViolation(err, "answers/"+q) {
			t.Fatalf("expected violation for %s, got %v", q, err)
		}
	}
	for _, v := range []string{"NaN", "Inf", "-Inf", "+Inf"} {
		if err := ValidateAnswers(f, Answers{"q3": Scalar(v)}); !hasViolation(err, "answers/q3") {
			t.Fatalf("ValidateAnswers(q3=%s) = %v, want violation", v, err)
		}
	}
}
