package forms

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	f := sampleForm(t)
	data, err := EncodeForm(f)
	if err != nil {
		t.Fatalf("EncodeForm returned error: %v", err)
	}
	if !strings.Contains(string(data), `"$questionType":"singleSelectQuestion"`) {
		t.Fatalf("missing discriminator in %s", data)
	}
	back, err := DecodeForm(data)
	if err != nil {
		t.Fatalf("DecodeForm returned error: %v", err)
	}
	if len(back.Questions) != len(f.Questions) {
		t.Fatalf("questions = %d, want %d", len(back.Questions), len(f.Questions))
	}
	for i := range f.Questions {
		if !f.Questions[i].Equal(back.Questions[i]) {
			t.Fatalf("question %d differs: %+v vs %+v", i, f.Questions[i], back.Questions[i])
		}
	}
}

func TestDecodeFormRejectsUnknownKind(t *testing.T) {
	doc := `{"id":"F","code":"C","defaultLanguage":"en","languages":["en"],"name":{"en":"n"},
	"questions":[{"id":"q1","$questionType":"sliderQuestion","code":"S","text":{"en":"x"}}]}`
	_, err := DecodeForm([]byte(doc))
	if !hasViolation(err, `unknown question type "sliderQuestion"`) {
		t.Fatalf("expected unknown type violation, got %v", err)
	}
	if _, err := DecodeForm([]byte("{")); err == nil {
		t.Fatalf("expected malformed document error")
	}
}

func TestDecodeFormNormalizesCodes(t *testing.T) {
	doc := `{"id":"F","code":"C","defaultLanguage":"ro","languages":["ro","en"],"name":{"ro":"n","EN":"n"},
	"questions":[{"id":"q1","$questionType":"ratingQuestion","code":"R","text":{"ro":"x","en":"y"},"scale":{"min":1,"max":5}}]}`
	f, err := DecodeForm([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeForm returned error: %v", err)
	}
	if f.DefaultLanguage != "RO" || f.Status != StatusDrafted {
		t.Fatalf("default = %s status = %s", f.DefaultLanguage, f.Status)
	}
	if f.Questions[0].Text["EN"] != "y" {
		t.Fatalf("text = %v", f.Questions[0].Text)
	}
}

func TestAnswerJSON(t *testing.T) {
	var answers Answers
	if err := json.Unmarshal([]byte(`{"a":"x","b":["1","2"],"c":7,"d":null}`), &answers); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if answers["a"].Scalar != "x" || !answers["b"].IsSet || answers["c"].Scalar != "7" || answers["d"].Recorded() {
		t.Fatalf("answers = %+v", answers)
	}
	out, err := json.Marshal(Answers{"b": Selection("1", "2")})
	if err != nil || string(out) != `{"b":["1","2"]}` {
		t.Fatalf("marshal = %s, %v", out, err)
	}
	if err := json.Unmarshal([]byte(`{"a":true}`), &answers); err == nil {
		t.Fatalf("expected error for boolean answer")
	}
}

func TestLocalizeFallsBackToDefault(t *testing.T) {
	f := sampleForm(t)
	f, err := f.ApplyTranslations("ro", map[string]string{"questions/q2/text": ""})
	if err != nil {
		t.Fatalf("ApplyTranslations returned error: %v", err)
	}
	l := Localize(f, "ro")
	if l.Name != "Deschidere" || l.Questions[1].Text != "Why" {
		t.Fatalf("localized = %q / %q", l.Name, l.Questions[1].Text)
	}
	if l.Questions[0].Options[1].Text != "no-RO" {
		t.Fatalf("option = %q", l.Questions[0].Options[1].Text)
	}
	if got := Localize(f, "fr"); got.Language != "EN" || got.Name != "Opening" {
		t.Fatalf("unsupported language rendered as %s %q, want EN fallback", got.Language, got.Name)
	}
	if got := Localize(f, ""); got.Language != "EN" {
		t.Fatalf("empty language rendered as %s", got.Language)
	}
}

func TestHelpTextKeyMatchesTextPath(t *testing.T) {
	doc := `{"id":"F","code":"C","defaultLanguage":"en","languages":["en"],"name":{"en":"n"},
	"questions":[{"id":"q1","$questionType":"textQuestion","code":"T","text":{"en":"x"},"helpText":{"en":"Write clearly"}}]}`
	f, err := DecodeForm([]byte(doc))
	if err != nil {
		t.Fatalf("DecodeForm returned error: %v", err)
	}
	if f.Questions[0].HelpText["EN"] != "Write clearly" {
		t.Fatalf("help text = %v", f.Questions[0].HelpText)
	}
	var paths []string
	f.eachText(func(path string, _ TranslatedText) { paths = append(paths, path) })
	found := false
	for _, p := range paths {
		found = found || p == "questions/q1/helpText"
	}
	if !found {
		t.Fatalf("text paths = %v", paths)
	}
	data, err := EncodeForm(f)
	if err != nil {
		t.Fatalf("EncodeForm returned error: %v", err)
	}
	if !strings.Contains(string(data), `"helpText":{"EN":"Write clearly"}`) {
		t.Fatalf("encoded form = %s", data)
	}
}
