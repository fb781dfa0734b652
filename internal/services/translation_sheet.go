package services

import (
	"bytes"
	"encoding/csv"
	"strings"

	"github.com/tudoramariei/votemonitor/internal/forms"
)

// ExportTranslationSheet renders every translatable text of f as CSV rows
// "path,<default text>,<lang text>" for a translator to fill in.
func ExportTranslationSheet(f *forms.Form, lang string) ([]byte, error) {
	code, err := forms.NormalizeLanguageCode(lang)
	if err != nil {
		return nil, err
	}
	if !containsString(f.Languages, code) {
		return nil, &forms.LanguageNotFoundError{Code: code}
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"path", f.DefaultLanguage, code})
	for _, e := range f.Texts() {
		if err := w.Write([]string{e.Path, e.Text[f.DefaultLanguage], e.Text[code]}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ParseTranslationSheet reads a sheet back and returns the target language (third header
// column) and the translated value per path.
func ParseTranslationSheet(data []byte) (string, map[string]string, error) {
	// Strip optional UTF-8 BOM
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return "", nil, NewInvalidError("invalid csv: " + err.Error())
	}
	if len(rows) == 0 {
		return "", nil, NewInvalidError("empty csv")
	}
	header := rows[0]
	if len(header) < 3 || !strings.EqualFold(strings.TrimSpace(header[0]), "path") {
		return "", nil, NewInvalidError("header must be path,<default language>,<language>")
	}
	lang := strings.TrimSpace(header[2])
	values := make(map[string]string, len(rows)-1)
	for i, row := range rows[1:] {
		if len(strings.TrimSpace(strings.Join(row, ""))) == 0 {
			continue
		}
		path := strings.TrimSpace(row[0])
		if path == "" {
			return "", nil, NewInvalidError("row " + itoa(i+2) + ": path required")
		}
		if _, dup := values[path]; dup {
			return "", nil, NewInvalidError("row " + itoa(i+2) + ": duplicate path " + path)
		}
		v := ""
		if len(row) > 2 {
			v = row[2]
		}
		values[path] = v
	}
	return lang, values, nil
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
