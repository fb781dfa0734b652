package utils

// Server-side messages for fixed keys. Form texts live in the forms themselves.

var translations = map[string]map[string]string{
	"EN": {
		"health.ok":      "ok",
		"error.internal": "internal error",
		"error.body":     "could not decode request body",
	},
	"RO": {
		"health.ok":      "în regulă",
		"error.internal": "eroare internă",
		"error.body":     "corpul cererii nu a putut fi citit",
	},
}

// MessageLocales lists the locales T has messages for.
func MessageLocales() []string { return []string{"EN", "RO"} }

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if v, ok := translations["EN"][key]; ok {
		return v
	}
	return key
}
