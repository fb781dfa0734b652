package forms

// SelectOption is one choice of a single- or multi-select question. Option order is
// rendering order and is significant.
type SelectOption struct {
	ID         string         `json:"id"`
	Text       TranslatedText `json:"text"`
	IsFreeText bool           `json:"isFreeText,omitempty"`
	IsFlagged  bool           `json:"isFlagged,omitempty"`
}

func (o SelectOption) Equal(other SelectOption) bool {
	return o.ID == other.ID &&
		o.IsFreeText == other.IsFreeText &&
		o.IsFlagged == other.IsFlagged &&
		o.Text.Equal(other.Text)
}

func (o SelectOption) clone() SelectOption {
	o.Text = o.Text.Clone()
	return o
}

func optionsEqual(a, b []SelectOption) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func cloneOptions(opts []SelectOption) []SelectOption {
	if opts == nil {
		return nil
	}
	out := make([]SelectOption, len(opts))
	for i, o := range opts {
		out[i] = o.clone()
	}
	return out
}

func hasOption(opts []SelectOption, id string) bool {
	for _, o := range opts {
		if o.ID == id {
			return true
		}
	}
	return false
}
