package types

// Description is the json representation of a type
type Description struct {
	ID      string   `json:"id"`
	Short   string   `json:"short,omitempty"`
	Parents []string `json:"parents,omitempty"`
	Notes   string   `json:"notes,omitempty"`
	Core    bool     `json:"core,omitempty"`
}

func (t *ASType) Describe() Description {
	d := Description{
		ID:    t.id,
		Short: t.shortID,
		Notes: t.notes,
		Core:  t.core,
	}

	if len(t.parents) > 0 {
		d.Parents = IDs(t.parents)
	}

	return d
}

func Describe(ts []*ASType) []Description {
	descriptions := make([]Description, 0, len(ts))
	for _, t := range ts {
		descriptions = append(descriptions, t.Describe())
	}
	return descriptions
}
