package refine

import "strings"

// Options selects how a text should be refined. CombineAll applies every
// refinement at once regardless of the individual flags.
type Options struct {
	Shorten    bool `json:"shorten"`
	Clarify    bool `json:"clarify"`
	MakeKinder bool `json:"make_kinder"`
	Polish     bool `json:"polish"`
	CombineAll bool `json:"combine_all"`
}

// DefaultOptions is what a fresh helper screen starts with.
func DefaultOptions() Options {
	return Options{Shorten: true}
}

// Any reports whether at least one refinement is selected.
func (o Options) Any() bool {
	return o.Shorten || o.Clarify || o.MakeKinder || o.Polish || o.CombineAll
}

// Instructions renders the options as the instruction block of the prompt.
func (o Options) Instructions() string {
	if o.CombineAll || (o.Shorten && o.Clarify && o.MakeKinder && o.Polish) {
		return "Instructions: make the text shorter, clearer, kinder and more polished, all at once, " +
			"while keeping its original meaning."
	}
	if !o.Any() {
		return "Instructions: improve the text while keeping its original meaning."
	}

	var b strings.Builder
	b.WriteString("Instructions:")
	if o.Shorten {
		b.WriteString("\n- Make it shorter and more concise.")
	}
	if o.Clarify {
		b.WriteString("\n- Make it clearer and easier to understand.")
	}
	if o.MakeKinder {
		b.WriteString("\n- Make it kinder and friendlier in tone.")
	}
	if o.Polish {
		b.WriteString("\n- Polish the grammar, wording and flow.")
	}
	return b.String()
}
