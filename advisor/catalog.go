package advisor

import "fmt"

// Choice returns the choice with the given value.
func (o Option) Choice(value string) (Choice, bool) {
	for _, c := range o.Choices {
		if c.Value == value {
			return c, true
		}
	}
	return Choice{}, false
}

// Values lists the choice values in declared order.
func (o Option) Values() []string {
	values := make([]string, 0, len(o.Choices))
	for _, c := range o.Choices {
		values = append(values, c.Value)
	}
	return values
}

// Options returns the option catalog in declared order.
func (a *Advisor) Options() []Option {
	out := make([]Option, len(a.def.Options))
	for i, opt := range a.def.Options {
		opt.Choices = append([]Choice(nil), opt.Choices...)
		out[i] = opt
	}
	return out
}

// Option looks up an option by id.
func (a *Advisor) Option(id string) (Option, bool) {
	opt, ok := a.options[id]
	if !ok {
		return Option{}, false
	}
	return *opt, true
}

// Validate reports selections that do not name a known option or choice.
// The list is sorted by option id; an empty list means every selection is
// part of the catalog.
func (a *Advisor) Validate(selections map[string]string) []string {
	var unknown []string
	for _, optionID := range sortedKeys(selections) {
		value := selections[optionID]
		opt, ok := a.options[optionID]
		if !ok {
			unknown = append(unknown, fmt.Sprintf("unknown option %q", optionID))
			continue
		}
		if _, ok := opt.Choice(value); !ok {
			unknown = append(unknown, fmt.Sprintf("option %q has no choice %q", optionID, value))
		}
	}
	return unknown
}

// Defaults selects the first choice of every option, mirroring a form that
// was submitted untouched.
func (a *Advisor) Defaults() map[string]string {
	selections := make(map[string]string, len(a.def.Options))
	for _, opt := range a.def.Options {
		selections[opt.ID] = opt.Choices[0].Value
	}
	return selections
}
