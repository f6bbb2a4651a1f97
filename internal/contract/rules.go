package contract

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// problems accumulates validation reasons in the order they are found.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// require records the formatted reason when ok is false.
func (p *problems) require(ok bool, format string, args ...any) {
	if !ok {
		p.addf(format, args...)
	}
}

func (p *problems) unit(field string, v float64) {
	p.require(v >= 0 && v <= 1, "%s must be within [0,1], got %g", field, v)
}

func (p *problems) nonEmpty(field, v string) {
	p.require(strings.TrimSpace(v) != "", "%s must not be empty", field)
}

func (p *problems) maxRunes(field, v string, limit int) {
	if n := utf8.RuneCountInString(v); n > limit {
		p.addf("%s exceeds %d characters (%d)", field, limit, n)
	}
}

func (p *problems) oneOf(field, v string, allowed ...string) {
	for _, a := range allowed {
		if v == a {
			return
		}
	}
	p.addf("%s %q is not one of %s", field, v, strings.Join(allowed, "|"))
}

// subset records every element of got that is absent from allowed.
func (p *problems) subset(field string, got, allowed []string) {
	set := toSet(allowed)
	for _, id := range got {
		if _, ok := set[id]; !ok {
			p.addf("%s contains %q which was not in the input", field, id)
		}
	}
}

func (p *problems) prefixed(prefix string, reasons []string) {
	for _, r := range reasons {
		*p = append(*p, prefix+r)
	}
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func indexPrefix(field string, i int) string {
	return fmt.Sprintf("%s[%d]: ", field, i)
}
