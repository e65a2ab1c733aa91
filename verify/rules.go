package verify

import (
	"fmt"

	"github.com/andybalholm/cascadia"

	"github.com/c360studio/trackref/reference"
)

// Rules maps each reference kind to the CSS selector of the element holding
// its title. An empty selector means the page is only checked for existence.
type Rules map[reference.Kind]string

// DefaultRules returns the selectors for a stock Redmine install.
func DefaultRules() Rules {
	return Rules{
		reference.KindTicket:   "h2.summary",
		reference.KindRevision: "#searchable p",
		reference.KindWiki:     "",
	}
}

// Selector returns the selector for kind, or "" when there is none.
func (r Rules) Selector(kind reference.Kind) string {
	return r[kind]
}

// Validate checks that every kind has exactly one rule and every non-empty
// selector compiles.
func (r Rules) Validate() error {
	for _, kind := range reference.Kinds {
		selector, ok := r[kind]
		if !ok {
			return fmt.Errorf("no title rule for %s references", kind)
		}
		if selector == "" {
			continue
		}
		if _, err := cascadia.Compile(selector); err != nil {
			return fmt.Errorf("invalid %s selector %q: %w", kind, selector, err)
		}
	}
	return nil
}
