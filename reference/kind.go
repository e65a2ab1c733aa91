// Package reference detects tracker references in chat text and turns them
// into tracker URLs.
//
// A reference is a shorthand token such as "#45" (ticket), "r10", "[10]" or
// "changeset:abc123" (revision), or "wiki:FooBar" (wiki page).
package reference

import "fmt"

// Kind classifies a reference and selects its URL shape and title rule.
type Kind int

const (
	KindUnknown Kind = iota
	KindRevision
	KindTicket
	KindWiki
)

// Kinds lists every known kind in a stable order.
var Kinds = []Kind{KindRevision, KindTicket, KindWiki}

func (k Kind) String() string {
	switch k {
	case KindRevision:
		return "revision"
	case KindTicket:
		return "ticket"
	case KindWiki:
		return "wiki"
	default:
		return "unknown"
	}
}

// ParseKind converts a kind name as written in configuration into a Kind.
// "changeset" is accepted as an alias for revision.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "revision", "changeset":
		return KindRevision, nil
	case "ticket":
		return KindTicket, nil
	case "wiki":
		return KindWiki, nil
	}
	return KindUnknown, fmt.Errorf("unknown reference kind %q", s)
}
