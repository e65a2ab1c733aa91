package reference

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrUnrecognizedSyntax is returned when a token matches none of the known
// reference shapes.
var ErrUnrecognizedSyntax = errors.New("unrecognized reference syntax")

// Reference is a classified token.
type Reference struct {
	Raw  string
	Kind Kind
	// ID is digits for tickets and numbered revisions, a word for changesets,
	// and a page name with an optional "#anchor" for wiki pages.
	ID string
}

// shapes are tried in order; the whole token must match.
var shapes = []struct {
	pattern *regexp.Regexp
	kind    Kind
}{
	{regexp.MustCompile(`^\[(\d+)\]$`), KindRevision},
	{regexp.MustCompile(`^r(\d+)$`), KindRevision},
	{regexp.MustCompile(`^changeset:(\w+)$`), KindRevision},
	{regexp.MustCompile(`^#(\d+)$`), KindTicket},
	{regexp.MustCompile(`^wiki:(\w+(?:#\w+)?)$`), KindWiki},
}

// Classify determines the kind and identifier of a raw token.
func Classify(token string) (Reference, error) {
	for _, s := range shapes {
		if m := s.pattern.FindStringSubmatch(token); m != nil {
			return Reference{Raw: token, Kind: s.kind, ID: m[1]}, nil
		}
	}
	return Reference{}, fmt.Errorf("%w: %q", ErrUnrecognizedSyntax, token)
}

// URL returns the tracker URL of the reference below baseURL. project is the
// repository slug used in revision URLs. baseURL must not end with a slash.
func (r Reference) URL(baseURL, project string) string {
	switch r.Kind {
	case KindRevision:
		return baseURL + "/repositories/revision/" + project + "/" + r.ID
	case KindTicket:
		return baseURL + "/issues/show/" + r.ID
	case KindWiki:
		return baseURL + "/wiki/" + r.ID
	}
	return ""
}

// Build classifies token and constructs its URL.
func Build(token, baseURL, project string) (string, Reference, error) {
	ref, err := Classify(token)
	if err != nil {
		return "", Reference{}, err
	}
	return ref.URL(baseURL, project), ref, nil
}
