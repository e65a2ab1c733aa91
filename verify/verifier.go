package verify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/c360studio/trackref/reference"
)

// Result is the outcome of one verification. A nil Err with HasTitle false
// is still a success: the page exists, there just was no title to show.
type Result struct {
	Title    string
	HasTitle bool
	Err      error
}

// OK reports whether the page was verified.
func (r Result) OK() bool {
	return r.Err == nil
}

// Verifier fetches reference URLs and pulls a title out of the page.
type Verifier struct {
	fetcher *Fetcher
	logger  *slog.Logger
}

// NewVerifier creates a verifier around fetcher.
func NewVerifier(fetcher *Fetcher, logger *slog.Logger) *Verifier {
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{fetcher: fetcher, logger: logger}
}

// Verify fetches target once and extracts the title selected by rules for
// kind.
func (v *Verifier) Verify(ctx context.Context, target string, kind reference.Kind, cfg HTTPConfig, rules Rules) Result {
	res, err := v.fetcher.Fetch(ctx, target, cfg)
	if err != nil {
		return Result{Err: err}
	}

	doc, err := parseDocument(res)
	if err != nil {
		return Result{Err: &ParseError{URL: target, Cause: err}}
	}

	selector := rules.Selector(kind)
	if selector == "" {
		v.logger.Debug("Page exists, no title rule", "url", target, "kind", kind)
		return Result{}
	}

	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		v.logger.Warn("Title selector matched nothing", "url", target, "selector", selector)
		return Result{}
	}

	title := collapseWhitespace(sel.Text())
	v.logger.Debug("Extracted title", "url", target, "selector", selector, "title", title)
	return Result{Title: title, HasTitle: true}
}

// parseDocument parses a fetched body as HTML. Bodies declared as something
// other than text or XML are rejected.
func parseDocument(res *FetchResult) (*goquery.Document, error) {
	if res.ContentType != "" {
		mediaType, _, err := mime.ParseMediaType(res.ContentType)
		if err != nil {
			return nil, fmt.Errorf("content type %q: %w", res.ContentType, err)
		}
		if !isMarkup(mediaType) {
			return nil, fmt.Errorf("unsupported content type %q", mediaType)
		}
	}

	root, err := html.Parse(bytes.NewReader(res.Body))
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}
	return goquery.NewDocumentFromNode(root), nil
}

func isMarkup(mediaType string) bool {
	return strings.HasPrefix(mediaType, "text/") || strings.HasSuffix(mediaType, "xml")
}

// collapseWhitespace turns every whitespace run, newlines included, into a
// single space and trims the ends.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
