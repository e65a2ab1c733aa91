// Package verify checks that a tracker URL resolves and pulls a short title
// out of the page.
//
// A verification is exactly one GET. The scheme and port come from
// configuration (https on 443 or http on 80), Basic auth is attached when
// configured, and redirects are not followed. A 200 body is parsed as HTML
// and the first element matching the kind's selector supplies the title,
// with whitespace collapsed. Kinds without a selector are existence checks.
//
// Failures are typed:
//
//   - *StatusError: the server answered with anything but 200
//   - *FetchError: connection, TLS, timeout or body read failure
//   - *ParseError: the body is too large or is not markup
//
// A selector that matches nothing is not a failure; the result simply has
// no title.
package verify
