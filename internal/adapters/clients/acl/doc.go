// Package acl is the anti-corruption layer between the remote posts API and
// the quote domain.
//
// The remote speaks in posts ({id, title, body, userId}); the domain speaks
// in quotes ({id, text, category}). Nothing outside this package sees a post.
// Translation rules:
//
//   - title becomes the quote text; posts with a blank title are dropped
//   - id is kept so later cycles can detect conflicts
//   - category is the configured server category, since posts have none
//
// Every failure leaving this package is a domain error. Transport problems,
// open circuits, rate limiting and 5xx responses become
// [domain.ErrUnavailable]; see [MapHTTPError].
package acl
