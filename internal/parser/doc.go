// Package parser extracts typed records from roster and profile pages.
//
// Every extraction degrades instead of failing: a column or token that
// cannot be placed is left empty and parsing continues. Errors are returned
// only for unusable input such as oversized HTML. Alternative extraction
// methods for the same page are expressed as Strategy values tried in order
// by a Chain.
//
// The keyword tables (ranks, positions, patrol words, renewal statuses) come
// from a vocab.Vocabulary, so tests can run against synthetic vocabularies.
package parser
