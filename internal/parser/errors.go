package parser

import "errors"

var (
	// ErrHTMLTooLarge is returned for HTML input above MaxHTMLSize.
	ErrHTMLTooLarge = errors.New("roster html exceeds size limit")

	// ErrNoConfidentResult is returned by a Strategy that found nothing it
	// could vouch for. A Chain moves on to the next strategy.
	ErrNoConfidentResult = errors.New("no confident result")
)
