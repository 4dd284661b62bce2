package parser

import (
	"regexp"
	"strconv"

	"github.com/troopkit/rostersync/internal/browser"
)

var (
	totalItemsRe  = regexp.MustCompile(`(?i)\bTotal\s+(\d+)\s+Items\b`)
	currentPageRe = regexp.MustCompile(`listitem "(\d+)"[^\n]*\[selected\]`)
)

// FindNextPageRef returns the ref of the "Next Page" list item.
func FindNextPageRef(snap *browser.Snapshot) (string, bool) {
	if snap == nil {
		return "", false
	}
	ref, ok := snap.Find("listitem", "Next Page")
	return ref.ID, ok
}

// HasNextPage reports whether a "Next Page" control is present.
func HasNextPage(snap *browser.Snapshot) bool {
	_, ok := FindNextPageRef(snap)
	return ok
}

// TotalMemberCount reads "Total N Items" from snapshot text, or 0.
func TotalMemberCount(text string) int {
	m := totalItemsRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// CurrentPage returns the selected page number, defaulting to 1.
func CurrentPage(text string) int {
	m := currentPageRe.FindStringSubmatch(text)
	if m == nil {
		return 1
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 1 {
		return 1
	}
	return n
}
