package types

import "time"

// ChangeType classifies what committing a staged row would do.
type ChangeType string

const (
	ChangeCreate ChangeType = "create"
	ChangeUpdate ChangeType = "update"
	ChangeSkip   ChangeType = "skip"
)

// MatchType records which identity strategy linked an adult to a profile.
type MatchType string

const (
	MatchBSAID     MatchType = "bsa_id"
	MatchNameExact MatchType = "name_exact"
	MatchNameFuzzy MatchType = "name_fuzzy"
	MatchNone      MatchType = "none"
)

// SkipNoChanges is the skip reason for rows identical to the live row.
const SkipNoChanges = "no_changes"

// FieldChange is one old/new pair in a staged diff.
type FieldChange struct {
	Old string `json:"old" yaml:"old"`
	New string `json:"new" yaml:"new"`
}

// StagedMember is a roster member paired with the reconciliation decision
// computed for it. It is the only contract between staging and review.
type StagedMember struct {
	ID        string `json:"id" yaml:"id"`
	SessionID string `json:"sessionId" yaml:"session_id"`
	UnitID    string `json:"unitId" yaml:"unit_id"`

	Member `yaml:",inline"`

	ChangeType        ChangeType             `json:"changeType" yaml:"change_type"`
	ExistingScoutID   string                 `json:"existingScoutId,omitempty" yaml:"existing_scout_id,omitempty"`
	ExistingProfileID string                 `json:"existingProfileId,omitempty" yaml:"existing_profile_id,omitempty"`
	MatchedProfileID  string                 `json:"matchedProfileId,omitempty" yaml:"matched_profile_id,omitempty"`
	MatchType         MatchType              `json:"matchType,omitempty" yaml:"match_type,omitempty"`
	Changes           map[string]FieldChange `json:"changes" yaml:"changes,omitempty"`
	SkipReason        string                 `json:"skipReason,omitempty" yaml:"skip_reason,omitempty"`
	IsSelected        bool                   `json:"isSelected" yaml:"is_selected"`
	IsAdult           bool                   `json:"isAdult" yaml:"is_adult"`
	Version           int                    `json:"version" yaml:"version"`
	CreatedAt         time.Time              `json:"createdAt" yaml:"created_at"`
}

// ImportError ties a commit failure to the roster member that caused it.
type ImportError struct {
	Member Member `json:"member"`
	Error  string `json:"error"`
}

// ImportResult summarises one commit pass.
type ImportResult struct {
	Created       int           `json:"created"`
	Updated       int           `json:"updated"`
	Skipped       int           `json:"skipped"`
	Errors        []ImportError `json:"errors"`
	AdultsCreated int           `json:"adultsCreated"`
	AdultsUpdated int           `json:"adultsUpdated"`
	AdultsLinked  int           `json:"adultsLinked"`
}
