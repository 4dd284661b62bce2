package types

// Relationship is a parent or guardian link listed on a scout profile.
type Relationship struct {
	Name        string `json:"name"`
	BSAMemberID string `json:"bsaMemberId"`
	Relation    string `json:"relation"` // Son, Daughter, Child
}

// LeadershipPosition is a position of responsibility held by a scout.
type LeadershipPosition struct {
	Name       string `json:"name"`
	Days       int    `json:"days"`
	UnitType   string `json:"unitType"`
	UnitNumber string `json:"unitNumber"`
	Current    bool   `json:"current"`
}

// Rank progress states.
const (
	RankAwarded    = "awarded"
	RankApproved   = "approved"
	RankInProgress = "in_progress"
)

// RankProgress is one rank's advancement state on a profile page.
type RankProgress struct {
	Rank           string `json:"rank"`
	Status         string `json:"status"`
	CompletionDate string `json:"completionDate,omitempty"`
	Percent        int    `json:"percent"`
}

// ActivityTotals are the cumulative activity counters on a profile page.
type ActivityTotals struct {
	CampingNights int     `json:"campingNights"`
	HikingMiles   float64 `json:"hikingMiles"`
	ServiceHours  float64 `json:"serviceHours"`
}

// ScoutProfile is the detail page for one youth member.
type ScoutProfile struct {
	Name                string               `json:"name"`
	BSAMemberID         string               `json:"bsaMemberId"`
	Status              string               `json:"status,omitempty"`
	Unit                string               `json:"unit,omitempty"`
	Patrol              string               `json:"patrol,omitempty"`
	DateJoined          string               `json:"dateJoined,omitempty"`
	ScoutsBSALastRank   string               `json:"scoutsBsaLastRank,omitempty"`
	CubScoutLastRank    string               `json:"cubScoutLastRank,omitempty"`
	Relationships       []Relationship       `json:"relationships"`
	Positions           []LeadershipPosition `json:"positions"`
	RankProgress        []RankProgress       `json:"rankProgress"`
	MeritBadgesPending  int                  `json:"meritBadgesPending"`
	MeritBadgesApproved int                  `json:"meritBadgesApproved"`
	Activity            ActivityTotals       `json:"activity"`
}
