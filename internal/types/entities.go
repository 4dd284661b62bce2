package types

import "time"

// Unit is the tenant boundary: a troop, pack, crew or ship.
type Unit struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	UnitType  string    `json:"unit_type,omitempty"`
	Number    string    `json:"number,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Patrol is a sub-group of scouts inside a unit, keyed by (unit, name).
type Patrol struct {
	ID        string    `json:"id"`
	UnitID    string    `json:"unit_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Scout is a live youth row owned by one unit.
type Scout struct {
	ID             string    `json:"id"`
	UnitID         string    `json:"unit_id"`
	PatrolID       string    `json:"patrol_id,omitempty"`
	PatrolName     string    `json:"patrol_name,omitempty"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	BSAMemberID    string    `json:"bsa_member_id,omitempty"`
	Rank           string    `json:"rank,omitempty"`
	Position       string    `json:"position,omitempty"`
	Position2      string    `json:"position2,omitempty"`
	RenewalStatus  string    `json:"renewal_status,omitempty"`
	ExpirationDate string    `json:"expiration_date,omitempty"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Profile is an adult person record. A profile may belong to several units
// through memberships, or to none.
type Profile struct {
	ID             string    `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	FullName       string    `json:"full_name"`
	BSAMemberID    string    `json:"bsa_member_id,omitempty"`
	MemberType     string    `json:"member_type,omitempty"`
	Position       string    `json:"position,omitempty"`
	Position2      string    `json:"position2,omitempty"`
	RenewalStatus  string    `json:"renewal_status,omitempty"`
	ExpirationDate string    `json:"expiration_date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Membership roles.
const (
	RoleLeader = "leader"
	RoleAdult  = "adult"
)

// Membership joins a profile to a unit.
type Membership struct {
	UnitID    string    `json:"unit_id"`
	ProfileID string    `json:"profile_id"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// RoleForMemberType derives the membership role for an adult roster type.
func RoleForMemberType(t MemberType) string {
	if t == MemberLeader {
		return RoleLeader
	}
	return RoleAdult
}
