package importer

import (
	"context"
	"fmt"

	"github.com/troopkit/rostersync/internal/staging"
	"github.com/troopkit/rostersync/internal/store"
	"github.com/troopkit/rostersync/internal/types"
)

type outcome int

const (
	scoutCreated outcome = iota
	scoutUpdated
	adultCreated
	adultLinked
	adultUpdated
)

func (o outcome) count(res *types.ImportResult) {
	switch o {
	case scoutCreated:
		res.Created++
	case scoutUpdated:
		res.Updated++
	case adultCreated:
		res.Created++
		res.AdultsCreated++
	case adultLinked:
		res.Created++
		res.AdultsLinked++
	case adultUpdated:
		res.Updated++
		res.AdultsUpdated++
	}
}

func applyScout(ctx context.Context, r *store.Repository, row types.StagedMember, patrols map[string]string) (outcome, error) {
	var patrolID string
	if name := staging.PatrolName(row.Patrol); name != "" {
		patrolID = patrols[patrolKey(name)]
	}

	switch row.ChangeType {
	case types.ChangeCreate:
		s := types.Scout{UnitID: row.UnitID}
		fillScout(&s, row, patrolID)
		return scoutCreated, r.InsertScout(ctx, &s)
	case types.ChangeUpdate:
		s, err := r.GetScout(ctx, row.UnitID, row.ExistingScoutID)
		if err != nil {
			return 0, err
		}
		fillScout(s, row, patrolID)
		return scoutUpdated, r.UpdateScout(ctx, s)
	}
	return 0, fmt.Errorf("unexpected change type %q", row.ChangeType)
}

func fillScout(s *types.Scout, row types.StagedMember, patrolID string) {
	s.FirstName, s.LastName = types.SplitName(row.Name)
	s.PatrolID = patrolID
	s.BSAMemberID = row.BSAMemberID
	s.Rank = row.LastRankApproved
	s.Position = row.Position
	s.Position2 = row.Position2
	s.RenewalStatus = row.RenewalStatus
	s.ExpirationDate = row.ExpirationDate
	s.IsActive = isActive(row.RenewalStatus)
}

func applyAdult(ctx context.Context, r *store.Repository, row types.StagedMember) (outcome, error) {
	switch {
	case row.ChangeType == types.ChangeUpdate:
		p, err := r.GetProfile(ctx, row.ExistingProfileID)
		if err != nil {
			return 0, err
		}
		fillProfile(p, row)
		return adultUpdated, r.UpdateProfile(ctx, p)

	case row.ChangeType == types.ChangeCreate && row.MatchedProfileID != "":
		p, err := r.GetProfile(ctx, row.MatchedProfileID)
		if err != nil {
			return 0, err
		}
		fillProfile(p, row)
		if err := r.UpdateProfile(ctx, p); err != nil {
			return 0, err
		}
		return adultLinked, ensureMembership(ctx, r, row, p.ID)

	case row.ChangeType == types.ChangeCreate:
		p := &types.Profile{}
		fillProfile(p, row)
		if err := r.InsertProfile(ctx, p); err != nil {
			return 0, err
		}
		return adultCreated, ensureMembership(ctx, r, row, p.ID)
	}
	return 0, fmt.Errorf("unexpected change type %q", row.ChangeType)
}

func fillProfile(p *types.Profile, row types.StagedMember) {
	p.FirstName, p.LastName = types.SplitName(row.Name)
	p.FullName = types.JoinName(p.FirstName, p.LastName)
	p.BSAMemberID = row.BSAMemberID
	p.MemberType = string(row.Type)
	p.Position = row.Position
	p.Position2 = row.Position2
	p.RenewalStatus = row.RenewalStatus
	p.ExpirationDate = row.ExpirationDate
}

func ensureMembership(ctx context.Context, r *store.Repository, row types.StagedMember, profileID string) error {
	_, err := r.EnsureMembership(ctx, types.Membership{
		UnitID:    row.UnitID,
		ProfileID: profileID,
		Role:      types.RoleForMemberType(row.Type),
	})
	return err
}
