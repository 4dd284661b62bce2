package types

import "testing"

func TestSplitName(t *testing.T) {
	tests := []struct {
		in        string
		wantFirst string
		wantLast  string
	}{
		{"George Anderson", "George", "Anderson"},
		{"Anderson, George", "George", "Anderson"},
		{"  Anderson ,  George  ", "George", "Anderson"},
		{"Mary Ann Smith", "Mary Ann", "Smith"},
		{"Robert Lee Jr.", "Robert", "Lee Jr."},
		{"Cher", "Cher", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			first, last := SplitName(tt.in)
			if first != tt.wantFirst || last != tt.wantLast {
				t.Errorf("SplitName(%q) = (%q, %q), want (%q, %q)", tt.in, first, last, tt.wantFirst, tt.wantLast)
			}
		})
	}
}

func TestMember_FullName(t *testing.T) {
	m := Member{Name: "Anderson, George"}
	if got := m.FullName(); got != "George Anderson" {
		t.Errorf("FullName() = %q, want %q", got, "George Anderson")
	}
}

func TestMemberType_Valid(t *testing.T) {
	for _, mt := range []MemberType{MemberYouth, MemberLeader, MemberP18} {
		if !mt.Valid() {
			t.Errorf("%q should be valid", mt)
		}
	}
	if MemberType("ADULT").Valid() {
		t.Error("ADULT should not be valid")
	}
}

func TestRoleForMemberType(t *testing.T) {
	if got := RoleForMemberType(MemberLeader); got != RoleLeader {
		t.Errorf("RoleForMemberType(LEADER) = %q, want %q", got, RoleLeader)
	}
	if got := RoleForMemberType(MemberP18); got != RoleAdult {
		t.Errorf("RoleForMemberType(P 18+) = %q, want %q", got, RoleAdult)
	}
}
