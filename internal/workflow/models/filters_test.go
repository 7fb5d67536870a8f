package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"disposisi/pkg/domain"
)

func TestVisibleTo(t *testing.T) {
	tu := domain.Actor{Name: "Administrator TU", Role: domain.RoleTU}
	otherTU := domain.Actor{Name: "Kepala TU", Role: domain.RoleTU}
	suwati := domain.Actor{Name: "Suwati, S.h", Role: domain.RoleCoordinator}
	adi := domain.Actor{Name: "Adi Sulaksono", Role: domain.RoleCoordinator}
	rita := domain.Actor{Name: "Rita Juwita", Role: domain.RoleStaff}

	build := func(status Status, coords, staff []string) *Record {
		r := NewRecord(domain.NewRecordID(), sampleFields(), nil, tu.Name, time.Now())
		r.Status = status
		r.AssignedCoordinators = coords
		r.AssignedStaff = staff
		return r
	}

	cases := []struct {
		name   string
		record *Record
		actor  domain.Actor
		want   bool
	}{
		{"creator sees own record in progress", build(StatusAssignedToStaff, []string{suwati.Name}, []string{rita.Name}), tu, true},
		{"other TU sees drafts", build(StatusDraft, nil, nil), otherTU, true},
		{"other TU sees approved", build(StatusApproved, []string{suwati.Name}, []string{rita.Name}), otherTU, true},
		{"other TU does not see in-progress", build(StatusSentToCoordinator, []string{suwati.Name}, nil), otherTU, false},
		{"assigned coordinator", build(StatusSentToCoordinator, []string{suwati.Name}, nil), suwati, true},
		{"unassigned coordinator", build(StatusSentToCoordinator, []string{suwati.Name}, nil), adi, false},
		{"unclaimed pool visible to every coordinator", build(StatusSentToCoordinator, []string{}, nil), adi, true},
		{"empty assignment outside pool hidden", build(StatusDraft, []string{}, nil), adi, false},
		{"assigned staff while open", build(StatusAssignedToStaff, []string{suwati.Name}, []string{rita.Name}), rita, true},
		{"assigned staff during revision", build(StatusRevisionNeeded, []string{suwati.Name}, []string{rita.Name}), rita, true},
		{"assigned staff after completion", build(StatusCompletedByStaff, []string{suwati.Name}, []string{rita.Name}), rita, false},
		{"zero actor sees nothing", build(StatusDraft, nil, nil), domain.Actor{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, VisibleTo(tc.actor)(tc.record))
		})
	}
}

func TestWithStatusAndMatch(t *testing.T) {
	r := NewRecord(domain.NewRecordID(), sampleFields(), nil, "Administrator TU", time.Now())

	assert.True(t, Match(r))
	assert.True(t, Match(r, WithStatus()))
	assert.True(t, Match(r, WithStatus(StatusDraft, StatusApproved)))
	assert.False(t, Match(r, WithStatus(StatusApproved)))
}
