package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disposisi/internal/workflow/models"
	"disposisi/pkg/domain"
	dErrors "disposisi/pkg/domain-errors"
)

type fakeDirectory map[string]domain.Role

func (d fakeDirectory) IsKnown(role domain.Role, name string) bool {
	r, ok := d[name]
	return ok && r == role
}

var (
	dir = fakeDirectory{
		"Suwati, S.h":      domain.RoleCoordinator,
		"Adi Sulaksono":    domain.RoleCoordinator,
		"Ahmad Fauzi":      domain.RoleStaff,
		"Rita Juwita":      domain.RoleStaff,
		"Administrator TU": domain.RoleTU,
	}
	tu      = domain.Actor{Name: "Administrator TU", Role: domain.RoleTU}
	otherTU = domain.Actor{Name: "Kepala TU", Role: domain.RoleTU}
	suwati  = domain.Actor{Name: "Suwati, S.h", Role: domain.RoleCoordinator}
	adi     = domain.Actor{Name: "Adi Sulaksono", Role: domain.RoleCoordinator}
	rita    = domain.Actor{Name: "Rita Juwita", Role: domain.RoleStaff}
	ahmad   = domain.Actor{Name: "Ahmad Fauzi", Role: domain.RoleStaff}

	allActions = []models.Action{
		models.ActionForwardToCoordinator, models.ActionAssignToStaff, models.ActionCompleteTask,
		models.ActionApprove, models.ActionRequestRevision, models.Action("archive"),
	}
)

func recordIn(status models.Status, coords, staff []string) *models.Record {
	r := models.NewRecord(domain.NewRecordID(), models.Fields{LetterNumber: "SPT/001/2024"}, nil, tu.Name, time.Now())
	r.Status = status
	if coords != nil {
		r.AssignedCoordinators = coords
	}
	if staff != nil {
		r.AssignedStaff = staff
	}
	return r
}

func TestDecideAccepts(t *testing.T) {
	notes := "Koordinasi agenda rapat"
	revise := "lengkapi lampiran"

	cases := []struct {
		name       string
		record     *models.Record
		actor      domain.Actor
		req        models.TransitionRequest
		wantTo     models.Status
		wantAction string
		check      func(t *testing.T, out Outcome)
	}{
		{
			name:       "creator forwards draft",
			record:     recordIn(models.StatusDraft, nil, nil),
			actor:      tu,
			req:        models.TransitionRequest{Action: models.ActionForwardToCoordinator, Coordinators: []string{"Suwati, S.h", "Adi Sulaksono"}},
			wantTo:     models.StatusSentToCoordinator,
			wantAction: "Forwarded to coordinators: Suwati, S.h, Adi Sulaksono",
			check: func(t *testing.T, out Outcome) {
				assert.Equal(t, []string{"Suwati, S.h", "Adi Sulaksono"}, out.Effects.AssignedCoordinators)
				assert.Nil(t, out.Effects.Notes, "forwarding leaves notes alone")
				assert.Nil(t, out.Effects.TodoList)
			},
		},
		{
			name:   "forward carries suggested instructions and notes",
			record: recordIn(models.StatusDraft, nil, nil),
			actor:  tu,
			req: models.TransitionRequest{Action: models.ActionForwardToCoordinator, Coordinators: []string{"Suwati, S.h"},
				TodoList: []string{"Untuk diketahui"}, Notes: &notes},
			wantTo:     models.StatusSentToCoordinator,
			wantAction: "Forwarded to coordinators: Suwati, S.h",
			check: func(t *testing.T, out Outcome) {
				assert.Equal(t, []string{"Untuk diketahui"}, out.Effects.TodoList)
				require.NotNil(t, out.Effects.Notes)
				assert.Equal(t, notes, *out.Effects.Notes)
			},
		},
		{
			name:       "assigned coordinator assigns staff",
			record:     recordIn(models.StatusSentToCoordinator, []string{suwati.Name}, nil),
			actor:      suwati,
			req:        models.TransitionRequest{Action: models.ActionAssignToStaff, Staff: []string{"Rita Juwita"}, TodoList: []string{"Siapkan bahan"}, Notes: &notes},
			wantTo:     models.StatusAssignedToStaff,
			wantAction: "Assigned to staff: Rita Juwita",
			check: func(t *testing.T, out Outcome) {
				assert.Equal(t, []string{"Rita Juwita"}, out.Effects.AssignedStaff)
				assert.Equal(t, []string{"Siapkan bahan"}, out.Effects.TodoList)
				assert.Equal(t, notes, *out.Effects.Notes)
				assert.Nil(t, out.Effects.AssignedCoordinators)
			},
		},
		{
			name:       "any coordinator claims unclaimed record",
			record:     recordIn(models.StatusSentToCoordinator, []string{}, nil),
			actor:      adi,
			req:        models.TransitionRequest{Action: models.ActionAssignToStaff, Staff: []string{"Ahmad Fauzi"}},
			wantTo:     models.StatusAssignedToStaff,
			wantAction: "Assigned to staff: Ahmad Fauzi",
			check: func(t *testing.T, out Outcome) {
				assert.Equal(t, []string{adi.Name}, out.Effects.AssignedCoordinators)
				assert.Equal(t, []string{}, out.Effects.TodoList)
			},
		},
		{
			name:       "assigned staff completes",
			record:     recordIn(models.StatusAssignedToStaff, []string{suwati.Name}, []string{rita.Name, ahmad.Name}),
			actor:      ahmad,
			req:        models.TransitionRequest{Action: models.ActionCompleteTask},
			wantTo:     models.StatusCompletedByStaff,
			wantAction: "Completed by staff",
		},
		{
			name:       "assigned coordinator approves",
			record:     recordIn(models.StatusCompletedByStaff, []string{suwati.Name}, []string{rita.Name}),
			actor:      suwati,
			req:        models.TransitionRequest{Action: models.ActionApprove},
			wantTo:     models.StatusApproved,
			wantAction: "Approved",
		},
		{
			name:       "assigned coordinator requests revision with notes",
			record:     recordIn(models.StatusCompletedByStaff, []string{suwati.Name}, []string{rita.Name}),
			actor:      suwati,
			req:        models.TransitionRequest{Action: models.ActionRequestRevision, Notes: &revise},
			wantTo:     models.StatusRevisionNeeded,
			wantAction: "Returned for revision",
			check: func(t *testing.T, out Outcome) {
				assert.Equal(t, revise, *out.Effects.Notes)
			},
		},
		{
			name:       "assigned coordinator reassigns after revision",
			record:     recordIn(models.StatusRevisionNeeded, []string{suwati.Name}, []string{rita.Name}),
			actor:      suwati,
			req:        models.TransitionRequest{Action: models.ActionAssignToStaff, Staff: []string{"Ahmad Fauzi"}},
			wantTo:     models.StatusAssignedToStaff,
			wantAction: "Assigned to staff: Ahmad Fauzi",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Decide(tc.record, tc.actor, &tc.req, dir)
			require.NoError(t, err)
			assert.Equal(t, tc.wantTo, out.To)
			assert.Equal(t, tc.wantAction, out.TimelineAction)
			if tc.check != nil {
				tc.check(t, out)
			}
		})
	}
}

func TestDecideRejects(t *testing.T) {
	cases := []struct {
		name     string
		record   *models.Record
		actor    domain.Actor
		req      models.TransitionRequest
		wantCode dErrors.Code
	}{
		{"approve a draft", recordIn(models.StatusDraft, nil, nil), suwati, models.TransitionRequest{Action: models.ActionApprove}, dErrors.CodeIllegalTransition},
		{"unknown action", recordIn(models.StatusDraft, nil, nil), tu, models.TransitionRequest{Action: "archive"}, dErrors.CodeIllegalTransition},
		{"illegal beats unauthorized", recordIn(models.StatusApproved, []string{suwati.Name}, nil), rita, models.TransitionRequest{Action: models.ActionCompleteTask}, dErrors.CodeIllegalTransition},
		{"forward by non-creator TU", recordIn(models.StatusDraft, nil, nil), otherTU, models.TransitionRequest{Action: models.ActionForwardToCoordinator, Coordinators: []string{suwati.Name}}, dErrors.CodeUnauthorized},
		{"forward by coordinator", recordIn(models.StatusDraft, nil, nil), suwati, models.TransitionRequest{Action: models.ActionForwardToCoordinator, Coordinators: []string{suwati.Name}}, dErrors.CodeUnauthorized},
		{"unauthorized beats validation", recordIn(models.StatusDraft, nil, nil), otherTU, models.TransitionRequest{Action: models.ActionForwardToCoordinator}, dErrors.CodeUnauthorized},
		{"forward without coordinators", recordIn(models.StatusDraft, nil, nil), tu, models.TransitionRequest{Action: models.ActionForwardToCoordinator}, dErrors.CodeValidation},
		{"forward to unknown coordinator", recordIn(models.StatusDraft, nil, nil), tu, models.TransitionRequest{Action: models.ActionForwardToCoordinator, Coordinators: []string{"Nobody"}}, dErrors.CodeValidation},
		{"forward to staff name", recordIn(models.StatusDraft, nil, nil), tu, models.TransitionRequest{Action: models.ActionForwardToCoordinator, Coordinators: []string{"Rita Juwita"}}, dErrors.CodeValidation},
		{"assign by unassigned coordinator", recordIn(models.StatusSentToCoordinator, []string{suwati.Name}, nil), adi, models.TransitionRequest{Action: models.ActionAssignToStaff, Staff: []string{rita.Name}}, dErrors.CodeUnauthorized},
		{"assign without staff", recordIn(models.StatusSentToCoordinator, []string{suwati.Name}, nil), suwati, models.TransitionRequest{Action: models.ActionAssignToStaff}, dErrors.CodeValidation},
		{"forward unknown todo", recordIn(models.StatusDraft, nil, nil), tu, models.TransitionRequest{Action: models.ActionForwardToCoordinator, Coordinators: []string{suwati.Name}, TodoList: []string{"Buang"}}, dErrors.CodeValidation},
		{"assign unknown todo", recordIn(models.StatusSentToCoordinator, []string{suwati.Name}, nil), suwati, models.TransitionRequest{Action: models.ActionAssignToStaff, Staff: []string{rita.Name}, TodoList: []string{"Buang"}}, dErrors.CodeValidation},
		{"complete by unassigned staff", recordIn(models.StatusAssignedToStaff, []string{suwati.Name}, []string{rita.Name}), ahmad, models.TransitionRequest{Action: models.ActionCompleteTask}, dErrors.CodeUnauthorized},
		{"approve by unassigned coordinator", recordIn(models.StatusCompletedByStaff, []string{suwati.Name}, []string{rita.Name}), adi, models.TransitionRequest{Action: models.ActionApprove}, dErrors.CodeUnauthorized},
		{"reassign after revision by unassigned coordinator", recordIn(models.StatusRevisionNeeded, []string{suwati.Name}, []string{rita.Name}), adi, models.TransitionRequest{Action: models.ActionAssignToStaff, Staff: []string{rita.Name}}, dErrors.CodeUnauthorized},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decide(tc.record, tc.actor, &tc.req, dir)
			require.Error(t, err)
			assert.Equal(t, tc.wantCode, dErrors.CodeOf(err), err.Error())
		})
	}
}

// Every (status, action) pair outside the table is rejected as illegal.
func TestDecideIllegalPairs(t *testing.T) {
	statuses := []models.Status{
		models.StatusDraft, models.StatusSentToCoordinator, models.StatusAssignedToStaff,
		models.StatusCompletedByStaff, models.StatusApproved, models.StatusRevisionNeeded,
	}
	for _, st := range statuses {
		for _, action := range allActions {
			if _, legal := table[st][action]; legal {
				continue
			}
			_, err := Decide(recordIn(st, []string{suwati.Name}, []string{rita.Name}), suwati, &models.TransitionRequest{Action: action}, dir)
			assert.Equal(t, dErrors.CodeIllegalTransition, dErrors.CodeOf(err), "%s/%s", st, action)
		}
	}
}

func TestAllowedActions(t *testing.T) {
	completed := recordIn(models.StatusCompletedByStaff, []string{suwati.Name}, []string{rita.Name})
	assert.Equal(t, []models.Action{models.ActionApprove, models.ActionRequestRevision}, AllowedActions(completed, suwati))
	assert.Empty(t, AllowedActions(completed, adi))
	assert.Empty(t, AllowedActions(completed, rita))

	pool := recordIn(models.StatusSentToCoordinator, []string{}, nil)
	assert.Equal(t, []models.Action{models.ActionAssignToStaff}, AllowedActions(pool, adi))

	draft := recordIn(models.StatusDraft, nil, nil)
	assert.Equal(t, []models.Action{models.ActionForwardToCoordinator}, AllowedActions(draft, tu))
	assert.Empty(t, AllowedActions(draft, otherTU))
}
