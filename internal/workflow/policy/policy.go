// Package policy decides whether an actor may move a record along the
// disposition workflow and what the move changes. It performs no I/O.
package policy

import (
	"fmt"
	"strings"

	"disposisi/internal/workflow/models"
	"disposisi/pkg/domain"
	dErrors "disposisi/pkg/domain-errors"
)

// Directory answers whether a name belongs to a known actor of a role.
type Directory interface {
	IsKnown(role domain.Role, name string) bool
}

// Outcome is an accepted transition.
type Outcome struct {
	To             models.Status
	TimelineAction string
	Effects        models.Effects
}

type rule struct {
	to     models.Status
	decide func(rec *models.Record, actor domain.Actor, req *models.TransitionRequest, dir Directory) (Outcome, error)
}

var table = map[models.Status]map[models.Action]rule{
	models.StatusDraft: {
		models.ActionForwardToCoordinator: {to: models.StatusSentToCoordinator, decide: forward},
	},
	models.StatusSentToCoordinator: {
		models.ActionAssignToStaff: {to: models.StatusAssignedToStaff, decide: assignFromPool},
	},
	models.StatusAssignedToStaff: {
		models.ActionCompleteTask: {to: models.StatusCompletedByStaff, decide: complete},
	},
	models.StatusCompletedByStaff: {
		models.ActionApprove:         {to: models.StatusApproved, decide: approve},
		models.ActionRequestRevision: {to: models.StatusRevisionNeeded, decide: requestRevision},
	},
	models.StatusRevisionNeeded: {
		models.ActionAssignToStaff: {to: models.StatusAssignedToStaff, decide: reassign},
	},
}

// Decide evaluates req against rec. Rejections are checked in order: an
// action not allowed from the current status is IllegalTransition, a wrong
// role or missing assignment is Unauthorized, a bad payload is Validation.
func Decide(rec *models.Record, actor domain.Actor, req *models.TransitionRequest, dir Directory) (Outcome, error) {
	r, ok := table[rec.Status][req.Action]
	if !ok {
		return Outcome{}, dErrors.New(dErrors.CodeIllegalTransition,
			fmt.Sprintf("action %q is not allowed from status %q", req.Action, rec.Status))
	}
	out, err := r.decide(rec, actor, req, dir)
	if err != nil {
		return Outcome{}, err
	}
	out.To = r.to
	return out, nil
}

// AllowedActions lists the actions actor may attempt on rec right now,
// ignoring payload. Dashboards use it to render buttons.
func AllowedActions(rec *models.Record, actor domain.Actor) []models.Action {
	var out []models.Action
	for _, action := range []models.Action{
		models.ActionForwardToCoordinator,
		models.ActionAssignToStaff,
		models.ActionCompleteTask,
		models.ActionApprove,
		models.ActionRequestRevision,
	} {
		if _, ok := table[rec.Status][action]; !ok {
			continue
		}
		if authorize(rec, actor, action) == nil {
			out = append(out, action)
		}
	}
	return out
}

func authorize(rec *models.Record, actor domain.Actor, action models.Action) error {
	switch action {
	case models.ActionForwardToCoordinator:
		if actor.Role != domain.RoleTU || actor.Name != rec.CreatedBy {
			return unauthorized("only the TU who created the record may forward it")
		}
	case models.ActionAssignToStaff:
		if actor.Role != domain.RoleCoordinator {
			return unauthorized("only coordinators may assign staff")
		}
		if rec.IsCoordinator(actor.Name) {
			return nil
		}
		if rec.IsUnclaimed() {
			return nil
		}
		return unauthorized("coordinator is not assigned to this record")
	case models.ActionCompleteTask:
		if actor.Role != domain.RoleStaff || !rec.IsStaff(actor.Name) {
			return unauthorized("only assigned staff may complete the task")
		}
	case models.ActionApprove, models.ActionRequestRevision:
		if actor.Role != domain.RoleCoordinator || !rec.IsCoordinator(actor.Name) {
			return unauthorized("only an assigned coordinator may review completed work")
		}
	}
	return nil
}

func forward(rec *models.Record, actor domain.Actor, req *models.TransitionRequest, dir Directory) (Outcome, error) {
	if err := authorize(rec, actor, models.ActionForwardToCoordinator); err != nil {
		return Outcome{}, err
	}
	if len(req.Coordinators) == 0 {
		return Outcome{}, dErrors.New(dErrors.CodeValidation, "at least one coordinator is required")
	}
	if err := requireKnown(dir, domain.RoleCoordinator, req.Coordinators); err != nil {
		return Outcome{}, err
	}
	// TU may suggest instructions and notes for the coordinator; assignment replaces them.
	if bad := models.UnknownTodo(req.TodoList); bad != "" {
		return Outcome{}, dErrors.New(dErrors.CodeValidation, "unknown disposition instruction: "+bad)
	}
	if err := models.ValidateNotes(req.Notes); err != nil {
		return Outcome{}, err
	}
	eff := models.Effects{AssignedCoordinators: req.Coordinators, Notes: req.Notes}
	if len(req.TodoList) > 0 {
		eff.TodoList = req.TodoList
	}
	return Outcome{
		TimelineAction: "Forwarded to coordinators: " + strings.Join(req.Coordinators, ", "),
		Effects:        eff,
	}, nil
}

// assignFromPool also handles the unclaimed pool: a coordinator assigning
// staff on a record with no coordinators claims it.
func assignFromPool(rec *models.Record, actor domain.Actor, req *models.TransitionRequest, dir Directory) (Outcome, error) {
	if err := authorize(rec, actor, models.ActionAssignToStaff); err != nil {
		return Outcome{}, err
	}
	out, err := assignment(req, dir)
	if err != nil {
		return Outcome{}, err
	}
	if len(rec.AssignedCoordinators) == 0 {
		out.Effects.AssignedCoordinators = []string{actor.Name}
	}
	return out, nil
}

func reassign(rec *models.Record, actor domain.Actor, req *models.TransitionRequest, dir Directory) (Outcome, error) {
	if actor.Role != domain.RoleCoordinator || !rec.IsCoordinator(actor.Name) {
		return Outcome{}, unauthorized("only an assigned coordinator may reassign staff")
	}
	return assignment(req, dir)
}

func assignment(req *models.TransitionRequest, dir Directory) (Outcome, error) {
	if len(req.Staff) == 0 {
		return Outcome{}, dErrors.New(dErrors.CodeValidation, "at least one staff member is required")
	}
	if err := requireKnown(dir, domain.RoleStaff, req.Staff); err != nil {
		return Outcome{}, err
	}
	if bad := models.UnknownTodo(req.TodoList); bad != "" {
		return Outcome{}, dErrors.New(dErrors.CodeValidation, "unknown disposition instruction: "+bad)
	}
	if err := models.ValidateNotes(req.Notes); err != nil {
		return Outcome{}, err
	}
	todo := req.TodoList
	if todo == nil {
		todo = []string{}
	}
	notes := ""
	if req.Notes != nil {
		notes = *req.Notes
	}
	return Outcome{
		TimelineAction: "Assigned to staff: " + strings.Join(req.Staff, ", "),
		Effects: models.Effects{
			AssignedStaff: req.Staff,
			TodoList:      todo,
			Notes:         &notes,
		},
	}, nil
}

func complete(rec *models.Record, actor domain.Actor, _ *models.TransitionRequest, _ Directory) (Outcome, error) {
	if err := authorize(rec, actor, models.ActionCompleteTask); err != nil {
		return Outcome{}, err
	}
	return Outcome{TimelineAction: "Completed by staff"}, nil
}

func approve(rec *models.Record, actor domain.Actor, _ *models.TransitionRequest, _ Directory) (Outcome, error) {
	if err := authorize(rec, actor, models.ActionApprove); err != nil {
		return Outcome{}, err
	}
	return Outcome{TimelineAction: "Approved"}, nil
}

func requestRevision(rec *models.Record, actor domain.Actor, req *models.TransitionRequest, _ Directory) (Outcome, error) {
	if err := authorize(rec, actor, models.ActionRequestRevision); err != nil {
		return Outcome{}, err
	}
	if err := models.ValidateNotes(req.Notes); err != nil {
		return Outcome{}, err
	}
	return Outcome{
		TimelineAction: "Returned for revision",
		Effects:        models.Effects{Notes: req.Notes},
	}, nil
}

func requireKnown(dir Directory, role domain.Role, names []string) error {
	for _, n := range names {
		if !dir.IsKnown(role, n) {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown %s: %s", strings.ToLower(string(role)), n))
		}
	}
	return nil
}

func unauthorized(msg string) error {
	return dErrors.New(dErrors.CodeUnauthorized, msg)
}
