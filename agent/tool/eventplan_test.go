package tool

import (
	"strings"
	"testing"
)

func TestCreateEventPlanReplacesSessionPlan(t *testing.T) {
	t.Parallel()

	env := testEnv(nil, nil)
	result, err := executeCreateEventPlan(env, validPlanArgs())
	if err != nil {
		t.Fatalf("unexpected executor fault: %v", err)
	}
	if result.Error != "" {
		t.Fatalf("unexpected tool failure: %s", result.Error)
	}

	out, ok := result.Result.(EventPlanResult)
	if !ok {
		t.Fatalf("unexpected result type %T", result.Result)
	}
	if !out.Success || out.EventPlan == nil {
		t.Fatal("expected a successful result carrying the plan")
	}

	plan := env.State.Plan()
	if plan == nil {
		t.Fatal("plan was not stored in the session")
	}
	if plan.Title != "Team Offsite" || plan.Date != "2026-10-01" {
		t.Fatalf("stored plan does not match arguments: %+v", plan)
	}
	if len(plan.Agenda) != 2 {
		t.Fatalf("agenda length = %d, want 2", len(plan.Agenda))
	}
}

func TestCreateEventPlanMissingDateLeavesStateUntouched(t *testing.T) {
	t.Parallel()

	env := testEnv(nil, nil)
	args := validPlanArgs()
	delete(args, "date")

	result, err := executeCreateEventPlan(env, args)
	if err != nil {
		t.Fatalf("validation failures must not be executor faults: %v", err)
	}
	if result.Error == "" {
		t.Fatal("expected a validation failure in the result")
	}
	if !strings.Contains(result.Error, "date") {
		t.Fatalf("failure must name the missing field, got %q", result.Error)
	}
	if env.State.Plan() != nil {
		t.Fatal("invalid arguments must not mutate the session plan")
	}
}

func TestCreateEventPlanRequiresAgendaKey(t *testing.T) {
	t.Parallel()

	env := testEnv(nil, nil)
	args := validPlanArgs()
	delete(args, "agenda")

	result, _ := executeCreateEventPlan(env, args)
	if !strings.Contains(result.Error, "agenda") {
		t.Fatalf("missing agenda must be rejected, got %q", result.Error)
	}
	if env.State.Plan() != nil {
		t.Fatal("invalid arguments must not mutate the session plan")
	}
}

func TestCreateEventPlanRejectsNullAgenda(t *testing.T) {
	t.Parallel()

	env := testEnv(nil, nil)
	args := validPlanArgs()
	args["agenda"] = nil

	result, _ := executeCreateEventPlan(env, args)
	if !strings.Contains(result.Error, "agenda") {
		t.Fatalf("null agenda must be rejected, got %q", result.Error)
	}
	if env.State.Plan() != nil {
		t.Fatal("invalid arguments must not mutate the session plan")
	}
}

func TestCreateEventPlanRejectsIncompleteAgendaEntry(t *testing.T) {
	t.Parallel()

	env := testEnv(nil, nil)
	args := validPlanArgs()
	args["agenda"] = []any{map[string]any{"time": "10:00"}}

	result, _ := executeCreateEventPlan(env, args)
	if result.Error == "" {
		t.Fatal("agenda entries without an activity must be rejected")
	}
	if env.State.Plan() != nil {
		t.Fatal("invalid arguments must not mutate the session plan")
	}
}

func TestCreateEventPlanOverwritesPreviousPlan(t *testing.T) {
	t.Parallel()

	env := testEnv(nil, nil)
	if _, err := executeCreateEventPlan(env, validPlanArgs()); err != nil {
		t.Fatalf("seed plan: %v", err)
	}

	next := validPlanArgs()
	next["title"] = "Launch Party"
	if _, err := executeCreateEventPlan(env, next); err != nil {
		t.Fatalf("replacement plan: %v", err)
	}

	if got := env.State.Plan().Title; got != "Launch Party" {
		t.Fatalf("plan title = %q, want wholesale replacement", got)
	}
}
