package leave

import (
	"context"
	"testing"

	"github.com/ogurasousui/attendance-approval/internal/core/directory"
	"github.com/ogurasousui/attendance-approval/internal/core/supervision"
)

func TestResolveVP_ManualAssignmentWins(t *testing.T) {
	t.Parallel()

	dir, sup, _ := newLeaveFixture()
	sup.addLink(&supervision.Link{ID: "link-1", VicePresidentID: "vp-1", DepartmentID: "dept-1", IsDefault: true})
	assigner := NewAssigner(dir, sup)

	requester := dir.users["emp-1"]
	req := &Request{RequesterID: "emp-1", AssignedVPID: strPtr("vp-2")}

	id, err := assigner.ResolveVP(context.Background(), req, requester)
	if err != nil {
		t.Fatalf("ResolveVP returned error: %v", err)
	}
	if id != "vp-2" {
		t.Fatalf("expected manual assignee vp-2, got %q", id)
	}
}

func TestResolveVP_InactiveManualAssigneeFallsThrough(t *testing.T) {
	t.Parallel()

	dir, sup, _ := newLeaveFixture()
	dir.addUser(&directory.User{ID: "vp-9", Name: "Retired", Role: directory.RoleVicePresident, Active: false})
	sup.addLink(&supervision.Link{ID: "link-1", VicePresidentID: "vp-1", DepartmentID: "dept-1", IsDefault: true})
	assigner := NewAssigner(dir, sup)

	requester := dir.users["emp-1"]
	req := &Request{RequesterID: "emp-1", AssignedVPID: strPtr("vp-9")}

	id, err := assigner.ResolveVP(context.Background(), req, requester)
	if err != nil {
		t.Fatalf("ResolveVP returned error: %v", err)
	}
	if id != "vp-1" {
		t.Fatalf("expected default supervisor vp-1, got %q", id)
	}
}

func TestResolveVP_DefaultLinkBeatsOtherLinks(t *testing.T) {
	t.Parallel()

	dir, sup, _ := newLeaveFixture()
	sup.addLink(&supervision.Link{ID: "link-1", VicePresidentID: "vp-1", DepartmentID: "dept-1", IsDefault: false})
	sup.addLink(&supervision.Link{ID: "link-2", VicePresidentID: "vp-2", DepartmentID: "dept-1", IsDefault: true})
	assigner := NewAssigner(dir, sup)

	requester := dir.users["emp-1"]

	id, err := assigner.ResolveVP(context.Background(), &Request{RequesterID: "emp-1"}, requester)
	if err != nil {
		t.Fatalf("ResolveVP returned error: %v", err)
	}
	if id != "vp-2" {
		t.Fatalf("expected default link vp-2, got %q", id)
	}
}

func TestResolveVP_AnyLinkWhenNoDefault(t *testing.T) {
	t.Parallel()

	dir, sup, _ := newLeaveFixture()
	sup.addLink(&supervision.Link{ID: "link-1", VicePresidentID: "vp-2", DepartmentID: "dept-1", IsDefault: false})
	assigner := NewAssigner(dir, sup)

	requester := dir.users["emp-1"]

	id, err := assigner.ResolveVP(context.Background(), &Request{RequesterID: "emp-1"}, requester)
	if err != nil {
		t.Fatalf("ResolveVP returned error: %v", err)
	}
	if id != "vp-2" {
		t.Fatalf("expected linked vp-2, got %q", id)
	}
}

func TestResolveVP_FallsBackToFirstActive(t *testing.T) {
	t.Parallel()

	dir, sup, _ := newLeaveFixture()
	assigner := NewAssigner(dir, sup)

	requester := dir.users["emp-1"]

	id, err := assigner.ResolveVP(context.Background(), &Request{RequesterID: "emp-1"}, requester)
	if err != nil {
		t.Fatalf("ResolveVP returned error: %v", err)
	}
	if id != "vp-1" {
		t.Fatalf("expected first active vp-1, got %q", id)
	}
}

func TestResolveVP_NoCandidate(t *testing.T) {
	t.Parallel()

	dir := newFakeDirectory()
	dir.addUser(&directory.User{ID: "emp-1", Role: directory.RoleEmployee, Active: true})
	sup := newFakeSupervisionRepo(dir)
	assigner := NewAssigner(dir, sup)

	id, err := assigner.ResolveVP(context.Background(), &Request{RequesterID: "emp-1"}, dir.users["emp-1"])
	if err != nil {
		t.Fatalf("ResolveVP returned error: %v", err)
	}
	if id != "" {
		t.Fatalf("expected no candidate, got %q", id)
	}
}

func TestResolveGM(t *testing.T) {
	t.Parallel()

	dir, sup, _ := newLeaveFixture()
	dir.addUser(&directory.User{ID: "gm-2", Name: "Kato", Role: directory.RoleGeneralManager, Active: true})
	assigner := NewAssigner(dir, sup)

	id, err := assigner.ResolveGM(context.Background(), &Request{AssignedGMID: strPtr("gm-2")})
	if err != nil {
		t.Fatalf("ResolveGM returned error: %v", err)
	}
	if id != "gm-2" {
		t.Fatalf("expected manual assignee gm-2, got %q", id)
	}

	id, err = assigner.ResolveGM(context.Background(), &Request{})
	if err != nil {
		t.Fatalf("ResolveGM returned error: %v", err)
	}
	if id != "gm-1" {
		t.Fatalf("expected first active gm-1, got %q", id)
	}
}
