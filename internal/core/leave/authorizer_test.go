package leave

import (
	"context"
	"testing"
)

func TestAuthorize(t *testing.T) {
	t.Parallel()

	dir, _, _ := newLeaveFixture()
	// vp-1 は dept-2 の部門長を兼ねています。
	dir.departments["dept-2"].HeadID = strPtr("vp-1")
	az := NewAuthorizer(dir)

	cases := []struct {
		name    string
		req     *Request
		actorID string
		allowed bool
	}{
		{
			name:    "head approves pending from own department",
			req:     &Request{RequesterID: "emp-1", Status: StatusPending},
			actorID: "head-1",
			allowed: true,
		},
		{
			name:    "head denied outside own department",
			req:     &Request{RequesterID: "emp-1", Status: StatusPending},
			actorID: "head-2",
			allowed: false,
		},
		{
			name:    "head denied after department stage",
			req:     &Request{RequesterID: "emp-1", Status: StatusDeptApproved},
			actorID: "head-1",
			allowed: false,
		},
		{
			name:    "vp approves assigned dept_approved",
			req:     &Request{RequesterID: "emp-1", Status: StatusDeptApproved, AssignedVPID: strPtr("vp-1")},
			actorID: "vp-1",
			allowed: true,
		},
		{
			name:    "vp denied when assigned to another vp",
			req:     &Request{RequesterID: "emp-1", Status: StatusDeptApproved, AssignedVPID: strPtr("vp-2")},
			actorID: "vp-1",
			allowed: false,
		},
		{
			name:    "vp denied on unassigned dept_approved",
			req:     &Request{RequesterID: "emp-1", Status: StatusDeptApproved},
			actorID: "vp-1",
			allowed: false,
		},
		{
			name:    "vp approves own pending request when assigned to self",
			req:     &Request{RequesterID: "vp-1", Status: StatusPending, AssignedVPID: strPtr("vp-1")},
			actorID: "vp-1",
			allowed: true,
		},
		{
			name:    "vp approves assigned pending request from another vp",
			req:     &Request{RequesterID: "vp-2", Status: StatusPending, AssignedVPID: strPtr("vp-1")},
			actorID: "vp-1",
			allowed: true,
		},
		{
			name:    "vp acting as department head approves pending",
			req:     &Request{RequesterID: "head-2", Status: StatusPending},
			actorID: "vp-1",
			allowed: true,
		},
		{
			name:    "gm approves vp_approved without assignment",
			req:     &Request{RequesterID: "emp-1", Status: StatusVPApproved},
			actorID: "gm-1",
			allowed: true,
		},
		{
			name:    "gm denied when assigned to another gm",
			req:     &Request{RequesterID: "emp-1", Status: StatusVPApproved, AssignedGMID: strPtr("gm-2")},
			actorID: "gm-1",
			allowed: false,
		},
		{
			name:    "gm approves own pending request",
			req:     &Request{RequesterID: "gm-1", Status: StatusPending, AssignedGMID: strPtr("gm-1")},
			actorID: "gm-1",
			allowed: true,
		},
		{
			name:    "gm denied before vp stage",
			req:     &Request{RequesterID: "emp-1", Status: StatusDeptApproved},
			actorID: "gm-1",
			allowed: false,
		},
		{
			name:    "employee never approves",
			req:     &Request{RequesterID: "emp-1", Status: StatusPending},
			actorID: "emp-1",
			allowed: false,
		},
		{
			name:    "admin always approves",
			req:     &Request{RequesterID: "emp-1", Status: StatusVPApproved, AssignedGMID: strPtr("gm-1")},
			actorID: "admin-1",
			allowed: true,
		},
		{
			name:    "missing requester denies everyone",
			req:     &Request{RequesterID: "ghost", Status: StatusPending},
			actorID: "admin-1",
			allowed: false,
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			actor, err := dir.FindUserByID(context.Background(), tc.actorID)
			if err != nil {
				t.Fatalf("actor lookup failed: %v", err)
			}

			allowed, reason, err := az.Authorize(context.Background(), tc.req, actor)
			if err != nil {
				t.Fatalf("Authorize returned error: %v", err)
			}
			if allowed != tc.allowed {
				t.Fatalf("expected allowed=%t, got %t (reason %q)", tc.allowed, allowed, reason)
			}
			if !allowed && reason == "" {
				t.Fatal("expected a non-empty denial reason")
			}
		})
	}
}
