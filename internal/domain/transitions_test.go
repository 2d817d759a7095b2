package domain

import "testing"

func TestEveryStatusHasTransitionEntry(t *testing.T) {
	for _, s := range AllClaimStatuses {
		if !s.Valid() {
			t.Errorf("status %s missing from transition table", s)
		}
	}
	if ClaimStatus("BOGUS").Valid() {
		t.Fatalf("unknown status must be invalid")
	}
}

func TestTransitionTargetsAreDefined(t *testing.T) {
	for from, targets := range claimTransitions {
		for _, to := range targets {
			if !to.Valid() {
				t.Errorf("%s -> %s targets undefined status", from, to)
			}
		}
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ClaimStatus
		want     bool
	}{
		{ClaimStatusOpen, ClaimStatusDiagnosed, true},
		{ClaimStatusOpen, ClaimStatusClosed, false},
		{ClaimStatusDiagnosed, ClaimStatusPendingEVMApproval, true},
		{ClaimStatusPendingEVMApproval, ClaimStatusEVMRejected, true},
		{ClaimStatusEVMRejected, ClaimStatusPendingEVMApproval, true},
		{ClaimStatusClaimDone, ClaimStatusClosed, true},
		{ClaimStatusClosed, ClaimStatusOpen, false},
		{ClaimStatusCancelled, ClaimStatusOpen, false},
		{ClaimStatusReadyForHandover, ClaimStatusOpen, true},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, s := range AllClaimStatuses {
		if s.IsTerminal() && len(AllowedNext(s)) != 0 {
			t.Errorf("terminal status %s has exits %v", s, AllowedNext(s))
		}
	}
}

func TestCostsRecalculate(t *testing.T) {
	svc, parts := int64(12000), int64(3000)
	c := ClaimCosts{ServiceCostCents: &svc}
	c.Recalculate()
	if c.TotalEstimatedCostCents != nil {
		t.Fatalf("total must stay unset until both inputs exist")
	}
	c.ThirdPartyPartsCostCents = &parts
	c.Recalculate()
	if c.TotalEstimatedCostCents == nil || *c.TotalEstimatedCostCents != 15000 {
		t.Fatalf("total = %v, want 15000", c.TotalEstimatedCostCents)
	}
}

func TestCloneIsDeep(t *testing.T) {
	tech := "tech-1"
	orig := &Claim{
		ID:           "c1",
		TechnicianID: &tech,
		Diagnoses:    []Diagnosis{{ID: "d1", Findings: "cell imbalance"}},
		Eligibility:  EligibilitySnapshot{Reasons: []string{"WITHIN_COVERAGE"}},
	}
	cp := orig.Clone()
	*cp.TechnicianID = "tech-2"
	cp.Diagnoses[0].Findings = "changed"
	cp.Eligibility.Reasons[0] = "changed"

	if *orig.TechnicianID != "tech-1" || orig.Diagnoses[0].Findings != "cell imbalance" || orig.Eligibility.Reasons[0] != "WITHIN_COVERAGE" {
		t.Fatalf("clone shares state with original: %+v", orig)
	}
}

func TestActorHasRole(t *testing.T) {
	tech := Actor{ID: "u1", Roles: []Role{RoleTechnician}}
	if !tech.HasRole(RoleTechnician, RoleServiceStaff) {
		t.Fatalf("technician should match")
	}
	if tech.HasRole(RoleEVMStaff) {
		t.Fatalf("technician is not EVM staff")
	}
	admin := Actor{ID: "a1", Roles: []Role{RoleAdmin}}
	if !admin.HasRole(RoleEVMStaff) {
		t.Fatalf("admin should pass every role check")
	}
}
