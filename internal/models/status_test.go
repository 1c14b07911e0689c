package models

import "testing"

func TestStatusSatisfiedAndTerminal(t *testing.T) {
	cases := []struct {
		status    TaskStatus
		satisfied bool
		terminal  bool
	}{
		{StatusPending, false, false},
		{StatusRunning, false, false},
		{StatusComplete, true, true},
		{StatusFailed, false, false},
		{StatusBlocked, false, false},
		{StatusSkipped, true, true},
	}
	for _, tc := range cases {
		if got := tc.status.Satisfied(); got != tc.satisfied {
			t.Errorf("%s.Satisfied() = %v, want %v", tc.status, got, tc.satisfied)
		}
		if got := tc.status.Terminal(); got != tc.terminal {
			t.Errorf("%s.Terminal() = %v, want %v", tc.status, got, tc.terminal)
		}
	}
	if TaskStatus("exploded").Valid() {
		t.Error("unknown status should not be valid")
	}
}

func TestPhaseOrderIsLinear(t *testing.T) {
	for i, phase := range PhaseOrder {
		if phase.Index() != i {
			t.Errorf("%s.Index() = %d, want %d", phase, phase.Index(), i)
		}
		next, ok := phase.Next()
		if i == len(PhaseOrder)-1 {
			if ok {
				t.Errorf("%s should have no next phase, got %s", phase, next)
			}
			continue
		}
		if !ok || next != PhaseOrder[i+1] {
			t.Errorf("%s.Next() = %s, want %s", phase, next, PhaseOrder[i+1])
		}
	}
	if PhaseName("limbo").Valid() {
		t.Error("unknown phase should not be valid")
	}
}

func TestNormalizeCategoryCoercesUnknown(t *testing.T) {
	if got := NormalizeCategory("environment"); got != CategoryEnvironment {
		t.Errorf("NormalizeCategory(environment) = %s", got)
	}
	if got := NormalizeCategory("cosmic rays"); got != CategoryOther {
		t.Errorf("NormalizeCategory should coerce unknown input to other, got %s", got)
	}
}

func TestBlockReasonMatching(t *testing.T) {
	task := &Task{ID: "t2", Status: StatusBlocked, Error: BlockReason("t1")}
	if !task.BlockedBy("t1") {
		t.Error("task should report blocked by t1")
	}
	if task.BlockedBy("t3") {
		t.Error("task should not report blocked by t3")
	}
	task.Status = StatusPending
	if task.BlockedBy("t1") {
		t.Error("non-blocked task should never report a blocker")
	}
}

func TestCalibrationScoreDefaults(t *testing.T) {
	var ledger *CalibrationLedger
	if got := ledger.Score(); got != 1.0 {
		t.Errorf("nil ledger score = %g, want 1.0", got)
	}
	ledger = &CalibrationLedger{TotalVerified: 4, Correct: 3}
	if got := ledger.Score(); got != 0.75 {
		t.Errorf("score = %g, want 0.75", got)
	}
}
