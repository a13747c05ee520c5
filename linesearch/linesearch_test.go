package linesearch

import (
	"errors"
	"testing"

	"shooting-mpc-core/ocp"
)

func TestSearchAcceptsLowViolationOnFirstTry(t *testing.T) {
	cfg := DefaultConfig()
	baseline := ocp.PerformanceIndex{TotalCost: 10, Merit: 10}

	eval := func(alpha float64) (Candidate, error) {
		// zero violation, so v < g_min and only the merit needs to improve
		return Candidate{Performance: ocp.PerformanceIndex{TotalCost: 5, Merit: 5}}, nil
	}

	result, err := Search(cfg, baseline, eval)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.Accepted || result.Regime != AcceptedLowViolation {
		t.Errorf("got Accepted=%v Regime=%v, want AcceptedLowViolation", result.Accepted, result.Regime)
	}
	if result.StepLength != 1 {
		t.Errorf("StepLength = %g, want 1 (accepted on first trial)", result.StepLength)
	}
}

func TestSearchRejectsAboveViolationMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ViolationMax = 1.0
	baseline := ocp.PerformanceIndex{TotalCost: 10, Merit: 10, StateEqConstraintISE: 0.01}
	cfg.MinStepLength = 0.4 // shrink the trial count for the test

	eval := func(alpha float64) (Candidate, error) {
		// merit improves a lot, but violation exceeds g_max: must still reject
		return Candidate{Performance: ocp.PerformanceIndex{TotalCost: 1, Merit: 1, StateEqConstraintISE: 100}}, nil
	}

	result, err := Search(cfg, baseline, eval)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Accepted || result.Regime != Rejected {
		t.Errorf("got Accepted=%v Regime=%v, want Rejected (violation above g_max)", result.Accepted, result.Regime)
	}
}

func TestSearchAcceptsViaMeritMarginWhenCostDoesNotImprove(t *testing.T) {
	cfg := DefaultConfig()
	baseline := ocp.PerformanceIndex{TotalCost: 6, Merit: 10, StateEqConstraintISE: 1}

	eval := func(alpha float64) (Candidate, error) {
		// violation stays above g_min, so this falls in the "otherwise" row;
		// merit decreases by more than gamma_c*v_B = 1e-4*1 = 1e-4
		return Candidate{Performance: ocp.PerformanceIndex{TotalCost: 8, Merit: 6, StateEqConstraintISE: 1}}, nil
	}

	result, err := Search(cfg, baseline, eval)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.Accepted || result.Regime != AcceptedMeritOrViolationDecrease {
		t.Errorf("got Accepted=%v Regime=%v, want AcceptedMeritOrViolationDecrease", result.Accepted, result.Regime)
	}
}

func TestSearchAcceptsViaViolationDecreaseWhenMeritDoesNotImprove(t *testing.T) {
	cfg := DefaultConfig()
	baseline := ocp.PerformanceIndex{TotalCost: 5, Merit: 5, StateEqConstraintISE: 1}

	eval := func(alpha float64) (Candidate, error) {
		// merit does not improve, but violation falls well below
		// (1-gamma_c)*v_B ~= v_B
		return Candidate{Performance: ocp.PerformanceIndex{TotalCost: 5, Merit: 5, StateEqConstraintISE: 0.64}}, nil
	}

	result, err := Search(cfg, baseline, eval)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.Accepted || result.Regime != AcceptedMeritOrViolationDecrease {
		t.Errorf("got Accepted=%v Regime=%v, want AcceptedMeritOrViolationDecrease (violation 0.8 < ~1.0)", result.Accepted, result.Regime)
	}
}

func TestSearchBacktracksUntilAccepted(t *testing.T) {
	cfg := DefaultConfig()
	baseline := ocp.PerformanceIndex{TotalCost: 10, Merit: 10}

	calls := 0
	eval := func(alpha float64) (Candidate, error) {
		calls++
		if alpha >= 1 {
			// no improvement at full step
			return Candidate{Performance: ocp.PerformanceIndex{TotalCost: 20, Merit: 20}}, nil
		}
		return Candidate{Performance: ocp.PerformanceIndex{TotalCost: 1, Merit: 1}}, nil
	}

	result, err := Search(cfg, baseline, eval)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !result.Accepted {
		t.Fatal("expected acceptance after backtracking")
	}
	if result.StepLength >= 1 {
		t.Errorf("StepLength = %g, want < 1 (accepted only after reduction)", result.StepLength)
	}
	if calls < 2 {
		t.Errorf("eval called %d times, want at least 2 (reject then accept)", calls)
	}
}

func TestSearchReturnsBestRejectedCandidateWithoutError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinStepLength = 0.4 // shrink the trial count for the test
	baseline := ocp.PerformanceIndex{TotalCost: 1, Merit: 1}

	eval := func(alpha float64) (Candidate, error) {
		// always worse than baseline and never low-violation
		return Candidate{Performance: ocp.PerformanceIndex{TotalCost: 100, Merit: 100}}, nil
	}

	result, err := Search(cfg, baseline, eval)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if result.Accepted {
		t.Error("expected Accepted = false when every trial is rejected")
	}
	if result.Regime != Rejected {
		t.Errorf("Regime = %v, want Rejected", result.Regime)
	}
}

func TestSearchErrorsWhenNoCandidateEverEvaluates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinStepLength = 0.4
	baseline := ocp.PerformanceIndex{TotalCost: 1, Merit: 1}
	boom := errors.New("dynamics blew up")

	eval := func(alpha float64) (Candidate, error) {
		return Candidate{}, boom
	}

	_, err := Search(cfg, baseline, eval)
	if err == nil {
		t.Fatal("expected an error when every trial errors")
	}
}
