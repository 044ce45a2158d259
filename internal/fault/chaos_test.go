package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestChaosCertainCrashIsTagged(t *testing.T) {
	c := NewChaos(true, 1.0, nil)
	c.roll = func() float64 { return 0.5 }

	err := c.CrashAfterCommit(context.Background(), "inventory deduction for order o1")
	if err == nil {
		t.Fatal("probability 1 must crash")
	}
	if !CommittedButUnconfirmed(err) {
		t.Errorf("crash error not tagged as committed-but-unconfirmed: %v", err)
	}
	var cf *CommitFault
	if !errors.As(err, &cf) || cf.Context != "inventory deduction for order o1" {
		t.Errorf("fault = %+v", cf)
	}

	st := c.Status(context.Background())
	if st.TotalEvents != 1 || st.LastEvent == nil {
		t.Errorf("status = %+v, want one recorded event", st)
	}
	if st.SharedTally {
		t.Error("no redis configured, status must not claim a shared tally")
	}
}

func TestChaosNeverFiresAtZeroProbability(t *testing.T) {
	c := NewChaos(true, 0, nil)
	for i := 0; i < 100; i++ {
		if err := c.CrashAfterCommit(context.Background(), "op"); err != nil {
			t.Fatalf("probability 0 crashed: %v", err)
		}
	}
	if st := c.Status(context.Background()); st.TotalEvents != 0 {
		t.Errorf("events = %d, want 0", st.TotalEvents)
	}
}

func TestChaosDisabledIgnoresProbability(t *testing.T) {
	c := NewChaos(false, 1.0, nil)
	if err := c.CrashAfterCommit(context.Background(), "op"); err != nil {
		t.Fatalf("disabled chaos crashed: %v", err)
	}
}

func TestChaosThresholdIsStrict(t *testing.T) {
	c := NewChaos(true, 0.3, nil)

	c.roll = func() float64 { return 0.29 }
	if err := c.CrashAfterCommit(context.Background(), "op"); err == nil {
		t.Error("roll below probability must crash")
	}

	c.roll = func() float64 { return 0.3 }
	if err := c.CrashAfterCommit(context.Background(), "op"); err != nil {
		t.Errorf("roll at probability must survive: %v", err)
	}
}

func TestChaosReset(t *testing.T) {
	c := NewChaos(true, 1.0, nil)
	c.roll = func() float64 { return 0 }
	for i := 0; i < 3; i++ {
		_ = c.CrashAfterCommit(context.Background(), fmt.Sprintf("op-%d", i))
	}
	c.Reset()
	st := c.Status(context.Background())
	if st.TotalEvents != 0 || st.LastEvent != nil {
		t.Errorf("status after reset = %+v", st)
	}
}

func TestCommittedButUnconfirmedRejectsOtherErrors(t *testing.T) {
	if CommittedButUnconfirmed(errors.New("plain failure")) {
		t.Error("plain error tagged as committed-but-unconfirmed")
	}
	wrapped := fmt.Errorf("deduct failed: %w", &CommitFault{Context: "op"})
	if !CommittedButUnconfirmed(wrapped) {
		t.Error("wrapped commit fault not recognized")
	}
}
