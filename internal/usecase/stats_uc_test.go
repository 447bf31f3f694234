//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"
)

func TestStats_Snapshot(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)

	alice := e.addUser(t, 1, "alice", "Alice")
	e.addUser(t, 2, "bob", "Bob")
	e.addUser(t, 3, "carol", "Carol")
	if err := e.users.SetBanned(ctx, nil, 3, true); err != nil {
		t.Fatal(err)
	}
	monthly := e.addPlan(t, "Monthly", 30, 299)
	trial := e.addPlan(t, "Trial", 1, 0)

	if _, err := e.payments.Submit(ctx, alice, monthly.ID, "proof-1"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	cloned, _ := e.ledger.Issue(ctx, nil, 1, monthly)
	if _, err := e.ledger.Activate(ctx, cloned.Key, "1:a"); err != nil {
		t.Fatal(err)
	}
	lapsed, _ := e.ledger.Issue(ctx, nil, 2, trial)
	if _, err := e.ledger.Activate(ctx, lapsed.Key, "2:b"); err != nil {
		t.Fatal(err)
	}
	_, _ = e.ledger.Issue(ctx, nil, 2, monthly) // never activated

	e.now = e.now.Add(48 * time.Hour)

	st, err := e.stats.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	checks := []struct {
		name      string
		got, want int
	}{
		{"users", st.Users, 3},
		{"banned", st.Banned, 1},
		{"plans", st.Plans, 2},
		{"pending payments", st.PendingPayments, 1},
		{"keys", st.Keys, 3},
		{"active clones", st.ActiveClones, 2},
		{"expired keys", st.ExpiredKeys, 1},
	}
	for _, c := range checks {
		t.Run(c.name, func(t *testing.T) {
			if c.got != c.want {
				t.Errorf("%s = %d, want %d", c.name, c.got, c.want)
			}
		})
	}
}
