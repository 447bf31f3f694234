//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
)

func TestAdmin_Authorize(t *testing.T) {
	e := newTestEnv(t)

	t.Run("non-operator is denied", func(t *testing.T) {
		op, err := e.admin.Authorize(42)
		if !errors.Is(err, domain.ErrAccessDenied) {
			t.Fatalf("expected ErrAccessDenied, got %v", err)
		}
		if op != nil {
			t.Error("denied callers must not get an operator handle")
		}
	})

	t.Run("operator is allowed", func(t *testing.T) {
		op, err := e.admin.Authorize(operatorID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if op.ID() != operatorID {
			t.Errorf("unexpected id %d", op.ID())
		}
	})
}

func TestAdmin_Operations(t *testing.T) {
	ctx := context.Background()

	t.Run("ban and unban", func(t *testing.T) {
		e := newTestEnv(t)
		e.addUser(t, 42, "bob", "Bob")
		op := e.operator(t)
		if err := op.Ban(ctx, 42); err != nil {
			t.Fatal(err)
		}
		banned, _ := op.BannedUsers(ctx, 10)
		if len(banned) != 1 || banned[0].ID != 42 {
			t.Errorf("unexpected banned list %+v", banned)
		}
		if err := op.Unban(ctx, 42); err != nil {
			t.Fatal(err)
		}
		if u, _ := op.User(ctx, 42); u.IsBanned {
			t.Error("user still banned")
		}
		if err := op.Ban(ctx, 999); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("operator cannot ban itself", func(t *testing.T) {
		e := newTestEnv(t)
		e.addUser(t, operatorID, "sam", "Sam")
		if err := e.operator(t).Ban(ctx, operatorID); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("plan crud", func(t *testing.T) {
		e := newTestEnv(t)
		op := e.operator(t)
		p, err := op.CreatePlan(ctx, "Basic", 7, 50)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := op.CreatePlan(ctx, "", 7, 50); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
		if err := op.DeletePlan(ctx, p.ID); err != nil {
			t.Fatal(err)
		}
		if err := op.DeletePlan(ctx, p.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		plans, _ := op.Plans(ctx)
		if len(plans) != 0 {
			t.Errorf("expected empty catalog, got %d", len(plans))
		}
	})

	t.Run("revoke through the guard", func(t *testing.T) {
		e := newTestEnv(t)
		plan := e.addPlan(t, "Pro", 30, 10)
		key, _ := e.ledger.Issue(ctx, nil, 7, plan)
		_, _ = e.ledger.Activate(ctx, key.Key, "1:a")
		op := e.operator(t)
		if keys, _ := op.ActiveKeys(ctx, 15); len(keys) != 1 {
			t.Fatalf("expected one active key, got %d", len(keys))
		}
		if err := op.RevokeKey(ctx, key.Key); err != nil {
			t.Fatal(err)
		}
		if keys, _ := op.ActiveKeys(ctx, 15); len(keys) != 0 {
			t.Errorf("revoked key listed: %+v", keys)
		}
	})

	t.Run("stats", func(t *testing.T) {
		e := newTestEnv(t)
		plan := e.addPlan(t, "Pro", 30, 10)
		e.addUser(t, 1, "", "a")
		e.addUser(t, 2, "", "b")
		_ = e.users.SetBanned(ctx, nil, 2, true)
		_, _ = e.payments.Submit(ctx, &model.User{ID: 1}, plan.ID, "proof")
		k1, _ := e.ledger.Issue(ctx, nil, 1, plan)
		_, _ = e.ledger.Issue(ctx, nil, 1, plan)
		_, _ = e.ledger.Activate(ctx, k1.Key, "1:a")

		st, err := e.operator(t).Stats(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if st.Users != 2 || st.Banned != 1 || st.Plans != 1 || st.PendingPayments != 1 || st.Keys != 2 || st.ActiveClones != 1 || st.ExpiredKeys != 0 {
			t.Errorf("unexpected stats %+v", st)
		}
	})

	t.Run("arming flows leaves other flags alone", func(t *testing.T) {
		e := newTestEnv(t)
		op := e.operator(t)
		_ = op.ArmPaymentInfo(ctx)
		_ = op.ArmBroadcast(ctx)
		_ = op.ArmAddPlan(ctx)
		st := e.state.Get(ctx, operatorID)
		if !st.AwaitingPaymentInfo || !st.BroadcastMode || !st.AwaitingPlanInput {
			t.Errorf("flags are independent, got %+v", st)
		}
	})
}
