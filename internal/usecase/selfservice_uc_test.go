//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"

	"telegram-relay-subscription/internal/domain"
)

func TestSelfService(t *testing.T) {
	ctx := context.Background()

	t.Run("plan selection needs payment info", func(t *testing.T) {
		e := newTestEnv(t)
		plan := e.addPlan(t, "Pro", 30, 10)
		if _, err := e.self.SelectPlan(ctx, 42, plan.ID); !errors.Is(err, domain.ErrPaymentInfoMissing) {
			t.Fatalf("expected ErrPaymentInfoMissing, got %v", err)
		}
		if !e.state.Get(ctx, 42).IsEmpty() {
			t.Error("no state may be armed")
		}
	})

	t.Run("unknown plan", func(t *testing.T) {
		e := newTestEnv(t)
		_, _ = e.payments.SetPaymentInfo(ctx, "qr", "a@upi")
		if _, err := e.self.SelectPlan(ctx, 42, "nope"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("proof upload needs a selected plan", func(t *testing.T) {
		e := newTestEnv(t)
		if err := e.self.BeginProofUpload(ctx, 42); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("select then upload arms the screenshot flow", func(t *testing.T) {
		e := newTestEnv(t)
		plan := e.addPlan(t, "Pro", 30, 10)
		_, _ = e.payments.SetPaymentInfo(ctx, "qr", "a@upi")
		if _, err := e.self.SelectPlan(ctx, 42, plan.ID); err != nil {
			t.Fatal(err)
		}
		if err := e.self.BeginProofUpload(ctx, 42); err != nil {
			t.Fatal(err)
		}
		st := e.state.Get(ctx, 42)
		if !st.AwaitingPaymentScreenshot || st.SelectedPlan != plan.ID {
			t.Errorf("unexpected state %+v", st)
		}
		_ = e.self.Cancel(ctx, 42)
		if !e.state.Get(ctx, 42).IsEmpty() {
			t.Error("cancel must clear all flows")
		}
	})

	t.Run("my keys", func(t *testing.T) {
		e := newTestEnv(t)
		plan := e.addPlan(t, "Pro", 30, 10)
		_, _ = e.ledger.Issue(ctx, nil, 42, plan)
		_, _ = e.ledger.Issue(ctx, nil, 43, plan)
		keys, _ := e.self.MyKeys(ctx, 42)
		if len(keys) != 1 || keys[0].UserID != 42 {
			t.Errorf("unexpected keys %+v", keys)
		}
	})
}
