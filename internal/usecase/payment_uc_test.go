//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"telegram-relay-subscription/internal/domain"
	"telegram-relay-subscription/internal/domain/model"
)

func TestPayment_EndToEnd(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	plan := e.addPlan(t, "Pro", 30, 250)
	if _, err := e.payments.SetPaymentInfo(ctx, "qr-file", "shop@upi"); err != nil {
		t.Fatal(err)
	}
	buyer := &model.User{ID: 42, Username: "alice", FirstName: "Alice"}

	// pick plan, confirm payment, upload proof
	offer, err := e.self.SelectPlan(ctx, buyer.ID, plan.ID)
	if err != nil {
		t.Fatalf("select plan: %v", err)
	}
	if offer.Info.Address != "shop@upi" {
		t.Errorf("unexpected offer %+v", offer.Info)
	}
	if err := e.self.BeginProofUpload(ctx, buyer.ID); err != nil {
		t.Fatalf("begin upload: %v", err)
	}
	if _, err := e.router.Route(ctx, buyer, photo("proof-1")); err != nil {
		t.Fatalf("route proof: %v", err)
	}
	if st := e.state.Get(ctx, buyer.ID); st.AwaitingPaymentScreenshot || st.SelectedPlan != "" {
		t.Errorf("payment flow not cleared: %+v", st)
	}
	pending, _ := e.payments.ListPending(ctx, 10)
	if len(pending) != 1 || pending[0].ProofFileID != "proof-1" || pending[0].PlanID != plan.ID {
		t.Fatalf("unexpected queue %+v", pending)
	}
	note := e.bot.to(operatorID)
	if len(note) != 1 || !strings.Contains(note[0].Text, pending[0].ID) {
		t.Fatalf("operator must be notified with the request id, got %+v", note)
	}

	// operator approves
	res, err := e.operator(t).ApprovePayment(ctx, pending[0].ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !res.Delivered {
		t.Error("key should be delivered")
	}
	got := e.bot.to(buyer.ID)
	last := got[len(got)-1].Text
	if !strings.Contains(last, res.Key.Key) {
		t.Errorf("buyer did not receive the key: %q", last)
	}
	if e.state.Get(ctx, buyer.ID).AwaitingBotToken != res.Key.Key {
		t.Error("buyer must be waiting for a bot token")
	}

	// buyer activates
	if _, err := e.router.Route(ctx, buyer, text("555:clone-token")); err != nil {
		t.Fatal(err)
	}
	stored, _ := e.keys.FindByKey(ctx, nil, res.Key.Key)
	if !stored.Activated {
		t.Fatal("key not activated")
	}
	if !stored.ExpiresAt.Equal(e.now.Add(30 * 24 * time.Hour)) {
		t.Errorf("expires_at = %v", stored.ExpiresAt)
	}
}

func TestPayment_Approve(t *testing.T) {
	ctx := context.Background()

	t.Run("second approval issues no second key", func(t *testing.T) {
		e := newTestEnv(t)
		plan := e.addPlan(t, "Pro", 30, 10)
		req, _ := e.payments.Submit(ctx, &model.User{ID: 42}, plan.ID, "proof")
		if _, err := e.payments.Approve(ctx, req.ID); err != nil {
			t.Fatalf("first approve: %v", err)
		}
		before, _ := e.keys.CountAll(ctx, nil)
		if _, err := e.payments.Approve(ctx, req.ID); !errors.Is(err, domain.ErrAlreadyProcessed) {
			t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
		}
		after, _ := e.keys.CountAll(ctx, nil)
		if before != 1 || after != before {
			t.Errorf("key count changed: %d -> %d", before, after)
		}
		stored, _ := e.payments.Get(ctx, req.ID)
		if stored.Status != model.PaymentStatusApproved || stored.ApprovedAt == nil {
			t.Errorf("unexpected request %+v", stored)
		}
	})

	t.Run("missing plan leaves the request pending", func(t *testing.T) {
		e := newTestEnv(t)
		plan := e.addPlan(t, "Pro", 30, 10)
		req, _ := e.payments.Submit(ctx, &model.User{ID: 42}, plan.ID, "proof")
		_ = e.planUC.Delete(ctx, plan.ID)

		if _, err := e.payments.Approve(ctx, req.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		stored, _ := e.payments.Get(ctx, req.ID)
		if !stored.IsPending() {
			t.Error("request must stay pending when no key was issued")
		}
		if n, _ := e.keys.CountAll(ctx, nil); n != 0 {
			t.Errorf("no key expected, got %d", n)
		}
	})

	t.Run("unknown request", func(t *testing.T) {
		e := newTestEnv(t)
		if _, err := e.payments.Approve(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("undeliverable key is still issued", func(t *testing.T) {
		e := newTestEnv(t)
		plan := e.addPlan(t, "Pro", 30, 10)
		req, _ := e.payments.Submit(ctx, &model.User{ID: 42}, plan.ID, "proof")
		e.bot.SendTextFunc = func(_ context.Context, chatID int64, _ string) error {
			if chatID == 42 {
				return errors.New("blocked")
			}
			return nil
		}
		res, err := e.payments.Approve(ctx, req.ID)
		if err != nil {
			t.Fatalf("approve: %v", err)
		}
		if res.Delivered {
			t.Error("delivery must be reported as failed")
		}
		if n, _ := e.keys.CountAll(ctx, nil); n != 1 {
			t.Errorf("expected 1 key, got %d", n)
		}
	})
}

func TestPayment_Reject(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	plan := e.addPlan(t, "Pro", 30, 10)
	req, _ := e.payments.Submit(ctx, &model.User{ID: 42}, plan.ID, "proof")

	if _, err := e.payments.Reject(ctx, req.ID); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if got := e.bot.to(42); len(got) != 1 || got[0].Text != "payment_rejected_user" {
		t.Errorf("buyer not notified: %+v", got)
	}
	if n, _ := e.keys.CountAll(ctx, nil); n != 0 {
		t.Errorf("rejection must not issue keys, got %d", n)
	}
	stored, _ := e.payments.Get(ctx, req.ID)
	if !stored.IsPending() {
		t.Error("rejection persists nothing")
	}

	_, _ = e.payments.Approve(ctx, req.ID)
	if _, err := e.payments.Reject(ctx, req.ID); !errors.Is(err, domain.ErrAlreadyProcessed) {
		t.Errorf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestPayment_Submit(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	plan := e.addPlan(t, "Pro", 30, 10)

	a, _ := e.payments.Submit(ctx, &model.User{ID: 42}, plan.ID, "p1")
	b, _ := e.payments.Submit(ctx, &model.User{ID: 42}, plan.ID, "p2")
	if a.ID == b.ID {
		t.Fatal("ids must differ")
	}
	if n, _ := e.payments.CountPending(ctx); n != 2 {
		t.Errorf("duplicate submissions are allowed, got %d pending", n)
	}
	if _, err := e.payments.Submit(ctx, &model.User{ID: 42}, plan.ID, ""); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestPayment_Info(t *testing.T) {
	ctx := context.Background()
	e := newTestEnv(t)
	if _, err := e.payments.PaymentInfo(ctx); !errors.Is(err, domain.ErrPaymentInfoMissing) {
		t.Fatalf("expected ErrPaymentInfoMissing, got %v", err)
	}
	if _, err := e.payments.SetPaymentInfo(ctx, "qr", "  "); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
	_, _ = e.payments.SetPaymentInfo(ctx, "qr-1", "a@upi")
	_, _ = e.payments.SetPaymentInfo(ctx, "qr-2", "b@upi")
	info, err := e.payments.PaymentInfo(ctx)
	if err != nil || info.QRFileID != "qr-2" || info.Address != "b@upi" {
		t.Errorf("payment info must be overwritten wholesale, got %+v, %v", info, err)
	}
}
