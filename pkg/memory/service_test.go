package memory

import (
	"context"
	"testing"

	"github.com/stillpoint-app/stillmem/pkg/bus"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	svc, err := NewService(Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestService_RequiresWorkspace(t *testing.T) {
	if _, err := NewService(Config{}); err == nil {
		t.Fatalf("expected error for empty workspace")
	}
}

func TestService_CaptureTurnPersistsAtMostThree(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	// Message firing many matchers at once: goal, name, interest, like.
	user := "My name is Elena Marsh and my goal is to meditate every morning without fail. I enjoy long quiet walks by the river. I really like structured daily plans."
	ids, err := svc.CaptureTurn(ctx, "u1", user, "That sounds like a wonderful practice, Elena.")
	if err != nil {
		t.Fatalf("capture turn: %v", err)
	}
	if len(ids) > 3 {
		t.Fatalf("expected at most 3 persisted candidates, got %d", len(ids))
	}
	if len(ids) == 0 {
		t.Fatalf("expected at least one persisted candidate")
	}

	result, err := svc.SearchConsole(ctx, ConsoleFilters{OwnerID: "u1"})
	if err != nil {
		t.Fatalf("console search: %v", err)
	}
	if len(result.Items) != len(ids) {
		t.Fatalf("expected %d stored items, got %d", len(ids), len(result.Items))
	}
}

func TestService_CaptureTurnHonorsConfiguredCap(t *testing.T) {
	ctx := context.Background()
	msg := "My name is Ana. My goal is to finish the course. I enjoy sunrise yoga. I really like short summaries. I hate noise."

	lowCap, err := NewService(Config{Workspace: t.TempDir(), MaxPerTurn: 1})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer lowCap.Close()
	ids, err := lowCap.CaptureTurn(ctx, "u1", msg, "Lovely.")
	if err != nil {
		t.Fatalf("capture turn: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("expected cap of 1 persisted candidate, got %d", len(ids))
	}

	// The cap can also be raised past the extractor's default of 3.
	highCap, err := NewService(Config{Workspace: t.TempDir(), MaxPerTurn: 5})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer highCap.Close()
	ids, err = highCap.CaptureTurn(ctx, "u1", msg, "Lovely.")
	if err != nil {
		t.Fatalf("capture turn: %v", err)
	}
	if len(ids) != 5 {
		t.Fatalf("expected 5 persisted candidates with a raised cap, got %d", len(ids))
	}
}

func TestService_CaptureTurnEmptyMessage(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	ids, err := svc.CaptureTurn(ctx, "u1", "   ", "reply")
	if err != nil {
		t.Fatalf("capture turn: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no candidates for empty message, got %d", len(ids))
	}
}

func TestService_Stats(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if _, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1", Scope: ScopeUser, Type: TypeGoal,
		Content: "My goal is to complete the seven day course",
	}); err != nil {
		t.Fatalf("memorize: %v", err)
	}
	if _, err := svc.Memorize(ctx, MemorizeInput{
		Scope: ScopeGlobal, Type: TypeNote,
		Content: "Morning sessions open at six local time",
	}); err != nil {
		t.Fatalf("memorize global: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalItems != 2 {
		t.Fatalf("expected 2 items, got %d", stats.TotalItems)
	}
	if stats.ByScope[ScopeGlobal] != 1 || stats.ByScope[ScopeUser] != 1 {
		t.Fatalf("unexpected scope counts: %#v", stats.ByScope)
	}
	if stats.TotalEvents != 2 {
		t.Fatalf("expected 2 events, got %d", stats.TotalEvents)
	}
}

func TestService_NotifierReceivesMutations(t *testing.T) {
	ctx := context.Background()
	nb := bus.NewNotificationBus()
	defer nb.Close()

	svc, err := NewService(Config{Workspace: t.TempDir(), Notifier: nb})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	defer svc.Close()

	id, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1", Scope: ScopeUser, Type: TypeGoal,
		Content: "My goal is to journal every single evening",
	})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}
	if _, err := svc.PinItem(ctx, id, "admin-1"); err != nil {
		t.Fatalf("pin: %v", err)
	}

	first, ok := nb.Subscribe(ctx)
	if !ok || first.Action != string(ActionCreate) || first.ItemID != id {
		t.Fatalf("expected create notification for %s, got %+v ok=%t", id, first, ok)
	}
	second, ok := nb.Subscribe(ctx)
	if !ok || second.Action != string(ActionPin) || second.UserID != "u1" {
		t.Fatalf("expected pin notification, got %+v ok=%t", second, ok)
	}
}
