package memory

import (
	"context"
	"testing"
	"time"
)

func TestMemorize_NewFact(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	before := time.Now().UnixMilli()
	id, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1",
		Scope:   ScopeUser,
		Type:    TypeGoal,
		Content: "My goal is to sleep better and feel calmer",
	})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}
	if id == "" {
		t.Fatalf("expected stored item id")
	}

	item, err := svc.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Type != TypeGoal {
		t.Fatalf("expected goal type, got %s", item.Type)
	}
	if item.Confidence != 60 {
		t.Fatalf("expected default confidence 60, got %d", item.Confidence)
	}

	// Default policy: 90 days.
	wantExpiry := before + 90*24*int64(time.Hour/time.Millisecond)
	if item.ExpiresAtMS < wantExpiry-5000 || item.ExpiresAtMS > wantExpiry+60_000 {
		t.Fatalf("expected expiry ~now+90d, got %d (want ~%d)", item.ExpiresAtMS, wantExpiry)
	}

	events, err := svc.ListEvents(ctx, "u1", ActionCreate, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected exactly one create event, got %d", len(events))
	}
	if events[0].Details["item_id"] != id {
		t.Fatalf("create event should reference the item: %#v", events[0].Details)
	}
}

func TestMemorize_DedupeIdempotence(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	first, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1", Scope: ScopeUser, Type: TypeGoal,
		Content: "My goal is to sleep better and feel calmer",
	})
	if err != nil {
		t.Fatalf("first memorize: %v", err)
	}
	second, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1", Scope: ScopeUser, Type: TypeGoal,
		Content: "My goal is to sleep better and feel calmer every night",
	})
	if err != nil {
		t.Fatalf("second memorize: %v", err)
	}
	if first != second {
		t.Fatalf("expected dedupe to reuse item %s, got %s", first, second)
	}

	result, err := svc.SearchConsole(ctx, ConsoleFilters{OwnerID: "u1"})
	if err != nil {
		t.Fatalf("console search: %v", err)
	}
	if len(result.Items) != 1 {
		t.Fatalf("expected a single stored item, got %d", len(result.Items))
	}
	if result.Items[0].Content != "My goal is to sleep better and feel calmer every night" {
		t.Fatalf("expected updated content, got %q", result.Items[0].Content)
	}

	updates, err := svc.ListEvents(ctx, "u1", ActionUpdate, 10)
	if err != nil {
		t.Fatalf("list update events: %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("expected exactly one update event, got %d", len(updates))
	}
	if updates[0].Details["deduped"] != "true" {
		t.Fatalf("update event should be tagged deduped: %#v", updates[0].Details)
	}
}

func TestMemorize_DistinctFactsStaySeparate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	a, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1", Scope: ScopeUser, Type: TypePreference,
		Content: "User likes: quiet guided meditation sessions",
	})
	if err != nil {
		t.Fatalf("memorize a: %v", err)
	}
	b, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1", Scope: ScopeUser, Type: TypePreference,
		Content: "User likes: strong espresso before sunrise walks",
	})
	if err != nil {
		t.Fatalf("memorize b: %v", err)
	}
	if a == b {
		t.Fatalf("distinct facts should not dedupe into one item")
	}
}

func TestMemorize_SensitiveContentGate(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	id, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1", Scope: ScopeUser, Type: TypeNote,
		Content: "User mentioned she is pregnant and asked about medication",
	})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}
	if id != "" {
		t.Fatalf("sensitive content must be silently discarded, got id %s", id)
	}

	result, err := svc.SearchConsole(ctx, ConsoleFilters{OwnerID: "u1"})
	if err != nil {
		t.Fatalf("console search: %v", err)
	}
	if len(result.Items) != 0 {
		t.Fatalf("expected no stored items, got %d", len(result.Items))
	}
	events, err := svc.ListEvents(ctx, "u1", ActionCreate, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no create event for gated content, got %d", len(events))
	}
}

func TestMemorize_ShortContentNoOp(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	id, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1", Scope: ScopeUser, Type: TypeNote, Content: "short note",
	})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}
	if id != "" {
		t.Fatalf("sub-minimum content must no-op, got id %s", id)
	}
}

func TestMemorize_UserScopeRequiresOwner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	_, err := svc.Memorize(ctx, MemorizeInput{
		Scope: ScopeUser, Type: TypeNote,
		Content: "Prefers the guided version of the morning session",
	})
	if err == nil {
		t.Fatal("expected error for user-scoped memory without an owner")
	}

	// Defaulted scope follows the same rule.
	_, err = svc.Memorize(ctx, MemorizeInput{
		Type:    TypeNote,
		Content: "Prefers the guided version of the morning session",
	})
	if err == nil {
		t.Fatal("expected error when scope defaults to user with no owner")
	}
}

func TestMemorize_GlobalScopeClearsOwner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	id, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1", Scope: ScopeGlobal, Type: TypeNote,
		Content: "Center closes for the winter retreat week",
	})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}
	item, err := svc.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.OwnerID != "" {
		t.Fatalf("global scope implies empty owner, got %q", item.OwnerID)
	}
}

func TestMemorize_ClampsConfidenceAndTags(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	id, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1", Scope: ScopeUser, Type: TypeNote,
		Content:    "Prefers the short form of the evening ritual",
		Tags:       []string{"Evening", "RITUAL", "evening", "t1", "t2", "t3", "t4", "t5", "t6", "t7"},
		Confidence: 400,
	})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}
	item, err := svc.GetItem(ctx, id)
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if item.Confidence != 100 {
		t.Fatalf("expected clamped confidence 100, got %d", item.Confidence)
	}
	if len(item.Tags) != 8 {
		t.Fatalf("expected 8 tags max, got %d: %v", len(item.Tags), item.Tags)
	}
	if item.Tags[0] != "evening" || item.Tags[1] != "ritual" {
		t.Fatalf("expected lowercased deduped tags, got %v", item.Tags)
	}
}

func TestUpdateAndDeleteItemAdmin(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	id, err := svc.Memorize(ctx, MemorizeInput{
		OwnerID: "u1", Scope: ScopeUser, Type: TypeNote,
		Content: "Attends the tuesday evening circle",
	})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}

	newContent := "Attends the thursday evening circle"
	conf := 90
	updated, err := svc.UpdateItemAdmin(ctx, id, ItemPatch{Content: &newContent, Confidence: &conf}, "admin-1")
	if err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if updated.Content != newContent || updated.Confidence != 90 {
		t.Fatalf("unexpected updated item: %#v", updated)
	}

	if err := svc.DeleteItemAdmin(ctx, id, "admin-1"); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	if _, err := svc.GetItem(ctx, id); err != ErrItemNotFound {
		t.Fatalf("expected ErrItemNotFound after delete, got %v", err)
	}

	deletes, err := svc.ListEvents(ctx, "u1", ActionDelete, 10)
	if err != nil {
		t.Fatalf("list delete events: %v", err)
	}
	if len(deletes) != 1 {
		t.Fatalf("expected one delete event, got %d", len(deletes))
	}
	if deletes[0].ActorID != "admin-1" {
		t.Fatalf("delete event should carry actor attribution: %#v", deletes[0])
	}
}

func TestDeleteItemAdmin_MissingItem(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t)

	if err := svc.DeleteItemAdmin(ctx, "mem-missing", "admin-1"); err != ErrItemNotFound {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}
