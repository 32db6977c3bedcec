package memory

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// Memorize sanitizes, gates and persists one candidate fact. It returns the
// stored item's id, or "" when the candidate was silently discarded (too
// short or sensitive). A near-duplicate for the same owner/scope/type is
// updated in place instead of inserting a new row.
func (s *Service) Memorize(ctx context.Context, in MemorizeInput) (string, error) {
	content := Sanitize(in.Content)
	if len(content) < s.cfg.MinContentLen || IsSensitive(content) {
		return "", nil
	}
	if in.Scope == "" {
		in.Scope = ScopeUser
	}
	if in.Scope == ScopeGlobal {
		in.OwnerID = ""
	} else if in.OwnerID == "" {
		return "", fmt.Errorf("user-scoped memory requires an owner")
	}
	if in.Type == "" {
		in.Type = TypeNote
	}
	if in.Source == "" {
		in.Source = SourceChat
	}
	confidence := in.Confidence
	if confidence == 0 {
		confidence = s.cfg.DefaultConfide
	}
	confidence = clampConfidence(confidence)
	tags := normalizeTags(in.Tags)
	now := nowMS()

	// Cheap prefilter first, then the word-set overlap on at most DedupeCap
	// rows. Avoids a full-table scan per write.
	candidates, err := s.store.ListDedupeCandidates(ctx, in.OwnerID, in.Scope, in.Type, content, s.cfg.DedupeCap)
	if err != nil {
		return "", err
	}
	for _, existing := range candidates {
		if wordOverlap(content, existing.Content) < s.cfg.DedupeOverlap {
			continue
		}
		existing.Content = content
		if len(tags) > 0 {
			existing.Tags = tags
		}
		existing.Confidence = confidence
		existing.Source = in.Source
		existing.UpdatedAtMS = now
		existing.ExpiresAtMS, err = s.expiryFor(ctx, existing.Pinned, now)
		if err != nil {
			return "", err
		}
		if err := s.store.UpdateItem(ctx, existing); err != nil {
			return "", err
		}
		if err := s.logEvent(ctx, MemoryEvent{
			ActorID: in.ActorID,
			UserID:  in.OwnerID,
			Action:  ActionUpdate,
			Details: map[string]string{
				"item_id": existing.ID,
				"type":    string(existing.Type),
				"deduped": "true",
			},
		}); err != nil {
			return "", err
		}
		return existing.ID, nil
	}

	expiresAt, err := s.expiryFor(ctx, false, now)
	if err != nil {
		return "", err
	}
	item := MemoryItem{
		ID:          newItemID(),
		OwnerID:     in.OwnerID,
		Scope:       in.Scope,
		Type:        in.Type,
		Content:     content,
		Tags:        tags,
		Confidence:  confidence,
		Source:      in.Source,
		CreatedAtMS: now,
		UpdatedAtMS: now,
		ExpiresAtMS: expiresAt,
	}
	if err := s.store.InsertItem(ctx, item); err != nil {
		return "", err
	}
	if err := s.logEvent(ctx, MemoryEvent{
		ActorID: in.ActorID,
		UserID:  in.OwnerID,
		Action:  ActionCreate,
		Details: map[string]string{
			"item_id": item.ID,
			"type":    string(item.Type),
			"scope":   string(item.Scope),
		},
	}); err != nil {
		return "", err
	}
	return item.ID, nil
}

// expiryFor computes expires_at from the current policy. Pinned items never
// expire.
func (s *Service) expiryFor(ctx context.Context, pinned bool, atMS int64) (int64, error) {
	if pinned {
		return 0, nil
	}
	days, err := s.store.GetRetentionDays(ctx)
	if err != nil {
		return 0, err
	}
	return atMS + int64(days)*int64(24*time.Hour/time.Millisecond), nil
}

// UpdateItemAdmin applies an administrative edit and emits one update event.
func (s *Service) UpdateItemAdmin(ctx context.Context, id string, patch ItemPatch, actorID string) (MemoryItem, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return MemoryItem{}, err
	}
	now := nowMS()
	changed := map[string]string{"item_id": id}

	if patch.Content != nil {
		content := Sanitize(*patch.Content)
		if content == "" {
			return MemoryItem{}, fmt.Errorf("admin update: empty content")
		}
		item.Content = content
		changed["content"] = "true"
	}
	if patch.Tags != nil {
		item.Tags = normalizeTags(patch.Tags)
		changed["tags"] = "true"
	}
	if patch.Type != nil {
		item.Type = *patch.Type
		changed["type"] = string(*patch.Type)
	}
	if patch.Confidence != nil {
		item.Confidence = clampConfidence(*patch.Confidence)
		changed["confidence"] = strconv.Itoa(item.Confidence)
	}
	if patch.Pinned != nil {
		item.Pinned = *patch.Pinned
		changed["pinned"] = strconv.FormatBool(item.Pinned)
	}
	item.UpdatedAtMS = now
	item.ExpiresAtMS, err = s.expiryFor(ctx, item.Pinned, now)
	if err != nil {
		return MemoryItem{}, err
	}

	if err := s.store.UpdateItem(ctx, item); err != nil {
		return MemoryItem{}, err
	}
	if err := s.logEvent(ctx, MemoryEvent{
		ActorID: actorID,
		UserID:  item.OwnerID,
		Action:  ActionUpdate,
		Details: changed,
	}); err != nil {
		return MemoryItem{}, err
	}
	return item, nil
}

// DeleteItemAdmin removes one item and emits one delete event.
func (s *Service) DeleteItemAdmin(ctx context.Context, id, actorID string) error {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return err
	}
	deleted, err := s.store.DeleteItem(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrItemNotFound
	}
	return s.logEvent(ctx, MemoryEvent{
		ActorID: actorID,
		UserID:  item.OwnerID,
		Action:  ActionDelete,
		Details: map[string]string{"item_id": id, "type": string(item.Type)},
	})
}

// PinItem exempts an item from expiry and boosts it in ranking.
func (s *Service) PinItem(ctx context.Context, id, actorID string) (MemoryItem, error) {
	return s.setPinned(ctx, id, actorID, true)
}

// UnpinItem restores normal expiry, restamped from the current policy.
func (s *Service) UnpinItem(ctx context.Context, id, actorID string) (MemoryItem, error) {
	return s.setPinned(ctx, id, actorID, false)
}

func (s *Service) setPinned(ctx context.Context, id, actorID string, pinned bool) (MemoryItem, error) {
	item, err := s.store.GetItem(ctx, id)
	if err != nil {
		return MemoryItem{}, err
	}
	now := nowMS()
	item.Pinned = pinned
	item.UpdatedAtMS = now
	item.ExpiresAtMS, err = s.expiryFor(ctx, pinned, now)
	if err != nil {
		return MemoryItem{}, err
	}
	if err := s.store.UpdateItem(ctx, item); err != nil {
		return MemoryItem{}, err
	}
	action := ActionPin
	if !pinned {
		action = ActionUnpin
	}
	if err := s.logEvent(ctx, MemoryEvent{
		ActorID: actorID,
		UserID:  item.OwnerID,
		Action:  action,
		Details: map[string]string{"item_id": id},
	}); err != nil {
		return MemoryItem{}, err
	}
	return item, nil
}
