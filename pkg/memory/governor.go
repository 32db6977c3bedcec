package memory

import (
	"context"
	"strconv"
)

const (
	// DefaultRetentionDays applies until an admin sets the policy.
	DefaultRetentionDays = 90

	minRetentionDays = 7
	maxRetentionDays = 365
)

func clampRetentionDays(days int) int {
	if days < minRetentionDays {
		return minRetentionDays
	}
	if days > maxRetentionDays {
		return maxRetentionDays
	}
	return days
}

// RetentionPolicyDays returns the current global retention window.
func (s *Service) RetentionPolicyDays(ctx context.Context) (int, error) {
	return s.store.GetRetentionDays(ctx)
}

// SetRetentionPolicy clamps days to [7, 365], persists the policy and emits
// one retention_change event. Out-of-range input is clamped, never rejected.
// Existing items keep their expiry; only later writes see the new window.
func (s *Service) SetRetentionPolicy(ctx context.Context, days int, actorID string) (int, error) {
	clamped := clampRetentionDays(days)
	if err := s.store.SetRetentionDays(ctx, clamped); err != nil {
		return 0, err
	}
	if err := s.logEvent(ctx, MemoryEvent{
		ActorID: actorID,
		Action:  ActionRetentionChange,
		Details: map[string]string{
			"retention_days": strconv.Itoa(clamped),
			"requested_days": strconv.Itoa(days),
		},
	}); err != nil {
		return 0, err
	}
	return clamped, nil
}

// ForgetUserMemories bulk-deletes a user's items. Pinned items survive unless
// includePinned is set. One forget_user event summarizes the whole operation.
// There is no soft delete or undo.
func (s *Service) ForgetUserMemories(ctx context.Context, ownerID string, includePinned bool, actorID string) (int, error) {
	count, err := s.store.DeleteUserItems(ctx, ownerID, includePinned)
	if err != nil {
		return 0, err
	}
	if err := s.logEvent(ctx, MemoryEvent{
		ActorID: actorID,
		UserID:  ownerID,
		Action:  ActionForgetUser,
		Details: map[string]string{
			"count":          strconv.Itoa(count),
			"include_pinned": strconv.FormatBool(includePinned),
		},
	}); err != nil {
		return count, err
	}
	return count, nil
}

// SweepExpired hard-deletes rows past their expiry. Retrieval already filters
// expired rows at query time; the sweep keeps the table itself bounded. One
// system delete event summarizes the batch.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	count, err := s.store.DeleteExpiredItems(ctx, nowMS())
	if err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	if err := s.logEvent(ctx, MemoryEvent{
		Action: ActionDelete,
		Details: map[string]string{
			"count":  strconv.Itoa(count),
			"reason": "retention_sweep",
		},
	}); err != nil {
		return count, err
	}
	return count, nil
}
