package memory

import "context"

// SearchConsole composes the admin read view: items matched by the filters
// plus the owner's recent audit events. Read-only; authorization is the
// caller's job.
func (s *Service) SearchConsole(ctx context.Context, f ConsoleFilters) (ConsoleResult, error) {
	items, err := s.store.ListItemsConsole(ctx, f, nowMS())
	if err != nil {
		return ConsoleResult{}, err
	}
	eventLimit := f.EventLimit
	if eventLimit <= 0 {
		eventLimit = 20
	}
	events, err := s.store.ListEvents(ctx, f.OwnerID, "", eventLimit)
	if err != nil {
		return ConsoleResult{}, err
	}
	return ConsoleResult{Items: items, Events: events}, nil
}

// ListEvents pages the audit log, optionally narrowed by user and action.
func (s *Service) ListEvents(ctx context.Context, userID string, action EventAction, limit int) ([]MemoryEvent, error) {
	return s.store.ListEvents(ctx, userID, action, limit)
}

// GetItem looks up one item by id.
func (s *Service) GetItem(ctx context.Context, id string) (MemoryItem, error) {
	return s.store.GetItem(ctx, id)
}
