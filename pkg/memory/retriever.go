package memory

import (
	"context"
	"math"
	"sort"
	"strings"
)

const pinBoost = 200.0

// Retrieve selects the top-limit live facts for the owner, blending pin
// status, lexical match, recency and confidence into one score. Selected rows
// get a best-effort lastUsedAt touch so recently surfaced facts stay fresh;
// a touch failure never fails the read.
func (s *Service) Retrieve(ctx context.Context, ownerID, query string, limit int) ([]MemoryItem, error) {
	if limit <= 0 {
		limit = s.cfg.RecallLimit
	}
	now := nowMS()

	items, err := s.store.ListLiveItems(ctx, ownerID, now, s.cfg.WorkingSetCap)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	queryTokens := tokenize(query)
	type scoredItem struct {
		item  MemoryItem
		score float64
	}
	scored := make([]scoredItem, 0, len(items))
	for _, it := range items {
		scored = append(scored, scoredItem{item: it, score: scoreItem(it, queryTokens, now)})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].score == scored[j].score {
			return scored[i].item.UpdatedAtMS > scored[j].item.UpdatedAtMS
		}
		return scored[i].score > scored[j].score
	})

	if limit > len(scored) {
		limit = len(scored)
	}
	out := make([]MemoryItem, 0, limit)
	ids := make([]string, 0, limit)
	for _, sc := range scored[:limit] {
		out = append(out, sc.item)
		ids = append(ids, sc.item.ID)
	}

	// Write-back is secondary; the read result stands even if it fails.
	_ = s.store.TouchItems(ctx, ids, now)
	return out, nil
}

// scoreItem implements:
//
//	score = pin(200) + matches*30 + max(1, 50-ln(hoursSinceUse)) + confidence
//
// Pinning dominates every other term so an admin-pinned fact always
// surfaces when eligible. Lexical match outweighs recency; the logarithmic
// decay keeps month-old facts from starving to zero.
func scoreItem(item MemoryItem, queryTokens []string, atMS int64) float64 {
	score := 0.0
	if item.Pinned {
		score += pinBoost
	}

	haystack := strings.ToLower(item.Content + " " + strings.Join(item.Tags, " "))
	seen := map[string]struct{}{}
	for _, tok := range queryTokens {
		if _, ok := seen[tok]; ok {
			continue
		}
		seen[tok] = struct{}{}
		if strings.Contains(haystack, tok) {
			score += 30
		}
	}

	score += recencyScore(item, atMS)
	score += float64(clampConfidence(item.Confidence))
	return score
}

func recencyScore(item MemoryItem, atMS int64) float64 {
	refMS := item.LastUsedAtMS
	if refMS == 0 {
		refMS = item.CreatedAtMS
	}
	hours := float64(atMS-refMS) / float64(3600*1000)
	if hours < 1 {
		hours = 1
	}
	return math.Max(1, 50-math.Log(hours))
}
