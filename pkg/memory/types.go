package memory

// Scope controls who can see a memory item.
type Scope string

const (
	ScopeUser   Scope = "user"
	ScopeGlobal Scope = "global"
)

// ItemType classifies long-term memories.
type ItemType string

const (
	TypePreference  ItemType = "preference"
	TypeGoal        ItemType = "goal"
	TypeProfile     ItemType = "profile"
	TypeProgress    ItemType = "progress"
	TypeLessonIssue ItemType = "lesson_issue"
	TypeNote        ItemType = "note"
)

// Source records where a memory item came from.
type Source string

const (
	SourceChat    Source = "chat"
	SourceQuiz    Source = "quiz"
	SourceJournal Source = "journal"
	SourceAdmin   Source = "admin"
)

// MemoryItem is a single remembered fact in the canonical store.
type MemoryItem struct {
	ID           string
	OwnerID      string
	Scope        Scope
	Type         ItemType
	Content      string
	Tags         []string
	Confidence   int
	Pinned       bool
	Source       Source
	CreatedAtMS  int64
	UpdatedAtMS  int64
	LastUsedAtMS int64
	ExpiresAtMS  int64
}

// Live reports whether the item has not expired as of nowMS.
func (m MemoryItem) Live(nowMS int64) bool {
	return m.ExpiresAtMS == 0 || m.ExpiresAtMS > nowMS
}

// EventAction enumerates audited mutations.
type EventAction string

const (
	ActionCreate          EventAction = "create"
	ActionUpdate          EventAction = "update"
	ActionDelete          EventAction = "delete"
	ActionPin             EventAction = "pin"
	ActionUnpin           EventAction = "unpin"
	ActionForgetUser      EventAction = "forget_user"
	ActionRetentionChange EventAction = "retention_change"
)

// MemoryEvent is an immutable audit record. Every item mutation writes
// exactly one event; events are never updated or deleted.
type MemoryEvent struct {
	ID          string
	ActorID     string // empty means system-initiated
	UserID      string // affected owner, may be empty
	Action      EventAction
	Details     map[string]string
	CreatedAtMS int64
}

// Candidate is one extracted fact awaiting persistence.
type Candidate struct {
	Type       ItemType
	Content    string
	Tags       []string
	Confidence int
}

// MemorizeInput carries one candidate fact into the dedupe writer.
type MemorizeInput struct {
	OwnerID    string
	Scope      Scope
	Type       ItemType
	Content    string
	Tags       []string
	Confidence int
	Source     Source
	ActorID    string
}

// ItemPatch is an admin edit; nil fields are left unchanged.
type ItemPatch struct {
	Content    *string
	Tags       []string
	Type       *ItemType
	Confidence *int
	Pinned     *bool
}

// ConsoleFilters narrows the admin search over items and events.
type ConsoleFilters struct {
	OwnerID     string
	Query       string
	Type        ItemType
	Scope       Scope
	PinnedOnly  bool
	ExpiredOnly bool
	Limit       int
	EventLimit  int
}

// ConsoleResult is the composed admin search payload.
type ConsoleResult struct {
	Items  []MemoryItem
	Events []MemoryEvent
}

// Stats summarizes the store for operational status output.
type Stats struct {
	TotalItems   int
	ByType       map[ItemType]int
	ByScope      map[Scope]int
	PinnedItems  int
	ExpiredItems int
	TotalEvents  int
}
