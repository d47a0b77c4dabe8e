package model

import (
	"time"

	"github.com/oklog/ulid/v2"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultThreadID is used when a request carries no thread id.
const DefaultThreadID = "default"

// Turn is one committed exchange unit of a thread. Turns are append-only:
// once committed they are never mutated or reordered.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func NewTurn(role Role, content string) Turn {
	return Turn{
		ID:        ulid.Make().String(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// Thread is the stored record for one conversation. Version counts committed
// append batches and guards optimistic concurrency in the store.
type Thread struct {
	ID        string    `json:"id"`
	Version   int64     `json:"version"`
	TurnCount int       `json:"turn_count"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// History is an immutable in-memory view of a thread's turns. WithAppended
// returns a new value; a History held by one session is never visible to
// mutation from another.
type History struct {
	turns []Turn
}

func NewHistory(turns []Turn) History {
	cp := make([]Turn, len(turns))
	copy(cp, turns)
	return History{turns: cp}
}

func (h History) Len() int { return len(h.turns) }

// Snapshot returns a copy of the turns; callers may mutate it freely.
func (h History) Snapshot() []Turn {
	cp := make([]Turn, len(h.turns))
	copy(cp, h.turns)
	return cp
}

func (h History) WithAppended(turns ...Turn) History {
	cp := make([]Turn, 0, len(h.turns)+len(turns))
	cp = append(cp, h.turns...)
	cp = append(cp, turns...)
	return History{turns: cp}
}

// Last returns the most recent n turns without copying the backing array
// beyond what Snapshot of the slice needs.
func (h History) Last(n int) []Turn {
	if n <= 0 || n >= len(h.turns) {
		return h.Snapshot()
	}
	cp := make([]Turn, n)
	copy(cp, h.turns[len(h.turns)-n:])
	return cp
}
