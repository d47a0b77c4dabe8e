package usecase

import (
	"context"

	"ai-chat-backend/internal/domain/model"
)

// fallbackWindowTurns bounds the window when token counting is unavailable.
const fallbackWindowTurns = 30

// trimToBudget drops the oldest turns until the remaining history fits the
// configured prompt-token budget. Counting is per-turn from newest to oldest
// so one over-budget old turn can't evict everything after it. Counting
// failures degrade to a recent-turn cap rather than failing the request.
func (c *chatUC) trimToBudget(ctx context.Context, turns []model.Turn) []model.Turn {
	if len(turns) == 0 {
		return turns
	}
	if c.budget <= 0 {
		return turns
	}

	used := 0
	keepFrom := 0
	for i := len(turns) - 1; i >= 0; i-- {
		n, err := c.gen.CountTokens(ctx, c.modelName, turns[i:i+1])
		if err != nil {
			if len(turns) > fallbackWindowTurns {
				return turns[len(turns)-fallbackWindowTurns:]
			}
			return turns
		}
		if used+n > c.budget {
			keepFrom = i + 1
			break
		}
		used += n
	}
	return turns[keepFrom:]
}
