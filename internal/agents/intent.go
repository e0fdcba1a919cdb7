package agents

import (
	"context"

	"github.com/mohammad-safakhou/scout/internal/research"
)

// AutoIntent replays a fixed decision sequence and then confirms. Server-side
// runs use it to skip the interactive confirmation loop; tests use it to
// script update/exit paths.
type AutoIntent struct {
	Sequence []research.Intent
	next     int
}

func (a *AutoIntent) SelectIntent(ctx context.Context, options []research.IntentOption) (research.Intent, error) {
	if a.next < len(a.Sequence) {
		intent := a.Sequence[a.next]
		a.next++
		return intent, nil
	}
	return research.IntentConfirm, nil
}
