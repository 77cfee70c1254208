package engine

import (
	"fmt"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// checkOrdering rejects a delivery whose position contradicts the history.
// The over must be the one in progress, counted from legal deliveries.
// A numbered first ball of an over is ball 1. Within an over a numbered ball
// either repeats its predecessor's number (an extra followed by the
// re-bowled ball) or follows it by one. A ballInOver of 0 is treated as
// unnumbered, and a ball after an unnumbered one is not checked.
func checkOrdering(history []models.Delivery, d models.Delivery) error {
	legal := 0
	for _, h := range history {
		if h.IsLegal() {
			legal++
		}
	}

	over := legal / models.BallsPerOver
	if d.OverNumber != over {
		return models.NewValidationError("overNumber",
			fmt.Sprintf("expected over %d in progress, got %d", over, d.OverNumber))
	}

	if d.BallInOver == 0 {
		return nil
	}
	if len(history) == 0 || history[len(history)-1].OverNumber != d.OverNumber {
		if d.BallInOver > 1 {
			return models.NewValidationError("ballInOver",
				fmt.Sprintf("over %d must start at ball 1, got %d", over, d.BallInOver))
		}
		return nil
	}

	last := history[len(history)-1]
	switch {
	case last.BallInOver == 0:
		return nil
	case d.BallInOver < last.BallInOver:
		return models.NewValidationError("ballInOver",
			fmt.Sprintf("ball %d cannot follow ball %d of over %d", d.BallInOver, last.BallInOver, over))
	case d.BallInOver > last.BallInOver+1:
		return models.NewValidationError("ballInOver",
			fmt.Sprintf("ball %d skips ahead of ball %d of over %d", d.BallInOver, last.BallInOver, over))
	}
	return nil
}
