package projection

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// Filter selects commentary entries
type Filter string

const (
	FilterAll        Filter = "all"
	FilterHighlights Filter = "highlights"
	FilterOvers      Filter = "overs"
	FilterWickets    Filter = "wickets"
	FilterSixes      Filter = "sixes"
	FilterFours      Filter = "fours"
	FilterMilestone  Filter = "milestone"
)

// ParseFilter accepts a filter name; empty means all
func ParseFilter(s string) (Filter, error) {
	f := Filter(strings.ToLower(strings.TrimSpace(s)))
	switch f {
	case "":
		return FilterAll, nil
	case FilterAll, FilterHighlights, FilterOvers, FilterWickets, FilterSixes, FilterFours, FilterMilestone:
		return f, nil
	}
	return "", fmt.Errorf("unknown commentary filter %q", s)
}

// FilterCommentary returns the entries matching f, in their original order.
// Matching uses the structural fields only. FilterOvers keeps the ball that
// completed each over.
func FilterCommentary(entries []models.CommentaryEntry, f Filter) []models.CommentaryEntry {
	if f == "" || f == FilterAll {
		out := make([]models.CommentaryEntry, len(entries))
		copy(out, entries)
		return out
	}

	out := make([]models.CommentaryEntry, 0)
	for _, e := range entries {
		if matches(e, f) {
			out = append(out, e)
		}
	}
	return out
}

func matches(e models.CommentaryEntry, f Filter) bool {
	switch f {
	case FilterHighlights:
		return e.IsHighlight
	case FilterWickets:
		return e.IsWicket
	case FilterSixes:
		return e.BallType == models.BallSix
	case FilterFours:
		return e.BallType == models.BallFour
	case FilterMilestone:
		return e.Milestone != ""
	case FilterOvers:
		return endsOver(e)
	}
	return true
}

// endsOver reports whether e is the sixth legal ball of its over
func endsOver(e models.CommentaryEntry) bool {
	if !e.IsLegal {
		return false
	}
	i := strings.LastIndex(e.OverLabel, ".")
	if i < 0 {
		return false
	}
	ball, err := strconv.Atoi(e.OverLabel[i+1:])
	return err == nil && ball == models.BallsPerOver
}
