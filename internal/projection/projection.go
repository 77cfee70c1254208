// Package projection holds presentation helpers over DerivedInningsState.
// They only rearrange or format fields already on the state.
package projection

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// Ball colors used by the scoring UI
const (
	ColorWicket = "#FF3860"
	ColorFour   = "#3273DC"
	ColorSix    = "#48C774"
	ColorExtra  = "#FAD331"
	ColorDot    = "#7F8C8D"
	ColorOther  = "#0b1629"
)

// OverTimeline returns the recent overs newest first
func OverTimeline(state models.DerivedInningsState) []models.OverSummary {
	out := make([]models.OverSummary, len(state.RecentOvers))
	for i, over := range state.RecentOvers {
		out[len(out)-1-i] = over
	}
	return out
}

// ClassifyToken recovers the ball type of a rendered token such as "W",
// "wd+2", "nb", "3lb" or "4"
func ClassifyToken(value string) models.BallType {
	v := strings.ToLower(strings.TrimSpace(value))
	switch {
	case v == "w":
		return models.BallWicket
	case strings.HasPrefix(v, "wd"):
		return models.BallWide
	case strings.HasPrefix(v, "nb"):
		return models.BallNoBall
	case strings.HasSuffix(v, "lb"):
		return models.BallLegBye
	case strings.HasSuffix(v, "b"):
		return models.BallBye
	case v == "6":
		return models.BallSix
	case v == "4":
		return models.BallFour
	}
	return models.BallRun
}

// BallColor maps a token to its display color. A token without a type is
// classified from its value.
func BallColor(token models.BallToken) string {
	t := token.Type
	if t == "" {
		t = ClassifyToken(token.Value)
	}
	switch t {
	case models.BallWicket:
		return ColorWicket
	case models.BallFour:
		return ColorFour
	case models.BallSix:
		return ColorSix
	case models.BallWide, models.BallNoBall:
		return ColorExtra
	case models.BallRun:
		if strings.TrimSpace(token.Value) == "0" {
			return ColorDot
		}
	}
	return ColorOther
}

// FormatPartnership renders a stand as "runs(balls)"
func FormatPartnership(p models.Partnership) string {
	return fmt.Sprintf("%d(%d)", p.Runs, p.Balls)
}

// FormatLastWicket renders "Name runs(balls)". names may be nil, in which
// case the player id is shown. A nil wicket renders as "".
func FormatLastWicket(w *models.LastWicket, names func(id string) string) string {
	if w == nil {
		return ""
	}
	name := w.BatsmanID
	if names != nil {
		if n := names(w.BatsmanID); n != "" {
			name = n
		}
	}
	return fmt.Sprintf("%s %d(%d)", name, w.Runs, w.Balls)
}

// FormatRate renders a run rate with two decimals
func FormatRate(rate float64) string {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return "0.00"
	}
	return decimal.NewFromFloat(rate).StringFixed(2)
}

// PlayerRef is a player as rendered: a name and, when the id is known, the
// profile path
type PlayerRef struct {
	ID   string  `json:"playerId,omitempty"`
	Name string  `json:"name"`
	Href *string `json:"href,omitempty"`
}

// PlayerLink resolves a player reference. Without an id only the name is
// rendered; without a name the id stands in for it.
func PlayerLink(id, name string) PlayerRef {
	id = strings.TrimSpace(id)
	ref := PlayerRef{ID: id, Name: name}
	if ref.Name == "" {
		ref.Name = id
	}
	if id != "" {
		link := "/players/" + url.PathEscape(id)
		ref.Href = &link
	}
	return ref
}

// LiveEvent is the marker for the latest delivery; ok is false before the
// first ball
func LiveEvent(state models.DerivedInningsState) (models.LiveEvent, bool) {
	if len(state.Commentary) == 0 {
		return models.LiveEvent{}, false
	}
	last := state.Commentary[len(state.Commentary)-1]
	return models.LiveEvent{
		MatchID:        state.MatchID,
		Inning:         state.Inning,
		SequenceNumber: last.SequenceNumber,
		Text:           last.Text,
		BallType:       last.BallType,
	}, true
}

// ProjectionRow is one line of the projected score table
type ProjectionRow struct {
	Label     string `json:"label"`
	RunRate   string `json:"runRate"`
	Projected int    `json:"projected"`
	IsCurrent bool   `json:"isCurrent"`
}

// DefaultProjectionRates are the alternative rates shown next to the current one
var DefaultProjectionRates = []float64{6, 8, 10, 12}

// ProjectedScoreTable projects the final score at the current rate and at
// each of rates. Without an overs limit there is nothing to project.
func ProjectedScoreTable(state models.DerivedInningsState, rates []float64) []ProjectionRow {
	if state.OversLimit <= 0 {
		return nil
	}
	remaining := float64(state.OversLimit) - float64(state.LegalBallCount)/models.BallsPerOver
	if remaining < 0 {
		remaining = 0
	}

	project := func(rate float64) int {
		return state.TotalRuns + int(math.Floor(rate*remaining))
	}

	rows := []ProjectionRow{{
		Label:     "Current",
		RunRate:   FormatRate(state.CurrentRunRate),
		Projected: project(state.CurrentRunRate),
		IsCurrent: true,
	}}
	for _, r := range rates {
		rows = append(rows, ProjectionRow{
			Label:     strconv.FormatFloat(r, 'f', -1, 64) + " RPO",
			RunRate:   FormatRate(r),
			Projected: project(r),
		})
	}
	return rows
}
