package projection

import (
	"fmt"
	"sort"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// BattingRow is one batsman's line on the scorecard
type BattingRow struct {
	Player     PlayerRef `json:"player"`
	Runs       int       `json:"runs"`
	Balls      int       `json:"balls"`
	Fours      int       `json:"fours"`
	Sixes      int       `json:"sixes"`
	StrikeRate string    `json:"strikeRate"`
	Status     string    `json:"status"`
}

// BowlingRow is one bowler's line on the scorecard
type BowlingRow struct {
	Player  PlayerRef `json:"player"`
	Overs   string    `json:"overs"`
	Maidens int       `json:"maidens"`
	Runs    int       `json:"runs"`
	Wickets int       `json:"wickets"`
	Economy string    `json:"economy"`
}

// Scorecard is the batting and bowling card of an innings
type Scorecard struct {
	Batting []BattingRow         `json:"batting"`
	Bowling []BowlingRow         `json:"bowling"`
	Extras  models.ExtrasSummary `json:"extras"`
	Total   string               `json:"total"`
}

// BuildScorecard orders players by first appearance in the commentary.
// Players the commentary never names (a non-striker yet to face) follow in
// id order. names may be nil.
func BuildScorecard(state models.DerivedInningsState, names func(id string) string) Scorecard {
	var batOrder, bowlOrder []string
	seenBat := map[string]bool{}
	seenBowl := map[string]bool{}
	for _, e := range state.Commentary {
		if _, ok := state.BattingStats[e.BatsmanID]; ok && !seenBat[e.BatsmanID] {
			seenBat[e.BatsmanID] = true
			batOrder = append(batOrder, e.BatsmanID)
		}
		if _, ok := state.BowlingStats[e.BowlerID]; ok && !seenBowl[e.BowlerID] {
			seenBowl[e.BowlerID] = true
			bowlOrder = append(bowlOrder, e.BowlerID)
		}
	}
	batOrder = append(batOrder, rest(state.BattingStats, seenBat)...)
	bowlOrder = append(bowlOrder, rest(state.BowlingStats, seenBowl)...)

	link := func(id string) PlayerRef {
		name := ""
		if names != nil {
			name = names(id)
		}
		return PlayerLink(id, name)
	}

	card := Scorecard{
		Batting: make([]BattingRow, 0, len(batOrder)),
		Bowling: make([]BowlingRow, 0, len(bowlOrder)),
		Extras:  state.Extras,
		Total:   FormatTotal(state),
	}
	for _, id := range batOrder {
		s := state.BattingStats[id]
		status := "not out"
		if s.IsOut {
			status = "out"
			if s.Dismissal != "" {
				status = string(s.Dismissal)
			}
		}
		card.Batting = append(card.Batting, BattingRow{
			Player:     link(id),
			Runs:       s.Runs,
			Balls:      s.BallsFaced,
			Fours:      s.Fours,
			Sixes:      s.Sixes,
			StrikeRate: FormatRate(s.StrikeRate),
			Status:     status,
		})
	}
	for _, id := range bowlOrder {
		s := state.BowlingStats[id]
		card.Bowling = append(card.Bowling, BowlingRow{
			Player:  link(id),
			Overs:   s.OversDisplay,
			Maidens: s.Maidens,
			Runs:    s.RunsConceded,
			Wickets: s.Wickets,
			Economy: FormatRate(s.Economy),
		})
	}
	return card
}

// FormatTotal renders "runs/wickets (overs ov)"
func FormatTotal(state models.DerivedInningsState) string {
	overs := state.OversDisplay
	if overs == "" {
		overs = "0.0"
	}
	return fmt.Sprintf("%d/%d (%s ov)", state.TotalRuns, state.TotalWickets, overs)
}

func rest[V any](stats map[string]V, seen map[string]bool) []string {
	var ids []string
	for id := range stats {
		if !seen[id] {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}
