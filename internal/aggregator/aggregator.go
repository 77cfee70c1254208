// Package aggregator turns an innings' delivery history into its derived
// statistics. Aggregate is pure: equal input always yields equal output, so
// the engine can rerun it on every transaction attempt.
package aggregator

import (
	"math"
	"sort"
	"strconv"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// Context carries the innings settings the statistics depend on
type Context struct {
	OversLimit int
	Target     *int

	// RecentOvers caps the overs kept in the state; 0 keeps every over
	RecentOvers int

	// Rules defaults to DefaultRules when its table is nil
	Rules Rules
}

// milestoneStep is the batting milestone interval (fifty, hundred, ...)
const milestoneStep = 50

type builder struct {
	ctx   Context
	state models.DerivedInningsState

	batting map[string]*models.PlayerBattingStats
	bowling map[string]*models.PlayerBowlingStats

	overs       []models.OverSummary
	current     *models.OverSummary
	legalInOver int

	// maiden tracking for the over in progress
	overConceded     int
	overBowlerSwitch bool
}

// Aggregate rebuilds every derived statistic from deliveries, processed in
// sequence number order. An empty history yields the zero state.
func Aggregate(deliveries []models.Delivery, ctx Context) models.DerivedInningsState {
	ordered := make([]models.Delivery, len(deliveries))
	copy(ordered, deliveries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].SequenceNumber < ordered[j].SequenceNumber
	})

	b := &builder{
		ctx:     ctx,
		batting: make(map[string]*models.PlayerBattingStats),
		bowling: make(map[string]*models.PlayerBowlingStats),
	}
	b.state.Commentary = make([]models.CommentaryEntry, 0, len(ordered))
	for _, d := range ordered {
		b.apply(d)
	}
	return b.finish()
}

func (b *builder) apply(d models.Delivery) {
	st := &b.state
	if b.current == nil {
		b.current = &models.OverSummary{
			OverNumber: len(b.overs),
			BowlerID:   d.BowlerID,
			Balls:      []models.BallToken{},
		}
		b.overConceded = 0
		b.overBowlerSwitch = false
	} else if b.current.BowlerID != d.BowlerID {
		b.overBowlerSwitch = true
	}

	runs := d.TotalRuns()
	st.TotalRuns += runs
	b.current.TotalRuns += runs
	b.addExtras(d.Extras)

	bat := b.batsman(d.BatsmanID)
	if d.NonStrikerID != "" {
		b.batsman(d.NonStrikerID)
	}
	before := bat.Runs
	bat.Runs += d.RunsOffBat
	switch d.RunsOffBat {
	case 4:
		bat.Fours++
	case 6:
		bat.Sixes++
	}

	bowler := b.bowler(d.BowlerID)
	conceded := d.RunsOffBat
	if !d.Extras.IsNone() && b.ctx.Rules.charges(d.Extras.Kind) {
		conceded += d.Extras.Runs
	}
	bowler.RunsConceded += conceded
	b.overConceded += conceded

	p := &st.CurrentPartnership
	if p.Batsman1ID == "" {
		p.Batsman1ID = d.BatsmanID
	}
	if p.Batsman2ID == "" {
		switch {
		case d.BatsmanID != p.Batsman1ID:
			p.Batsman2ID = d.BatsmanID
		case d.NonStrikerID != p.Batsman1ID:
			p.Batsman2ID = d.NonStrikerID
		}
	}
	p.Runs += runs

	if d.IsLegal() {
		st.LegalBallCount++
		b.legalInOver++
		bat.BallsFaced++
		bowler.BallsBowled++
		p.Balls++
	}

	ballType := Classify(d)
	b.current.Balls = append(b.current.Balls, models.BallToken{Value: tokenValue(d, ballType), Type: ballType})

	entry := models.CommentaryEntry{
		SequenceNumber: d.SequenceNumber,
		OverLabel:      b.overLabel(d),
		BallType:       ballType,
		Value:          tokenValue(d, ballType),
		Runs:           runs,
		BatsmanID:      d.BatsmanID,
		BowlerID:       d.BowlerID,
		IsLegal:        d.IsLegal(),
		IsWicket:       d.IsWicket,
		IsHighlight:    ballType == models.BallWicket || d.RunsOffBat >= 4,
		Text:           describe(d, ballType),
	}
	if reached := bat.Runs / milestoneStep; reached > before/milestoneStep {
		entry.Milestone = strconv.Itoa(reached * milestoneStep)
		entry.IsHighlight = true
	}
	st.Commentary = append(st.Commentary, entry)

	st.StrikerID = d.BatsmanID
	st.NonStrikerID = d.NonStrikerID
	st.CurrentBowlerID = d.BowlerID

	if d.IsWicket {
		b.wicket(d, bowler)
	}

	if b.legalInOver == models.BallsPerOver {
		b.closeOver()
	}
}

func (b *builder) wicket(d models.Delivery, bowler *models.PlayerBowlingStats) {
	st := &b.state
	st.TotalWickets++

	out := d.Dismissed()
	dismissed := b.batsman(out)
	dismissed.IsOut = true
	dismissed.Dismissal = d.WicketKind
	if d.WicketKind.CreditsBowler() {
		bowler.Wickets++
	}

	st.LastWicket = &models.LastWicket{
		BatsmanID:    out,
		Runs:         dismissed.Runs,
		Balls:        dismissed.BallsFaced,
		WicketKind:   d.WicketKind,
		BowlerID:     d.BowlerID,
		TeamScore:    st.TotalRuns,
		WicketNumber: st.TotalWickets,
		OversDisplay: models.OversDisplay(st.LegalBallCount),
	}

	survivor := d.NonStrikerID
	if out == d.NonStrikerID {
		survivor = d.BatsmanID
	}
	st.CurrentPartnership = models.Partnership{Batsman1ID: survivor}

	switch out {
	case st.StrikerID:
		st.StrikerID = ""
	case st.NonStrikerID:
		st.NonStrikerID = ""
	}
}

func (b *builder) closeOver() {
	b.current.Complete = true
	if !b.overBowlerSwitch && b.overConceded == 0 {
		b.bowler(b.current.BowlerID).Maidens++
	}
	b.overs = append(b.overs, *b.current)
	b.current = nil
	b.legalInOver = 0
}

// overLabel numbers a legal ball by its position in the over; an illegal
// ball carries the number of the ball still to be bowled.
func (b *builder) overLabel(d models.Delivery) string {
	ball := b.legalInOver
	if !d.IsLegal() {
		ball++
	}
	return strconv.Itoa(b.current.OverNumber) + "." + strconv.Itoa(ball)
}

func (b *builder) addExtras(e models.Extras) {
	x := &b.state.Extras
	switch e.Kind {
	case models.ExtraWide:
		x.Wides += e.Runs
	case models.ExtraNoBall:
		x.NoBalls += e.Runs
	case models.ExtraBye:
		x.Byes += e.Runs
	case models.ExtraLegBye:
		x.LegByes += e.Runs
	default:
		return
	}
	x.Total += e.Runs
}

func (b *builder) batsman(id string) *models.PlayerBattingStats {
	s, ok := b.batting[id]
	if !ok {
		s = &models.PlayerBattingStats{}
		b.batting[id] = s
	}
	return s
}

func (b *builder) bowler(id string) *models.PlayerBowlingStats {
	s, ok := b.bowling[id]
	if !ok {
		s = &models.PlayerBowlingStats{}
		b.bowling[id] = s
	}
	return s
}

func (b *builder) finish() models.DerivedInningsState {
	st := b.state
	overs := b.overs
	if b.current != nil {
		overs = append(overs, *b.current)
	}
	if n := b.ctx.RecentOvers; n > 0 && len(overs) > n {
		overs = overs[len(overs)-n:]
	}
	st.RecentOvers = make([]models.OverSummary, len(overs))
	copy(st.RecentOvers, overs)

	st.BattingStats = make(map[string]models.PlayerBattingStats, len(b.batting))
	for id, s := range b.batting {
		out := *s
		out.StrikeRate = ratio(out.Runs*100, out.BallsFaced)
		st.BattingStats[id] = out
	}
	st.BowlingStats = make(map[string]models.PlayerBowlingStats, len(b.bowling))
	for id, s := range b.bowling {
		out := *s
		out.OversDisplay = models.OversDisplay(out.BallsBowled)
		out.Economy = ratio(out.RunsConceded*models.BallsPerOver, out.BallsBowled)
		st.BowlingStats[id] = out
	}

	st.OversDisplay = models.OversDisplay(st.LegalBallCount)
	st.OversLimit = b.ctx.OversLimit
	st.CurrentRunRate = ratio(st.TotalRuns*models.BallsPerOver, st.LegalBallCount)

	if b.ctx.OversLimit > 0 {
		remaining := b.ctx.OversLimit*models.BallsPerOver - st.LegalBallCount
		if remaining < 0 {
			remaining = 0
		}
		st.RemainingBalls = &remaining

		remainingOvers := float64(b.ctx.OversLimit) - float64(st.LegalBallCount)/models.BallsPerOver
		if remainingOvers < 0 {
			remainingOvers = 0
		}
		projected := int(math.Floor(float64(st.TotalRuns) + st.CurrentRunRate*remainingOvers))
		if projected < st.TotalRuns {
			projected = st.TotalRuns
		}
		st.ProjectedScore = &projected
	}

	if b.ctx.Target != nil {
		target := *b.ctx.Target
		st.Target = &target
		needed := target - st.TotalRuns
		if needed < 0 {
			needed = 0
		}
		st.RunsNeeded = &needed
		rrr := 0.0
		if st.RemainingBalls != nil {
			rrr = ratio(needed*models.BallsPerOver, *st.RemainingBalls)
		}
		st.RequiredRunRate = &rrr
	}
	return st
}

// ratio returns num/den, or 0 when den is not positive
func ratio(num, den int) float64 {
	if den <= 0 || num <= 0 {
		return 0
	}
	return float64(num) / float64(den)
}
