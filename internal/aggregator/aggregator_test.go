package aggregator

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

func ball(seq, over, inOver, runs int) models.Delivery {
	return models.Delivery{
		SequenceNumber: seq,
		OverNumber:     over,
		BallInOver:     inOver,
		RunsOffBat:     runs,
		Extras:         models.NoExtras(),
		BatsmanID:      "A",
		NonStrikerID:   "B",
		BowlerID:       "X",
	}
}

func withExtras(d models.Delivery, e models.Extras) models.Delivery {
	d.Extras = e
	return d
}

func out(d models.Delivery) models.Delivery {
	d.IsWicket = true
	return d
}

// firstOver is a complete over with a wide in it, ending in a wicket
func firstOver() []models.Delivery {
	return []models.Delivery{
		ball(0, 0, 1, 1),
		ball(1, 0, 2, 0),
		ball(2, 0, 3, 4),
		withExtras(ball(3, 0, 4, 0), models.Wide(1)),
		ball(4, 0, 5, 6),
		ball(5, 0, 6, 0),
		out(ball(6, 0, 6, 0)),
	}
}

func TestAggregate_FirstOverWithWideAndWicket(t *testing.T) {
	st := Aggregate(firstOver(), Context{})

	assert.Equal(t, 12, st.TotalRuns)
	assert.Equal(t, 1, st.TotalWickets)
	assert.Equal(t, 6, st.LegalBallCount)
	assert.Equal(t, "1.0", st.OversDisplay)
	assert.InDelta(t, 12.0, st.CurrentRunRate, 1e-9)
	assert.Equal(t, models.ExtrasSummary{Wides: 1, Total: 1}, st.Extras)

	a := st.BattingStats["A"]
	assert.Equal(t, 11, a.Runs)
	assert.Equal(t, 6, a.BallsFaced)
	assert.Equal(t, 1, a.Fours)
	assert.Equal(t, 1, a.Sixes)
	assert.True(t, a.IsOut)
	assert.False(t, st.BattingStats["B"].IsOut)

	x := st.BowlingStats["X"]
	assert.Equal(t, 6, x.BallsBowled)
	assert.Equal(t, "1.0", x.OversDisplay)
	assert.Equal(t, 12, x.RunsConceded)
	assert.Equal(t, 1, x.Wickets)
	assert.Equal(t, 0, x.Maidens)
	assert.InDelta(t, 12.0, x.Economy, 1e-9)

	require.Len(t, st.RecentOvers, 1)
	over := st.RecentOvers[0]
	assert.True(t, over.Complete)
	assert.Equal(t, 12, over.TotalRuns)
	assert.Equal(t, []models.BallToken{
		{Value: "1", Type: models.BallRun},
		{Value: "0", Type: models.BallRun},
		{Value: "4", Type: models.BallFour},
		{Value: "wd", Type: models.BallWide},
		{Value: "6", Type: models.BallSix},
		{Value: "0", Type: models.BallRun},
		{Value: "W", Type: models.BallWicket},
	}, over.Balls)

	require.NotNil(t, st.LastWicket)
	assert.Equal(t, models.LastWicket{
		BatsmanID:    "A",
		Runs:         11,
		Balls:        6,
		BowlerID:     "X",
		TeamScore:    12,
		WicketNumber: 1,
		OversDisplay: "1.0",
	}, *st.LastWicket)

	assert.Equal(t, models.Partnership{Batsman1ID: "B"}, st.CurrentPartnership)
	assert.Empty(t, st.StrikerID)
	assert.Equal(t, "B", st.NonStrikerID)
	assert.Equal(t, "X", st.CurrentBowlerID)

	require.Len(t, st.Commentary, 7)
	labels := make([]string, len(st.Commentary))
	for i, c := range st.Commentary {
		labels[i] = c.OverLabel
	}
	assert.Equal(t, []string{"0.1", "0.2", "0.3", "0.4", "0.4", "0.5", "0.6"}, labels)
}

func TestAggregate_RequiredRunRate(t *testing.T) {
	// 15 sixes then 57 dots: 90 runs from 72 legal balls
	var deliveries []models.Delivery
	for i := 0; i < 72; i++ {
		runs := 0
		if i < 15 {
			runs = 6
		}
		deliveries = append(deliveries, ball(i, i/6, i%6+1, runs))
	}
	target := 150
	st := Aggregate(deliveries, Context{OversLimit: 20, Target: &target})

	assert.Equal(t, 90, st.TotalRuns)
	assert.Equal(t, 72, st.LegalBallCount)
	assert.Equal(t, "12.0", st.OversDisplay)
	assert.InDelta(t, 7.5, st.CurrentRunRate, 1e-9)

	require.NotNil(t, st.RemainingBalls)
	assert.Equal(t, 48, *st.RemainingBalls)
	require.NotNil(t, st.RunsNeeded)
	assert.Equal(t, 60, *st.RunsNeeded)
	require.NotNil(t, st.RequiredRunRate)
	assert.InDelta(t, 7.5, *st.RequiredRunRate, 1e-9)
	require.NotNil(t, st.ProjectedScore)
	assert.Equal(t, 150, *st.ProjectedScore)
	require.NotNil(t, st.Target)
	assert.Equal(t, 150, *st.Target)
}

func TestAggregate_Empty(t *testing.T) {
	st := Aggregate(nil, Context{})

	assert.Equal(t, 0, st.TotalRuns)
	assert.Equal(t, 0, st.TotalWickets)
	assert.Equal(t, 0, st.LegalBallCount)
	assert.Equal(t, "0.0", st.OversDisplay)
	assert.Equal(t, 0.0, st.CurrentRunRate)
	assert.Empty(t, st.BattingStats)
	assert.Empty(t, st.BowlingStats)
	assert.Empty(t, st.RecentOvers)
	assert.Empty(t, st.Commentary)
	assert.Nil(t, st.LastWicket)
	assert.Nil(t, st.Target)
	assert.Nil(t, st.RequiredRunRate)
	assert.Nil(t, st.ProjectedScore)
	assert.Nil(t, st.RemainingBalls)
}

func TestAggregate_Deterministic(t *testing.T) {
	deliveries := append(firstOver(), ball(7, 1, 1, 2), withExtras(ball(8, 1, 2, 0), models.LegBye(1)))
	target := 120
	ctx := Context{OversLimit: 20, Target: &target}

	first, err := json.Marshal(Aggregate(deliveries, ctx))
	require.NoError(t, err)
	second, err := json.Marshal(Aggregate(deliveries, ctx))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	// input order does not matter, sequence numbers do
	shuffled := make([]models.Delivery, len(deliveries))
	copy(shuffled, deliveries)
	rand.New(rand.NewSource(7)).Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	third, err := json.Marshal(Aggregate(shuffled, ctx))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(third))
}

func TestAggregate_PrefixesNeverShrink(t *testing.T) {
	deliveries := append(firstOver(),
		withExtras(ball(7, 1, 1, 2), models.NoBall(1)),
		withExtras(ball(8, 1, 1, 0), models.Bye(2)),
		ball(9, 1, 2, 1),
	)

	prev := Aggregate(nil, Context{})
	for i := 1; i <= len(deliveries); i++ {
		st := Aggregate(deliveries[:i], Context{})
		assert.GreaterOrEqual(t, st.LegalBallCount, prev.LegalBallCount, "prefix %d", i)
		assert.GreaterOrEqual(t, st.TotalRuns, prev.TotalRuns, "prefix %d", i)
		assert.GreaterOrEqual(t, st.TotalWickets, prev.TotalWickets, "prefix %d", i)
		assert.Len(t, st.Commentary, i)

		faced := 0
		for _, b := range st.BattingStats {
			faced += b.BallsFaced
		}
		assert.Equal(t, st.LegalBallCount, faced, "prefix %d", i)
		assert.GreaterOrEqual(t, st.CurrentRunRate, 0.0)
		prev = st
	}
}

func TestAggregate_OverClosure(t *testing.T) {
	var deliveries []models.Delivery
	for i := 0; i < 6; i++ {
		deliveries = append(deliveries, ball(i, 0, i+1, 0))
	}
	// a wide opens the second over without counting toward it
	second := withExtras(ball(6, 1, 1, 0), models.Wide(1))
	second.BowlerID = "Y"
	deliveries = append(deliveries, second)

	st := Aggregate(deliveries, Context{})
	require.Len(t, st.RecentOvers, 2)
	assert.True(t, st.RecentOvers[0].Complete)
	assert.Len(t, st.RecentOvers[0].Balls, 6)
	assert.Equal(t, 0, st.RecentOvers[0].OverNumber)

	assert.False(t, st.RecentOvers[1].Complete)
	assert.Equal(t, 1, st.RecentOvers[1].OverNumber)
	assert.Equal(t, "Y", st.RecentOvers[1].BowlerID)
	assert.Equal(t, "1.0", st.OversDisplay)
	assert.Equal(t, "1.1", st.Commentary[6].OverLabel)

	assert.Equal(t, 1, st.BowlingStats["X"].Maidens)
	assert.Equal(t, 0, st.BowlingStats["Y"].BallsBowled)
	assert.Equal(t, 1, st.BowlingStats["Y"].RunsConceded)
}

func TestAggregate_RecentOversCap(t *testing.T) {
	var deliveries []models.Delivery
	for i := 0; i < 30; i++ {
		deliveries = append(deliveries, ball(i, i/6, i%6+1, 1))
	}

	st := Aggregate(deliveries, Context{RecentOvers: 2})
	require.Len(t, st.RecentOvers, 2)
	assert.Equal(t, 3, st.RecentOvers[0].OverNumber)
	assert.Equal(t, 4, st.RecentOvers[1].OverNumber)
	assert.Len(t, st.Commentary, 30)

	st = Aggregate(deliveries, Context{})
	assert.Len(t, st.RecentOvers, 5)
}

func TestAggregate_Maidens(t *testing.T) {
	tests := []struct {
		name    string
		spoiler models.Delivery
		maidens int
	}{
		{
			name:    "leg bye keeps the maiden",
			spoiler: withExtras(ball(5, 0, 6, 0), models.LegBye(1)),
			maidens: 1,
		},
		{
			name:    "bye keeps the maiden",
			spoiler: withExtras(ball(5, 0, 6, 0), models.Bye(4)),
			maidens: 1,
		},
		{
			name:    "single spoils it",
			spoiler: ball(5, 0, 6, 1),
			maidens: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deliveries []models.Delivery
			for i := 0; i < 5; i++ {
				deliveries = append(deliveries, ball(i, 0, i+1, 0))
			}
			deliveries = append(deliveries, tt.spoiler)

			st := Aggregate(deliveries, Context{})
			assert.Equal(t, tt.maidens, st.BowlingStats["X"].Maidens)
		})
	}
}

func TestAggregate_BowlerExtrasRules(t *testing.T) {
	deliveries := []models.Delivery{
		withExtras(ball(0, 0, 1, 0), models.Wide(2)),
		withExtras(ball(1, 0, 1, 3), models.NoBall(1)),
		withExtras(ball(2, 0, 1, 0), models.Bye(1)),
		withExtras(ball(3, 0, 2, 0), models.LegBye(2)),
	}

	tests := []struct {
		name     string
		charged  []string
		conceded int
	}{
		{name: "default table", charged: nil, conceded: 2 + 3 + 1},
		{name: "nothing charged", charged: []string{}, conceded: 3},
		{name: "everything charged", charged: []string{"wide", "noBall", "bye", "legBye"}, conceded: 2 + 3 + 1 + 1 + 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := DefaultRules()
			if tt.charged != nil {
				var err error
				rules, err = ParseRules(tt.charged)
				require.NoError(t, err)
			}

			st := Aggregate(deliveries, Context{Rules: rules})
			assert.Equal(t, tt.conceded, st.BowlingStats["X"].RunsConceded)
			// the team total never depends on the table
			assert.Equal(t, 9, st.TotalRuns)
			assert.Equal(t, 2, st.LegalBallCount)
		})
	}
}

func TestAggregate_RunOutNonStriker(t *testing.T) {
	d := ball(0, 0, 1, 1)
	d.IsWicket = true
	d.WicketKind = models.WicketRunOut
	d.DismissedBatsmanID = "B"

	st := Aggregate([]models.Delivery{d}, Context{})
	assert.Equal(t, 1, st.TotalWickets)
	assert.Equal(t, 0, st.BowlingStats["X"].Wickets)
	assert.True(t, st.BattingStats["B"].IsOut)
	assert.Equal(t, models.WicketRunOut, st.BattingStats["B"].Dismissal)
	assert.False(t, st.BattingStats["A"].IsOut)
	assert.Equal(t, "A", st.StrikerID)
	assert.Empty(t, st.NonStrikerID)
	assert.Equal(t, models.Partnership{Batsman1ID: "A"}, st.CurrentPartnership)
	require.NotNil(t, st.LastWicket)
	assert.Equal(t, "B", st.LastWicket.BatsmanID)
	assert.Equal(t, 1, st.LastWicket.TeamScore)
}

func TestAggregate_Partnership(t *testing.T) {
	deliveries := []models.Delivery{
		ball(0, 0, 1, 2),
		withExtras(ball(1, 0, 2, 0), models.Wide(1)),
		ball(2, 0, 2, 1),
	}

	st := Aggregate(deliveries, Context{})
	assert.Equal(t, models.Partnership{Batsman1ID: "A", Batsman2ID: "B", Runs: 4, Balls: 2}, st.CurrentPartnership)
}

func TestAggregate_Milestone(t *testing.T) {
	var deliveries []models.Delivery
	for i := 0; i < 9; i++ {
		deliveries = append(deliveries, ball(i, i/6, i%6+1, 6))
	}

	st := Aggregate(deliveries, Context{})
	assert.Equal(t, 54, st.BattingStats["A"].Runs)
	assert.Equal(t, "50", st.Commentary[8].Milestone)
	for _, c := range st.Commentary[:8] {
		assert.Empty(t, c.Milestone)
	}
}

func TestAggregate_ChaseComplete(t *testing.T) {
	target := 4
	deliveries := []models.Delivery{ball(0, 0, 1, 6)}

	st := Aggregate(deliveries, Context{OversLimit: 1, Target: &target})
	require.NotNil(t, st.RunsNeeded)
	assert.Equal(t, 0, *st.RunsNeeded)
	assert.Equal(t, 0.0, *st.RequiredRunRate)
	assert.Equal(t, 5, *st.RemainingBalls)
	assert.GreaterOrEqual(t, *st.ProjectedScore, st.TotalRuns)
}

func TestAggregate_TargetWithoutOversLimit(t *testing.T) {
	target := 200
	st := Aggregate([]models.Delivery{ball(0, 0, 1, 1)}, Context{Target: &target})

	assert.Nil(t, st.RemainingBalls)
	assert.Nil(t, st.ProjectedScore)
	require.NotNil(t, st.RequiredRunRate)
	assert.Equal(t, 0.0, *st.RequiredRunRate)
	assert.Equal(t, 199, *st.RunsNeeded)
}

func TestAggregate_OversLimitExhausted(t *testing.T) {
	var deliveries []models.Delivery
	for i := 0; i < 8; i++ {
		deliveries = append(deliveries, ball(i, i/6, i%6+1, 1))
	}
	target := 20

	st := Aggregate(deliveries, Context{OversLimit: 1, Target: &target})
	assert.Equal(t, 0, *st.RemainingBalls)
	assert.Equal(t, 0.0, *st.RequiredRunRate)
	assert.Equal(t, 8, *st.ProjectedScore)
}
