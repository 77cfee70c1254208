package aggregator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

func TestParseRules(t *testing.T) {
	tests := []struct {
		name    string
		input   []string
		want    []string
		wantErr bool
	}{
		{name: "canonical names", input: []string{"wide", "noBall"}, want: []string{"noBall", "wide"}},
		{name: "aliases", input: []string{"wd", "nb", "lb", "b"}, want: []string{"bye", "legBye", "noBall", "wide"}},
		{name: "case and whitespace", input: []string{" WIDE ", "Leg-Bye", ""}, want: []string{"legBye", "wide"}},
		{name: "empty list", input: []string{}, want: nil},
		{name: "unknown kind", input: []string{"beamer"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules, err := ParseRules(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, rules.Charged())
		})
	}
}

func TestDefaultRules(t *testing.T) {
	assert.Equal(t, []string{"noBall", "wide"}, DefaultRules().Charged())

	var zero Rules
	assert.True(t, zero.charges(models.ExtraWide))
	assert.False(t, zero.charges(models.ExtraBye))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		d     models.Delivery
		want  models.BallType
		token string
	}{
		{name: "dot", d: ball(0, 0, 1, 0), want: models.BallRun, token: "0"},
		{name: "three", d: ball(0, 0, 1, 3), want: models.BallRun, token: "3"},
		{name: "four", d: ball(0, 0, 1, 4), want: models.BallFour, token: "4"},
		{name: "six", d: ball(0, 0, 1, 6), want: models.BallSix, token: "6"},
		{name: "wicket beats six", d: out(ball(0, 0, 1, 6)), want: models.BallWicket, token: "W"},
		{name: "wide", d: withExtras(ball(0, 0, 1, 0), models.Wide(1)), want: models.BallWide, token: "wd"},
		{name: "wide that ran away", d: withExtras(ball(0, 0, 1, 0), models.Wide(5)), want: models.BallWide, token: "wd+4"},
		{name: "no ball hit for six", d: withExtras(ball(0, 0, 1, 6), models.NoBall(1)), want: models.BallNoBall, token: "nb+6"},
		{name: "no ball", d: withExtras(ball(0, 0, 1, 0), models.NoBall(1)), want: models.BallNoBall, token: "nb"},
		{name: "byes", d: withExtras(ball(0, 0, 1, 0), models.Bye(2)), want: models.BallBye, token: "2b"},
		{name: "leg byes", d: withExtras(ball(0, 0, 1, 0), models.LegBye(4)), want: models.BallLegBye, token: "4lb"},
		{name: "stumped off a wide", d: out(withExtras(ball(0, 0, 1, 0), models.Wide(1))), want: models.BallWicket, token: "W"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.d))
			assert.Equal(t, models.BallToken{Value: tt.token, Type: tt.want}, Token(tt.d))
		})
	}
}

func TestDescribe(t *testing.T) {
	d := ball(0, 0, 1, 4)
	assert.Equal(t, "X to A, FOUR", describe(d, Classify(d)))

	d.Commentary = "driven through the covers"
	assert.Equal(t, "driven through the covers", describe(d, Classify(d)))

	w := out(ball(0, 0, 1, 0))
	w.WicketKind = models.WicketBowled
	assert.Equal(t, "X to A, OUT! A bowled", describe(w, Classify(w)))

	lb := withExtras(ball(0, 0, 1, 0), models.LegBye(1))
	assert.Equal(t, "X to A, 1 leg bye", describe(lb, Classify(lb)))
}
