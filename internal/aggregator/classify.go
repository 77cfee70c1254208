package aggregator

import (
	"fmt"
	"strconv"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// Classify derives the ball type from the delivery's typed fields only.
// Precedence: wicket, wide, no-ball, six, four, bye, leg bye, run.
func Classify(d models.Delivery) models.BallType {
	switch {
	case d.IsWicket:
		return models.BallWicket
	case d.Extras.Kind == models.ExtraWide:
		return models.BallWide
	case d.Extras.Kind == models.ExtraNoBall:
		return models.BallNoBall
	case d.RunsOffBat == 6:
		return models.BallSix
	case d.RunsOffBat == 4:
		return models.BallFour
	case d.Extras.Kind == models.ExtraBye:
		return models.BallBye
	case d.Extras.Kind == models.ExtraLegBye:
		return models.BallLegBye
	}
	return models.BallRun
}

// Token renders the over-timeline token for a delivery
func Token(d models.Delivery) models.BallToken {
	t := Classify(d)
	return models.BallToken{Value: tokenValue(d, t), Type: t}
}

func tokenValue(d models.Delivery, t models.BallType) string {
	switch t {
	case models.BallWicket:
		return "W"
	case models.BallWide:
		if extra := d.TotalRuns() - 1; extra > 0 {
			return "wd+" + strconv.Itoa(extra)
		}
		return "wd"
	case models.BallNoBall:
		if extra := d.TotalRuns() - 1; extra > 0 {
			return "nb+" + strconv.Itoa(extra)
		}
		return "nb"
	case models.BallBye:
		return strconv.Itoa(d.Extras.Runs) + "b"
	case models.BallLegBye:
		return strconv.Itoa(d.Extras.Runs) + "lb"
	}
	return strconv.Itoa(d.RunsOffBat)
}

// describe generates the decorative commentary line. It is output only.
func describe(d models.Delivery, t models.BallType) string {
	if d.Commentary != "" {
		return d.Commentary
	}
	prefix := d.BowlerID + " to " + d.BatsmanID + ", "
	switch t {
	case models.BallWicket:
		kind := d.WicketKind
		if kind == "" {
			kind = "dismissed"
		}
		line := prefix + "OUT! " + d.Dismissed() + " " + string(kind)
		if runs := d.TotalRuns(); runs > 0 {
			line += fmt.Sprintf(" (%s completed)", plural(runs, "run"))
		}
		return line
	case models.BallWide:
		return prefix + "wide, " + plural(d.Extras.Runs, "run")
	case models.BallNoBall:
		if d.RunsOffBat > 0 {
			return prefix + "no ball, " + plural(d.RunsOffBat, "run") + " off the bat"
		}
		return prefix + "no ball"
	case models.BallSix:
		return prefix + "SIX"
	case models.BallFour:
		return prefix + "FOUR"
	case models.BallBye:
		return prefix + plural(d.Extras.Runs, "bye")
	case models.BallLegBye:
		return prefix + plural(d.Extras.Runs, "leg bye")
	}
	if d.RunsOffBat == 0 {
		return prefix + "no run"
	}
	return prefix + plural(d.RunsOffBat, "run")
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return strconv.Itoa(n) + " " + unit + "s"
}
