package models

import (
	"fmt"
	"strconv"
)

// BallsPerOver is the number of legal deliveries in an over
const BallsPerOver = 6

// ExtraKind tags the kind of extra conceded on a delivery
type ExtraKind string

const (
	ExtraNone   ExtraKind = "none"
	ExtraWide   ExtraKind = "wide"
	ExtraNoBall ExtraKind = "noBall"
	ExtraBye    ExtraKind = "bye"
	ExtraLegBye ExtraKind = "legBye"
)

// Valid reports whether k is a known extra kind. The zero value counts as none.
func (k ExtraKind) Valid() bool {
	switch k {
	case "", ExtraNone, ExtraWide, ExtraNoBall, ExtraBye, ExtraLegBye:
		return true
	}
	return false
}

// Extras is the tagged extras value of a delivery
type Extras struct {
	Kind ExtraKind `json:"kind"`
	Runs int       `json:"runs"`
}

// NoExtras is the extras value of a clean delivery
func NoExtras() Extras { return Extras{Kind: ExtraNone} }

// Wide returns a wide worth n runs
func Wide(n int) Extras { return Extras{Kind: ExtraWide, Runs: n} }

// NoBall returns a no-ball penalty worth n runs
func NoBall(n int) Extras { return Extras{Kind: ExtraNoBall, Runs: n} }

// Bye returns n byes
func Bye(n int) Extras { return Extras{Kind: ExtraBye, Runs: n} }

// LegBye returns n leg byes
func LegBye(n int) Extras { return Extras{Kind: ExtraLegBye, Runs: n} }

// IsNone reports whether no extra was conceded
func (e Extras) IsNone() bool {
	return e.Kind == "" || e.Kind == ExtraNone
}

// WicketKind is the mode of dismissal
type WicketKind string

const (
	WicketBowled           WicketKind = "bowled"
	WicketCaught           WicketKind = "caught"
	WicketLBW              WicketKind = "lbw"
	WicketStumped          WicketKind = "stumped"
	WicketHitWicket        WicketKind = "hitWicket"
	WicketRunOut           WicketKind = "runOut"
	WicketRetiredHurt      WicketKind = "retiredHurt"
	WicketObstructingField WicketKind = "obstructingField"
)

// Valid reports whether w is a known dismissal kind
func (w WicketKind) Valid() bool {
	switch w {
	case WicketBowled, WicketCaught, WicketLBW, WicketStumped, WicketHitWicket,
		WicketRunOut, WicketRetiredHurt, WicketObstructingField:
		return true
	}
	return false
}

// CreditsBowler reports whether the dismissal counts in the bowler's wickets.
// An unspecified kind is credited, matching the common scorer shorthand.
func (w WicketKind) CreditsBowler() bool {
	switch w {
	case WicketRunOut, WicketRetiredHurt, WicketObstructingField:
		return false
	}
	return true
}

// Delivery is one ball bowled, legal or not. Deliveries are never mutated
// once appended to an innings.
type Delivery struct {
	SequenceNumber     int        `json:"sequenceNumber"`
	OverNumber         int        `json:"overNumber"`
	BallInOver         int        `json:"ballInOver"`
	RunsOffBat         int        `json:"runsOffBat"`
	Extras             Extras     `json:"extras"`
	IsWicket           bool       `json:"isWicket"`
	WicketKind         WicketKind `json:"wicketKind,omitempty"`
	DismissedBatsmanID string     `json:"dismissedBatsmanId,omitempty"`
	BatsmanID          string     `json:"batsmanId"`
	NonStrikerID       string     `json:"nonStrikerId"`
	BowlerID           string     `json:"bowlerId"`
	Commentary         string     `json:"commentary,omitempty"`
}

// IsLegal reports whether the delivery counts toward the over
func (d Delivery) IsLegal() bool {
	return d.Extras.Kind != ExtraWide && d.Extras.Kind != ExtraNoBall
}

// TotalRuns is every run scored off the delivery, bat and extras combined
func (d Delivery) TotalRuns() int {
	return d.RunsOffBat + d.Extras.Runs
}

// Dismissed returns the id of the batsman out on this delivery
func (d Delivery) Dismissed() string {
	if !d.IsWicket {
		return ""
	}
	if d.DismissedBatsmanID != "" {
		return d.DismissedBatsmanID
	}
	return d.BatsmanID
}

// Validate checks the delivery in isolation. Ordering against the innings
// history is checked by the engine.
func (d Delivery) Validate() error {
	if d.OverNumber < 0 {
		return NewValidationError("overNumber", "must not be negative")
	}
	if d.BallInOver < 0 || d.BallInOver > BallsPerOver {
		return NewValidationError("ballInOver", "must be between 0 and "+strconv.Itoa(BallsPerOver))
	}
	if d.RunsOffBat < 0 {
		return NewValidationError("runsOffBat", "must not be negative")
	}
	if !d.Extras.Kind.Valid() {
		return NewValidationError("extras.kind", fmt.Sprintf("unknown kind %q", d.Extras.Kind))
	}
	if d.Extras.Runs < 0 {
		return NewValidationError("extras.runs", "must not be negative")
	}
	switch d.Extras.Kind {
	case ExtraWide, ExtraNoBall:
		if d.Extras.Runs < 1 {
			return NewValidationError("extras.runs", string(d.Extras.Kind)+" carries at least one penalty run")
		}
	case ExtraBye, ExtraLegBye:
		if d.Extras.Runs < 1 {
			return NewValidationError("extras.runs", string(d.Extras.Kind)+" must be worth at least one run")
		}
	case "", ExtraNone:
		if d.Extras.Runs != 0 {
			return NewValidationError("extras.runs", "must be zero without an extra kind")
		}
	}
	if d.RunsOffBat > 0 && (d.Extras.Kind == ExtraWide || d.Extras.Kind == ExtraBye || d.Extras.Kind == ExtraLegBye) {
		return NewValidationError("runsOffBat", "no bat runs on a "+string(d.Extras.Kind))
	}
	if d.BatsmanID == "" {
		return NewValidationError("batsmanId", "is required")
	}
	if d.BowlerID == "" {
		return NewValidationError("bowlerId", "is required")
	}
	if d.NonStrikerID != "" && d.NonStrikerID == d.BatsmanID {
		return NewValidationError("nonStrikerId", "must differ from batsmanId")
	}
	if d.WicketKind != "" {
		if !d.IsWicket {
			return NewValidationError("wicketKind", "set without isWicket")
		}
		if !d.WicketKind.Valid() {
			return NewValidationError("wicketKind", fmt.Sprintf("unknown kind %q", d.WicketKind))
		}
	}
	if d.DismissedBatsmanID != "" {
		if !d.IsWicket {
			return NewValidationError("dismissedBatsmanId", "set without isWicket")
		}
		if d.DismissedBatsmanID != d.BatsmanID && d.DismissedBatsmanID != d.NonStrikerID {
			return NewValidationError("dismissedBatsmanId", "must be the striker or the non-striker")
		}
	}
	return nil
}
