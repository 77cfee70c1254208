// Package ingest converts loosely shaped ball records from scorer tools and
// feeds into the canonical Delivery. Every caller past this package sees one
// shape with typed extras.
package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// RawBall is a ball as scorer tools send it. Any of the typed fields wins
// over the display value.
type RawBall struct {
	OverNumber *int   `json:"overNumber,omitempty"`
	BallInOver *int   `json:"ballInOver,omitempty"`
	OverLabel  string `json:"overLabel,omitempty"` // "12.3"

	RunsOffBat *int            `json:"runsOffBat,omitempty"`
	Runs       *int            `json:"runs,omitempty"`
	Value      string          `json:"value,omitempty"`
	Label      string          `json:"label,omitempty"`
	Type       string          `json:"type,omitempty"`
	Extras     json.RawMessage `json:"extras,omitempty"`

	IsWicket           bool   `json:"isWicket,omitempty"`
	WicketKind         string `json:"wicketKind,omitempty"`
	DismissedBatsmanID string `json:"dismissedBatsmanId,omitempty"`

	BatsmanID    string `json:"batsmanId"`
	NonStrikerID string `json:"nonStrikerId,omitempty"`
	BowlerID     string `json:"bowlerId"`
	Commentary   string `json:"commentary,omitempty"`
	Text         string `json:"text,omitempty"`
}

// extrasBreakdown is the per-kind counter shape some feeds use
type extrasBreakdown struct {
	Wides   int `json:"wides"`
	NoBalls int `json:"noBalls"`
	Byes    int `json:"byes"`
	LegByes int `json:"legByes"`
}

// Normalize converts raw into a validated Delivery
func Normalize(raw RawBall) (models.Delivery, error) {
	d := models.Delivery{
		IsWicket:           raw.IsWicket,
		WicketKind:         models.WicketKind(raw.WicketKind),
		DismissedBatsmanID: raw.DismissedBatsmanID,
		BatsmanID:          strings.TrimSpace(raw.BatsmanID),
		NonStrikerID:       strings.TrimSpace(raw.NonStrikerID),
		BowlerID:           strings.TrimSpace(raw.BowlerID),
		Commentary:         raw.Commentary,
	}
	if d.Commentary == "" {
		d.Commentary = raw.Text
	}

	if err := position(raw, &d); err != nil {
		return models.Delivery{}, err
	}

	tok := parseToken(firstNonEmpty(raw.Value, raw.Label))

	extras, ok, err := typedExtras(raw.Extras)
	if err != nil {
		return models.Delivery{}, err
	}
	var kind models.ExtraKind
	switch {
	case ok:
		kind = extras.Kind
	case raw.Type != "":
		k, wicket, err := kindFromType(raw.Type)
		if err != nil {
			return models.Delivery{}, err
		}
		kind = k
		d.IsWicket = d.IsWicket || wicket
	default:
		kind = tok.kind
	}
	d.IsWicket = d.IsWicket || tok.wicket

	// total runs off the ball, from the most specific field available
	batRuns := tok.batRuns
	extraRuns := tok.extraRuns
	if raw.RunsOffBat != nil {
		batRuns = *raw.RunsOffBat
	}

	switch kind {
	case models.ExtraWide, models.ExtraBye, models.ExtraLegBye:
		if ok {
			extraRuns = extras.Runs
		} else if raw.Runs != nil {
			extraRuns = *raw.Runs
		}
		if kind == models.ExtraWide && extraRuns < 1 {
			extraRuns = 1
		}
		batRuns = 0
	case models.ExtraNoBall:
		extraRuns = 1
		if ok {
			extraRuns = extras.Runs
		}
		if raw.RunsOffBat == nil && raw.Runs != nil {
			batRuns = *raw.Runs
		}
	default:
		extraRuns = 0
		if raw.RunsOffBat == nil && raw.Runs != nil {
			batRuns = *raw.Runs
		}
	}

	d.RunsOffBat = batRuns
	d.Extras = models.Extras{Kind: kind, Runs: extraRuns}

	if err := d.Validate(); err != nil {
		return models.Delivery{}, err
	}
	return d, nil
}

// DecodeBalls reads a JSON array of raw balls
func DecodeBalls(r io.Reader) ([]RawBall, error) {
	var balls []RawBall
	dec := json.NewDecoder(r)
	if err := dec.Decode(&balls); err != nil {
		return nil, fmt.Errorf("decoding balls: %w", err)
	}
	return balls, nil
}

func position(raw RawBall, d *models.Delivery) error {
	if raw.OverLabel != "" {
		over, ball, err := parseOverLabel(raw.OverLabel)
		if err != nil {
			return err
		}
		d.OverNumber, d.BallInOver = over, ball
	}
	if raw.OverNumber != nil {
		d.OverNumber = *raw.OverNumber
	}
	if raw.BallInOver != nil {
		d.BallInOver = *raw.BallInOver
	}
	return nil
}

func parseOverLabel(s string) (int, int, error) {
	overPart, ballPart, found := strings.Cut(strings.TrimSpace(s), ".")
	over, err := strconv.Atoi(overPart)
	if err != nil {
		return 0, 0, models.NewValidationError("overLabel", fmt.Sprintf("malformed %q", s))
	}
	if !found {
		return over, 0, nil
	}
	ball, err := strconv.Atoi(ballPart)
	if err != nil {
		return 0, 0, models.NewValidationError("overLabel", fmt.Sprintf("malformed %q", s))
	}
	return over, ball, nil
}

// typedExtras decodes either {"kind","runs"} or the per-kind breakdown
func typedExtras(raw json.RawMessage) (models.Extras, bool, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return models.Extras{}, false, nil
	}

	var tagged models.Extras
	if err := json.Unmarshal(raw, &tagged); err == nil && tagged.Kind != "" {
		if !tagged.Kind.Valid() {
			return models.Extras{}, false, models.NewValidationError("extras.kind", fmt.Sprintf("unknown kind %q", tagged.Kind))
		}
		return tagged, true, nil
	}

	var b extrasBreakdown
	if err := json.Unmarshal(raw, &b); err != nil {
		return models.Extras{}, false, models.NewValidationError("extras", "unrecognized shape")
	}

	var found []models.Extras
	if b.Wides > 0 {
		found = append(found, models.Wide(b.Wides))
	}
	if b.NoBalls > 0 {
		found = append(found, models.NoBall(b.NoBalls))
	}
	if b.Byes > 0 {
		found = append(found, models.Bye(b.Byes))
	}
	if b.LegByes > 0 {
		found = append(found, models.LegBye(b.LegByes))
	}
	switch len(found) {
	case 0:
		return models.NoExtras(), true, nil
	case 1:
		return found[0], true, nil
	}
	return models.Extras{}, false, models.NewValidationError("extras", "more than one kind of extra on one ball")
}

func kindFromType(t string) (models.ExtraKind, bool, error) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "wide", "wd":
		return models.ExtraWide, false, nil
	case "noball", "no-ball", "nb":
		return models.ExtraNoBall, false, nil
	case "bye", "b":
		return models.ExtraBye, false, nil
	case "legbye", "leg-bye", "lb":
		return models.ExtraLegBye, false, nil
	case "wicket", "w", "out":
		return models.ExtraNone, true, nil
	case "run", "runs", "dot", "four", "six", "none":
		return models.ExtraNone, false, nil
	}
	return "", false, models.NewValidationError("type", fmt.Sprintf("unknown ball type %q", t))
}

// token is what a display value such as "wd+2" or "3lb" says about a ball
type token struct {
	kind      models.ExtraKind
	batRuns   int
	extraRuns int
	wicket    bool
}

func parseToken(v string) token {
	s := strings.ToLower(strings.TrimSpace(v))
	switch {
	case s == "" || s == "·" || s == ".":
		return token{kind: models.ExtraNone}
	case s == "w" || s == "out":
		return token{kind: models.ExtraNone, wicket: true}
	case strings.HasPrefix(s, "wd") || strings.HasPrefix(s, "wide"):
		return token{kind: models.ExtraWide, extraRuns: 1 + plusRuns(s)}
	case strings.HasPrefix(s, "nb") || strings.HasPrefix(s, "no ball"):
		return token{kind: models.ExtraNoBall, extraRuns: 1, batRuns: plusRuns(s)}
	case strings.HasSuffix(s, "lb"):
		return token{kind: models.ExtraLegBye, extraRuns: leadingRuns(strings.TrimSuffix(s, "lb"))}
	case strings.HasSuffix(s, "b"):
		return token{kind: models.ExtraBye, extraRuns: leadingRuns(strings.TrimSuffix(s, "b"))}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return token{kind: models.ExtraNone}
	}
	return token{kind: models.ExtraNone, batRuns: n}
}

// plusRuns reads the "+N" suffix of "wd+2" or "nb+4"
func plusRuns(s string) int {
	_, after, found := strings.Cut(s, "+")
	if !found {
		return 0
	}
	n, err := strconv.Atoi(strings.TrimSpace(after))
	if err != nil {
		return 0
	}
	return n
}

func leadingRuns(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
