package models

import (
	"fmt"
	"strconv"
	"strings"
)

// InningsKey identifies one innings of a match
type InningsKey struct {
	MatchID string `json:"matchId"`
	Inning  int    `json:"inning"`
}

// String renders the key as "matchID/inning"
func (k InningsKey) String() string {
	return k.MatchID + "/" + strconv.Itoa(k.Inning)
}

// Validate checks that the key addresses a real innings
func (k InningsKey) Validate() error {
	if strings.TrimSpace(k.MatchID) == "" {
		return NewValidationError("matchId", "is required")
	}
	if strings.ContainsAny(k.MatchID, ":/ ") {
		return NewValidationError("matchId", "must not contain ':', '/' or spaces")
	}
	if k.Inning < 1 {
		return NewValidationError("inning", "must be 1 or greater")
	}
	return nil
}

// ParseInningsKey parses the "matchID/inning" form produced by String
func ParseInningsKey(s string) (InningsKey, error) {
	i := strings.LastIndex(s, "/")
	if i <= 0 {
		return InningsKey{}, fmt.Errorf("malformed innings key %q", s)
	}
	n, err := strconv.Atoi(s[i+1:])
	if err != nil {
		return InningsKey{}, fmt.Errorf("malformed innings number in %q: %w", s, err)
	}
	key := InningsKey{MatchID: s[:i], Inning: n}
	if err := key.Validate(); err != nil {
		return InningsKey{}, err
	}
	return key, nil
}

// InningsStatus is the lifecycle state of a stored innings
type InningsStatus string

const (
	InningsLive     InningsStatus = "live"
	InningsArchived InningsStatus = "archived"
)

// InningsContext carries the match settings the aggregation depends on
type InningsContext struct {
	OversLimit int  `json:"oversLimit"`
	Target     *int `json:"target,omitempty"`
}

// Validate checks the innings settings
func (c InningsContext) Validate() error {
	if c.OversLimit < 0 {
		return NewValidationError("oversLimit", "must not be negative")
	}
	if c.Target != nil && *c.Target < 1 {
		return NewValidationError("target", "must be at least 1")
	}
	return nil
}

// OversDisplay renders a legal ball count the way scorers write it, "12.3"
func OversDisplay(legalBalls int) string {
	return strconv.Itoa(legalBalls/BallsPerOver) + "." + strconv.Itoa(legalBalls%BallsPerOver)
}
