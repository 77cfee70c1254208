package aggregator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

// Rules decides which extras are charged to the bowler's figures.
// Extras not charged still count toward the team total.
type Rules struct {
	ChargeToBowler map[models.ExtraKind]bool
}

// DefaultRules charges wides and no-balls to the bowler; byes and leg byes
// are team-only extras.
func DefaultRules() Rules {
	return Rules{ChargeToBowler: map[models.ExtraKind]bool{
		models.ExtraWide:   true,
		models.ExtraNoBall: true,
		models.ExtraBye:    false,
		models.ExtraLegBye: false,
	}}
}

// ParseRules builds a rule table from the list of extra kinds charged to the
// bowler, e.g. ["wide", "noBall"]. Kinds are matched case-insensitively.
func ParseRules(charged []string) (Rules, error) {
	rules := Rules{ChargeToBowler: map[models.ExtraKind]bool{
		models.ExtraWide:   false,
		models.ExtraNoBall: false,
		models.ExtraBye:    false,
		models.ExtraLegBye: false,
	}}
	for _, raw := range charged {
		name := strings.TrimSpace(raw)
		if name == "" {
			continue
		}
		kind, ok := extraKindByName(name)
		if !ok {
			return Rules{}, fmt.Errorf("unknown extra kind %q", name)
		}
		rules.ChargeToBowler[kind] = true
	}
	return rules, nil
}

// Charged lists the kinds charged to the bowler, sorted
func (r Rules) Charged() []string {
	var out []string
	for kind, charged := range r.ChargeToBowler {
		if charged {
			out = append(out, string(kind))
		}
	}
	sort.Strings(out)
	return out
}

func (r Rules) charges(kind models.ExtraKind) bool {
	if r.ChargeToBowler == nil {
		return DefaultRules().ChargeToBowler[kind]
	}
	return r.ChargeToBowler[kind]
}

func extraKindByName(name string) (models.ExtraKind, bool) {
	for _, kind := range []models.ExtraKind{models.ExtraWide, models.ExtraNoBall, models.ExtraBye, models.ExtraLegBye} {
		if strings.EqualFold(string(kind), name) {
			return kind, true
		}
	}
	switch strings.ToLower(name) {
	case "no-ball", "noball", "nb":
		return models.ExtraNoBall, true
	case "leg-bye", "legbye", "lb":
		return models.ExtraLegBye, true
	case "wd":
		return models.ExtraWide, true
	case "b":
		return models.ExtraBye, true
	}
	return "", false
}
