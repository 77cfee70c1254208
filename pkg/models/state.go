package models

// BallType is the structural classification of a delivery for display
type BallType string

const (
	BallRun    BallType = "run"
	BallFour   BallType = "four"
	BallSix    BallType = "six"
	BallWicket BallType = "wicket"
	BallWide   BallType = "wide"
	BallNoBall BallType = "noBall"
	BallBye    BallType = "bye"
	BallLegBye BallType = "legBye"
)

// DerivedInningsState is every statistic derived from an innings' delivery
// history. It is rebuilt from scratch on each recalculation.
type DerivedInningsState struct {
	MatchID string `json:"matchId"`
	Inning  int    `json:"inning"`
	Version int64  `json:"version"`

	TotalRuns      int     `json:"totalRuns"`
	TotalWickets   int     `json:"totalWickets"`
	LegalBallCount int     `json:"legalBallCount"`
	OversDisplay   string  `json:"oversDisplay"`
	OversLimit     int     `json:"oversLimit"`
	CurrentRunRate float64 `json:"currentRunRate"`

	Target          *int     `json:"target,omitempty"`
	RequiredRunRate *float64 `json:"requiredRunRate,omitempty"`
	RunsNeeded      *int     `json:"runsNeeded,omitempty"`
	RemainingBalls  *int     `json:"remainingBalls,omitempty"`
	ProjectedScore  *int     `json:"projectedScore,omitempty"`

	Extras ExtrasSummary `json:"extras"`

	BattingStats map[string]PlayerBattingStats `json:"battingStats"`
	BowlingStats map[string]PlayerBowlingStats `json:"bowlingStats"`

	StrikerID       string `json:"strikerId,omitempty"`
	NonStrikerID    string `json:"nonStrikerId,omitempty"`
	CurrentBowlerID string `json:"currentBowlerId,omitempty"`

	CurrentPartnership Partnership       `json:"currentPartnership"`
	LastWicket         *LastWicket       `json:"lastWicket,omitempty"`
	RecentOvers        []OverSummary     `json:"recentOvers"`
	Commentary         []CommentaryEntry `json:"commentary"`
}

// Key returns the innings the state belongs to
func (s DerivedInningsState) Key() InningsKey {
	return InningsKey{MatchID: s.MatchID, Inning: s.Inning}
}

// ExtrasSummary breaks the innings extras down by kind
type ExtrasSummary struct {
	Wides   int `json:"wides"`
	NoBalls int `json:"noBalls"`
	Byes    int `json:"byes"`
	LegByes int `json:"legByes"`
	Total   int `json:"total"`
}

// PlayerBattingStats is one batsman's innings
type PlayerBattingStats struct {
	Runs       int        `json:"runs"`
	BallsFaced int        `json:"ballsFaced"`
	Fours      int        `json:"fours"`
	Sixes      int        `json:"sixes"`
	StrikeRate float64    `json:"strikeRate"`
	IsOut      bool       `json:"isOut"`
	Dismissal  WicketKind `json:"dismissal,omitempty"`
}

// PlayerBowlingStats is one bowler's figures
type PlayerBowlingStats struct {
	BallsBowled  int     `json:"ballsBowled"`
	OversDisplay string  `json:"oversDisplay"`
	RunsConceded int     `json:"runsConceded"`
	Wickets      int     `json:"wickets"`
	Maidens      int     `json:"maidens"`
	Economy      float64 `json:"economy"`
}

// BallToken is the display token of one delivery in an over
type BallToken struct {
	Value string   `json:"value"`
	Type  BallType `json:"type"`
}

// OverSummary is one over's deliveries, legal and illegal
type OverSummary struct {
	OverNumber int         `json:"overNumber"`
	BowlerID   string      `json:"bowlerId,omitempty"`
	Balls      []BallToken `json:"balls"`
	TotalRuns  int         `json:"totalRuns"`
	Complete   bool        `json:"complete"`
}

// Partnership is the stand between the current pair of batsmen
type Partnership struct {
	Batsman1ID string `json:"batsman1Id,omitempty"`
	Batsman2ID string `json:"batsman2Id,omitempty"`
	Runs       int    `json:"runs"`
	Balls      int    `json:"balls"`
}

// LastWicket describes the most recent dismissal
type LastWicket struct {
	BatsmanID    string     `json:"batsmanId"`
	Runs         int        `json:"runs"`
	Balls        int        `json:"balls"`
	WicketKind   WicketKind `json:"wicketKind,omitempty"`
	BowlerID     string     `json:"bowlerId,omitempty"`
	TeamScore    int        `json:"teamScore"`
	WicketNumber int        `json:"wicketNumber"`
	OversDisplay string     `json:"oversDisplay"`
}

// CommentaryEntry is the feed item derived from one delivery
type CommentaryEntry struct {
	SequenceNumber int      `json:"sequenceNumber"`
	OverLabel      string   `json:"overLabel"`
	BallType       BallType `json:"ballType"`
	Value          string   `json:"value"`
	Runs           int      `json:"runs"`
	BatsmanID      string   `json:"batsmanId"`
	BowlerID       string   `json:"bowlerId"`
	IsLegal        bool     `json:"isLegal"`
	IsWicket       bool     `json:"isWicket"`
	IsHighlight    bool     `json:"isHighlight"`
	Milestone      string   `json:"milestone,omitempty"`
	Text           string   `json:"text"`
}
