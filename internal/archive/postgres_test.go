package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{name: "connection failure", err: &pq.Error{Code: "08006", Message: "connection failure"}, unavailable: true},
		{name: "wrapped connection failure", err: fmt.Errorf("exec: %w", &pq.Error{Code: "08001"}), unavailable: true},
		{name: "closed connection", err: sql.ErrConnDone, unavailable: true},
		{name: "unique violation", err: &pq.Error{Code: "23505"}},
		{name: "plain error", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(got, ErrUnavailable))
		})
	}
}

func TestBatsmenSorted(t *testing.T) {
	state := &models.DerivedInningsState{BattingStats: map[string]models.PlayerBattingStats{
		"C": {}, "A": {}, "B": {},
	}}
	assert.Equal(t, []string{"A", "B", "C"}, batsmen(state))
	assert.Empty(t, batsmen(&models.DerivedInningsState{}))
}
