package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/XavierBriggs/fortuna/services/live-scoring/pkg/models"
)

func TestCheckOrdering(t *testing.T) {
	legal := func(over, ball int) models.Delivery { return *delivery(over, ball, 0) }
	wide := func(over, ball int) models.Delivery {
		d := legal(over, ball)
		d.Extras = models.Wide(1)
		return d
	}

	fullOver := []models.Delivery{legal(0, 1), legal(0, 2), legal(0, 3), legal(0, 4), legal(0, 5), legal(0, 6)}

	tests := []struct {
		name    string
		history []models.Delivery
		next    models.Delivery
		wantErr string
	}{
		{name: "first ball", next: legal(0, 1)},
		{name: "first ball unnumbered", next: legal(0, 0)},
		{name: "first ball of later over", next: legal(1, 1), wantErr: "overNumber"},
		{name: "next ball", history: []models.Delivery{legal(0, 1)}, next: legal(0, 2)},
		{name: "ball after a wide keeps its number", history: []models.Delivery{legal(0, 1), wide(0, 2)}, next: legal(0, 2)},
		{name: "ball numbers skip", history: []models.Delivery{legal(0, 1)}, next: legal(0, 5), wantErr: "ballInOver"},
		{name: "first ball numbered past one", next: legal(0, 4), wantErr: "ballInOver"},
		{name: "first ball of new over numbered past one", history: fullOver, next: legal(1, 2), wantErr: "ballInOver"},
		{name: "number after unnumbered ball", history: []models.Delivery{legal(0, 0), legal(0, 0)}, next: legal(0, 3)},
		{name: "unnumbered after numbered", history: []models.Delivery{legal(0, 1)}, next: legal(0, 0)},
		{name: "worked example sequence", history: []models.Delivery{legal(0, 1), legal(0, 2), legal(0, 3), wide(0, 4), legal(0, 5)}, next: legal(0, 6)},
		{name: "ball after the sixth repeats its number", history: []models.Delivery{legal(0, 1), legal(0, 2), legal(0, 3), wide(0, 4), legal(0, 5), wide(0, 6)}, next: legal(0, 6)},
		{name: "ball goes backwards", history: []models.Delivery{legal(0, 1), legal(0, 2)}, next: legal(0, 1), wantErr: "ballInOver"},
		{name: "wide does not complete the over", history: append(fullOver[:5:5], wide(0, 6)), next: legal(0, 6)},
		{name: "new over after six legal", history: fullOver, next: legal(1, 1)},
		{name: "old over after six legal", history: fullOver, next: legal(0, 6), wantErr: "overNumber"},
		{name: "over goes backwards", history: append(fullOver, legal(1, 1)), next: legal(0, 1), wantErr: "overNumber"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkOrdering(tt.history, tt.next)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *models.ValidationError
			if assert.ErrorAs(t, err, &verr) {
				assert.Equal(t, tt.wantErr, verr.Field)
			}
		})
	}
}
