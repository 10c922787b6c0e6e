package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestQualificationEvaluator_Qualifies(t *testing.T) {
	tests := []struct {
		name            string
		level           int
		activeReferrals int64
		countExpected   bool
		want            bool
	}{
		{name: "purchaser always qualifies", level: 0, want: true},
		{name: "direct sponsor always qualifies", level: 1, want: true},
		{name: "level 2 with enough referrals", level: 2, activeReferrals: 3, countExpected: true, want: true},
		{name: "level 2 below threshold", level: 2, activeReferrals: 2, countExpected: true, want: false},
		{name: "deep level with many referrals", level: 9, activeReferrals: 7, countExpected: true, want: true},
		{name: "deep level with none", level: 5, activeReferrals: 0, countExpected: true, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockAffiliateRepository{}
			affiliateID := primitive.NewObjectID()

			if tt.countExpected {
				repo.On("CountActiveChildren", mock.Anything, affiliateID).Return(tt.activeReferrals, nil)
			}

			q := NewQualificationEvaluator(repo)
			got, err := q.Qualifies(context.Background(), affiliateID, tt.level)

			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
			repo.AssertExpectations(t)
		})
	}
}
