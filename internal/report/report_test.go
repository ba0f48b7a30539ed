package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	counts []StatusCount
	err    error
}

func (m *mockRepository) StatusCounts(context.Context, time.Time, time.Time) ([]StatusCount, error) {
	return m.counts, m.err
}

func day(d int) time.Time { return time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC) }

func Test_Daily(t *testing.T) {
	tests := []struct {
		name    string
		repo    *mockRepository
		want    []DaySummary
		wantErr bool
	}{
		{
			name: "folds statuses per day",
			repo: &mockRepository{counts: []StatusCount{
				{Date: day(20), Status: "BOOKED", Count: 4, Available: 3},
				{Date: day(19), Status: "BOOKED", Count: 5, Available: 2},
				{Date: day(19), Status: "DEFAULT", Count: 1},
				{Date: day(19), Status: "CANCELLED", Count: 2},
			}},
			want: []DaySummary{
				{Date: day(19), Booked: 5, Defaulted: 1, Cancelled: 2, Available: 2},
				{Date: day(20), Booked: 4, Available: 3},
			},
		},
		{name: "empty", repo: &mockRepository{}, want: []DaySummary{}},
		{name: "query failure", repo: &mockRepository{err: errors.New("db down")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Daily(context.Background(), tt.repo, day(19), day(20), false)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_subsegment_NoOpWithoutParent(t *testing.T) {
	ctx := context.Background()
	got, done := subsegment(ctx, "StatusCounts")
	assert.Equal(t, ctx, got)
	assert.Nil(t, xray.GetSegment(got))
	done(errors.New("ignored"))
}

func Test_subsegment_NestsUnderSegment(t *testing.T) {
	ctx, seg := xray.BeginSegment(context.Background(), "mealbook-report-test")
	defer seg.Close(nil)

	got, done := subsegment(ctx, "StatusCounts")
	sub := xray.GetSegment(got)
	require.NotNil(t, sub)
	assert.NotSame(t, seg, sub)
	assert.Equal(t, "StatusCounts", sub.Name)
	done(nil)
}
