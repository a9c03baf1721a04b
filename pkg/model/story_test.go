package model_test

import (
	"testing"
	"time"

	"github.com/Dicklesworthstone/loopline/pkg/model"
)

func TestStartTimeInstant(t *testing.T) {
	tests := []struct {
		name  string
		start model.StartTime
		want  time.Time
	}{
		{"zero", model.StartTime{}, time.Date(2000, 1, 1, 8, 0, 0, 0, time.UTC)},
		{"date only keeps default time", model.StartTime{Month: 3, Day: 5}, time.Date(2000, 3, 5, 8, 0, 0, 0, time.UTC)},
		{"hour only", model.StartTime{Month: 10, Day: 3, Hour: model.IntPtr(6)}, time.Date(2000, 10, 3, 6, 0, 0, 0, time.UTC)},
		{"minute only", model.StartTime{Minute: model.IntPtr(30)}, time.Date(2000, 1, 1, 0, 30, 0, 0, time.UTC)},
		{"explicit midnight", model.StartTime{Day: 2, Hour: model.IntPtr(0), Minute: model.IntPtr(0)}, time.Date(2000, 1, 2, 0, 0, 0, 0, time.UTC)},
		{"full", model.StartTime{Year: 1999, Month: 12, Day: 31, Hour: model.IntPtr(23), Minute: model.IntPtr(59)}, time.Date(1999, 12, 31, 23, 59, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.start.Instant(); !got.Equal(tt.want) {
				t.Errorf("Instant() = %v, want %v", got, tt.want)
			}
		})
	}
}
