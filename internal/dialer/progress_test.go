package dialer

import (
	"testing"

	"voicecampaign_backend/internal/campaigns"
)

func TestProgressPct(t *testing.T) {
	cases := []struct {
		name   string
		counts map[string]int
		want   int
	}{
		{"empty", map[string]int{}, 0},
		{"nothing dialed", map[string]int{campaigns.ContactPending: 10}, 0},
		{"half done", map[string]int{
			campaigns.ContactPending:   4,
			campaigns.ContactCalling:   1,
			campaigns.ContactCompleted: 3,
			campaigns.ContactNoAnswer:  1,
			campaigns.ContactFailed:    1,
		}, 50},
		{"all terminal", map[string]int{
			campaigns.ContactCompleted: 2,
			campaigns.ContactFailed:    1,
		}, 100},
		{"two of three rounds up", map[string]int{
			campaigns.ContactCompleted: 2,
			campaigns.ContactCalling:   1,
		}, 67},
		{"one of three rounds down", map[string]int{
			campaigns.ContactCompleted: 1,
			campaigns.ContactPending:   2,
		}, 33},
	}
	for _, tc := range cases {
		if got := ProgressPct(tc.counts); got != tc.want {
			t.Errorf("%s: ProgressPct = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestAnalysisPct(t *testing.T) {
	cases := []struct {
		name     string
		counts   map[string]int
		analyzed int
		want     int
	}{
		{"partially analyzed", map[string]int{campaigns.ContactCompleted: 4}, 1, 25},
		{"fully analyzed", map[string]int{campaigns.ContactCompleted: 4}, 4, 100},
		{"analyzed exceeds completed", map[string]int{campaigns.ContactCompleted: 2}, 5, 100},
		{"no completed, dialing ongoing", map[string]int{campaigns.ContactPending: 3}, 0, 0},
		{"no completed, dialing done", map[string]int{campaigns.ContactNoAnswer: 3}, 0, 0},
		{"two of three analyzed rounds up", map[string]int{campaigns.ContactCompleted: 3}, 2, 67},
	}
	for _, tc := range cases {
		if got := AnalysisPct(tc.counts, tc.analyzed); got != tc.want {
			t.Errorf("%s: AnalysisPct = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestExhausted(t *testing.T) {
	if Exhausted(map[string]int{campaigns.ContactPending: 1}) {
		t.Error("pending contacts left, want not exhausted")
	}
	if Exhausted(map[string]int{campaigns.ContactCalling: 1}) {
		t.Error("calls in flight, want not exhausted")
	}
	if !Exhausted(map[string]int{campaigns.ContactCompleted: 5, campaigns.ContactFailed: 2}) {
		t.Error("only terminal contacts, want exhausted")
	}
	if Exhausted(map[string]int{}) {
		t.Error("campaign without contacts must not count as exhausted")
	}
}
