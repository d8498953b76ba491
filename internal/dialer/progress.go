package dialer

import (
	"context"
	"fmt"
	"math"

	"voicecampaign_backend/internal/campaigns"
)

// ProgressPct computes campaign progress as the rounded share of
// contacts in a terminal status.
func ProgressPct(counts map[string]int) int {
	total := 0
	for _, n := range counts {
		total += n
	}
	if total == 0 {
		return 0
	}
	terminal := counts[campaigns.ContactCompleted] + counts[campaigns.ContactFailed] + counts[campaigns.ContactNoAnswer]
	return int(math.Round(100 * float64(terminal) / float64(total)))
}

// AnalysisPct computes analysis progress as the rounded share of
// completed calls whose artifacts are all fetched. A campaign with no
// completed calls has nothing to analyze and reports 0.
func AnalysisPct(counts map[string]int, analyzed int) int {
	completed := counts[campaigns.ContactCompleted]
	if completed == 0 {
		return 0
	}
	if analyzed > completed {
		analyzed = completed
	}
	return int(math.Round(100 * float64(analyzed) / float64(completed)))
}

// Exhausted reports whether a campaign has contacts and none of them is
// left to dial or wait on. A campaign with no contacts at all is never
// exhausted, so it is not completed the moment it starts running.
func Exhausted(counts map[string]int) bool {
	total := 0
	for _, n := range counts {
		total += n
	}
	return total > 0 && counts[campaigns.ContactPending] == 0 && counts[campaigns.ContactCalling] == 0
}

// RefreshProgress recomputes and persists both progress figures for a
// campaign from its current contact counts. It is idempotent.
func RefreshProgress(ctx context.Context, campaignStore CampaignStore, callStore CallStore, campaignID int64) (map[string]int, error) {
	counts, err := campaignStore.ContactStatusCounts(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("contact status counts: %w", err)
	}
	analyzed, err := callStore.AnalysisCompleteCount(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("analysis complete count: %w", err)
	}
	if err := campaignStore.SetProgress(ctx, campaignID, ProgressPct(counts), AnalysisPct(counts, analyzed)); err != nil {
		return nil, fmt.Errorf("set progress: %w", err)
	}
	return counts, nil
}
