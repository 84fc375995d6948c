package domain

// ActivitySummary holds per-type activity counts for one address over a
// trailing window. Missing groups count as zero.
type ActivitySummary struct {
	CbtcTransfers  int64 `json:"cbtcTransfers"`
	CnftMints      int64 `json:"cnftMints"`
	CnftTransfers  int64 `json:"cnftTransfers"`
	ProfileChanges int64 `json:"profileChanges"`
}

// SummaryFromCounts folds per-event-type counts into an ActivitySummary.
// ProfileChanges sums profile-updated and profile-cleared.
func SummaryFromCounts(counts map[EventType]int64) ActivitySummary {
	return ActivitySummary{
		CbtcTransfers:  counts[EventTypeCbtcTransfer],
		CnftMints:      counts[EventTypeCnftMint],
		CnftTransfers:  counts[EventTypeCnftTransfer],
		ProfileChanges: counts[EventTypeProfileUpdated] + counts[EventTypeProfileCleared],
	}
}
