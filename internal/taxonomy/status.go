package taxonomy

// RankOf returns the display rank of a status; lower ranks sort first
// so failures lead tables and summaries.
func RankOf(s Status) int {
	rank, ok := statusRank[s]
	if !ok {
		return len(statusRank) // unknown statuses sort last
	}
	return rank
}

var statusRank = map[Status]int{
	StatusFail: 0,
	StatusSkip: 1,
	StatusPass: 2,
}

// CountStatuses tallies module results by status.
func CountStatuses(results []ModuleResult) map[Status]int {
	counts := make(map[Status]int, len(statusRank))
	for _, r := range results {
		counts[r.Status]++
	}
	return counts
}
