package evaluation

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func head(ids []string, k int) []string {
	if k >= 0 && k < len(ids) {
		return ids[:k]
	}
	return ids
}

// RecallAtK is the fraction of relevant hotels found in the first k retrieved.
// Returns 0.0 if relevant is empty.
func RecallAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}

	want := idSet(relevant)
	found := 0
	for _, id := range head(retrieved, k) {
		if _, ok := want[id]; ok {
			found++
			delete(want, id)
		}
	}
	return float64(found) / float64(len(relevant))
}

// MRRAtK is the reciprocal rank of the first relevant hotel within the first
// k retrieved, or 0.0 when none is there.
func MRRAtK(relevant, retrieved []string, k int) float64 {
	if len(relevant) == 0 {
		return 0.0
	}

	want := idSet(relevant)
	for i, id := range head(retrieved, k) {
		if _, ok := want[id]; ok {
			return 1.0 / float64(i+1)
		}
	}
	return 0.0
}
