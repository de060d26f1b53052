package jira

import "github.com/airenas/jira-case-importer/internal/api"

// MapCreatedKeys recovers which request positions succeeded from a bulk
// create response. The response lists only failures explicitly, so the
// surviving positions are zipped, in order, against the returned issues.
// Assumes Jira keeps submission order for successes - nothing in the
// payload lets us verify that
func MapCreatedKeys(resp *api.BulkCreateResponse, requestCount int) map[int]string {
	res := map[int]string{}
	if resp == nil || requestCount <= 0 {
		return res
	}

	failed := map[int]bool{}
	for _, n := range normalizeFailedIndexes(extractFailedIndexes(resp.Errors), requestCount) {
		failed[n] = true
	}

	at := 0
	for i := 0; i < requestCount && at < len(resp.Issues); i++ {
		if failed[i] {
			continue
		}
		if key := resp.Issues[at].Key; key != "" {
			res[i] = key
		}
		at++
	}
	return res
}

func extractFailedIndexes(errors []api.BulkError) []int {
	var res []int
	for _, e := range errors {
		if e.FailedElementNumber != nil {
			res = append(res, *e.FailedElementNumber)
		}
	}
	return res
}

// normalizeFailedIndexes resolves the 0- vs 1-based ambiguity of
// failedElementNumber across Jira versions: any index >= requestCount
// means the whole list is 1-based. The decision is all-or-nothing,
// bases are never mixed within one response
func normalizeFailedIndexes(indexes []int, requestCount int) []int {
	oneBased := false
	for _, n := range indexes {
		if n >= requestCount {
			oneBased = true
			break
		}
	}
	if !oneBased {
		return indexes
	}
	res := make([]int, 0, len(indexes))
	for _, n := range indexes {
		res = append(res, n-1)
	}
	return res
}
