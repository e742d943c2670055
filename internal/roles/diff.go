package roles

import "sort"

// diffPermissions splits a desired permission set against the currently
// linked one. Applying Attached then removing Detached from current yields
// exactly desired, and a desired set equal to current produces empty
// Attached and Detached, so repeating a sync changes nothing. Duplicates in
// either input are collapsed.
func diffPermissions(current, desired []int64) SyncResult {
	want := make(map[int64]struct{}, len(desired))
	for _, id := range desired {
		want[id] = struct{}{}
	}
	have := make(map[int64]struct{}, len(current))
	for _, id := range current {
		have[id] = struct{}{}
	}

	var result SyncResult
	for id := range want {
		if _, ok := have[id]; ok {
			result.Unchanged = append(result.Unchanged, id)
		} else {
			result.Attached = append(result.Attached, id)
		}
	}
	for id := range have {
		if _, ok := want[id]; !ok {
			result.Detached = append(result.Detached, id)
		}
	}
	sortIDs(result.Attached)
	sortIDs(result.Detached)
	sortIDs(result.Unchanged)
	return result
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
