package integrity

import "sort"

// Diff compares a baseline with a current snapshot. The result lists every
// created path, then every deleted path, then every modified path, each
// group sorted by path. Paths whose hashes match are omitted, so
// Diff(b, b) is empty.
func Diff(baseline, current Records) []Change {
	var created, deleted, modified []string

	for path, cur := range current {
		base, ok := baseline[path]
		switch {
		case !ok:
			created = append(created, path)
		case base.Hash != cur.Hash:
			modified = append(modified, path)
		}
	}
	for path := range baseline {
		if _, ok := current[path]; !ok {
			deleted = append(deleted, path)
		}
	}

	sort.Strings(created)
	sort.Strings(deleted)
	sort.Strings(modified)

	changes := make([]Change, 0, len(created)+len(deleted)+len(modified))
	for _, path := range created {
		changes = append(changes, CreatedChange(path, current[path].Hash))
	}
	for _, path := range deleted {
		changes = append(changes, DeletedChange(path, baseline[path].Hash))
	}
	for _, path := range modified {
		changes = append(changes, ModifiedChange(path, baseline[path].Hash, current[path].Hash))
	}
	return changes
}
