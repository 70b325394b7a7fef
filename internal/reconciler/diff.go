package reconciler

import (
	"sort"
	"time"
)

// fileState is what the diff compares for one file.
type fileState struct {
	path  string
	name  string
	size  int64
	mtime time.Time
}

// diff is the full comparison of two file sets keyed by path key.
type diff struct {
	added    []string
	deleted  []string
	modified []string
}

// diffFiles computes added = live - indexed, deleted = indexed - live and
// modified = keys in both whose mtime differs. Keys are returned sorted.
func diffFiles(live, indexed map[string]fileState) diff {
	var d diff
	for key, l := range live {
		i, ok := indexed[key]
		switch {
		case !ok:
			d.added = append(d.added, key)
		case !l.mtime.Equal(i.mtime):
			d.modified = append(d.modified, key)
		}
	}
	for key := range indexed {
		if _, ok := live[key]; !ok {
			d.deleted = append(d.deleted, key)
		}
	}

	sort.Strings(d.added)
	sort.Strings(d.deleted)
	sort.Strings(d.modified)
	return d
}

// apply fills the counts and a capped sample list of c from d.
func (d diff) apply(c *FolderChange, live, indexed map[string]fileState) {
	c.AddedCount = len(d.added)
	c.DeletedCount = len(d.deleted)
	c.ModifiedCount = len(d.modified)

	c.FileChanges = make([]FileChange, 0, maxSamples)
	for i, key := range d.added {
		if i == maxSamplesPerType {
			break
		}
		c.FileChanges = append(c.FileChanges, sample(live[key], ChangeAdded))
	}
	for i, key := range d.deleted {
		if i == maxSamplesPerType {
			break
		}
		c.FileChanges = append(c.FileChanges, sample(indexed[key], ChangeDeleted))
	}
	for _, key := range d.modified {
		if len(c.FileChanges) >= maxSamples {
			break
		}
		c.FileChanges = append(c.FileChanges, sample(live[key], ChangeModified))
	}
}

func sample(f fileState, typ ChangeType) FileChange {
	return FileChange{Path: f.path, Filename: f.name, Type: typ, Size: f.size}
}
