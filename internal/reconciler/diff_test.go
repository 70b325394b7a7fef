package reconciler

import (
	"fmt"
	"testing"
	"time"
)

func states(mtime int64, keys ...string) map[string]fileState {
	out := make(map[string]fileState, len(keys))
	for _, k := range keys {
		out[k] = fileState{path: k, name: k, mtime: time.Unix(mtime, 0)}
	}
	return out
}

func TestDiffFilesSetAlgebra(t *testing.T) {
	tests := []struct {
		name             string
		live, indexed    map[string]fileState
		add, del, modify int
	}{
		{"empty", states(1), states(1), 0, 0, 0},
		{"all new", states(1, "a", "b"), states(1), 2, 0, 0},
		{"all gone", states(1), states(1, "a", "b"), 0, 2, 0},
		{"same", states(1, "a", "b"), states(1, "a", "b"), 0, 0, 0},
		{"touched", states(2, "a", "b"), states(1, "a", "b"), 0, 0, 2},
		{"mixed", states(1, "a", "c"), states(1, "a", "b"), 1, 1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := diffFiles(tt.live, tt.indexed)
			if len(d.added) != tt.add || len(d.deleted) != tt.del || len(d.modified) != tt.modify {
				t.Fatalf("diff = %+v", d)
			}

			seen := map[string]string{}
			for kind, keys := range map[string][]string{"added": d.added, "deleted": d.deleted, "modified": d.modified} {
				for _, k := range keys {
					if prev, ok := seen[k]; ok {
						t.Errorf("%s is both %s and %s", k, prev, kind)
					}
					seen[k] = kind
				}
			}
			for _, k := range d.added {
				if _, ok := tt.indexed[k]; ok {
					t.Errorf("added %s is indexed", k)
				}
			}
			for _, k := range d.deleted {
				if _, ok := tt.live[k]; ok {
					t.Errorf("deleted %s is live", k)
				}
			}
			for _, k := range d.modified {
				_, inLive := tt.live[k]
				_, inIndex := tt.indexed[k]
				if !inLive || !inIndex {
					t.Errorf("modified %s not in both sets", k)
				}
			}
		})
	}
}

func TestApplyCapsSamplesButKeepsCounts(t *testing.T) {
	var liveKeys, indexedKeys, shared []string
	for i := 0; i < 20; i++ {
		liveKeys = append(liveKeys, fmt.Sprintf("new%02d", i))
		indexedKeys = append(indexedKeys, fmt.Sprintf("old%02d", i))
		shared = append(shared, fmt.Sprintf("both%02d", i))
	}

	live := states(2, append(liveKeys, shared...)...)
	indexed := states(1, append(indexedKeys, shared...)...)

	var c FolderChange
	diffFiles(live, indexed).apply(&c, live, indexed)

	if c.AddedCount != 20 || c.DeletedCount != 20 || c.ModifiedCount != 20 {
		t.Errorf("counts = +%d -%d ~%d", c.AddedCount, c.DeletedCount, c.ModifiedCount)
	}
	if len(c.FileChanges) != maxSamples {
		t.Fatalf("samples = %d, want %d", len(c.FileChanges), maxSamples)
	}

	perType := map[ChangeType]int{}
	for _, fc := range c.FileChanges {
		perType[fc.Type]++
	}
	if perType[ChangeAdded] != 5 || perType[ChangeDeleted] != 5 || perType[ChangeModified] != 0 {
		t.Errorf("samples per type = %v", perType)
	}

	// Modified samples fill the remaining room.
	live = states(2, "a", "b", "c")
	indexed = states(1, "a", "b", "c", "gone")
	c = FolderChange{}
	diffFiles(live, indexed).apply(&c, live, indexed)
	if len(c.FileChanges) != 4 || c.ModifiedCount != 3 || c.DeletedCount != 1 {
		t.Errorf("small diff = %+v", c)
	}
}
