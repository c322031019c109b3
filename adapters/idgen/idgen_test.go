package idgen_test

import (
	"regexp"
	"sort"
	"sync"
	"testing"

	"github.com/artpar/eventdsl/adapters/idgen"
)

func TestRevision_New(t *testing.T) {
	g := idgen.Revision{}

	id := g.New()
	uuidV7 := regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-7[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)
	if !uuidV7.MatchString(id) {
		t.Errorf("ID %s doesn't match UUID v7 format", id)
	}
}

func TestRevision_Ordered(t *testing.T) {
	g := idgen.Revision{}

	ids := make([]string, 100)
	for i := range ids {
		ids[i] = g.New()
	}
	if !sort.StringsAreSorted(ids) {
		t.Error("revision ids should sort in creation order")
	}
}

func TestSequential_New(t *testing.T) {
	tests := []struct {
		prefix string
		want   []string
	}{
		{"rev_", []string{"rev_1", "rev_2", "rev_3"}},
		{"", []string{"1", "2", "3"}},
	}

	for _, tt := range tests {
		g := idgen.NewSequential(tt.prefix)
		for i, want := range tt.want {
			if got := g.New(); got != want {
				t.Errorf("prefix %q: ID %d = %s, want %s", tt.prefix, i, got, want)
			}
		}
	}
}

func TestSequential_ConcurrentAccess(t *testing.T) {
	g := idgen.NewSequential("c_")

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		seen = make(map[string]bool)
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				id := g.New()
				mu.Lock()
				seen[id] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != 1000 {
		t.Errorf("expected 1000 unique IDs, got %d", len(seen))
	}
}
