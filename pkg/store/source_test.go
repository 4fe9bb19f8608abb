package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/mosaicdocs/sourcemgr/pkg/store"
)

var testMappings = []store.RegionMapping{
	{Region: "Pacific", Patterns: []string{"*pacific*", "*hawaii*"}, Priority: 10},
	{Region: "Europe", Patterns: []string{"*europe*", "*baltic*"}, Priority: 10},
	{Region: "Pacific Priority", Patterns: []string{"*pacific fleet*"}, Priority: 20},
}

func newSourceStore(t *testing.T) *store.SourceStore {
	t.Helper()
	s, err := store.NewSourceStore(t.TempDir(), testMappings)
	if err != nil {
		t.Fatalf("NewSourceStore: %v", err)
	}
	return s
}

func TestRegionFor(t *testing.T) {
	s := newSourceStore(t)

	cases := []struct {
		title string
		want  string
	}{
		{"Pacific Survey 2025", "Pacific"},
		{"Baltic Shipping Register", "Europe"},
		{"Annual Pacific Fleet Review", "Pacific Priority"},
		{"Unmatched Title", store.DefaultRegion},
	}
	for _, tc := range cases {
		if got := s.RegionFor(tc.title); got != tc.want {
			t.Errorf("RegionFor(%q) = %q, want %q", tc.title, got, tc.want)
		}
	}
}

func TestSourceStoreAddPartitionsByRegion(t *testing.T) {
	dir := t.TempDir()
	s, err := store.NewSourceStore(dir, testMappings)
	if err != nil {
		t.Fatalf("NewSourceStore: %v", err)
	}

	pacific, err := s.Add(store.SourceRecord{Title: "Pacific Survey 2025"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if pacific.ID == "" {
		t.Fatal("Add should assign an id")
	}
	if pacific.Region != "Pacific" {
		t.Fatalf("Region = %q", pacific.Region)
	}

	if _, err := s.Add(store.SourceRecord{Title: "Unmatched Title"}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	for _, file := range []string{"pacific_sources.json", "general_sources.json"} {
		if _, err := os.Stat(filepath.Join(dir, file)); err != nil {
			t.Errorf("expected region file %s: %v", file, err)
		}
	}

	// Cross-file lookup by id.
	got, err := s.Get(pacific.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(pacific, got); diff != "" {
		t.Fatalf("record mismatch (-added +got):\n%s", diff)
	}
}

func TestSourceStoreUpdateMovesRegions(t *testing.T) {
	s := newSourceStore(t)

	record, err := s.Add(store.SourceRecord{Title: "Pacific Survey 2025"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	record.Title = "European Rail Atlas"
	record.Region = "Europe"
	if err := s.Update(record); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := s.Get(record.ID)
	if err != nil {
		t.Fatalf("Get after move: %v", err)
	}
	if got.Region != "Europe" {
		t.Fatalf("Region = %q after move", got.Region)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 record after move, got %d", len(all))
	}
}

func TestSourceStoreCacheInvalidation(t *testing.T) {
	s := newSourceStore(t)

	first, err := s.Add(store.SourceRecord{Title: "Unmatched Title"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	// Warm the cache, then write through the same store and read again.
	if _, err := s.Get(first.ID); err != nil {
		t.Fatalf("Get: %v", err)
	}
	second, err := s.Add(store.SourceRecord{Title: "Another Unmatched Title"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Get(second.ID); err != nil {
		t.Fatalf("Get after add: %v", err)
	}
}

func TestSourceStoreGetNotFound(t *testing.T) {
	s := newSourceStore(t)
	if _, err := s.Get("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSourceStoreSearch(t *testing.T) {
	s := newSourceStore(t)

	titles := []string{
		"Pacific Survey 2025",
		"Pacific Survey 2024",
		"European Rail Atlas",
		"Harbor Depth Tables",
	}
	for _, title := range titles {
		if _, err := s.Add(store.SourceRecord{Title: title}); err != nil {
			t.Fatalf("Add(%q): %v", title, err)
		}
	}

	results, err := s.Search("pacific survey", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, record := range results {
		if record.Title != "Pacific Survey 2025" && record.Title != "Pacific Survey 2024" {
			t.Errorf("unexpected search hit %q", record.Title)
		}
	}

	// Near-miss queries still rank the closest title first.
	results, err = s.Search("european rial atlas", 1)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 || results[0].Title != "European Rail Atlas" {
		t.Fatalf("fuzzy search results = %+v", results)
	}

	if results, _ := s.Search("   ", 5); results != nil {
		t.Fatal("blank query should return nothing")
	}
}
