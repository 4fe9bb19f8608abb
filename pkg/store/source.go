package store

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
)

// DefaultRegion is where a source lands when no mapping pattern claims it.
const DefaultRegion = "General"

// SourceRecord is one master source entry.
type SourceRecord struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Type      string `json:"type,omitempty"`
	Publisher string `json:"publisher,omitempty"`
	Year      string `json:"year,omitempty"`
	URL       string `json:"url,omitempty"`
	Notes     string `json:"notes,omitempty"`
	Region    string `json:"region,omitempty"`
}

// RegionMapping routes source titles to a region's master file. Patterns
// use filepath glob syntax and match case-insensitively against the title;
// when several mappings match, the highest priority wins.
type RegionMapping struct {
	Region   string   `json:"region" yaml:"region"`
	Patterns []string `json:"patterns" yaml:"patterns"`
	Priority int      `json:"priority" yaml:"priority"`
}

// SourceStore manages region-partitioned master source files, one
// `<region>_sources.json` per region under the root directory. Reads go
// through a per-region cache that writes invalidate.
type SourceStore struct {
	root     string
	mappings []RegionMapping

	mu    sync.Mutex
	cache map[string][]SourceRecord
}

type sourceFile struct {
	Sources []SourceRecord `json:"sources"`
}

// NewSourceStore creates the root directory if needed. Mappings may be
// empty, in which case every source files under DefaultRegion.
func NewSourceStore(root string, mappings []RegionMapping) (*SourceStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("store: create source root: %w", err)
	}
	return &SourceStore{
		root:     root,
		mappings: append([]RegionMapping(nil), mappings...),
		cache:    make(map[string][]SourceRecord),
	}, nil
}

// RegionFor resolves which region a source title belongs to. The highest
// priority mapping with a matching pattern wins; ties go to the mapping
// declared first. Unmatched titles go to DefaultRegion.
func (s *SourceStore) RegionFor(title string) string {
	lowered := strings.ToLower(title)
	best := DefaultRegion
	bestPriority := -1
	for _, mapping := range s.mappings {
		if mapping.Priority <= bestPriority {
			continue
		}
		for _, pattern := range mapping.Patterns {
			matched, err := path.Match(strings.ToLower(pattern), lowered)
			if err != nil {
				continue
			}
			if matched {
				best = mapping.Region
				bestPriority = mapping.Priority
				break
			}
		}
	}
	return best
}

func (s *SourceStore) regionPath(region string) string {
	name := strings.ToLower(strings.ReplaceAll(region, " ", "_")) + "_sources.json"
	return filepath.Join(s.root, name)
}

// Regions lists every region with an existing master file.
func (s *SourceStore) Regions() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("store: list source root: %w", err)
	}
	var regions []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, "_sources.json") {
			continue
		}
		regions = append(regions, strings.TrimSuffix(name, "_sources.json"))
	}
	sort.Strings(regions)
	return regions, nil
}

func (s *SourceStore) loadRegion(region string) ([]SourceRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(region)
	if records, ok := s.cache[key]; ok {
		return records, nil
	}
	var file sourceFile
	if err := readJSON(s.regionPath(region), &file); err != nil {
		if os.IsNotExist(err) {
			s.cache[key] = nil
			return nil, nil
		}
		return nil, err
	}
	s.cache[key] = file.Sources
	return file.Sources, nil
}

func (s *SourceStore) writeRegion(region string, records []SourceRecord) error {
	if err := writeJSON(s.regionPath(region), sourceFile{Sources: records}); err != nil {
		return err
	}
	s.mu.Lock()
	s.cache[strings.ToLower(region)] = records
	s.mu.Unlock()
	return nil
}

// Add stores a new source in its region's master file, assigning an id and
// a region if the record carries none, and returns the stored record.
func (s *SourceStore) Add(source SourceRecord) (SourceRecord, error) {
	if strings.TrimSpace(source.Title) == "" {
		return SourceRecord{}, fmt.Errorf("store: source has no title")
	}
	if source.ID == "" {
		source.ID = uuid.NewString()
	}
	if source.Region == "" {
		source.Region = s.RegionFor(source.Title)
	}

	records, err := s.loadRegion(source.Region)
	if err != nil {
		return SourceRecord{}, err
	}
	for _, existing := range records {
		if existing.ID == source.ID {
			return SourceRecord{}, fmt.Errorf("store: source %s already exists in %s", source.ID, source.Region)
		}
	}
	records = append(append([]SourceRecord(nil), records...), source)
	if err := s.writeRegion(source.Region, records); err != nil {
		return SourceRecord{}, err
	}
	return source, nil
}

// Update rewrites an existing source in place, moving it between region
// files if its region changed.
func (s *SourceStore) Update(source SourceRecord) error {
	if source.ID == "" {
		return fmt.Errorf("store: source has no id")
	}
	existing, err := s.Get(source.ID)
	if err != nil {
		return err
	}
	if source.Region == "" {
		source.Region = existing.Region
	}

	if existing.Region != source.Region {
		if err := s.removeFrom(existing.Region, source.ID); err != nil {
			return err
		}
		records, err := s.loadRegion(source.Region)
		if err != nil {
			return err
		}
		return s.writeRegion(source.Region, append(append([]SourceRecord(nil), records...), source))
	}

	records, err := s.loadRegion(source.Region)
	if err != nil {
		return err
	}
	updated := make([]SourceRecord, len(records))
	copy(updated, records)
	for i := range updated {
		if updated[i].ID == source.ID {
			updated[i] = source
			return s.writeRegion(source.Region, updated)
		}
	}
	return fmt.Errorf("%w: source %s", ErrNotFound, source.ID)
}

func (s *SourceStore) removeFrom(region, id string) error {
	records, err := s.loadRegion(region)
	if err != nil {
		return err
	}
	remaining := make([]SourceRecord, 0, len(records))
	for _, record := range records {
		if record.ID != id {
			remaining = append(remaining, record)
		}
	}
	if len(remaining) == len(records) {
		return fmt.Errorf("%w: source %s in %s", ErrNotFound, id, region)
	}
	return s.writeRegion(region, remaining)
}

// Get looks a source up by id across every region file.
func (s *SourceStore) Get(id string) (SourceRecord, error) {
	all, err := s.All()
	if err != nil {
		return SourceRecord{}, err
	}
	for _, record := range all {
		if record.ID == id {
			return record, nil
		}
	}
	return SourceRecord{}, fmt.Errorf("%w: source %s", ErrNotFound, id)
}

// All merges every region's sources, ordered by region then title.
func (s *SourceStore) All() ([]SourceRecord, error) {
	regions, err := s.Regions()
	if err != nil {
		return nil, err
	}
	var all []SourceRecord
	for _, region := range regions {
		records, err := s.loadRegion(region)
		if err != nil {
			return nil, err
		}
		all = append(all, records...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Region != all[j].Region {
			return all[i].Region < all[j].Region
		}
		return all[i].Title < all[j].Title
	})
	return all, nil
}

// Search ranks every source by how closely its title matches the query:
// substring matches first, then ascending edit distance. At most limit
// results are returned; limit <= 0 means no cap.
func (s *SourceStore) Search(query string, limit int) ([]SourceRecord, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, nil
	}

	type scored struct {
		record   SourceRecord
		distance int
	}
	ranked := make([]scored, 0, len(all))
	for _, record := range all {
		title := strings.ToLower(record.Title)
		distance := levenshtein.ComputeDistance(needle, title)
		if strings.Contains(title, needle) {
			distance = 0
		}
		ranked = append(ranked, scored{record: record, distance: distance})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].distance < ranked[j].distance
	})

	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	results := make([]SourceRecord, len(ranked))
	for i, entry := range ranked {
		results[i] = entry.record
	}
	return results, nil
}
