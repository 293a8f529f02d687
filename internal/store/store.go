package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/hpungsan/cortex/internal/capsule"
	"github.com/hpungsan/cortex/internal/errors"
)

// Listing limits.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// Store persists capsules and diagnosis texts under a data directory:
// capsules/<id>.json and diagnoses/<id>.txt. Each unit is independent;
// a capsule and its diagnosis share an id but are written separately
// and may land in either order. Operators may delete files externally,
// which reads surface as NOT_FOUND.
type Store struct {
	dataDir string
}

// New creates a store rooted at dataDir. Directories are created lazily
// on first write, so a read-only consumer of an empty store works.
func New(dataDir string) *Store {
	return &Store{dataDir: dataDir}
}

func (s *Store) capsulesDir() string {
	return filepath.Join(s.dataDir, "capsules")
}

func (s *Store) diagnosesDir() string {
	return filepath.Join(s.dataDir, "diagnoses")
}

func (s *Store) capsulePath(id string) string {
	return filepath.Join(s.capsulesDir(), id+".json")
}

func (s *Store) diagnosisPath(id string) string {
	return filepath.Join(s.diagnosesDir(), id+".txt")
}

// Save writes a capsule as one JSON unit keyed by its id.
func (s *Store) Save(c capsule.Capsule) error {
	if c.ID == "" {
		return errors.NewInvalidRequest("capsule id must not be empty")
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.NewInternal(err)
	}
	return s.writeFile(s.capsulesDir(), s.capsulePath(c.ID), data)
}

// SaveDiagnosis writes the diagnosis text for a capsule id. Independent
// of Save: a failed capsule write does not block a diagnosis write, nor
// the reverse.
func (s *Store) SaveDiagnosis(id, text string) error {
	if id == "" {
		return errors.NewInvalidRequest("diagnosis id must not be empty")
	}
	return s.writeFile(s.diagnosesDir(), s.diagnosisPath(id), []byte(text))
}

// Get reads a capsule by id.
func (s *Store) Get(id string) (capsule.Capsule, error) {
	var c capsule.Capsule

	data, err := os.ReadFile(s.capsulePath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return c, errors.NewNotFound(id)
		}
		return c, errors.NewIO("read capsule", err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, errors.NewIO("decode capsule", err)
	}
	return c, nil
}

// GetDiagnosis reads the diagnosis text for a capsule id.
func (s *Store) GetDiagnosis(id string) (string, error) {
	data, err := os.ReadFile(s.diagnosisPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.NewNotFound(id)
		}
		return "", errors.NewIO("read diagnosis", err)
	}
	return string(data), nil
}

// ListRecentIDs returns up to limit capsule ids ordered by storage
// modification time, newest first. A non-positive limit uses the
// default; the hard cap is MaxListLimit. A store that has never been
// written lists as empty rather than failing.
func (s *Store) ListRecentIDs(limit int) ([]string, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	entries, err := os.ReadDir(s.capsulesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.NewIO("list capsules", err)
	}

	type idMtime struct {
		id    string
		mtime int64
	}

	items := make([]idMtime, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Deleted between readdir and stat. Skip it.
			continue
		}
		id := entry.Name()[:len(entry.Name())-len(".json")]
		items = append(items, idMtime{id: id, mtime: info.ModTime().UnixNano()})
	}

	sort.Slice(items, func(i, j int) bool {
		if items[i].mtime != items[j].mtime {
			return items[i].mtime > items[j].mtime
		}
		// ULIDs sort by creation time, so fall back to id order for
		// files written within one mtime granule.
		return items[i].id > items[j].id
	})

	if len(items) > limit {
		items = items[:limit]
	}

	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.id
	}
	return ids, nil
}

// writeFile writes data via a temp file and rename so readers never see
// a partially written unit.
func (s *Store) writeFile(dir, path string, data []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIO("create store directory", err)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errors.NewIO("create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.NewIO("write unit", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.NewIO("close unit", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return errors.NewIO("rename unit", err)
	}
	return nil
}
