package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rpggio/chronicle/internal/container"
	"github.com/rpggio/chronicle/internal/graph"
	"github.com/rpggio/chronicle/internal/idgen"
)

const timestampLayout = time.RFC3339Nano

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

// Repo persists a graph.Store under a directory, one JSON file per
// entity (§6). stateTemplate is the schema every change's Deltas
// container validates against — the template itself is not persisted,
// since it is fixed per chronicle instance and supplied by the caller
// at open time, the same way database.py's schema was a constant of the
// embedding application rather than part of the saved document.
type Repo struct {
	log           *slog.Logger
	dir           string
	stateTemplate *container.Template
}

// New returns a Repo rooted at dir, creating the versions/, branches/,
// and views/ subdirectories if they don't already exist.
func New(dir string, stateTemplate *container.Template, log *slog.Logger) (*Repo, error) {
	if log == nil {
		log = slog.Default()
	}
	for _, sub := range []string{"versions", "branches", "views"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("storage: create %s: %w", sub, err)
		}
	}
	return &Repo{log: log, dir: dir, stateTemplate: stateTemplate}, nil
}

func (r *Repo) idInfoPath() string        { return filepath.Join(r.dir, "id_info.json") }
func (r *Repo) versionPath(id idgen.ID) string {
	return filepath.Join(r.dir, "versions", string(id)+".json")
}
func (r *Repo) branchPath(id idgen.ID) string {
	return filepath.Join(r.dir, "branches", string(id)+".json")
}
func (r *Repo) viewPath(id idgen.ID) string {
	return filepath.Join(r.dir, "views", string(id)+".json")
}

// writeAtomic replaces path's contents by writing to a sibling .tmp file
// and renaming over it, so a crash mid-write never leaves a half-written
// document behind (§6).
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("storage: rename %s: %w", tmp, err)
	}
	return nil
}

// SaveIDInfo writes the counter block.
func (r *Repo) SaveIDInfo(id graph.IDInfo) error {
	data, err := json.MarshalIndent(toIDInfoDoc(id), "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal id_info: %w", err)
	}
	return writeAtomic(r.idInfoPath(), data)
}

// SaveVersion writes one versions/<id>.json document.
func (r *Repo) SaveVersion(v *graph.Version) error {
	data, err := json.MarshalIndent(r.toVersionDoc(v), "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal version %q: %w", v.ID, err)
	}
	return writeAtomic(r.versionPath(v.ID), data)
}

// SaveBranch writes one branches/<id>.json document.
func (r *Repo) SaveBranch(b *graph.Branch) error {
	data, err := json.MarshalIndent(toBranchDoc(b), "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal branch %q: %w", b.ID, err)
	}
	return writeAtomic(r.branchPath(b.ID), data)
}

// SaveView writes one views/<id>.json document.
func (r *Repo) SaveView(v *graph.View) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal view %q: %w", v.ID, err)
	}
	return writeAtomic(r.viewPath(v.ID), data)
}

// SaveAll persists a store's id-info block and every version and branch.
// Views are not written here; SaveView writes a single view.
func (r *Repo) SaveAll(s *graph.Store) error {
	if err := r.SaveIDInfo(s.IDInfo()); err != nil {
		return err
	}
	for _, v := range s.Versions() {
		if err := r.SaveVersion(v); err != nil {
			return err
		}
	}
	for _, b := range s.Branches() {
		if err := r.SaveBranch(b); err != nil {
			return err
		}
	}
	return nil
}

// Load populates an empty store from disk: the id-info block, then every
// version and branch found by scanning their directories. Any version or
// branch file that fails to parse is logged and skipped rather than
// aborting the load — a foreign or half-written file must not block
// opening the rest of the store (§6). An id_info.json that fails to
// parse, or a version or branch file whose name does not match its id,
// fails the load.
func (r *Repo) Load(s *graph.Store) error {
	if data, err := os.ReadFile(r.idInfoPath()); err == nil {
		var doc idInfoDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("storage: parse id_info.json: %w", err)
		}
		s.LoadIDInfo(doc.toIDInfo())
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("storage: read id_info.json: %w", err)
	}

	if err := r.scanJSON(filepath.Join(r.dir, "versions"), func(data []byte, name string) error {
		var doc versionDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			r.log.Warn("storage: skipping invalid version file", "file", name, "error", err)
			return nil
		}
		if stem := strings.TrimSuffix(name, ".json"); stem != string(doc.ID) {
			return fmt.Errorf("storage: version file %s has id %q, want stem to match (§6)", name, doc.ID)
		}
		v, err := r.toVersion(&doc)
		if err != nil {
			r.log.Warn("storage: skipping version file with bad deltas", "file", name, "error", err)
			return nil
		}
		s.LoadVersion(v)
		return nil
	}); err != nil {
		return err
	}

	return r.scanJSON(filepath.Join(r.dir, "branches"), func(data []byte, name string) error {
		var doc branchDoc
		if err := json.Unmarshal(data, &doc); err != nil {
			r.log.Warn("storage: skipping invalid branch file", "file", name, "error", err)
			return nil
		}
		if stem := strings.TrimSuffix(name, ".json"); stem != string(doc.ID) {
			return fmt.Errorf("storage: branch file %s has id %q, want stem to match (§6)", name, doc.ID)
		}
		s.LoadBranch(doc.toBranch())
		return nil
	})
}

// scanJSON walks dir's top-level *.json files (ignoring *.tmp leftovers
// and anything else), handing each file's bytes to fn. fn returning a
// non-nil error aborts the whole scan, propagating the failure out of
// Load rather than silently skipping a structurally invalid file.
func (r *Repo) scanJSON(dir string, fn func(data []byte, name string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("storage: scan %s: %w", dir, err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			r.log.Warn("storage: skipping unreadable file", "file", path, "error", err)
			continue
		}
		if err := fn(data, e.Name()); err != nil {
			return err
		}
	}
	return nil
}
