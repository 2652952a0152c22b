package segment

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Conversation-Search/internal/indexer/tokenizer"
)

// ManifestName is the file inside an index directory that names the
// committed segment. Replacing it is the commit point of a build.
const ManifestName = "CURRENT"

// ErrNotDurable is returned by WriteManifest when CURRENT was replaced but
// the directory could not be synced. The new manifest is already visible.
var ErrNotDurable = errors.New("manifest committed but directory not synced")

var syncDir = syncDirectory

// Manifest describes the committed generation of an index directory.
type Manifest struct {
	Generation  uint64           `json:"generation"`
	Segment     string           `json:"segment"`
	BuildID     string           `json:"build_id"`
	DocCount    int              `json:"doc_count"`
	TermCount   int              `json:"term_count"`
	Tokenizer   tokenizer.Config `json:"tokenizer"`
	CommittedAt time.Time        `json:"committed_at"`
}

// ReadManifest loads the manifest of dir. A missing manifest is reported with
// an error wrapping os.ErrNotExist; an unreadable one wraps ErrIndexCorrupt.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, corrupt("parsing manifest: %v", err)
	}
	if m.Segment == "" || filepath.Base(m.Segment) != m.Segment {
		return nil, corrupt("manifest names invalid segment %q", m.Segment)
	}
	return &m, nil
}

// WriteManifest atomically replaces the manifest of dir: the new contents are
// written to a temporary file, synced, renamed over CURRENT, and the directory
// is synced so the rename survives a crash. Any error other than ErrNotDurable
// means CURRENT is unchanged.
func WriteManifest(dir string, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	finalPath := filepath.Join(dir, ManifestName)
	tmpPath := finalPath + ".tmp"

	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("creating temp manifest: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("writing temp manifest: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("syncing temp manifest: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp manifest: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming manifest: %w", err)
	}
	if err := syncDir(dir); err != nil {
		return fmt.Errorf("%w: %w", ErrNotDurable, err)
	}
	return nil
}

// IsNotExist reports whether err means the index has never been committed.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}

func syncDirectory(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("opening index directory: %w", err)
	}
	defer d.Close()
	if err := d.Sync(); err != nil {
		return fmt.Errorf("syncing index directory: %w", err)
	}
	return nil
}
