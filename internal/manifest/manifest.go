package manifest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/geokv/blobstore"
)

const (
	ManifestFileName = "MANIFEST"
	CurrentFileName  = "CURRENT"
	// CurrentVersion is the version of the manifest format.
	CurrentVersion = 1
)

// Manifest describes the state of a store at one point in time.
type Manifest struct {
	Version       int
	ID            uint64
	CreatedAt     time.Time
	NextSegmentID uint64
	Segments      []SegmentInfo
	Meta          map[string][]byte
}

// New creates a new empty manifest.
func New() *Manifest {
	return &Manifest{
		Version:       CurrentVersion,
		CreatedAt:     time.Now(),
		NextSegmentID: 1,
		Meta:          make(map[string][]byte),
	}
}

// Clone returns a deep copy of m.
func (m *Manifest) Clone() *Manifest {
	c := *m
	c.Segments = make([]SegmentInfo, len(m.Segments))
	for i, s := range m.Segments {
		c.Segments[i] = s.Clone()
	}
	c.Meta = make(map[string][]byte, len(m.Meta))
	for k, v := range m.Meta {
		c.Meta[k] = bytes.Clone(v)
	}
	return &c
}

// SegmentInfo describes a single segment. Segments are listed oldest first.
type SegmentInfo struct {
	ID   uint64
	Path string
	Rows uint64
	Size int64
	// MinKey and MaxKey bound the encoded keys stored in the segment.
	MinKey []byte
	MaxKey []byte
}

// Clone returns a deep copy of s.
func (s SegmentInfo) Clone() SegmentInfo {
	s.MinKey = bytes.Clone(s.MinKey)
	s.MaxKey = bytes.Clone(s.MaxKey)
	return s
}

// FileName returns the blob name of manifest version id.
func FileName(id uint64) string {
	return fmt.Sprintf("%s-%06d.bin", ManifestFileName, id)
}

// Store manages the manifest blobs and the CURRENT pointer.
type Store struct {
	store blobstore.BlobStore
	mu    sync.Mutex
}

// NewStore creates a new manifest store.
func NewStore(store blobstore.BlobStore) *Store {
	return &Store{store: store}
}

// Load loads the current manifest.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	return s.LoadVersion(ctx, 0)
}

// LoadVersion loads a specific version. 0 means the one CURRENT points at.
func (s *Store) LoadVersion(ctx context.Context, versionID uint64) (*Manifest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := FileName(versionID)
	if versionID == 0 {
		content, err := blobstore.Get(ctx, s.store, CurrentFileName)
		if err != nil {
			if errors.Is(err, blobstore.ErrNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		name = strings.TrimSpace(string(content))
		if path.Base(name) != name || !strings.HasPrefix(name, ManifestFileName+"-") {
			return nil, fmt.Errorf("%w: CURRENT points at %q", ErrCorrupt, name)
		}
	}

	data, err := blobstore.Get(ctx, s.store, name)
	if err != nil {
		return nil, fmt.Errorf("failed to open manifest %s: %w", name, err)
	}
	return ReadBinary(bytes.NewReader(data))
}

// ListVersions returns the ids of all stored manifest versions in
// ascending order.
func (s *Store) ListVersions(ctx context.Context) ([]uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names, err := s.store.List(ctx, ManifestFileName+"-")
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, name := range names {
		var id uint64
		if _, err := fmt.Sscanf(name, ManifestFileName+"-%d.bin", &id); err != nil || FileName(id) != name {
			continue
		}
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids, nil
}

// Save commits m as the next version. On success m.ID is the new version.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *m
	next.Version = CurrentVersion
	next.ID = m.ID + 1
	next.CreatedAt = time.Now()

	var buf bytes.Buffer
	if err := next.WriteBinary(&buf); err != nil {
		return err
	}
	name := FileName(next.ID)
	if err := s.store.Put(ctx, name, buf.Bytes()); err != nil {
		return err
	}
	if err := s.store.Put(ctx, CurrentFileName, []byte(name)); err != nil {
		return err
	}
	*m = next
	return nil
}

// DeleteVersion deletes the manifest blob of a version.
func (s *Store) DeleteVersion(ctx context.Context, versionID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.Delete(ctx, FileName(versionID))
}

func sortedKeys(m map[string][]byte) []string {
	return slices.Sorted(maps.Keys(m))
}
