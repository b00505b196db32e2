package rateplan

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// ErrImmutabilityViolation is returned when a stored plan version would be overwritten
var ErrImmutabilityViolation = errors.New("immutability violation: plan version cannot be modified")

// ErrHashMismatch is returned when a stored file no longer matches its recorded hash
var ErrHashMismatch = errors.New("plan file hash mismatch: data may be corrupted")

// ErrNotStored is returned for an unknown plan id
var ErrNotStored = errors.New("plan version not in store")

// StoredPlan is the index record kept for each stored version
type StoredPlan struct {
	ID            string    `json:"id"`
	ProductType   string    `json:"product_type"`
	CarrierID     string    `json:"carrier_id,omitempty"`
	Version       string    `json:"version"`
	EffectiveFrom string    `json:"effective_from"`
	ContentHash   string    `json:"content_hash"`
	FileHash      string    `json:"file_hash"`
	StoredAt      time.Time `json:"stored_at"`
	Size          int64     `json:"size"`
	File          string    `json:"file"`
}

// FileStore keeps plan versions as write-once JSON documents.
// Once written a version can never be replaced, which keeps issued quotes reproducible.
type FileStore struct {
	mu       sync.RWMutex
	basePath string
	index    map[string]*StoredPlan
}

// NewFileStore opens or creates a store directory
func NewFileStore(basePath string) (*FileStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create plan store directory: %w", err)
	}
	s := &FileStore{
		basePath: basePath,
		index:    make(map[string]*StoredPlan),
	}
	if err := s.loadIndex(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read plan store index: %w", err)
	}
	return s, nil
}

// Has reports whether a version id is stored
func (s *FileStore) Has(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.index[id]
	return ok
}

// Store writes a plan version. It fails if the id is already stored.
func (s *FileStore) Store(ctx context.Context, snap *Snapshot) (*StoredPlan, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.index[snap.ID()]; exists {
		return nil, ErrImmutabilityViolation
	}

	data, err := json.MarshalIndent(ToDocument(snap), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize plan: %w", err)
	}
	sum := sha256.Sum256(data)
	fileHash := hex.EncodeToString(sum[:])

	name := fmt.Sprintf("%s_%s.json", snap.ID(), snap.ContentHash().Hex()[:8])
	path := filepath.Join(s.basePath, name)
	if _, err := os.Stat(path); err == nil {
		return nil, ErrImmutabilityViolation
	}
	if err := os.WriteFile(path, data, 0444); err != nil {
		return nil, fmt.Errorf("failed to write plan: %w", err)
	}

	rec := &StoredPlan{
		ID:            snap.ID(),
		ProductType:   string(snap.ProductType()),
		CarrierID:     snap.CarrierID(),
		Version:       snap.Version(),
		EffectiveFrom: snap.plan.EffectiveFrom.Format(DateLayout),
		ContentHash:   snap.ContentHash().Hex(),
		FileHash:      fileHash,
		StoredAt:      time.Now().UTC(),
		Size:          int64(len(data)),
		File:          name,
	}
	s.index[rec.ID] = rec

	if err := s.saveIndex(); err != nil {
		return nil, err
	}
	return rec, nil
}

// Get reads one version back, verifying both the file hash and the plan content hash
func (s *FileStore) Get(ctx context.Context, id string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	rec, ok := s.index[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotStored, id)
	}
	return s.read(rec)
}

// List returns the index records ordered by product, carrier and effective date
func (s *FileStore) List() []StoredPlan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]StoredPlan, 0, len(s.index))
	for _, rec := range s.index {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.ProductType != b.ProductType {
			return a.ProductType < b.ProductType
		}
		if a.CarrierID != b.CarrierID {
			return a.CarrierID < b.CarrierID
		}
		if a.EffectiveFrom != b.EffectiveFrom {
			return a.EffectiveFrom < b.EffectiveFrom
		}
		return a.ID < b.ID
	})
	return out
}

// LoadPlans implements Source
func (s *FileStore) LoadPlans(ctx context.Context) ([]*Snapshot, error) {
	recs := s.List()
	out := make([]*Snapshot, 0, len(recs))
	for i := range recs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		snap, err := s.read(&recs[i])
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", recs[i].ID, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// VerifyIntegrity checks every stored file against the index
func (s *FileStore) VerifyIntegrity() []string {
	var corrupted []string
	for _, rec := range s.List() {
		data, err := os.ReadFile(filepath.Join(s.basePath, rec.File))
		if err != nil {
			corrupted = append(corrupted, fmt.Sprintf("%s: file missing", rec.ID))
			continue
		}
		sum := sha256.Sum256(data)
		if hex.EncodeToString(sum[:]) != rec.FileHash {
			corrupted = append(corrupted, fmt.Sprintf("%s: hash mismatch", rec.ID))
		}
	}
	return corrupted
}

func (s *FileStore) read(rec *StoredPlan) (*Snapshot, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, rec.File))
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	sum := sha256.Sum256(data)
	if hex.EncodeToString(sum[:]) != rec.FileHash {
		return nil, ErrHashMismatch
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	return FromDocument(&doc)
}

type storeIndex struct {
	Plans     map[string]*StoredPlan `json:"plans"`
	UpdatedAt time.Time              `json:"updated_at"`
}

func (s *FileStore) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(s.basePath, "index.json"))
	if err != nil {
		return err
	}
	var idx storeIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return err
	}
	if idx.Plans != nil {
		s.index = idx.Plans
	}
	return nil
}

func (s *FileStore) saveIndex() error {
	indexPath := filepath.Join(s.basePath, "index.json")
	data, err := json.MarshalIndent(storeIndex{Plans: s.index, UpdatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return err
	}

	// write-then-rename so a crash never leaves a torn index
	tmp := indexPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, indexPath)
}
