package api

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/tudoramariei/votemonitor/internal/forms"
	"github.com/tudoramariei/votemonitor/internal/services"
)

// MemoryStore keeps everything in maps. Values are copied on the way in and out so callers
// never share state with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	forms       map[string]*services.FormRecord
	submissions map[string][]*services.Submission
	audit       []services.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		forms:       map[string]*services.FormRecord{},
		submissions: map[string][]*services.Submission{},
		audit:       []services.AuditEntry{},
	}
}

func cloneSubmission(sub *services.Submission) *services.Submission {
	cp := *sub
	cp.Answers = sub.Answers.Clone()
	return &cp
}

func (s *MemoryStore) InsertForm(_ context.Context, ngoID string, f *forms.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.forms[f.ID]; exists {
		return services.NewConflictError("form " + f.ID + " already exists")
	}
	s.forms[f.ID] = &services.FormRecord{NGOID: ngoID, Form: f.Clone()}
	return nil
}

func (s *MemoryStore) GetForm(_ context.Context, id string) (*services.FormRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.forms[id]
	if !ok {
		return nil, nil
	}
	return &services.FormRecord{NGOID: rec.NGOID, Form: rec.Form.Clone()}, nil
}

func (s *MemoryStore) ListForms(_ context.Context, ngoID string) ([]*forms.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*forms.Form{}
	for _, rec := range s.forms {
		if rec.NGOID == ngoID {
			out = append(out, rec.Form.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateForm(_ context.Context, f *forms.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.forms[f.ID]
	if !ok {
		return services.NewNotFoundError("form not found")
	}
	if rec.Form.Version != f.Version {
		return services.ErrStaleVersion
	}
	f.Version++
	rec.Form = f.Clone()
	return nil
}

func (s *MemoryStore) DeleteForm(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.forms, id)
	delete(s.submissions, id)
	return nil
}

func (s *MemoryStore) InsertSubmission(_ context.Context, sub *services.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[sub.FormID]; !ok {
		return services.NewNotFoundError("form not found")
	}
	s.submissions[sub.FormID] = append(s.submissions[sub.FormID], cloneSubmission(sub))
	return nil
}

func (s *MemoryStore) ListSubmissions(_ context.Context, formID string) ([]*services.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	subs := s.submissions[formID]
	out := make([]*services.Submission, 0, len(subs))
	for _, sub := range subs {
		out = append(out, cloneSubmission(sub))
	}
	return out, nil
}

func (s *MemoryStore) AddAudit(_ context.Context, e services.AuditEntry) {
	s.mu.Lock()
	s.audit = append(s.audit, e)
	s.mu.Unlock()
}

func (s *MemoryStore) ListAudit(_ context.Context, target string) ([]services.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []services.AuditEntry{}
	for _, e := range s.audit {
		if e.Target == target {
			out = append(out, e)
		}
	}
	return out, nil
}

// snapshot

type snapshotForm struct {
	NGOID    string          `json:"ngoId"`
	Document json.RawMessage `json:"document"`
}

// Snapshot is the on-disk form of a memory store.
type Snapshot struct {
	Forms       []snapshotForm         `json:"forms"`
	Submissions []*services.Submission `json:"submissions"`
	Audit       []services.AuditEntry  `json:"audit"`
}

// Records decodes the stored forms.
func (snap *Snapshot) Records() ([]*services.FormRecord, error) {
	out := make([]*services.FormRecord, 0, len(snap.Forms))
	for _, sf := range snap.Forms {
		f, err := forms.DecodeForm(sf.Document)
		if err != nil {
			return nil, err
		}
		out = append(out, &services.FormRecord{NGOID: sf.NGOID, Form: f})
	}
	return out, nil
}

func (s *MemoryStore) Snapshot() (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{Forms: []snapshotForm{}, Submissions: []*services.Submission{}, Audit: append([]services.AuditEntry{}, s.audit...)}
	ids := make([]string, 0, len(s.forms))
	for id := range s.forms {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		rec := s.forms[id]
		doc, err := forms.EncodeForm(rec.Form)
		if err != nil {
			return nil, fmt.Errorf("encode form %s: %w", id, err)
		}
		snap.Forms = append(snap.Forms, snapshotForm{NGOID: rec.NGOID, Document: doc})
		for _, sub := range s.submissions[id] {
			snap.Submissions = append(snap.Submissions, cloneSubmission(sub))
		}
	}
	return snap, nil
}

// SaveSnapshot writes the store to path through a temporary file.
func (s *MemoryStore) SaveSnapshot(path string) error {
	snap, err := s.Snapshot()
	if err != nil {
		return err
	}
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadSnapshot reads a snapshot written by SaveSnapshot. A missing file returns
// os.ErrNotExist.
func LoadSnapshot(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// Restore copies a snapshot into dst, which may be any Store.
func Restore(ctx context.Context, snap *Snapshot, dst Store) error {
	recs, err := snap.Records()
	if err != nil {
		return err
	}
	for _, rec := range recs {
		if err := dst.InsertForm(ctx, rec.NGOID, rec.Form); err != nil {
			return fmt.Errorf("restore form %s: %w", rec.Form.ID, err)
		}
	}
	for _, sub := range snap.Submissions {
		if err := dst.InsertSubmission(ctx, sub); err != nil {
			return fmt.Errorf("restore submission %s: %w", sub.ID, err)
		}
	}
	for _, e := range snap.Audit {
		dst.AddAudit(ctx, e)
	}
	return nil
}

// NewMemoryStoreFromPath loads the snapshot at path into a fresh store. A missing file
// yields an empty store.
func NewMemoryStoreFromPath(ctx context.Context, path string) (*MemoryStore, error) {
	s := NewMemoryStore()
	if path == "" {
		return s, nil
	}
	snap, err := LoadSnapshot(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}
	if err := Restore(ctx, snap, s); err != nil {
		return nil, err
	}
	return s, nil
}
