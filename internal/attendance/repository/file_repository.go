package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"attendance-bridge/internal/attendance/domain"
)

// StateFileName is the document written under the state directory.
const StateFileName = "attendance_state.json"

type fileStateRepository struct {
	path string
	mu   sync.Mutex
}

// NewFileStateRepository stores state as one JSON document in dir, replaced
// by write-to-temp and rename.
func NewFileStateRepository(dir string) (StateRepository, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &fileStateRepository{path: filepath.Join(dir, StateFileName)}, nil
}

func (r *fileStateRepository) Load(ctx context.Context) (*domain.State, error) {
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewState(), nil
	}
	if err != nil {
		return nil, &domain.CorruptStateError{Source: r.path, Err: err}
	}

	var doc stateDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &domain.CorruptStateError{Source: r.path, Err: err}
	}
	state, err := fromDocument(&doc)
	if err != nil {
		return nil, &domain.CorruptStateError{Source: r.path, Err: err}
	}
	return state, nil
}

func (r *fileStateRepository) Save(ctx context.Context, state *domain.State) error {
	data, err := json.MarshalIndent(toDocument(state), "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close state: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}

func toDocument(state *domain.State) *stateDocument {
	doc := &stateDocument{
		Version:    documentVersion,
		Daily:      state.Daily,
		Watermarks: make([]domain.Watermark, 0, len(state.Watermarks)),
	}
	if !state.Cursor.IsZero() {
		doc.Cursor = state.Cursor.Format(time.RFC3339Nano)
	}
	for _, w := range state.Watermarks {
		doc.Watermarks = append(doc.Watermarks, *w)
	}
	sort.Slice(doc.Watermarks, func(i, j int) bool {
		a, b := doc.Watermarks[i], doc.Watermarks[j]
		if a.WorkDate != b.WorkDate {
			return a.WorkDate < b.WorkDate
		}
		return a.SubjectID < b.SubjectID
	})
	return doc
}

func fromDocument(doc *stateDocument) (*domain.State, error) {
	if doc.Version != documentVersion {
		return nil, fmt.Errorf("unsupported state version %d", doc.Version)
	}

	state := domain.NewState()
	state.Daily = doc.Daily
	if doc.Cursor != "" {
		cursor, err := time.Parse(time.RFC3339Nano, doc.Cursor)
		if err != nil {
			return nil, fmt.Errorf("cursor: %w", err)
		}
		state.Cursor = cursor
	}
	for i := range doc.Watermarks {
		w := doc.Watermarks[i]
		if w.SubjectID == "" {
			return nil, fmt.Errorf("watermark %d: empty subject id", i)
		}
		if _, err := time.Parse(domain.DateLayout, w.WorkDate); err != nil {
			return nil, fmt.Errorf("watermark %d: work date: %w", i, err)
		}
		state.Watermarks[w.Key()] = &w
	}
	return state, nil
}
