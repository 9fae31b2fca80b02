package staging

import (
	"sync"
	"time"

	"github.com/cleanmap/reports-service/internal/types"
)

type memEntry struct {
	data        []byte
	contentType string
	stagedAt    time.Time
}

// MemStore is an in-memory Store with the same token and expiry
// semantics as DirStore. Used in tests and single-process deployments
// that have no shared media directory.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	maxAge  time.Duration
	now     func() time.Time
}

func NewMemStore() *MemStore {
	return &MemStore{
		entries: make(map[string]memEntry),
		maxAge:  MaxAge,
		now:     time.Now,
	}
}

func (s *MemStore) Stage(upload *types.RawUpload) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token := newToken(upload.ContentType)
	data := make([]byte, len(upload.Data))
	copy(data, upload.Data)

	s.entries[token] = memEntry{
		data:        data,
		contentType: upload.ContentType,
		stagedAt:    s.now(),
	}
	return token, nil
}

func (s *MemStore) Retrieve(token string) (*types.RawUpload, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[token]
	if !ok {
		return nil, nil
	}

	data := make([]byte, len(entry.data))
	copy(data, entry.data)
	return &types.RawUpload{
		Filename:    token,
		ContentType: contentTypeForToken(token),
		Size:        int64(len(data)),
		Data:        data,
	}, nil
}

func (s *MemStore) Discard(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, token)
	return nil
}

func (s *MemStore) Sweep() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.maxAge)
	for token, entry := range s.entries {
		if entry.stagedAt.Before(cutoff) {
			delete(s.entries, token)
		}
	}
	return nil
}
