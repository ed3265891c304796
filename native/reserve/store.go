package reserve

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/rlp"

	"reservenet/storage"
)

const (
	finalizedKeyPrefix = "reserve/finalized/"
	subjectsIndexKey   = "reserve/subjects"
)

// storedReserve is the RLP wire form of a finalized record.
type storedReserve struct {
	Balance      *big.Int
	UpdatedAt    uint64
	Participants uint64
}

// Store persists finalized reserve records in a key-value database, keeping a
// subject index so the full set can be reloaded at startup.
type Store struct {
	mu sync.Mutex
	db storage.Database
}

// NewStore wraps the supplied database.
func NewStore(db storage.Database) *Store {
	return &Store{db: db}
}

func finalizedKey(subject string) []byte {
	return []byte(finalizedKeyPrefix + subject)
}

// PutFinalized writes the record and registers the subject in the index.
func (s *Store) PutFinalized(subject string, record *FinalizedReserve) error {
	if s == nil || s.db == nil {
		return errors.New("reserve: store not configured")
	}
	if record == nil || record.Balance == nil {
		return errors.New("reserve: nil finalized record")
	}
	encoded, err := rlp.EncodeToBytes(&storedReserve{
		Balance:      record.Balance,
		UpdatedAt:    uint64(record.UpdatedAt.Unix()),
		Participants: uint64(record.Participant),
	})
	if err != nil {
		return fmt.Errorf("encode finalized reserve: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.Put(finalizedKey(subject), encoded); err != nil {
		return fmt.Errorf("store finalized reserve: %w", err)
	}
	return s.indexSubjectLocked(subject)
}

func (s *Store) indexSubjectLocked(subject string) error {
	subjects, err := s.subjectsLocked()
	if err != nil {
		return err
	}
	for _, existing := range subjects {
		if existing == subject {
			return nil
		}
	}
	subjects = append(subjects, subject)
	encoded, err := rlp.EncodeToBytes(subjects)
	if err != nil {
		return fmt.Errorf("encode subject index: %w", err)
	}
	if err := s.db.Put([]byte(subjectsIndexKey), encoded); err != nil {
		return fmt.Errorf("store subject index: %w", err)
	}
	return nil
}

func (s *Store) subjectsLocked() ([]string, error) {
	raw, err := s.db.Get([]byte(subjectsIndexKey))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read subject index: %w", err)
	}
	var subjects []string
	if err := rlp.DecodeBytes(raw, &subjects); err != nil {
		return nil, fmt.Errorf("decode subject index: %w", err)
	}
	return subjects, nil
}

// GetFinalized reads one subject's record. The second return value is false
// when the subject has never been finalized.
func (s *Store) GetFinalized(subject string) (*FinalizedReserve, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, errors.New("reserve: store not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getFinalizedLocked(subject)
}

func (s *Store) getFinalizedLocked(subject string) (*FinalizedReserve, bool, error) {
	raw, err := s.db.Get(finalizedKey(subject))
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read finalized reserve: %w", err)
	}
	var stored storedReserve
	if err := rlp.DecodeBytes(raw, &stored); err != nil {
		return nil, false, fmt.Errorf("decode finalized reserve: %w", err)
	}
	return &FinalizedReserve{
		Balance:     stored.Balance,
		UpdatedAt:   time.Unix(int64(stored.UpdatedAt), 0).UTC(),
		Participant: int(stored.Participants),
	}, true, nil
}

// LoadFinalized returns every persisted record keyed by subject.
func (s *Store) LoadFinalized() (map[string]*FinalizedReserve, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("reserve: store not configured")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	subjects, err := s.subjectsLocked()
	if err != nil {
		return nil, err
	}
	records := make(map[string]*FinalizedReserve, len(subjects))
	for _, subject := range subjects {
		record, ok, err := s.getFinalizedLocked(subject)
		if err != nil {
			return nil, err
		}
		if ok {
			records[subject] = record
		}
	}
	return records, nil
}
