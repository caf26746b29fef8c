package results

import (
	"encoding/binary"
	"path/filepath"
	"time"

	"github.com/crytic/chainfixture/logging"
	"github.com/crytic/chainfixture/scenario"
	"github.com/crytic/chainfixture/utils"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// runsBucket is the top-level bucket holding one nested bucket of records per challenge.
var runsBucket = []byte("runs")

// Store persists challenge run records in a bbolt database.
type Store struct {
	// db is the underlying database.
	db *bolt.DB

	// path is the path of the database file.
	path string

	// logger describes the store's sub-logger
	logger *logging.Logger
}

// Open opens the results database at path, creating it and its parent directory if needed.
func Open(path string) (*Store, error) {
	if err := utils.MakeDirectory(filepath.Dir(path)); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open results database %s", path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.WithStack(err)
	}

	return &Store{
		db:     db,
		path:   path,
		logger: logging.GlobalLogger.NewSubLogger("module", logging.RESULTS_SERVICE),
	}, nil
}

// Path returns the path of the database file.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return errors.WithStack(s.db.Close())
}

// recordKey orders records by start time, breaking ties by ID.
func recordKey(record Record) ([]byte, error) {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid run record ID %q", record.ID)
	}

	key := make([]byte, 8, 8+len(id))
	binary.BigEndian.PutUint64(key, uint64(record.StartedAt))
	return append(key, id[:]...), nil
}

// Put stores a record under its challenge.
func (s *Store) Put(record Record) error {
	if record.Challenge == "" {
		return errors.New("run record has no challenge name")
	}

	key, err := recordKey(record)
	if err != nil {
		return err
	}
	value, err := encodeRecord(record)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		challengeBucket, err := tx.Bucket(runsBucket).CreateBucketIfNotExists([]byte(record.Challenge))
		if err != nil {
			return err
		}
		return challengeBucket.Put(key, value)
	})
	if err != nil {
		return errors.Wrapf(err, "could not store run of %s", record.Challenge)
	}

	s.logger.Debug("Stored run ", record.ID, " of ", record.Challenge, logging.StructuredLogInfo{"passed": record.Passed})
	return nil
}

// List returns the records of a challenge, oldest first. A challenge with no runs has no records.
func (s *Store) List(challenge string) ([]Record, error) {
	var records []Record
	err := s.db.View(func(tx *bolt.Tx) error {
		challengeBucket := tx.Bucket(runsBucket).Bucket([]byte(challenge))
		if challengeBucket == nil {
			return nil
		}
		return challengeBucket.ForEach(func(_ []byte, value []byte) error {
			record, err := decodeRecord(value)
			if err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "could not list runs of %s", challenge)
	}
	return records, nil
}

// Challenges returns the names of the challenges with stored runs, sorted.
func (s *Store) Challenges() ([]string, error) {
	var names []string
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(name []byte, value []byte) error {
			// Nested buckets have no value
			if value == nil {
				names = append(names, string(name))
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return names, nil
}

// Record subscribes the store to the runner, storing a record for every finished scenario.
func (s *Store) Record(runner *scenario.Runner) {
	runner.Events.ScenarioFinished.Subscribe(func(event scenario.ScenarioFinishedEvent) error {
		return s.Put(NewRecord(event.Result))
	})
}
