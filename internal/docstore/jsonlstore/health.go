package jsonlstore

import (
	"bufio"
	"os"

	"github.com/xolan/mondo/internal/docstore"
)

// Health summarises the state of a collection file.
type Health struct {
	Collection       string
	TotalLines       int
	ValidDocuments   int
	CorruptedEntries int
	Warnings         []ParseWarning
}

// Healthy reports whether every line parsed.
func (h Health) Healthy() bool {
	return h.CorruptedEntries == 0
}

// Check analyses a collection file. A missing file is healthy and empty.
func (s *Store) Check(collection string) (Health, error) {
	health := Health{Collection: collection, Warnings: []ParseWarning{}}
	if err := docstore.ValidateCollection(collection); err != nil {
		return health, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(collection)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return health, nil
		}
		return health, err
	}
	defer func() { _ = file.Close() }()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		health.TotalLines++
	}
	if err := scanner.Err(); err != nil {
		return health, err
	}

	result, err := ReadDocumentsWithWarnings(path)
	if err != nil {
		return health, err
	}
	for i := range result.Warnings {
		result.Warnings[i].Collection = collection
	}

	health.ValidDocuments = len(result.Documents)
	health.CorruptedEntries = len(result.Warnings)
	health.Warnings = result.Warnings
	return health, nil
}

// Repair rewrites a collection file keeping only the lines that parse. The
// original file is backed up first. It returns the number of dropped lines.
func (s *Store) Repair(collection string) (int, error) {
	if err := docstore.ValidateCollection(collection); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.Path(collection)
	result, err := ReadDocumentsWithWarnings(path)
	if err != nil {
		return 0, err
	}
	if len(result.Warnings) == 0 {
		return 0, nil
	}
	if err := CreateBackup(path); err != nil {
		return 0, err
	}
	if err := WriteDocuments(path, result.Documents); err != nil {
		return 0, err
	}
	return len(result.Warnings), nil
}
