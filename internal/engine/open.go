package engine

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Open builds the backend selected by conf. File backends are read once here so a broken
// file fails at startup, then fronted by a MemStore that rereads and writes through the
// file on every LoadAll and SaveAll.
func Open(conf Conf) (RecordStore, error) {
	switch conf.Type {
	case TypeMemory:
		return NewMemStore(nil, nil), nil
	case TypeXLSX:
		ws, err := NewWorkbookStore(conf.Path)
		if err != nil {
			return nil, err
		}
		return front(ws)
	case TypeSQLite:
		if err := ensureDir(conf.Path); err != nil {
			return nil, err
		}
		ss, err := NewSQLiteStore(conf.Path)
		if err != nil {
			return nil, err
		}
		return front(ss)
	default:
		return nil, fmt.Errorf("unknown store type %q", conf.Type)
	}
}

func front(backing RecordStore) (*MemStore, error) {
	records, err := backing.LoadAll()
	if err != nil {
		backing.Close()
		return nil, err
	}
	log.Info().Int("records", len(records)).Msg("record store loaded")
	return NewMemStore(records, backing), nil
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return unavailable("failed to create data directory", err)
		}
	}
	return nil
}
