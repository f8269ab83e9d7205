// Package refdata loads the read-only reference data one analysis run needs:
// the code→cost mappings corpus and the fallback archetype corpus. Pure data
// access, no external calls; a Store is immutable after Load.
package refdata

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/clearbill/billscan/internal/model"
)

// genericArchetype is the in-memory fallback used when no corpus file exists.
// The pipeline must always have at least one archetype to synthesize from.
var genericArchetype = model.FallbackArchetype{
	ServiceType:  "generic",
	Units:        1,
	BilledAmount: 500,
	TypicalCost:  model.TypicalCost{Min: 200, Median: 350, Max: 600},
}

// fallbackFile is the on-disk shape of the archetype corpus.
type fallbackFile struct {
	FallbackResponses []model.FallbackArchetype `json:"fallbackResponses"`
}

// Store holds the reference cost table and fallback corpus for a run.
type Store struct {
	mappings   string
	archetypes []model.FallbackArchetype
}

// Load reads the mappings corpus and fallback archetype corpus from disk.
// A missing or unreadable mappings file is fatal; a missing, unreadable, or
// empty fallback corpus degrades to a single generic archetype.
func Load(mappingsPath, fallbackPath string) (*Store, error) {
	raw, err := os.ReadFile(mappingsPath)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read mappings")
	}
	if len(raw) == 0 {
		return nil, eris.New("refdata: mappings file is empty")
	}

	s := &Store{
		mappings:   string(raw),
		archetypes: loadArchetypes(fallbackPath),
	}

	zap.L().Info("refdata: loaded",
		zap.Int("mappings_bytes", len(s.mappings)),
		zap.Int("archetypes", len(s.archetypes)),
	)
	return s, nil
}

// loadArchetypes reads the fallback corpus, dropping records with an
// unordered cost range or a non-positive billed amount. Any failure yields
// the generic archetype instead of an error.
func loadArchetypes(path string) []model.FallbackArchetype {
	raw, err := os.ReadFile(path)
	if err != nil {
		zap.L().Warn("refdata: fallback corpus unavailable, using generic archetype",
			zap.String("path", path),
			zap.Error(err),
		)
		return []model.FallbackArchetype{genericArchetype}
	}

	var f fallbackFile
	if err := json.Unmarshal(raw, &f); err != nil {
		zap.L().Warn("refdata: fallback corpus malformed, using generic archetype",
			zap.String("path", path),
			zap.Error(err),
		)
		return []model.FallbackArchetype{genericArchetype}
	}

	valid := make([]model.FallbackArchetype, 0, len(f.FallbackResponses))
	for _, a := range f.FallbackResponses {
		if !a.TypicalCost.Valid() || a.BilledAmount <= 0 {
			zap.L().Warn("refdata: skipping invalid archetype", zap.String("service_type", a.ServiceType))
			continue
		}
		valid = append(valid, a)
	}
	if len(valid) == 0 {
		return []model.FallbackArchetype{genericArchetype}
	}
	return valid
}

// Mappings returns the reference cost table as opaque text for prompt
// injection. The pipeline never parses it.
func (s *Store) Mappings() string {
	return s.mappings
}

// Archetypes returns the fallback corpus. Never empty.
func (s *Store) Archetypes() []model.FallbackArchetype {
	return s.archetypes
}
