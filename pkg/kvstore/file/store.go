// Package file implements an override store loaded from a TOML table.
package file

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	"github.com/inbucket/mailroute/pkg/config"
	"github.com/inbucket/mailroute/pkg/kvstore"
	"github.com/inbucket/mailroute/pkg/kvstore/mem"
	"github.com/rs/zerolog/log"
)

// New loads the TOML table at cfg.Path into a read-only store.  Keys may need quoting in TOML,
// for example:
//
//	"@DESTINATION" = "me@example.com"
//	user1 = "user1@example.com;: Invalid recipient"
func New(cfg config.Store) (kvstore.Store, error) {
	values := make(map[string]string)
	if _, err := toml.DecodeFile(cfg.Path, &values); err != nil {
		return nil, fmt.Errorf("failed to load override table %q: %w", cfg.Path, err)
	}
	log.Info().Str("module", "kvstore").Str("path", cfg.Path).Int("keys", len(values)).
		Msg("Loaded override table")
	return mem.NewStore(values), nil
}

// Decode reads a TOML override table from r.
func Decode(r io.Reader) (*mem.Store, error) {
	values := make(map[string]string)
	if _, err := toml.NewDecoder(r).Decode(&values); err != nil {
		return nil, err
	}
	return mem.NewStore(values), nil
}
