// Package tokenstore persists the authentication token between runs.
package tokenstore

import (
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/songbox/internal/app/auth"
)

// Store is a token store that may hold resources.
type Store interface {
	auth.TokenStore
	Close() error
}

// New creates a token store of the given type from its settings.
func New(storeType string, settings map[string]any) (Store, error) {
	zlog.Debug().Msgf("creating token store: type=%s settings=%+v", storeType, settings)
	switch storeType {
	case "yaml", "":
		var cfg FileConfig
		if err := decode(settings, &cfg); err != nil {
			return nil, err
		}
		return NewFileStore(cfg.Path), nil
	case "bolt":
		var cfg BoltConfig
		if err := decode(settings, &cfg); err != nil {
			return nil, err
		}
		return OpenBoltStore(cfg.Path)
	default:
		return nil, errors.Newf("unsupported token store type: %s", storeType)
	}
}

func decode(settings map[string]any, out any) error {
	if err := mapstructure.Decode(settings, out); err != nil {
		return errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
