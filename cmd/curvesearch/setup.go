package main

import (
	"log/slog"
	"os"

	"curveindex/pkg/common"
	"curveindex/pkg/config"
	"curveindex/pkg/core/learned"
	"curveindex/pkg/datagen"
	"curveindex/pkg/logging"
	"curveindex/pkg/model"
	"curveindex/pkg/storage"

	"github.com/pkg/errors"
)

type env struct {
	cfg    *config.Config
	logger *slog.Logger
}

func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if storePath != "" {
		cfg.Data.StorePath = storePath
	}
	logger, err := logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: logger}, nil
}

func (e *env) generate() ([]common.KeyType, error) {
	d := e.cfg.Data
	gen, err := datagen.New(datagen.Params{
		Distribution: d.Distribution,
		Mean:         d.Mean,
		SD:           d.SD,
		Low:          d.Low,
		High:         d.High,
	}, datagen.NewRand(d.Seed))
	if err != nil {
		return nil, err
	}
	return gen.Generate(d.Count), nil
}

// loadKeys reads the configured key store, or generates keys when no store
// is configured or it is empty.
func (e *env) loadKeys() ([]common.KeyType, error) {
	if e.cfg.Data.StorePath != "" {
		ks, err := storage.OpenKeyStore(e.cfg.Data.StorePath)
		if err != nil {
			return nil, err
		}
		defer ks.Close()
		keys, err := ks.LoadAll()
		if err != nil {
			return nil, err
		}
		if len(keys) > 0 {
			e.logger.Info("loaded keys", "store", e.cfg.Data.StorePath, "count", len(keys))
			return keys, nil
		}
		e.logger.Warn("key store is empty, generating keys", "store", e.cfg.Data.StorePath)
	}
	keys, err := e.generate()
	if err != nil {
		return nil, err
	}
	e.logger.Info("generated keys", "distribution", e.cfg.Data.Distribution, "count", len(keys), "seed", e.cfg.Data.Seed)
	return keys, nil
}

func (e *env) buildIndex(keys []common.KeyType) (*learned.Index, error) {
	m := e.cfg.Model
	fitter, err := model.NewFitter(m.Family, m.Degree, m.Fanout)
	if err != nil {
		return nil, err
	}
	opts := []learned.Option{
		learned.WithWorkers(e.cfg.Build.Workers),
		learned.WithLogger(e.logger),
	}
	if e.cfg.Build.BloomFilter {
		opts = append(opts, learned.WithBloomFilter(e.cfg.Build.BloomFalseProb))
	}
	idx, err := learned.New(keys, fitter, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "build learned index")
	}
	return idx, nil
}
