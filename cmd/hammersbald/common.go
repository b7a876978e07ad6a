package main

import (
	"go.uber.org/zap"

	"github.com/hammersbald/hammersbald/internal/engine"
)

type loggerFunc func() (*zap.Logger, error)
type requireStoreFunc func() error

func openEngine(storePath, configPath string, requireStore requireStoreFunc, newLogger loggerFunc) (*engine.Engine, *zap.Logger, error) {
	if err := requireStore(); err != nil {
		return nil, nil, err
	}
	log, err := newLogger()
	if err != nil {
		return nil, nil, err
	}
	cfg := engine.DefaultConfig()
	if configPath != "" {
		cfg, err = engine.LoadConfigFile(configPath)
		if err != nil {
			log.Sync()
			return nil, nil, err
		}
	}
	e, err := engine.Open(storePath, cfg, log)
	if err != nil {
		log.Sync()
		return nil, nil, err
	}
	return e, log, nil
}
