package main

import (
	"context"
	"crypto/ed25519"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/storj-thirdparty/dataproxy/pkg/backend"
	"github.com/storj-thirdparty/dataproxy/pkg/backend/s3backend"
	"github.com/storj-thirdparty/dataproxy/pkg/cache"
	"github.com/storj-thirdparty/dataproxy/pkg/config"
	"github.com/storj-thirdparty/dataproxy/pkg/metrics"
	"github.com/storj-thirdparty/dataproxy/pkg/model"
	"github.com/storj-thirdparty/dataproxy/pkg/token"
)

// runtime bundles the collaborators every subcommand needs, built once
// from Config so serve and replicate-once don't duplicate wiring.
type runtime struct {
	cfg      config.Config
	log      *zap.Logger
	selfID   model.ID
	adapter  backend.Adapter
	cache    *cache.Memory
	tokens   *token.Engine
	registry *prometheus.Registry
	metrics  *metrics.Metrics
}

func buildRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	log, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	var selfID model.ID
	if cfg.SelfID != "" {
		selfID, err = model.ParseID(cfg.SelfID)
		if err != nil {
			return nil, err
		}
	}

	signingKey, serial, err := loadOrCreateSigningKey(cfg.SigningKeyPath)
	if err != nil {
		return nil, err
	}

	adapter, err := s3backend.New(ctx, cfg.S3Endpoint, cfg.S3Region)
	if err != nil {
		return nil, err
	}

	c := cache.New(log)
	c.UpsertPubKey(serial, signingKey.Public().(ed25519.PublicKey))
	tokens := token.New(c, selfID, signingKey, serial)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	return &runtime{
		cfg: cfg, log: log, selfID: selfID, adapter: adapter, cache: c, tokens: tokens,
		registry: reg, metrics: m,
	}, nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.LogDevMode {
		return zap.NewDevelopment()
	}
	zc := zap.NewProductionConfig()
	level, err := zap.ParseAtomicLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	zc.Level = level
	return zc.Build()
}
