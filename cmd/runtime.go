package cmd

import (
	"errors"
	"fmt"

	"essync/core/config"
	"essync/core/logger"
	"essync/core/mirror"
	"essync/core/policy"
	"essync/core/source"
	"essync/core/storage"

	"go.uber.org/zap"
)

// runtime wires the components shared by the server and the CLI commands.
type runtime struct {
	cfg     *config.Config
	logger  *zap.Logger
	server  *source.Server
	storage storage.Client
	// plugin is nil when the search mirror is disabled.
	plugin *mirror.Plugin
}

func newRuntime() (*runtime, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	rt := &runtime{
		cfg:    cfg,
		logger: l,
		server: source.NewServer(cfg.Database, l),
	}

	if cfg.Storage.Enabled {
		client, err := storage.NewClient(cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to storage: %w", err)
		}
		rt.storage = client
	}

	if cfg.Search.Enabled {
		sinks := mirror.ElasticSinks(l)
		factory := mirror.NewFactory(rt.policyLoader(), sinks, cfg.Search.ElasticConfig())
		registry := mirror.NewRegistry(factory, l)
		batcher := mirror.NewBatcher(sinks, cfg.Search.BulkConfig(), l)
		rt.plugin = mirror.NewPlugin(registry, batcher, l)
		rt.server.AddLifecycleListener(rt.plugin)
	}
	return rt, nil
}

func (rt *runtime) policyLoader() policy.Loader {
	if rt.storage != nil {
		return policy.BucketLoader{Client: rt.storage, Bucket: rt.cfg.Storage.Bucket, FileName: rt.cfg.Search.ConfigFile}
	}
	return policy.FileLoader{Dir: rt.cfg.Search.ConfigDir, FileName: rt.cfg.Search.ConfigFile}
}

// registry returns the sink registry, or nil when the mirror is disabled.
func (rt *runtime) registry() *mirror.Registry {
	if rt.plugin == nil {
		return nil
	}
	return rt.plugin.Registry()
}

// requirePlugin fails commands that need the search mirror.
func (rt *runtime) requirePlugin() (*mirror.Plugin, error) {
	if rt.plugin == nil {
		return nil, errors.New("search mirror is disabled (SEARCH_ENABLED=false)")
	}
	return rt.plugin, nil
}

func (rt *runtime) Close() {
	if rt.plugin != nil {
		if err := rt.plugin.Shutdown(); err != nil {
			rt.logger.Warn("Failed to close search sinks", zap.Error(err))
		}
	}
	if err := rt.server.Close(); err != nil {
		rt.logger.Warn("Failed to close source databases", zap.Error(err))
	}
	_ = rt.logger.Sync()
}
