package app

import (
	"fmt"
	"log"
	"strings"

	sessioncache "uigen/internal/cache/session"
	"uigen/internal/gateway/config"
	bundlerepo "uigen/internal/gateway/repository/bundle"
	sessionrepo "uigen/internal/gateway/repository/session"
)

type gatewayStores struct {
	sessions *sessioncache.CachedStore
	bundles  bundlerepo.Store
}

func (s *gatewayStores) Close() error {
	if s == nil || s.sessions == nil {
		return nil
	}
	return s.sessions.Close()
}

func initStores(cfg *config.Config) (*gatewayStores, error) {
	origin, err := openSessionStore(cfg)
	if err != nil {
		return nil, err
	}
	bundles, err := chooseBundleStore(cfg)
	if err != nil {
		_ = origin.Close()
		return nil, err
	}
	cacheCfg := sessioncache.DefaultCacheConfig()
	if cfg.Cache.TTL > 0 {
		cacheCfg.TTL = cfg.Cache.TTL
	}
	if cfg.Cache.MaxEntries > 0 {
		cacheCfg.MaxEntries = cfg.Cache.MaxEntries
	}
	return &gatewayStores{
		sessions: sessioncache.NewCachedStore(origin, cacheCfg),
		bundles:  bundles,
	}, nil
}

func openSessionStore(cfg *config.Config) (sessionrepo.Store, error) {
	if dsn := strings.TrimSpace(cfg.DatabaseURL); dsn != "" {
		store, err := sessionrepo.OpenPostgres(dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres session store: %w", err)
		}
		log.Printf("session store: postgres")
		return store, nil
	}
	if path := strings.TrimSpace(cfg.SQLitePath); path != "" {
		store, err := sessionrepo.OpenSQLite(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite session store: %w", err)
		}
		log.Printf("session store: sqlite path=%s", path)
		return store, nil
	}
	log.Printf("session store: in-memory")
	return sessionrepo.NewMemoryStore(), nil
}

func chooseBundleStore(cfg *config.Config) (bundlerepo.Store, error) {
	if !cfg.Artifact.CanUseS3() {
		if cfg.Artifact.Enabled {
			log.Printf("bundle store: using in-memory fallback (s3 config incomplete)")
		}
		return bundlerepo.NewMemoryStore(), nil
	}
	s3Cfg := bundlerepo.S3Config{
		Endpoint:  cfg.Artifact.Endpoint,
		Region:    cfg.Artifact.Region,
		AccessKey: cfg.Artifact.AccessKey,
		SecretKey: cfg.Artifact.SecretKey,
		Bucket:    cfg.Artifact.Bucket,
		UseSSL:    cfg.Artifact.UseSSL,
	}
	store, err := bundlerepo.NewS3Store(s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize bundle s3 store: %w", err)
	}
	log.Printf("bundle store: s3 bucket=%s endpoint=%s", s3Cfg.Bucket, s3Cfg.Endpoint)
	return store, nil
}
