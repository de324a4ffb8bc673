// Package storefactory builds a live store handle from configuration.
// Establishing the handle happens once, here, before the engine is usable.
package storefactory

import (
	"context"
	"fmt"
	"strings"

	"github.com/toolsascode/lockstep/internal/config"
	"github.com/toolsascode/lockstep/internal/store"
	"github.com/toolsascode/lockstep/internal/store/etcd"
	"github.com/toolsascode/lockstep/internal/store/memory"
	"github.com/toolsascode/lockstep/internal/store/mongodb"
	"github.com/toolsascode/lockstep/internal/store/postgresql"
)

// NewStore creates a store based on the configuration
func NewStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	backend := strings.ToLower(cfg.Store.Backend)

	switch backend {
	case "postgresql":
		connString := cfg.Store.URI
		if connString == "" {
			connString = fmt.Sprintf(
				"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
				cfg.Store.Host,
				cfg.Store.Port,
				cfg.Store.Username,
				cfg.Store.Password,
				cfg.Store.Database,
			)
		}
		return postgresql.New(ctx, connString, cfg.Store.Namespace)

	case "mongodb":
		uri := cfg.Store.URI
		if uri == "" {
			if cfg.Store.Username != "" {
				uri = fmt.Sprintf("mongodb://%s:%s@%s:%s",
					cfg.Store.Username, cfg.Store.Password, cfg.Store.Host, cfg.Store.Port)
			} else {
				uri = fmt.Sprintf("mongodb://%s:%s", cfg.Store.Host, cfg.Store.Port)
			}
		}
		return mongodb.New(ctx, uri, cfg.Store.Database, cfg.Store.Namespace)

	case "etcd":
		endpoints := []string{fmt.Sprintf("%s:%s", cfg.Store.Host, cfg.Store.Port)}
		if cfg.Store.URI != "" {
			endpoints = strings.Split(cfg.Store.URI, ",")
			for i, ep := range endpoints {
				endpoints[i] = strings.TrimSpace(ep)
			}
		}
		return etcd.New(etcd.Config{
			Endpoints: endpoints,
			Username:  cfg.Store.Username,
			Password:  cfg.Store.Password,
			Prefix:    cfg.Store.Namespace,
		})

	case "memory":
		return memory.New(), nil

	default:
		return nil, fmt.Errorf("unsupported store backend: %s (supported: postgresql, mongodb, etcd, memory)", cfg.Store.Backend)
	}
}
