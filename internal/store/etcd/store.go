// Package etcd implements the store on etcd. The control record is a JSON
// value under a configurable key prefix; lock acquisition is a transaction
// guarded by the record's mod revision.
package etcd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/toolsascode/lockstep/internal/store"
)

// DefaultPrefix is the default key prefix of the store namespace
const DefaultPrefix = "/lockstep/"

// Config holds the etcd connection parameters
type Config struct {
	Endpoints   []string
	Username    string
	Password    string
	DialTimeout time.Duration
	Prefix      string
}

// Store implements store.Store for etcd
type Store struct {
	client *clientv3.Client
	prefix string
}

// controlDoc is the persisted layout of the control record
type controlDoc struct {
	Version  int64      `json:"version"`
	Locked   bool       `json:"locked"`
	LockedAt *time.Time `json:"lockedAt,omitempty"`
}

// New connects to etcd. An empty prefix selects DefaultPrefix.
func New(cfg Config) (*Store, error) {
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		Username:    cfg.Username,
		Password:    cfg.Password,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	return &Store{client: client, prefix: prefix}, nil
}

// controlKey returns the full key of the control record
func (s *Store) controlKey() string {
	return s.prefix + store.ControlKey
}

// Load reads the control record, creating it lazily
func (s *Store) Load(ctx context.Context) (store.Record, error) {
	doc, _, err := s.load(ctx)
	if err != nil {
		return store.Record{}, err
	}

	rec := store.Record{Version: doc.Version, Locked: doc.Locked}
	if doc.LockedAt != nil {
		rec.LockedAt = *doc.LockedAt
	}
	return rec, nil
}

// load reads the control record and its mod revision, creating the record
// when the key does not exist yet.
func (s *Store) load(ctx context.Context) (controlDoc, int64, error) {
	key := s.controlKey()

	resp, err := s.client.Get(ctx, key)
	if err != nil {
		return controlDoc{}, 0, fmt.Errorf("failed to read control record: %w", err)
	}

	if len(resp.Kvs) == 0 {
		initial, err := json.Marshal(controlDoc{Version: 0, Locked: false})
		if err != nil {
			return controlDoc{}, 0, fmt.Errorf("failed to encode control record: %w", err)
		}

		// Create only if still absent; a racing creator wins harmlessly.
		_, err = s.client.Txn(ctx).
			If(clientv3.Compare(clientv3.CreateRevision(key), "=", 0)).
			Then(clientv3.OpPut(key, string(initial))).
			Commit()
		if err != nil {
			return controlDoc{}, 0, fmt.Errorf("failed to create control record: %w", err)
		}

		if resp, err = s.client.Get(ctx, key); err != nil {
			return controlDoc{}, 0, fmt.Errorf("failed to read control record: %w", err)
		}
		if len(resp.Kvs) == 0 {
			return controlDoc{}, 0, fmt.Errorf("control record missing after create")
		}
	}

	var doc controlDoc
	if err := json.Unmarshal(resp.Kvs[0].Value, &doc); err != nil {
		return controlDoc{}, 0, fmt.Errorf("failed to decode control record: %w", err)
	}
	return doc, resp.Kvs[0].ModRevision, nil
}

// put writes the control record unconditionally
func (s *Store) put(ctx context.Context, doc controlDoc) error {
	value, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode control record: %w", err)
	}
	if _, err := s.client.Put(ctx, s.controlKey(), string(value)); err != nil {
		return fmt.Errorf("failed to write control record: %w", err)
	}
	return nil
}

// AcquireLock flips the lock inside a transaction guarded by the record's
// mod revision, so exactly one of any number of racing callers succeeds.
func (s *Store) AcquireLock(ctx context.Context, now time.Time, lease time.Duration) (bool, error) {
	doc, rev, err := s.load(ctx)
	if err != nil {
		return false, err
	}

	if doc.Locked {
		expired := lease > 0 && doc.LockedAt != nil && now.Sub(*doc.LockedAt) >= lease
		if !expired {
			return false, nil
		}
	}

	doc.Locked = true
	doc.LockedAt = &now
	value, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("failed to encode control record: %w", err)
	}

	txn, err := s.client.Txn(ctx).
		If(clientv3.Compare(clientv3.ModRevision(s.controlKey()), "=", rev)).
		Then(clientv3.OpPut(s.controlKey(), string(value))).
		Commit()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock: %w", err)
	}

	// A failed compare means someone else touched the record first; the
	// caller lost the race.
	return txn.Succeeded, nil
}

// SetVersion unconditionally updates the recorded version
func (s *Store) SetVersion(ctx context.Context, version int64) error {
	doc, _, err := s.load(ctx)
	if err != nil {
		return err
	}
	doc.Version = version
	return s.put(ctx, doc)
}

// Unlock unconditionally clears the lock flag
func (s *Store) Unlock(ctx context.Context) error {
	doc, _, err := s.load(ctx)
	if err != nil {
		return err
	}
	doc.Locked = false
	doc.LockedAt = nil
	return s.put(ctx, doc)
}

// Reset deletes every key under the store prefix
func (s *Store) Reset(ctx context.Context) error {
	if _, err := s.client.Delete(ctx, s.prefix, clientv3.WithPrefix()); err != nil {
		return fmt.Errorf("failed to reset namespace: %w", err)
	}
	return nil
}

// Exec runs a migration script, interpreted as a JSON list of put/delete
// operations applied under the store prefix.
func (s *Store) Exec(ctx context.Context, script string) error {
	var operations []map[string]interface{}
	if err := json.Unmarshal([]byte(script), &operations); err != nil {
		return fmt.Errorf("invalid etcd migration script: %w", err)
	}

	for _, op := range operations {
		opType, _ := op["operation"].(string)
		if opType == "" {
			opType = "put"
		}

		key, ok := op["key"].(string)
		if !ok || key == "" {
			return fmt.Errorf("missing key in operation")
		}
		fullKey := s.prefix + strings.TrimPrefix(key, "/")

		switch opType {
		case "put":
			value, ok := op["value"].(string)
			if !ok {
				obj, isObj := op["value"].(map[string]interface{})
				if !isObj {
					return fmt.Errorf("missing value in operation for key %s", key)
				}
				encoded, err := json.Marshal(obj)
				if err != nil {
					return fmt.Errorf("failed to encode value for key %s: %w", key, err)
				}
				value = string(encoded)
			}
			if _, err := s.client.Put(ctx, fullKey, value); err != nil {
				return fmt.Errorf("failed to put key %s: %w", key, err)
			}

		case "delete":
			if _, err := s.client.Delete(ctx, fullKey); err != nil {
				return fmt.Errorf("failed to delete key %s: %w", key, err)
			}

		default:
			return fmt.Errorf("unsupported operation type: %s", opType)
		}
	}
	return nil
}

// Ping verifies the backend is accessible
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := s.client.Get(ctx, s.controlKey()); err != nil {
		return fmt.Errorf("failed to communicate with etcd: %w", err)
	}
	return nil
}

// Close closes the etcd client
func (s *Store) Close() error {
	return s.client.Close()
}
