package quality

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"strings"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// DefaultNamespace prefixes all quality keys when none is configured.
const DefaultNamespace = "recall"

// LayerQuality is the JSON value the meta-quality collaborator publishes
// for one layer.
type LayerQuality struct {
	// Layer is the layer name the score applies to.
	Layer string `json:"layer"`

	// Score is the quality estimate in [0, 1].
	Score float64 `json:"score"`

	// Samples is the number of observations behind the estimate.
	Samples int `json:"samples,omitempty"`

	// UpdatedAt is when the collaborator last recomputed the score.
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// EtcdConfig configures the connection to the etcd cluster holding
// published quality scores.
type EtcdConfig struct {
	// Endpoints lists etcd cluster endpoints (host:port).
	Endpoints []string

	// Namespace prefixes all keys; defaults to DefaultNamespace.
	// Keys follow the schema <namespace>/quality/<layer>.
	Namespace string

	// DialTimeout is the maximum time to wait for the initial connection.
	// Defaults to 5s.
	DialTimeout time.Duration
}

// EtcdStore is a Source backed by etcd. It performs an initial load of all
// published scores and then watches the quality prefix, so Scores reads are
// served from a local snapshot and never touch the network.
//
// The store must be closed with Close to stop the watch goroutine and
// release the client connection.
//
// Thread-safety: all methods are safe for concurrent use.
type EtcdStore struct {
	client    *clientv3.Client
	namespace string

	mu     sync.RWMutex
	scores Scores

	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
}

// NewEtcdStore connects to etcd, loads the currently published scores, and
// starts watching for updates.
func NewEtcdStore(cfg EtcdConfig) (*EtcdStore, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("quality: etcd endpoints cannot be empty")
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("quality: failed to create etcd client: %w", err)
	}

	s := &EtcdStore{
		client:    cli,
		namespace: namespace,
		scores:    make(Scores),
	}

	loadCtx, loadCancel := context.WithTimeout(context.Background(), dialTimeout)
	defer loadCancel()
	if err := s.load(loadCtx); err != nil {
		cli.Close()
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.wg.Add(1)
	go s.watch(watchCtx)

	return s, nil
}

// NewEtcdStoreFromEnv creates a store using the RECALL_QUALITY_ENDPOINTS
// environment variable, a comma-separated list of etcd endpoints.
//
// If the variable is not set this returns (nil, nil): the engine works
// without live quality signals, falling back to Estimate. This is not an
// error.
func NewEtcdStoreFromEnv() (*EtcdStore, error) {
	endpoints := os.Getenv("RECALL_QUALITY_ENDPOINTS")
	if endpoints == "" {
		return nil, nil
	}

	list := strings.Split(endpoints, ",")
	for i, ep := range list {
		list[i] = strings.TrimSpace(ep)
	}

	return NewEtcdStore(EtcdConfig{Endpoints: list})
}

// Scores implements Source. It returns a copy of the watch-maintained
// snapshot; the context is unused because no I/O occurs.
func (s *EtcdStore) Scores(context.Context) (Scores, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.scores) == 0 {
		return nil, nil
	}
	return s.scores.Clone(), nil
}

// Close stops the watch goroutine and closes the etcd client.
// Close is idempotent.
func (s *EtcdStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	return s.client.Close()
}

// prefix returns the key prefix holding quality entries.
func (s *EtcdStore) prefix() string {
	return path.Join(s.namespace, "quality") + "/"
}

// load fetches all currently published scores into the local snapshot.
func (s *EtcdStore) load(ctx context.Context) error {
	resp, err := s.client.Get(ctx, s.prefix(), clientv3.WithPrefix())
	if err != nil {
		return fmt.Errorf("quality: initial score load failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, kv := range resp.Kvs {
		s.apply(string(kv.Key), kv.Value)
	}
	return nil
}

// watch applies published score changes to the local snapshot until the
// context is cancelled.
func (s *EtcdStore) watch(ctx context.Context) {
	defer s.wg.Done()

	ch := s.client.Watch(ctx, s.prefix(), clientv3.WithPrefix())
	for resp := range ch {
		if resp.Err() != nil {
			// The client retries transient errors internally; a
			// closed channel ends the loop below.
			continue
		}
		s.mu.Lock()
		for _, ev := range resp.Events {
			switch ev.Type {
			case clientv3.EventTypePut:
				s.apply(string(ev.Kv.Key), ev.Kv.Value)
			case clientv3.EventTypeDelete:
				delete(s.scores, s.layerFromKey(string(ev.Kv.Key)))
			}
		}
		s.mu.Unlock()
	}
}

// apply parses one published value into the snapshot. Callers hold s.mu.
// Malformed or out-of-range values are ignored: a bad publish must not
// poison layer selection.
func (s *EtcdStore) apply(key string, value []byte) {
	var lq LayerQuality
	if err := json.Unmarshal(value, &lq); err != nil {
		return
	}
	name := lq.Layer
	if name == "" {
		name = s.layerFromKey(key)
	}
	if name == "" || lq.Score < 0 || lq.Score > 1 {
		return
	}
	s.scores[name] = lq.Score
}

// layerFromKey extracts the layer name from <namespace>/quality/<layer>.
func (s *EtcdStore) layerFromKey(key string) string {
	return strings.TrimPrefix(key, s.prefix())
}
