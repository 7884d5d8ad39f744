// Package session keeps collaboration sign-in tokens between runs
package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/redis/go-redis/v9"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/plantshare/pkg/config"
)

// 🎫 Token is a stored sign-in for one backend
type Token struct {
	Backend   string    `json:"backend"`
	User      string    `json:"user,omitempty"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// 🗃️ Store keeps tokens by backend name. Load returns nil, nil when the
// backend has no token.
type Store interface {
	Load(ctx context.Context, backend string) (*Token, error)
	Save(ctx context.Context, token *Token) error
	Delete(ctx context.Context, backend string) error
}

// New creates the store selected by cfg
func New(cfg config.SessionConfig) (Store, error) {
	switch cfg.Store {
	case "", "file":
		return NewFileStore(cfg.Dir), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		return NewRedisStore(client), nil
	default:
		return nil, errors.Errorf("unknown session store %q", cfg.Store)
	}
}

var backendName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

func checkBackend(backend string) error {
	if !backendName.MatchString(backend) {
		return errors.Errorf("invalid backend name %q", backend)
	}
	return nil
}

// 📁 FileStore keeps one JSON file per backend, readable only by the owner
type FileStore struct {
	dir string
}

// NewFileStore creates a file store rooted at dir
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (s *FileStore) path(backend string) string {
	return filepath.Join(s.dir, "session-"+backend+".json")
}

func (s *FileStore) Load(ctx context.Context, backend string) (*Token, error) {
	if err := checkBackend(backend); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(backend))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Errorf("reading session: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, errors.Errorf("parsing session: %w", err)
	}
	return &tok, nil
}

func (s *FileStore) Save(ctx context.Context, token *Token) error {
	if err := checkBackend(token.Backend); err != nil {
		return err
	}
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return errors.Errorf("creating session dir: %w", err)
	}
	data, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return errors.Errorf("marshaling session: %w", err)
	}
	if err := os.WriteFile(s.path(token.Backend), data, 0600); err != nil {
		return errors.Errorf("writing session: %w", err)
	}
	return nil
}

func (s *FileStore) Delete(ctx context.Context, backend string) error {
	if err := checkBackend(backend); err != nil {
		return err
	}
	if err := os.Remove(s.path(backend)); err != nil && !os.IsNotExist(err) {
		return errors.Errorf("removing session: %w", err)
	}
	return nil
}

// 🧱 RedisStore keeps tokens as JSON values under plantshare:session:<backend>
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a redis backed store
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "plantshare:session:"}
}

func (s *RedisStore) Load(ctx context.Context, backend string) (*Token, error) {
	if err := checkBackend(backend); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, s.prefix+backend).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, errors.Errorf("reading session from redis: %w", err)
	}
	var tok Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, errors.Errorf("parsing session: %w", err)
	}
	return &tok, nil
}

func (s *RedisStore) Save(ctx context.Context, token *Token) error {
	if err := checkBackend(token.Backend); err != nil {
		return err
	}
	data, err := json.Marshal(token)
	if err != nil {
		return errors.Errorf("marshaling session: %w", err)
	}
	if err := s.client.Set(ctx, s.prefix+token.Backend, data, 0).Err(); err != nil {
		return errors.Errorf("writing session to redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, backend string) error {
	if err := checkBackend(backend); err != nil {
		return err
	}
	if err := s.client.Del(ctx, s.prefix+backend).Err(); err != nil {
		return errors.Errorf("removing session from redis: %w", err)
	}
	return nil
}

// Close releases the redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}
