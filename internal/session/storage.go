package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/billy-enrizky/matchmaking-drugs-v2/internal/repository"
)

// StorageKey задаёт ключ долговременного хранилища состояния аутентификации.
const StorageKey = "auth-storage"

// KeyFor возвращает ключ хранилища для отдельного клиента.
func KeyFor(clientID string) string {
	return StorageKey + ":" + clientID
}

// Storage описывает долговременное хранилище сериализованного состояния сессии.
// Load возвращает nil без ошибки, если ключ отсутствует.
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
}

// FileStorage хранит каждый ключ в отдельном JSON-файле каталога.
type FileStorage struct {
	dir string
}

// NewFileStorage создаёт файловое хранилище в каталоге dir.
func NewFileStorage(dir string) (*FileStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: create session directory: %v", repository.ErrStorageUnavailable, err)
	}
	return &FileStorage{dir: dir}, nil
}

func (s *FileStorage) path(key string) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, key)
	return filepath.Join(s.dir, name+".json")
}

// Load читает значение ключа.
func (s *FileStorage) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(s.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read %s: %v", repository.ErrStorageUnavailable, key, err)
	}
	return data, nil
}

// Save атомарно записывает значение ключа через временный файл.
func (s *FileStorage) Save(_ context.Context, key string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".session-*")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", repository.ErrStorageUnavailable, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write %s: %v", repository.ErrStorageUnavailable, key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %v", repository.ErrStorageUnavailable, key, err)
	}

	if err := os.Rename(tmp.Name(), s.path(key)); err != nil {
		return fmt.Errorf("%w: rename %s: %v", repository.ErrStorageUnavailable, key, err)
	}
	return nil
}

// Delete удаляет значение ключа.
func (s *FileStorage) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: delete %s: %v", repository.ErrStorageUnavailable, key, err)
	}
	return nil
}

// RedisStorage хранит состояние сессий в Redis.
type RedisStorage struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStorage создаёт хранилище поверх клиента Redis. Нулевой ttl означает хранение без срока.
func NewRedisStorage(client *redis.Client, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

// Load читает значение ключа.
func (s *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: redis get %s: %v", repository.ErrStorageUnavailable, key, err)
	}
	return data, nil
}

// Save записывает значение ключа и продлевает срок его хранения.
func (s *RedisStorage) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, key, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set %s: %v", repository.ErrStorageUnavailable, key, err)
	}
	return nil
}

// Delete удаляет значение ключа.
func (s *RedisStorage) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: redis del %s: %v", repository.ErrStorageUnavailable, key, err)
	}
	return nil
}
