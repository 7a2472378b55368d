package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
)

// Source delivers the raw schema documents loaded at startup.
type Source interface {
	Documents(ctx context.Context) ([]Document, error)
}

// DirSource reads one document per file; the entity name is the file's base name.
type DirSource struct {
	Dir string
}

var extFormats = map[string]string{
	".json": FormatJSON,
	".yml":  FormatYAML,
	".yaml": FormatYAML,
}

func (s DirSource) Documents(ctx context.Context) ([]Document, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read schemas dir: %w", err)
	}
	var docs []Document
	seen := map[string]string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		format, ok := extFormats[ext]
		if !ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(s.Dir, e.Name())
		entity := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if prev, dup := seen[entity]; dup {
			return nil, fmt.Errorf("entity %q defined twice: %s and %s", entity, prev, path)
		}
		seen[entity] = path

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, Document{Entity: entity, Format: format, Data: data, Origin: path})
	}
	return docs, nil
}

// RedisSource reads documents from a hash: field = entity, value = document.
type RedisSource struct {
	Client *redis.Client
	Key    string
}

func (s RedisSource) Documents(ctx context.Context) ([]Document, error) {
	fields, err := s.Client.HGetAll(ctx, s.Key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis HGETALL %s: %w", s.Key, err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("redis hash %s holds no schemas", s.Key)
	}
	entities := make([]string, 0, len(fields))
	for entity := range fields {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	docs := make([]Document, 0, len(entities))
	for _, entity := range entities {
		data := []byte(fields[entity])
		docs = append(docs, Document{
			Entity: entity,
			Format: sniffFormat(data),
			Data:   data,
			Origin: s.Key + "#" + entity,
		})
	}
	return docs, nil
}

// Publish stores docs into the hash read by RedisSource.
func Publish(ctx context.Context, client *redis.Client, key string, docs []Document) error {
	if len(docs) == 0 {
		return nil
	}
	values := make(map[string]any, len(docs))
	for _, d := range docs {
		values[d.Entity] = string(d.Data)
	}
	if err := client.HSet(ctx, key, values).Err(); err != nil {
		return fmt.Errorf("redis HSET %s: %w", key, err)
	}
	return nil
}

func sniffFormat(data []byte) string {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		return FormatJSON
	}
	return FormatYAML
}
