package schema

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

func registryFixture() *Registry {
	return NewRegistry(EntitySchema{
		Entity:     "products",
		Table:      "products",
		PrimaryKey: "id",
		Fields: map[string]FieldSchema{
			"name":       {Name: "name", Types: []string{"string"}},
			"country_id": {Name: "country_id", Types: []string{"integer"}, Relation: &Relation{Attribute: "country", Key: "id", ForeignKey: true}},
		},
	})
}

func TestRegistryGetReturnsDeepCopy(t *testing.T) {
	r := registryFixture()

	first, err := r.Get("products")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	first.Fields["name"].Types[0] = "integer"
	first.Fields["country_id"].Relation.Attribute = "mutated"
	delete(first.Fields, "name")
	first.Table = "mutated"

	second, err := r.Get("products")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if second.Table != "products" {
		t.Fatalf("table leaked: %q", second.Table)
	}
	name, ok := second.Field("name")
	if !ok || name.Types[0] != "string" {
		t.Fatalf("field leaked: %+v", name)
	}
	if second.Fields["country_id"].Relation.Attribute != "country" {
		t.Fatalf("relation leaked: %+v", second.Fields["country_id"].Relation)
	}
}

func TestRegistryUnknownEntity(t *testing.T) {
	_, err := registryFixture().Get("orders")
	if !errors.Is(err, ErrUnknownEntity) {
		t.Fatalf("expected ErrUnknownEntity, got %v", err)
	}
}

func TestRegistryConcurrentReaders(t *testing.T) {
	r := registryFixture()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := r.Get("products")
			if err != nil {
				t.Errorf("Get: %v", err)
				return
			}
			s.Fields["extra"] = FieldSchema{Name: "extra"}
		}()
	}
	wg.Wait()
	s, _ := r.Get("products")
	if _, ok := s.Field("extra"); ok {
		t.Fatal("concurrent reader mutated the shared schema")
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	write("products.json", productsJSON)
	write("users.yml", "properties:\n  name:\n    type: string\n")
	write("README.md", "ignored")

	r, err := Load(context.Background(), DirSource{Dir: dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff([]string{"products", "users"}, r.Names()); diff != "" {
		t.Fatalf("names (-want +got):\n%s", diff)
	}
}

func TestLoadFromDirRejectsDuplicates(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "users.yml"), []byte("properties: {}\n"), 0o644)
	_ = os.WriteFile(filepath.Join(dir, "users.json"), []byte(`{"properties": {}}`), 0o644)
	if _, err := Load(context.Background(), DirSource{Dir: dir}); err == nil {
		t.Fatal("expected duplicate entity error")
	}
}

func TestLoadFromDirFailsFastOnInvalidDocument(t *testing.T) {
	dir := t.TempDir()
	_ = os.WriteFile(filepath.Join(dir, "broken.json"), []byte(`{"properties": {"a": {"type": "money"}}}`), 0o644)
	if _, err := Load(context.Background(), DirSource{Dir: dir}); err == nil {
		t.Fatal("expected load to fail")
	}
}

func TestRedisSourceRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	docs := []Document{
		{Entity: "products", Data: []byte(productsJSON)},
		{Entity: "users", Data: []byte("properties:\n  name:\n    type: string\n")},
	}
	if err := Publish(ctx, client, "backoffice:schemas", docs); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	r, err := Load(ctx, RedisSource{Client: client, Key: "backoffice:schemas"})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	users, err := r.Get("users")
	if err != nil {
		t.Fatalf("Get users: %v", err)
	}
	if _, ok := users.Field("name"); !ok {
		t.Fatalf("users schema from YAML hash value lost its fields: %+v", users)
	}
	if _, err := r.Get("products"); err != nil {
		t.Fatalf("Get products: %v", err)
	}
}

func TestRedisSourceEmptyHash(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	if _, err := Load(context.Background(), RedisSource{Client: client, Key: "missing"}); err == nil {
		t.Fatal("expected error for empty hash")
	}
}
