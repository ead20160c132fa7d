// File path: internal/mongostore/store_test.go
package mongostore

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/nicodishanthj/planbuilder/internal/docstore"
	"github.com/nicodishanthj/planbuilder/internal/docstore/docstoretest"
)

func TestToBSONConvertsNumbers(t *testing.T) {
	doc := toBSON(docstore.Document{
		"count": json.Number("3"),
		"ratio": json.Number("0.5"),
		"section": map[string]any{
			"rows": []any{[]any{"a", json.Number("7")}},
		},
	})
	assert.Equal(t, int64(3), doc["count"])
	assert.Equal(t, 0.5, doc["ratio"])
	section := doc["section"].(bson.M)
	rows := section["rows"].(bson.A)
	assert.Equal(t, bson.A{"a", int64(7)}, rows[0])
}

func TestFromBSONNormalizesDriverTypes(t *testing.T) {
	stamp := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	doc := fromBSON(bson.M{
		"_id":     primitive.NewObjectID(),
		"id":      "abc",
		"count":   int32(4),
		"big":     int64(1 << 40),
		"ratio":   0.25,
		"stamp":   primitive.NewDateTimeFromTime(stamp),
		"nested":  bson.D{{Key: "cells", Value: bson.A{"x", int32(1)}}},
		"section": bson.M{"error": "boom"},
	})
	_, hasObjectID := doc["_id"]
	assert.False(t, hasObjectID)
	assert.Equal(t, "abc", doc["id"])
	assert.Equal(t, json.Number("4"), doc["count"])
	assert.Equal(t, json.Number("1099511627776"), doc["big"])
	assert.Equal(t, json.Number("0.25"), doc["ratio"])
	assert.Equal(t, "2024-03-01T12:00:00Z", doc["stamp"])
	assert.Equal(t, map[string]any{"cells": []any{"x", json.Number("1")}}, doc["nested"])
	assert.Equal(t, map[string]any{"error": "boom"}, doc["section"])
}

func TestFilterDocRejectsOperators(t *testing.T) {
	_, err := filterDoc(docstore.Eq("$where", "1"))
	assert.Error(t, err)

	query, err := filterDoc(docstore.Eq("plan_id", "ABCD1234"))
	require.NoError(t, err)
	assert.Equal(t, bson.M{"plan_id": "ABCD1234"}, query)
}

func TestLoadConfig(t *testing.T) {
	file := filepath.Join(t.TempDir(), "mongo.yaml")
	require.NoError(t, os.WriteFile(file, []byte("url: mongodb://file:27017\ndatabase: fromfile\nconnect_timeout: 3s\n"), 0o644))
	t.Setenv("MONGO_CONFIG_FILE", file)
	t.Setenv("MONGO_URL", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("MONGO_CONNECT_TIMEOUT", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://file:27017", cfg.URL)
	assert.Equal(t, "fromfile", cfg.Database)
	assert.Equal(t, 3*time.Second, cfg.ConnectTimeout)

	t.Setenv("MONGO_URL", "mongodb://env:27017")
	t.Setenv("DB_NAME", "fromenv")
	t.Setenv("MONGO_CONNECT_TIMEOUT", "1s")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://env:27017", cfg.URL)
	assert.Equal(t, "fromenv", cfg.Database)
	assert.Equal(t, time.Second, cfg.ConnectTimeout)

	t.Setenv("MONGO_CONNECT_TIMEOUT", "soon")
	_, err = LoadConfig()
	assert.Error(t, err)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("MONGO_CONFIG_FILE", "")
	t.Setenv("MONGO_URL", "")
	t.Setenv("DB_NAME", "")
	t.Setenv("MONGO_CONNECT_TIMEOUT", "")
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultDatabase, cfg.Database)
	assert.Equal(t, 10*time.Second, cfg.ConnectTimeout)
	assert.Empty(t, cfg.URL)
}

func TestConnectRequiresURL(t *testing.T) {
	_, err := Connect(context.Background(), Config{})
	assert.Error(t, err)
}

// TestCollectionContract runs against a live deployment when MONGO_TEST_URL
// is set.
func TestCollectionContract(t *testing.T) {
	url := strings.TrimSpace(os.Getenv("MONGO_TEST_URL"))
	if url == "" {
		t.Skip("MONGO_TEST_URL not set")
	}
	ctx := context.Background()
	store, err := Connect(ctx, Config{URL: url, Database: "planbuilder_test", ConnectTimeout: 5 * time.Second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	docstoretest.Run(t, func(t *testing.T) docstore.Collection {
		name := fmt.Sprintf("plans_%s", strings.ReplaceAll(uuid.NewString(), "-", ""))
		require.NoError(t, store.EnsureIndexes(ctx, name))
		t.Cleanup(func() { _ = store.database.Collection(name).Drop(context.Background()) })
		return store.Collection(name)
	})
}
