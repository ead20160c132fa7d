// File path: internal/docstore/docstoretest/suite.go

// Package docstoretest holds the behavioural checks every docstore.Collection
// backend must pass.
package docstoretest

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicodishanthj/planbuilder/internal/docstore"
)

// Opener returns a fresh, empty collection for one subtest.
type Opener func(t *testing.T) docstore.Collection

// Run executes the collection contract against open.
func Run(t *testing.T, open Opener) {
	t.Run("InsertAndFindOne", func(t *testing.T) { testInsertAndFindOne(t, open(t)) })
	t.Run("FindOneMiss", func(t *testing.T) { testFindOneMiss(t, open(t)) })
	t.Run("FindRespectsLimit", func(t *testing.T) { testFindLimit(t, open(t)) })
	t.Run("UpdateOneModifies", func(t *testing.T) { testUpdateModifies(t, open(t)) })
	t.Run("UpdateOneNoop", func(t *testing.T) { testUpdateNoop(t, open(t)) })
	t.Run("UpdateOneMiss", func(t *testing.T) { testUpdateMiss(t, open(t)) })
	t.Run("DeleteOne", func(t *testing.T) { testDeleteOne(t, open(t)) })
	t.Run("DuplicateID", func(t *testing.T) { testDuplicateID(t, open(t)) })
	t.Run("Ping", func(t *testing.T) { require.NoError(t, open(t).Ping(context.Background())) })
}

func sampleDoc(id, planID string) docstore.Document {
	return docstore.Document{
		"id":      id,
		"plan_id": planID,
		"title":   "Plan " + planID,
		"risk_management": map[string]any{
			"rows":            []any{[]any{"Risk", "Owner"}, []any{"Late supplier", ""}},
			"non_empty_cells": map[string]any{"0,0": "Risk", "0,1": "Owner", "1,0": "Late supplier"},
		},
		"score": json.Number("42"),
	}
}

func testInsertAndFindOne(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	doc := sampleDoc("id-1", "AAAA0001")
	require.NoError(t, c.InsertOne(ctx, doc))

	found, err := c.FindOne(ctx, docstore.Eq("plan_id", "AAAA0001"))
	require.NoError(t, err)
	assert.Equal(t, "id-1", found["id"])
	assert.Equal(t, "Plan AAAA0001", found["title"])
	assert.True(t, docstore.ValuesEqual(doc["risk_management"], found["risk_management"]))
	assert.True(t, docstore.ValuesEqual(42, found["score"]))

	byID, err := c.FindOne(ctx, docstore.Eq("id", "id-1"))
	require.NoError(t, err)
	assert.Equal(t, "AAAA0001", byID["plan_id"])
}

func testFindOneMiss(t *testing.T, c docstore.Collection) {
	_, err := c.FindOne(context.Background(), docstore.Eq("plan_id", "MISSING1"))
	assert.ErrorIs(t, err, docstore.ErrNoDocuments)
}

func testFindLimit(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, c.InsertOne(ctx, sampleDoc(fmt.Sprintf("id-%d", i), fmt.Sprintf("BBBB000%d", i))))
	}
	all, err := c.Find(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	limited, err := c.Find(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, limited, 3)
}

func testUpdateModifies(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	require.NoError(t, c.InsertOne(ctx, sampleDoc("id-u", "CCCC0001")))

	res, err := c.UpdateOne(ctx, docstore.Eq("plan_id", "CCCC0001"), docstore.Document{
		"title":        "Renamed",
		"skill_matrix": map[string]any{"go": "expert"},
	})
	require.NoError(t, err)
	assert.Equal(t, docstore.UpdateResult{Matched: 1, Modified: 1}, res)

	found, err := c.FindOne(ctx, docstore.Eq("plan_id", "CCCC0001"))
	require.NoError(t, err)
	assert.Equal(t, "Renamed", found["title"])
	assert.Equal(t, map[string]any{"go": "expert"}, found["skill_matrix"])
	assert.True(t, docstore.ValuesEqual(sampleDoc("", "")["risk_management"], found["risk_management"]), "untouched fields survive")
}

func testUpdateNoop(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	require.NoError(t, c.InsertOne(ctx, sampleDoc("id-n", "DDDD0001")))

	res, err := c.UpdateOne(ctx, docstore.Eq("plan_id", "DDDD0001"), docstore.Document{"title": "Plan DDDD0001"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Matched)
	assert.Equal(t, int64(0), res.Modified)
}

func testUpdateMiss(t *testing.T, c docstore.Collection) {
	res, err := c.UpdateOne(context.Background(), docstore.Eq("plan_id", "EEEE0001"), docstore.Document{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, docstore.UpdateResult{}, res)
}

func testDeleteOne(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	require.NoError(t, c.InsertOne(ctx, sampleDoc("id-d1", "FFFF0001")))
	require.NoError(t, c.InsertOne(ctx, sampleDoc("id-d2", "FFFF0002")))

	deleted, err := c.DeleteOne(ctx, docstore.Eq("plan_id", "FFFF0001"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	deleted, err = c.DeleteOne(ctx, docstore.Eq("plan_id", "FFFF0001"))
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)

	_, err = c.FindOne(ctx, docstore.Eq("plan_id", "FFFF0001"))
	assert.ErrorIs(t, err, docstore.ErrNoDocuments)
	remaining, err := c.Find(ctx, 0)
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "FFFF0002", remaining[0]["plan_id"])
}

func testDuplicateID(t *testing.T, c docstore.Collection) {
	ctx := context.Background()
	require.NoError(t, c.InsertOne(ctx, sampleDoc("id-dup", "GGGG0001")))
	err := c.InsertOne(ctx, sampleDoc("id-dup", "GGGG0002"))
	assert.ErrorIs(t, err, docstore.ErrDuplicateKey)
}
