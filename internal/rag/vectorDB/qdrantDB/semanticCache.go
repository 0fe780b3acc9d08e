package qdrantDB

import (
	"context"
	"encoding/json"
	"time"

	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/internal/rag/vectorDB"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Cache adapts the semantic-cache collection to vectorDB.AnswerCache.
type Cache struct {
	db *ClientHolder
}

func (db *ClientHolder) AnswerCache(ctx context.Context) (*Cache, error) {
	if err := createCollection(ctx, db.QObj, db.cacheName, db.dimension); err != nil {
		logger.ForContext(ctx).Error("Semantic cache collection creation failed", "error", err)
		return nil, errorModel.Storage("ensure cache collection", err)
	}
	return &Cache{db: db}, nil
}

func (c *Cache) Lookup(ctx context.Context, queryVector []float32) (vectorDB.CachedAnswer, bool, error) {
	loggr := logger.ForContext(ctx)

	searchResult, err := c.db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.db.cacheName,
		Query:          qdrant.NewQuery(queryVector...),
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		loggr.Error("Cache Query failed", "error", err)
		return vectorDB.CachedAnswer{}, false, errorModel.Storage("cache lookup", err)
	}
	if len(searchResult) == 0 || searchResult[0].Score < c.db.cutoff {
		return vectorDB.CachedAnswer{}, false, nil
	}

	var cached vectorDB.CachedAnswer
	if err := json.Unmarshal([]byte(searchResult[0].Payload["entry"].GetStringValue()), &cached); err != nil {
		loggr.Warn("Discarding unreadable cache entry", "error", err)
		return vectorDB.CachedAnswer{}, false, nil
	}
	cached.Score = searchResult[0].Score
	loggr.Debug("cache hit", "score", cached.Score)
	return cached, true, nil
}

func (c *Cache) Save(ctx context.Context, vector []float32, answer vectorDB.CachedAnswer) error {
	if answer.SavedAt.IsZero() {
		answer.SavedAt = time.Now().UTC()
	}
	entry, err := json.Marshal(answer)
	if err != nil {
		return err
	}

	_, err = c.db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: c.db.cacheName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewID(uuid.NewString()),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(map[string]any{
					"entry":     string(entry),
					"timestamp": answer.SavedAt.Unix(),
				}),
			},
		},
	})
	if err != nil {
		logger.ForContext(ctx).Error("Saving answer to cache failed", "error", err)
		return errorModel.Storage("cache save", err)
	}
	return nil
}

// Invalidate drops every cached answer by recreating the collection.
func (c *Cache) Invalidate(ctx context.Context) error {
	exists, err := c.db.QObj.CollectionExists(ctx, c.db.cacheName)
	if err != nil {
		return errorModel.Storage("cache invalidate", err)
	}
	if exists {
		if err := c.db.QObj.DeleteCollection(ctx, c.db.cacheName); err != nil {
			return errorModel.Storage("cache invalidate", err)
		}
	}
	if err := createCollection(ctx, c.db.QObj, c.db.cacheName, c.db.dimension); err != nil {
		return errorModel.Storage("cache invalidate", err)
	}
	logger.ForContext(ctx).Info("answer cache invalidated")
	return nil
}
