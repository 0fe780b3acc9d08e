package qdrantDB

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/akolanti/ComplianceGPT/internal/config"
	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/akolanti/ComplianceGPT/internal/domain/errorModel"
	"github.com/akolanti/ComplianceGPT/pkg/logger_i"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	fieldDocumentID   = "document_id"
	fieldDocumentHash = "document_hash"
	fieldChunkIndex   = "chunk_index"
	fieldPage         = "page"
	fieldText         = "text"
	fieldContentHash  = "content_hash"
	fieldSource       = "source"
	fieldSourceURL    = "source_url"
	fieldCategory     = "category"
	fieldLive         = "live"
	fieldStage        = "stage"

	upsertBatch = 128
)

var chunkNamespace = uuid.MustParse("6f1c2a0e-4d8b-5e7a-9c3f-1b2d4e6f8a90")

var logger *logger_i.Logger
var qdrantInstance *qdrant.Client
var initErr error
var once sync.Once

type ClientHolder struct {
	QObj       *qdrant.Client
	collection string
	cacheName  string
	dimension  uint64
	cutoff     float32
}

// GetQdrantClient connects once and closes the connection when ctx ends.
func GetQdrantClient(ctx context.Context, settings config.VectorSettings, dimension int) (*ClientHolder, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("Qdrant")
		qdrantInstance, initErr = newClient(settings)
		if initErr == nil {
			go closeQdrant(ctx, qdrantInstance)
		}
	})

	if qdrantInstance == nil {
		return nil, errorModel.Storage("connect", initErr)
	}
	return newHolder(qdrantInstance, settings, dimension), nil
}

func newHolder(client *qdrant.Client, settings config.VectorSettings, dimension int) *ClientHolder {
	collection := settings.Collection
	if collection == "" {
		collection = config.CollectionName
	}
	cacheName := settings.CacheName
	if cacheName == "" {
		cacheName = config.SemanticCacheName
	}
	return &ClientHolder{
		QObj:       client,
		collection: collection,
		cacheName:  cacheName,
		dimension:  uint64(dimension),
		cutoff:     config.CacheSimilarityCutoff,
	}
}

func newClient(settings config.VectorSettings) (*qdrant.Client, error) {
	host := settings.QdrantHost
	port := settings.QdrantPort
	if host == "" || port == 0 {
		host = config.QdrantHost
		port = config.QdrantGrpcPort
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:     host,
		Port:     port,
		APIKey:   settings.QdrantAPIKey,
		UseTLS:   settings.QdrantTLS,
		PoolSize: uint(config.QdrantPoolSize),
	})
	if err != nil {
		logger.Error("could not instantiate", "error", err)
		return nil, err
	}
	logger.Info("Qdrant client created", "host", host, "port", port)
	return client, nil
}

func closeQdrant(ctx context.Context, qi *qdrant.Client) {
	<-ctx.Done()
	logger.Info("Shutting down Qdrant")
	if err := qi.Close(); err != nil {
		logger.Error("could not close Qdrant", "error", err)
	}
	logger.Info("Closed Qdrant")
}

// SetCacheCutoff overrides the similarity a cached answer needs to be served.
func (db *ClientHolder) SetCacheCutoff(cutoff float32) {
	if cutoff > 0 {
		db.cutoff = cutoff
	}
}

func (db *ClientHolder) EnsureCollection(ctx context.Context) error {
	if err := createCollection(ctx, db.QObj, db.collection, db.dimension); err != nil {
		return errorModel.Storage("ensure collection", err)
	}
	indexes := []struct {
		field string
		kind  qdrant.FieldType
	}{
		{fieldDocumentID, qdrant.FieldType_FieldTypeKeyword},
		{fieldDocumentHash, qdrant.FieldType_FieldTypeKeyword},
		{fieldLive, qdrant.FieldType_FieldTypeBool},
		{fieldStage, qdrant.FieldType_FieldTypeKeyword},
	}
	for _, idx := range indexes {
		_, err := db.QObj.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: db.collection,
			FieldName:      idx.field,
			FieldType:      qdrant.PtrOf(idx.kind),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return errorModel.Storage("create index "+idx.field, err)
		}
	}
	return nil
}

// Upsert writes chunks as visible points. Point ids are derived from
// (document, version, index) so rewriting the same chunk is idempotent.
func (db *ClientHolder) Upsert(ctx context.Context, chunks []documentModel.ChunkRecord) error {
	return db.upsert(ctx, chunks, "", true)
}

// ReplaceDocument stages the chunks invisibly under fresh point ids, then in
// one batch drops every other point of the document and makes the staged set
// visible. Live points are never rewritten in place, so a re-ingestion of the
// same version cannot hide part of it.
func (db *ClientHolder) ReplaceDocument(ctx context.Context, documentID, documentHash string, chunks []documentModel.ChunkRecord) error {
	log := logger.ForContext(ctx)
	stage := uuid.NewString()

	if err := db.upsert(ctx, chunks, stage, false); err != nil {
		db.dropStage(ctx, stage)
		return err
	}

	_, err := db.QObj.UpdateBatch(ctx, &qdrant.UpdateBatchPoints{
		CollectionName: db.collection,
		Operations:     replaceOperations(documentID, stage, len(chunks)),
		Wait:           qdrant.PtrOf(true),
	})
	if err != nil {
		log.Error("swapping document version failed", "documentId", documentID, "error", err)
		db.dropStage(ctx, stage)
		return errorModel.Storage("replace document", err)
	}
	log.Debug("document version swapped", "documentId", documentID, "version", documentHash, "chunks", len(chunks))
	return nil
}

// replaceOperations deletes every point of the document outside stage, then
// flips the staged points live.
func replaceOperations(documentID, stage string, chunks int) []*qdrant.PointsUpdateOperation {
	ofDocument := qdrant.NewMatchKeyword(fieldDocumentID, documentID)
	ofStage := qdrant.NewMatchKeyword(fieldStage, stage)

	operations := []*qdrant.PointsUpdateOperation{
		qdrant.NewPointsUpdateDeletePoints(&qdrant.PointsUpdateOperation_DeletePoints{
			Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must:    []*qdrant.Condition{ofDocument},
				MustNot: []*qdrant.Condition{ofStage},
			}),
		}),
	}
	if chunks > 0 {
		operations = append(operations, qdrant.NewPointsUpdateSetPayload(&qdrant.PointsUpdateOperation_SetPayload{
			Payload: qdrant.NewValueMap(map[string]any{fieldLive: true}),
			PointsSelector: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
				Must: []*qdrant.Condition{ofDocument, ofStage},
			}),
		}))
	}
	return operations
}

// dropStage removes the invisible points of an abandoned replacement. A
// failure only leaves hidden points that the next replacement deletes.
func (db *ClientHolder) dropStage(ctx context.Context, stage string) {
	_, err := db.QObj.Delete(context.WithoutCancel(ctx), &qdrant.DeletePoints{
		CollectionName: db.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchKeyword(fieldStage, stage)},
		}),
		Wait: qdrant.PtrOf(true),
	})
	if err != nil {
		logger.ForContext(ctx).Warn("could not drop staged points", "stage", stage, "error", err)
	}
}

func (db *ClientHolder) CountDocument(ctx context.Context, documentID, documentHash string) (int, error) {
	n, err := db.QObj.Count(ctx, &qdrant.CountPoints{
		CollectionName: db.collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatchKeyword(fieldDocumentID, documentID),
				qdrant.NewMatchKeyword(fieldDocumentHash, documentHash),
				qdrant.NewMatchBool(fieldLive, true),
			},
		},
		Exact: qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, errorModel.Storage("count document", err)
	}
	return int(n), nil
}

func (db *ClientHolder) Search(ctx context.Context, vectorFloat []float32, k int) ([]documentModel.ScoredChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	result, err := db.QObj.Query(ctx, &qdrant.QueryPoints{
		CollectionName: db.collection,
		Query:          qdrant.NewQuery(vectorFloat...),
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchBool(fieldLive, true)},
		},
		Limit:       qdrant.PtrOf(uint64(k)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		logger.ForContext(ctx).Error("Error querying Qdrant", "error", err)
		return nil, errorModel.Storage("search", err)
	}

	matches := make([]documentModel.ScoredChunk, 0, len(result))
	for _, hit := range result {
		matches = append(matches, documentModel.ScoredChunk{
			Chunk: chunkFromPayload(hit.Payload),
			Score: hit.Score,
		})
	}
	return matches, nil
}

func (db *ClientHolder) upsert(ctx context.Context, chunks []documentModel.ChunkRecord, stage string, live bool) error {
	for start := 0; start < len(chunks); start += upsertBatch {
		end := min(start+upsertBatch, len(chunks))
		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, chunk := range chunks[start:end] {
			if uint64(len(chunk.Embedding)) != db.dimension {
				return errorModel.Storage("upsert", fmt.Errorf("chunk %d of %s has %d dimensions, collection has %d",
					chunk.ChunkIndex, chunk.DocumentID, len(chunk.Embedding), db.dimension))
			}
			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewID(PointID(chunk, stage)),
				Vectors: qdrant.NewVectors(chunk.Embedding...),
				Payload: payloadFor(chunk, stage, live),
			})
		}

		_, err := db.QObj.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: db.collection,
			Points:         points,
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			return errorModel.Storage("upsert", fmt.Errorf("qdrant upsert failed: %w", err))
		}
	}
	return nil
}

// PointID is stable for a given document version, chunk position and stage.
// Staged writes get ids of their own and never touch live points.
func PointID(chunk documentModel.ChunkRecord, stage string) string {
	name := chunk.DocumentID + "/" + chunk.DocumentHash + "/" + strconv.Itoa(chunk.ChunkIndex)
	if stage != "" {
		name += "/" + stage
	}
	return uuid.NewSHA1(chunkNamespace, []byte(name)).String()
}

func payloadFor(chunk documentModel.ChunkRecord, stage string, live bool) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		fieldDocumentID:   chunk.DocumentID,
		fieldDocumentHash: chunk.DocumentHash,
		fieldChunkIndex:   chunk.ChunkIndex,
		fieldPage:         chunk.Page,
		fieldText:         chunk.Text,
		fieldContentHash:  chunk.ContentHash,
		fieldSource:       chunk.Source,
		fieldSourceURL:    chunk.SourceURL,
		fieldCategory:     string(chunk.Category),
		fieldLive:         live,
		fieldStage:        stage,
	})
}

func chunkFromPayload(payload map[string]*qdrant.Value) documentModel.ChunkRecord {
	return documentModel.ChunkRecord{
		DocumentID:   payload[fieldDocumentID].GetStringValue(),
		DocumentHash: payload[fieldDocumentHash].GetStringValue(),
		ChunkIndex:   int(payload[fieldChunkIndex].GetIntegerValue()),
		Page:         int(payload[fieldPage].GetIntegerValue()),
		Text:         payload[fieldText].GetStringValue(),
		ContentHash:  payload[fieldContentHash].GetStringValue(),
		Source:       payload[fieldSource].GetStringValue(),
		SourceURL:    payload[fieldSourceURL].GetStringValue(),
		Category:     documentModel.Category(payload[fieldCategory].GetStringValue()),
	}
}

func createCollection(ctx context.Context, client *qdrant.Client, collectionName string, dimension uint64) error {
	if collectionName == "" {
		return errors.New("empty collection name")
	}
	if dimension == 0 {
		return errors.New("collection dimension must be positive")
	}

	exists, err := client.CollectionExists(ctx, collectionName)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	return client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dimension,
			Distance: qdrant.Distance_Cosine,
		}),
	})
}
