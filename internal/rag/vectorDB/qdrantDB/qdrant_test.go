package qdrantDB

import (
	"testing"

	"github.com/akolanti/ComplianceGPT/internal/domain/documentModel"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointID(t *testing.T) {
	chunk := documentModel.ChunkRecord{DocumentID: "doc-a", DocumentHash: "h1", ChunkIndex: 3}

	id := PointID(chunk, "")
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, PointID(chunk, ""))

	other := chunk
	other.DocumentHash = "h2"
	assert.NotEqual(t, id, PointID(other, ""), "a new version must not overwrite the live one")

	other = chunk
	other.ChunkIndex = 4
	assert.NotEqual(t, id, PointID(other, ""))

	staged := PointID(chunk, "stage-1")
	assert.NotEqual(t, id, staged, "re-ingesting the same version must not rewrite live points")
	assert.NotEqual(t, staged, PointID(chunk, "stage-2"))
	assert.Equal(t, staged, PointID(chunk, "stage-1"))
}

func TestReplaceOperations(t *testing.T) {
	ops := replaceOperations("doc-a", "stage-1", 2)
	require.Len(t, ops, 2)

	drop := ops[0].GetDeletePoints().GetPoints().GetFilter()
	require.NotNil(t, drop)
	require.Len(t, drop.GetMust(), 1)
	assert.Equal(t, fieldDocumentID, drop.GetMust()[0].GetField().GetKey())
	assert.Equal(t, "doc-a", drop.GetMust()[0].GetField().GetMatch().GetKeyword())
	require.Len(t, drop.GetMustNot(), 1)
	assert.Equal(t, fieldStage, drop.GetMustNot()[0].GetField().GetKey())
	assert.Equal(t, "stage-1", drop.GetMustNot()[0].GetField().GetMatch().GetKeyword())

	flip := ops[1].GetSetPayload()
	require.NotNil(t, flip)
	assert.True(t, flip.GetPayload()[fieldLive].GetBoolValue())
	must := flip.GetPointsSelector().GetFilter().GetMust()
	require.Len(t, must, 2)
	assert.Equal(t, fieldStage, must[1].GetField().GetKey())
	assert.Equal(t, "stage-1", must[1].GetField().GetMatch().GetKeyword())

	assert.Len(t, replaceOperations("doc-a", "stage-2", 0), 1, "an empty document only retracts")
}

func TestPayloadRoundTrip(t *testing.T) {
	chunk := documentModel.ChunkRecord{
		DocumentID:   "doc-a",
		DocumentHash: "h1",
		ChunkIndex:   7,
		Page:         12,
		Text:         "Every insurer shall maintain a solvency ratio of 150 percent.",
		ContentHash:  "c1",
		Source:       "Solvency Regulations 2024",
		SourceURL:    "https://irdai.gov.in/documents/solvency.pdf",
		Category:     documentModel.Regulation,
	}

	payload := payloadFor(chunk, "stage-1", false)
	assert.False(t, payload[fieldLive].GetBoolValue())
	assert.Equal(t, "stage-1", payload[fieldStage].GetStringValue())
	assert.Equal(t, chunk, chunkFromPayload(payload))
}
