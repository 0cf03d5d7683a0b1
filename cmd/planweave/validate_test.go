package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/planweave/planweave/internal/types"
)

func TestDuplicateKeys(t *testing.T) {
	b := &types.Bundle{
		Version: "v1.0.0",
		Features: []types.Feature{
			{Key: "041_checkout", Title: "A", Confidence: 0.5},
			{Key: "CHECKOUT", Title: "B", Confidence: 0.5},
			{
				Key: "billing", Title: "C", Confidence: 0.5,
				Stories: []types.Story{
					{Key: "invoice", Title: "I", Confidence: 0.5},
					{Key: "IN_VOICE", Title: "I2", Confidence: 0.5},
				},
			},
		},
		Metadata: types.Metadata{Stage: types.StageDraft},
	}

	dups := duplicateKeys(b)
	assert.Len(t, dups, 2)
	assert.Contains(t, dups[0], "checkout")
	assert.Contains(t, dups[1], "invoice")
}

func TestDuplicateKeysClean(t *testing.T) {
	b := &types.Bundle{
		Version: "v1.0.0",
		Features: []types.Feature{
			{Key: "checkout", Title: "A", Confidence: 0.5},
			{Key: "billing", Title: "B", Confidence: 0.5},
		},
		Metadata: types.Metadata{Stage: types.StageDraft},
	}
	assert.Empty(t, duplicateKeys(b))
}
