package recipe

import (
	"encoding/json"
	"fmt"

	"github.com/yungbote/zarrpipe/internal/pattern"
)

// GlobalMetadataKey is the well-known metadata-cache key holding the global
// length table. It is written once by PrepareTarget and read many times by
// StoreChunk; the name is part of the wire contract shared by every process
// working on the same recipe.
const GlobalMetadataKey = "recipe-metadata.json"

type globalRecord struct {
	InputSequenceLens []int `json:"input_sequence_lens"`
}

type inputRecord struct {
	Dims map[string]int `json:"dims"`
}

func inputDataKey(key pattern.InputKey) string {
	return "input-" + key.Encode() + ".json"
}

func inputMetaKey(key pattern.InputKey) string {
	return "input-meta-" + key.Encode() + ".json"
}

func encodeGlobalRecord(lens []int) ([]byte, error) {
	return json.Marshal(globalRecord{InputSequenceLens: lens})
}

func decodeGlobalRecord(raw []byte) ([]int, error) {
	var rec globalRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("recipe: corrupt global metadata record: %w", err)
	}
	return rec.InputSequenceLens, nil
}

func encodeInputRecord(dims map[string]int) ([]byte, error) {
	return json.Marshal(inputRecord{Dims: dims})
}

func decodeInputRecord(raw []byte) (map[string]int, error) {
	var rec inputRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("recipe: corrupt input metadata record: %w", err)
	}
	return rec.Dims, nil
}
