package index

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_Default(t *testing.T) {
	schema := Schema(DefaultSchemaOptions())

	data, err := json.Marshal(schema)
	require.NoError(t, err)

	var decoded struct {
		Settings map[string]any `json:"settings"`
		Mappings struct {
			Properties map[string]map[string]any `json:"properties"`
		} `json:"mappings"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.EqualValues(t, 1, decoded.Settings["number_of_shards"])
	assert.EqualValues(t, 0, decoded.Settings["number_of_replicas"])
	assert.NotContains(t, decoded.Settings, "index")
	assert.NotContains(t, decoded.Settings, "index.knn")

	props := decoded.Mappings.Properties
	assert.Equal(t, "keyword", props["id"]["type"])
	assert.Equal(t, "text", props["search_text"]["type"])
	assert.Equal(t, "date", props["closed_on"]["type"])
	assert.Equal(t, "integer", props["done_ratio"]["type"])
	assert.Equal(t, "boolean", props["is_private"]["type"])
	assert.Equal(t, "float", props["similarity_score"]["type"])
	assert.NotContains(t, props, "embedding")

	project := props["project"]["properties"].(map[string]any)
	assert.Equal(t, "keyword", project["identifier"].(map[string]any)["type"])
	status := props["status"]["properties"].(map[string]any)
	assert.Equal(t, "keyword", status["name"].(map[string]any)["type"])
	author := props["author"]["properties"].(map[string]any)
	assert.Equal(t, "text", author["name"].(map[string]any)["type"])
}

func TestSchema_WithEmbedding(t *testing.T) {
	schema := Schema(SchemaOptions{Shards: 2, Replicas: 1, Dimension: 1536})

	settings := schema["settings"].(map[string]any)
	assert.Equal(t, true, settings["index.knn"])
	assert.Equal(t, 2, settings["number_of_shards"])
	assert.Equal(t, 1, settings["number_of_replicas"])

	props := schema["mappings"].(map[string]any)["properties"].(map[string]any)
	embedding := props["embedding"].(map[string]any)
	assert.Equal(t, "knn_vector", embedding["type"])
	assert.Equal(t, 1536, embedding["dimension"])
}
