// Package mock provides a deterministic ai.Embedder for tests.
//
// MockEmbedder hashes its input so the same text always produces the same
// vector, records every text it sees, and lets a test replace either method
// with a function field to inject failures:
//
//	m := mock.NewMockEmbedderWithDimension(4)
//	m.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return nil, errors.New("backend down")
//	}
package mock
