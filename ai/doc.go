// Package ai provides the embedding abstraction used by the issue pipeline.
//
// The pipeline depends only on the Embedder interface defined here. Concrete
// backends live in sub-packages:
//
//   - ai/hashed: deterministic local generator; no network, same text gives the same vector
//   - ai/remote: HTTP backend speaking POST {url}/embeddings with a bearer token
//   - ai/openai: OpenAI-compatible backend via langchaingo
//   - ai/cache: BadgerDB-backed cache in front of a remote backend
//   - ai/fallback: the pipeline-facing embedder; zero vector for blank text,
//     remote call when configured, hashed vector on any failure
//   - ai/mock: test double
//
// # Constructor Return Type Pattern
//
// Public constructors of network backends (remote.NewEmbedder, openai.NewEmbedder)
// return the ai.Embedder interface so callers do not couple to a transport.
// Test utilities (mock.NewMockEmbedder) return concrete types so tests can
// inspect call counts.
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithServiceURL(url), ai.WithAPIKey(key))
//	primary, err := remote.NewEmbedder(cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	embedder := fallback.New(primary, hashed.New(cfg.Dimension), cfg.Dimension, logger)
//	vector, _ := embedder.EmbedText(ctx, "Login page returns 500")
//
// # Output Invariant
//
// Every vector handed to the pipeline has exactly Config.Dimension components,
// whatever backend produced it.
package ai
