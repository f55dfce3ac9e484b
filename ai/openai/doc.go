// Package openai provides an ai.Embedder backed by OpenAI-compatible APIs.
//
// It uses the langchaingo library to talk to OpenAI or OpenAI-compatible
// services (Ollama, LocalAI, vLLM). Select it with ai.ProviderOpenAI.
//
// # Usage
//
//	config := ai.NewConfig(
//	    ai.WithProvider(ai.ProviderOpenAI),
//	    ai.WithServiceURL("http://localhost:11434/v1"),
//	    ai.WithModel("nomic-embed-text"),
//	    ai.WithDimension(768),
//	)
//
//	embedder, err := openai.NewEmbedder(config, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	vector, err := embedder.EmbedText(ctx, "sample text")
package openai
