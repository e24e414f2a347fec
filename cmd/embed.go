package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/ria-hunter/pkg/embeddings"
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate embeddings for narratives without one",
	Long: `Selects narratives whose embedding column is NULL and fills them in
batches. The provider is configured via RIAHUNTER_EMBEDDINGS_PROVIDER or
AI_PROVIDER: "openai" calls the OpenAI API, "mock" generates deterministic
local vectors. The mock provider pairs with the sqlite store only; the
postgres embedding column requires full-width openai vectors.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "embed"))

		batchSize, _ := cmd.Flags().GetInt("batch-size")
		if batchSize <= 0 {
			batchSize = cfg.Embeddings.BatchSize
		}

		provider := newProvider()
		if err := validateProvider(cfg.Store.Driver, provider); err != nil {
			return err
		}
		log.Info("using embedding provider",
			zap.String("provider", provider.Name()), zap.Int("dimensions", provider.Dimensions()))

		s, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer s.Close()

		pending, err := s.CountNarrativesMissingEmbedding(ctx)
		if err != nil {
			return err
		}
		if pending == 0 {
			fmt.Println("All narratives already have embeddings")
			return nil
		}
		log.Info("narratives pending embedding", zap.Int64("count", pending))

		limiter := rate.NewLimiter(rate.Limit(cfg.Embeddings.BatchesPerSec), 1)
		var embedded int64
		for {
			batch, err := s.NarrativesMissingEmbedding(ctx, batchSize)
			if err != nil {
				return err
			}
			if len(batch) == 0 {
				break
			}

			if err := limiter.Wait(ctx); err != nil {
				return err
			}

			texts := make([]string, len(batch))
			for i, n := range batch {
				texts[i] = n.NarrativeText
			}
			vectors, err := provider.Embed(ctx, texts)
			if err != nil {
				return err
			}

			for i, n := range batch {
				if err := s.UpdateNarrativeEmbedding(ctx, n.NarrativePK, vectors[i]); err != nil {
					return err
				}
				embedded++
			}
			log.Info("embedded batch", zap.Int("size", len(batch)), zap.Int64("total", embedded))
		}

		fmt.Printf("Embedded %d narratives\n", embedded)
		return nil
	},
}

// pgEmbeddingDims is the fixed width of the postgres embedding column.
const pgEmbeddingDims = 1536

// validateProvider rejects provider/store pairs whose vector widths cannot
// line up. The mock provider emits narrower vectors, so it only pairs with
// the sqlite store, which stores embeddings without a declared width.
func validateProvider(driver string, p embeddings.Provider) error {
	switch driver {
	case "", "postgres":
		if p.Dimensions() != pgEmbeddingDims {
			return eris.Errorf(
				"embed: provider %q emits %d-dimension vectors but the postgres embedding column holds %d; use the openai provider or the sqlite store",
				p.Name(), p.Dimensions(), pgEmbeddingDims)
		}
	}
	return nil
}

// newProvider selects the embedding backend. Without an API key the mock
// provider is used so local runs never hit the network.
func newProvider() embeddings.Provider {
	if cfg.Embeddings.Provider == "openai" && cfg.Embeddings.OpenAIKey != "" {
		opts := []embeddings.Option{embeddings.WithModel(cfg.Embeddings.Model)}
		if cfg.Embeddings.OpenAIBaseURL != "" {
			opts = append(opts, embeddings.WithBaseURL(cfg.Embeddings.OpenAIBaseURL))
		}
		return embeddings.NewOpenAI(cfg.Embeddings.OpenAIKey, opts...)
	}
	return embeddings.NewMock()
}

func init() {
	embedCmd.Flags().Int("batch-size", 0, "narratives per API call (default from config)")
	rootCmd.AddCommand(embedCmd)
}
