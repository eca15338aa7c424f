package tryon

import (
	"net/http"

	"tryon/internal/infra"
)

// AdaptersFromConfig builds every provider adapter from the service
// configuration. All adapters share client and one image codec.
func AdaptersFromConfig(cfg *infra.Config, client *http.Client, logger *infra.Logger) []Adapter {
	if client == nil {
		client = &http.Client{Timeout: cfg.UpstreamTimeout}
	}
	codec := NewCodec(client)
	return []Adapter{
		NewReplicateAdapter(ReplicateOptions{
			BaseURL:     cfg.Replicate.BaseURL,
			Version:     cfg.Replicate.Model,
			WaitSeconds: cfg.ReplicateWait,
			HTTPClient:  client,
			Codec:       codec,
			Logger:      logger,
			StockModels: cfg.Replicate.StockModels,
		}),
		NewFashnAdapter(FashnOptions{
			BaseURL:            cfg.Fashn.BaseURL,
			ModelName:          cfg.Fashn.Model,
			HTTPClient:         client,
			Codec:              codec,
			Logger:             logger,
			StockModels:        cfg.Fashn.StockModels,
			InlineRemoteImages: cfg.Fashn.InlineRemote,
		}),
		NewCustomAdapter(CustomOptions{
			BaseURL:     cfg.Custom.BaseURL,
			ModelName:   cfg.Custom.Model,
			HTTPClient:  client,
			Logger:      logger,
			StockModels: cfg.Custom.StockModels,
		}),
	}
}
