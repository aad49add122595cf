// Package verification builds the data sources shared by the verification workers.
package verification

import (
	"mosaic-functions/internal/common/config"
	"mosaic-functions/internal/common/logger"
	"mosaic-functions/internal/functions/ipfs"
	"mosaic-functions/internal/functions/openai"
	"mosaic-functions/internal/functions/pricedb"
)

type Sources struct {
	IPFS    *ipfs.Client
	PriceDB *pricedb.Client
	OpenAI  *openai.Client
}

// NewSources builds every client from the application config. cache may be
// nil. A missing OpenAI API key is an error.
func NewSources(appConfig *config.Config, cache ipfs.Cache, log logger.Logger) (*Sources, error) {
	if appConfig == nil {
		appConfig = &config.Config{}
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	src := appConfig.Sources

	chat, err := openai.NewClient(openai.Config{
		BaseURL:           src.OpenAI.BaseURL,
		APIKey:            src.OpenAI.APIKey,
		Model:             src.OpenAI.Model,
		Timeout:           config.GetDuration(src.OpenAI.Timeout),
		RequestsPerSecond: src.OpenAI.RequestsPerSecond,
		Burst:             src.OpenAI.Burst,
	}, log)
	if err != nil {
		return nil, err
	}

	return &Sources{
		IPFS: ipfs.NewClient(ipfs.Config{
			BaseURL:  src.IPFS.BaseURL,
			Timeout:  config.GetDuration(src.IPFS.Timeout),
			CacheTTL: appConfig.Redis.TTL(),
		}, cache, log),
		PriceDB: pricedb.NewClient(pricedb.Config{
			URL:     src.PriceDB.URL,
			Timeout: config.GetDuration(src.PriceDB.Timeout),
		}, log),
		OpenAI: chat,
	}, nil
}
