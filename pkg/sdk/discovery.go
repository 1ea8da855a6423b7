package sdk

import (
	"fmt"
	"os"

	"github.com/celerix-dev/negmarket/internal/config"
	"github.com/celerix-dev/negmarket/internal/logger"
	"github.com/celerix-dev/negmarket/internal/market"
	"github.com/celerix-dev/negmarket/internal/notify"
	"github.com/celerix-dev/negmarket/internal/seed"
	"github.com/celerix-dev/negmarket/pkg/engine"
)

// New returns a Market based on the environment: the daemon named by
// NEGMARKET_STORE_ADDR when it answers, otherwise an embedded market seeded
// from cfg.
func New(cfg config.Config, log logger.Logger) (Market, error) {
	if log == nil {
		log = logger.NewNop()
	}

	if remoteAddr := os.Getenv("NEGMARKET_STORE_ADDR"); remoteAddr != "" {
		client, err := Connect(remoteAddr, WithClientLogger(log))
		if err == nil {
			return client, nil
		}
		log.Warn("Remote market unreachable, running embedded",
			logger.String("addr", remoteAddr),
			logger.Error(err),
		)
	}

	return NewLocal(cfg, log)
}

// NewLocal seeds a fresh session and runs it in-process.
func NewLocal(cfg config.Config, log logger.Logger) (*Embedded, error) {
	gen := seed.New(seed.Config{
		CatalogSize:     cfg.Market.CatalogSize,
		StartingCredits: cfg.Market.StartingCredits,
		Seed:            cfg.Market.Seed,
	})
	store, err := engine.Seed(gen)
	if err != nil {
		return nil, fmt.Errorf("seed market: %w", err)
	}

	emitter := notify.NewEmitter(cfg.Market.NotificationTTL)
	coord := market.New(store, emitter,
		market.WithLogger(log),
		market.WithUploadDelay(cfg.Market.UploadDelay),
	)
	return NewEmbedded(coord), nil
}
