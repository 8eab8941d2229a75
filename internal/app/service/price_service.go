package service

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"wallet_orchestrator/internal/app/port"
	"wallet_orchestrator/internal/domain/entity"
	"wallet_orchestrator/internal/infrastructure/configloader"
	"wallet_orchestrator/internal/infrastructure/pricefeed"
)

// PriceServiceImpl implements port.PriceFeed with a TTL cache in front of the
// market data client. Quotes are advisory display data; a feed outage returns
// whatever is cached and never propagates into transfer handling.
type PriceServiceImpl struct {
	client pricefeed.Client
	logger port.Logger
	quotes *gocache.Cache
}

// NewPriceService creates a cached price feed.
func NewPriceService(client pricefeed.Client, l port.Logger, cfg configloader.PriceFeedConfig) *PriceServiceImpl {
	ttl := time.Duration(cfg.CacheTTLMinutes) * time.Minute
	return &PriceServiceImpl{
		client: client,
		logger: l,
		quotes: gocache.New(ttl, 2*ttl),
	}
}

// GetPrices returns USD quotes for the given symbols, serving from cache
// where possible and fetching the rest in one batch. Symbols the feed does
// not know are simply absent from the result.
func (s *PriceServiceImpl) GetPrices(ctx context.Context, symbols []string) (map[string]entity.PriceQuote, error) {
	result := make(map[string]entity.PriceQuote, len(symbols))
	var missing []string
	for _, symbol := range symbols {
		key := strings.ToUpper(symbol)
		if cached, ok := s.quotes.Get(key); ok {
			result[key] = cached.(entity.PriceQuote)
			continue
		}
		missing = append(missing, key)
	}

	if len(missing) == 0 {
		return result, nil
	}

	fetched, err := s.client.GetQuotes(ctx, missing)
	if err != nil {
		s.logger.Warn("Price feed fetch failed, serving cached quotes only",
			"missing_count", len(missing), "error", err)
		if len(result) > 0 {
			return result, nil
		}
		return nil, err
	}

	for symbol, quote := range fetched {
		s.quotes.Set(symbol, quote, gocache.DefaultExpiration)
		result[symbol] = quote
	}
	return result, nil
}
