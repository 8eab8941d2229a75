package pricefeed

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"wallet_orchestrator/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client fetches USD quotes for asset symbols from the market data API.
type Client interface {
	GetQuotes(ctx context.Context, symbols []string) (map[string]entity.PriceQuote, error)
}

// quoteRow is the wire shape of one quote in the API response.
type quoteRow struct {
	Symbol    string `json:"symbol"`
	PriceUSD  string `json:"priceUsd"`
	Change24h string `json:"priceChange24h"`
}

type clientImpl struct {
	client               *fasthttp.Client
	baseURL              string
	timeout              time.Duration
	logger               *zap.Logger
	maxSymbolsPerRequest int
}

// NewClient creates a price feed client for the given API base URL.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger, maxSymbolsPerRequest int) Client {
	return &clientImpl{
		client:               &fasthttp.Client{},
		baseURL:              strings.TrimRight(baseURL, "/"),
		timeout:              timeout,
		logger:               logger.Named("PriceFeedClient"),
		maxSymbolsPerRequest: maxSymbolsPerRequest,
	}
}

// GetQuotes implements the Client interface.
func (c *clientImpl) GetQuotes(ctx context.Context, symbols []string) (map[string]entity.PriceQuote, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbols cannot be empty")
	}
	if len(symbols) > c.maxSymbolsPerRequest {
		c.logger.Warn("Number of symbols exceeds maxSymbolsPerRequest",
			zap.Int("requestedCount", len(symbols)),
			zap.Int("maxAllowed", c.maxSymbolsPerRequest))
		return nil, fmt.Errorf("number of symbols (%d) exceeds max symbols per request (%d)", len(symbols), c.maxSymbolsPerRequest)
	}

	requestURL := fmt.Sprintf("%s/v1/quotes?symbols=%s&vs=usd", c.baseURL, strings.ToLower(strings.Join(symbols, ",")))

	c.logger.Debug("Requesting quotes from price feed", zap.String("url", requestURL))

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(requestURL)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetContentTypeBytes([]byte("application/json"))

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	deadline, ok := ctx.Deadline()
	if ok {
		if err := c.client.DoDeadline(req, resp, deadline); err != nil {
			c.logger.Error("Failed to execute request to price feed", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s: %w", requestURL, err)
		}
	} else {
		if err := c.client.DoTimeout(req, resp, c.timeout); err != nil {
			c.logger.Error("Failed to execute request to price feed (with default timeout)", zap.String("url", requestURL), zap.Error(err))
			return nil, fmt.Errorf("failed to execute request to %s with default timeout: %w", requestURL, err)
		}
	}

	rawBody := resp.Body()

	if resp.StatusCode() != fasthttp.StatusOK {
		c.logger.Error("Price feed API request failed",
			zap.String("url", requestURL),
			zap.Int("statusCode", resp.StatusCode()),
			zap.ByteString("responseBody", rawBody),
		)
		return nil, fmt.Errorf("price feed API request to %s failed with status %d: %s", requestURL, resp.StatusCode(), string(rawBody))
	}

	var rows []quoteRow
	if err := json.Unmarshal(rawBody, &rows); err != nil {
		c.logger.Error("Failed to unmarshal price feed response",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", rawBody),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to unmarshal price feed response from %s: %w", requestURL, err)
	}

	quotes := make(map[string]entity.PriceQuote, len(rows))
	for _, row := range rows {
		price, convErr := strconv.ParseFloat(row.PriceUSD, 64)
		if convErr != nil {
			c.logger.Warn("Failed to parse quote price",
				zap.String("symbol", row.Symbol),
				zap.String("price_string", row.PriceUSD),
				zap.Error(convErr))
			continue
		}
		change, convErr := strconv.ParseFloat(row.Change24h, 64)
		if convErr != nil {
			change = 0
		}
		symbol := strings.ToUpper(row.Symbol)
		quotes[symbol] = entity.PriceQuote{
			Symbol:    symbol,
			PriceUSD:  price,
			Change24h: change,
		}
	}

	if len(quotes) == 0 {
		c.logger.Warn("Price feed returned 200 OK with no usable quotes. Check API response.",
			zap.String("url", requestURL),
			zap.ByteString("responseBody", rawBody))
	}

	c.logger.Debug("Successfully unmarshalled price feed response", zap.Int("quoteCount", len(quotes)))
	return quotes, nil
}
