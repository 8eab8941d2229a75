package entity

// PriceQuote is an advisory fiat quote for one symbol. Quotes are display
// data only; their absence never blocks a transfer.
type PriceQuote struct {
	Symbol    string  `json:"symbol"`
	PriceUSD  float64 `json:"priceUsd"`
	Change24h float64 `json:"change24h"`
}
