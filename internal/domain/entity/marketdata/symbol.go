package marketdata

// SymbolInfo is the metadata block the upstream returns when a symbol
// resolves. Field coverage varies by instrument type; absent values stay
// zero.
type SymbolInfo struct {
	Symbol      string `json:"symbol"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Exchange    string `json:"exchange,omitempty"`
	Currency    string `json:"currency,omitempty"`
	Type        string `json:"type,omitempty"`
	Session     string `json:"session,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	PriceScale  int64  `json:"pricescale,omitempty"`
}
