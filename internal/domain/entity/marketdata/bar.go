package marketdata

import "time"

// Bar is one OHLCV candle as delivered by the chart stream. Epoch is the
// bar open time in seconds; bars for one series are unique by Epoch.
type Bar struct {
	Epoch  int64   `json:"epoch"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Time converts the bar open epoch to UTC.
func (b Bar) Time() time.Time {
	return time.Unix(b.Epoch, 0).UTC()
}

// StudyPoint is one sample of an attached study series. Values carries the
// plot outputs in upstream order.
type StudyPoint struct {
	Epoch  int64     `json:"epoch"`
	Values []float64 `json:"values"`
}

// ChartData is the result of one (symbol, resolution) fetch.
type ChartData struct {
	Symbol     string       `json:"symbol"`
	Resolution string       `json:"resolution"`
	Bars       []Bar        `json:"bars"`
	Study      []StudyPoint `json:"study,omitempty"`
	Info       *SymbolInfo  `json:"info,omitempty"`
	FetchedAt  time.Time    `json:"fetched_at"`
	Elapsed    int64        `json:"elapsed_ms"`
}
