package interfaces

import (
	"context"
	"time"

	marketdata "marketbridge/internal/domain/entity/marketdata"
)

// BarArchive persists fetched bars for later range reads. Implementations
// deduplicate on (symbol, resolution, epoch).
type BarArchive interface {
	SaveBars(ctx context.Context, symbol, resolution string, bars []marketdata.Bar) error
	GetBarsBetween(ctx context.Context, symbol, resolution string, from, to time.Time) ([]marketdata.Bar, error)
	GetLastBars(ctx context.Context, symbol, resolution string, limit int) ([]marketdata.Bar, error)

	Close()
}

// SymbolCatalog mirrors resolved symbol metadata.
type SymbolCatalog interface {
	UpsertSymbol(ctx context.Context, info *marketdata.SymbolInfo) error
	GetSymbol(ctx context.Context, symbol string) (*marketdata.SymbolInfo, error)
	ListSymbols(ctx context.Context, limit int) ([]marketdata.SymbolInfo, error)
}
