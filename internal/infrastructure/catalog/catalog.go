package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	marketdata "marketbridge/internal/domain/entity/marketdata"
	"marketbridge/internal/infrastructure/catalog/models"
)

var ErrSymbolNotFound = errors.New("symbol not found")

// Catalog keeps one row of resolved metadata per symbol, refreshed each
// time the upstream resolves it.
type Catalog struct {
	db     *gorm.DB
	logger *logrus.Entry
}

func New(dsn string, logger *logrus.Logger) (*Catalog, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open symbol catalog: %w", err)
	}
	if err := db.AutoMigrate(&models.SymbolModel{}); err != nil {
		return nil, fmt.Errorf("migrate symbol catalog: %w", err)
	}
	return &Catalog{
		db:     db,
		logger: logger.WithField("component", "symbol_catalog"),
	}, nil
}

func (c *Catalog) UpsertSymbol(ctx context.Context, info *marketdata.SymbolInfo) error {
	if info == nil || info.Symbol == "" {
		return errors.New("symbol info requires a symbol name")
	}
	model := toModel(info)
	err := c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "exchange", "currency",
			"type", "session", "timezone", "pricescale", "updated_at",
		}),
	}).Create(&model).Error
	if err != nil {
		return fmt.Errorf("upsert symbol %s: %w", info.Symbol, err)
	}
	return nil
}

func (c *Catalog) GetSymbol(ctx context.Context, symbol string) (*marketdata.SymbolInfo, error) {
	var model models.SymbolModel
	err := c.db.WithContext(ctx).First(&model, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSymbolNotFound, symbol)
	}
	if err != nil {
		return nil, fmt.Errorf("get symbol %s: %w", symbol, err)
	}
	return toDomain(&model), nil
}

func (c *Catalog) ListSymbols(ctx context.Context, limit int) ([]marketdata.SymbolInfo, error) {
	query := c.db.WithContext(ctx).Order("symbol ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.SymbolModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list symbols: %w", err)
	}

	infos := make([]marketdata.SymbolInfo, 0, len(rows))
	for i := range rows {
		infos = append(infos, *toDomain(&rows[i]))
	}
	return infos, nil
}

func toModel(info *marketdata.SymbolInfo) models.SymbolModel {
	return models.SymbolModel{
		Symbol:      info.Symbol,
		Name:        info.Name,
		Description: info.Description,
		Exchange:    info.Exchange,
		Currency:    info.Currency,
		Type:        info.Type,
		Session:     info.Session,
		Timezone:    info.Timezone,
		PriceScale:  info.PriceScale,
	}
}

func toDomain(model *models.SymbolModel) *marketdata.SymbolInfo {
	return &marketdata.SymbolInfo{
		Symbol:      model.Symbol,
		Name:        model.Name,
		Description: model.Description,
		Exchange:    model.Exchange,
		Currency:    model.Currency,
		Type:        model.Type,
		Session:     model.Session,
		Timezone:    model.Timezone,
		PriceScale:  model.PriceScale,
	}
}
