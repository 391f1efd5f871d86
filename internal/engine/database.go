package engine

import (
	"errors"

	"gorm.io/gorm"

	"github.com/RubyEDE/ls-demo-be-sub000/internal/types"
)

type Database struct {
	db *gorm.DB
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db: db}
}

func (d *Database) CreateOrder(order *types.Order) error {
	return d.db.Create(order).Error
}

func (d *Database) SaveOrder(order *types.Order) error {
	return d.db.Save(order).Error
}

func (d *Database) GetOrder(orderID string) (*types.Order, error) {
	var order types.Order
	if err := d.db.Where("order_id = ?", orderID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// GetRestingOrders returns the live orders on one side of a market in
// matching priority: best price first, then creation order within a level.
// This query is where time priority is enforced; the in-memory book only
// aggregates quantities.
func (d *Database) GetRestingOrders(symbol, side string) ([]types.Order, error) {
	priceOrder := "price asc"
	if side == types.SideBuy {
		priceOrder = "price desc"
	}

	var orders []types.Order
	err := d.db.
		Where("symbol = ? AND side = ? AND status IN ?", symbol, side,
			[]string{types.OrderStatusOpen, types.OrderStatusPartial}).
		Order(priceOrder).
		Order("created_at asc").
		Order("id asc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOpenOrdersByMarket returns all live orders for a market, used to
// rebuild the in-memory book on startup.
func (d *Database) GetOpenOrdersByMarket(symbol string) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.
		Where("symbol = ? AND status IN ?", symbol,
			[]string{types.OrderStatusOpen, types.OrderStatusPartial}).
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOpenOrdersByClient returns the caller's live orders.
func (d *Database) GetOpenOrdersByClient(clientID string) ([]types.Order, error) {
	var orders []types.Order
	err := d.db.
		Where("client_id = ? AND status IN ?", clientID,
			[]string{types.OrderStatusOpen, types.OrderStatusPartial}).
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// ExecuteFill persists one match atomically: the trade record plus the
// updated maker and taker orders commit or roll back together.
func (d *Database) ExecuteFill(trade *types.Trade, maker, taker *types.Order) error {
	tx := d.db.Begin()
	if err := tx.Error; err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	if err := tx.Create(trade).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Save(maker).Error; err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Save(taker).Error; err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}

// SaveTradeFees records the fees collected for a trade. Fees are debited
// only after the fill has committed, so they land in a separate update.
func (d *Database) SaveTradeFees(trade *types.Trade) error {
	return d.db.Model(&types.Trade{}).
		Where("trade_id = ?", trade.TradeID).
		Updates(map[string]interface{}{
			"maker_fee": trade.MakerFee,
			"taker_fee": trade.TakerFee,
		}).Error
}

// GetRecentTrades returns the latest executions for a market, newest first.
func (d *Database) GetRecentTrades(symbol string, limit int) ([]types.Trade, error) {
	var trades []types.Trade
	err := d.db.
		Where("symbol = ?", symbol).
		Order("id desc").
		Limit(limit).
		Find(&trades).Error
	if err != nil {
		return nil, err
	}
	return trades, nil
}
