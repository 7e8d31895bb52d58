package crdb

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
)

func (r *Repository) InsertOrder(ctx context.Context, o *domain.Order) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO orders (id, buyer_id, seller_id, shop_id, stall_id, product_id, inventory_unit_id,
			quantity, unit_price, total_amount, commission_rate, commission_amount, seller_amount,
			status, payment_method, order_code, notes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`, o.ID, o.BuyerID, o.SellerID, o.ShopID, o.StallID, o.ProductID, o.InventoryUnitID,
		o.Quantity, o.UnitPrice, o.TotalAmount, o.CommissionRate, o.CommissionAmount, o.SellerAmount,
		o.Status, o.PaymentMethod, o.OrderCode, o.Notes, o.CreatedAt)
	return err
}

func (r *Repository) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	row := r.pool.QueryRow(ctx, selectOrder+` WHERE id = $1`, orderID)
	o, err := scanOrder(row)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	return o, err
}

func (r *Repository) UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE orders SET status = $2 WHERE id = $1
	`, orderID, status)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) ListOrdersByBuyer(ctx context.Context, buyerID uuid.UUID) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, selectOrder+` WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (r *Repository) ListOrdersByCode(ctx context.Context, orderCode string) ([]domain.Order, error) {
	rows, err := r.pool.Query(ctx, selectOrder+` WHERE order_code = $1 ORDER BY created_at ASC`, orderCode)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

const selectOrder = `
	SELECT id, buyer_id, seller_id, shop_id, stall_id, product_id, inventory_unit_id,
		quantity, unit_price, total_amount, commission_rate, commission_amount, seller_amount,
		status, payment_method, order_code, notes, created_at
	FROM orders`

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.BuyerID, &o.SellerID, &o.ShopID, &o.StallID, &o.ProductID, &o.InventoryUnitID,
		&o.Quantity, &o.UnitPrice, &o.TotalAmount, &o.CommissionRate, &o.CommissionAmount, &o.SellerAmount,
		&o.Status, &o.PaymentMethod, &o.OrderCode, &o.Notes, &o.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func scanOrders(rows pgx.Rows) ([]domain.Order, error) {
	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}
