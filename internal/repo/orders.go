package repo

import (
	"context"
	"database/sql"
	"strings"

	"quoteline/internal/db"
	"quoteline/internal/domain"
)

const orderColumns = `id,title,description,category,budget,deadline,priority,status,created_by,created_at,updated_at`

func scanOrder(row rowScanner) (domain.Order, error) {
	var o domain.Order
	err := row.Scan(&o.ID, &o.Title, &o.Description, &o.Category, &o.Budget, &o.Deadline,
		&o.Priority, &o.Status, &o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, notFound(err)
	}
	o.AssignedVendors = []string{}
	return o, nil
}

func (r Repo) InsertOrder(ctx context.Context, tx *sql.Tx, o domain.Order) error {
	_, err := r.exec(ctx, tx, `INSERT INTO orders(`+orderColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		o.ID, o.Title, o.Description, o.Category, o.Budget.String(), o.Deadline,
		string(o.Priority), string(o.Status), o.CreatedBy, o.CreatedAt, o.UpdatedAt)
	return err
}

// LockOrder takes a row lock on the order for the rest of tx. On SQLite the
// transaction already holds the database write lock, so it only checks
// existence.
func (r Repo) LockOrder(ctx context.Context, tx *sql.Tx, id string) error {
	q := `SELECT id FROM orders WHERE id=?`
	if r.Dialect == db.Postgres {
		q += ` FOR UPDATE`
	}
	var got string
	return notFound(r.queryRow(ctx, tx, q, id).Scan(&got))
}

func (r Repo) GetOrder(ctx context.Context, tx *sql.Tx, id string) (domain.Order, error) {
	o, err := scanOrder(r.queryRow(ctx, tx, `SELECT `+orderColumns+` FROM orders WHERE id=?`, id))
	if err != nil {
		return domain.Order{}, err
	}
	orders := []domain.Order{o}
	if err := r.loadVendors(ctx, tx, orders); err != nil {
		return domain.Order{}, err
	}
	return orders[0], nil
}

type OrderFilters struct {
	// VendorID restricts results to orders the vendor is assigned to.
	VendorID string
	Status   domain.OrderStatus
	Page     Page
}

func (f OrderFilters) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.VendorID != "" {
		conds = append(conds, "id IN (SELECT order_id FROM order_vendors WHERE vendor_id=?)")
		args = append(args, f.VendorID)
	}
	if f.Status != "" {
		conds = append(conds, "status=?")
		args = append(args, string(f.Status))
	}
	return whereClause(conds), args
}

// ListOrders returns one page, newest first, and the total matching count.
func (r Repo) ListOrders(ctx context.Context, f OrderFilters) ([]domain.Order, int, error) {
	where, args := f.where()
	total, err := r.count(ctx, nil, `SELECT COUNT(*) FROM orders`+where, args...)
	if err != nil {
		return nil, 0, err
	}
	pageArgs := append(append([]any(nil), args...), f.Page.Limit, f.Page.offset())
	rows, err := r.query(ctx, nil, `SELECT `+orderColumns+` FROM orders`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := r.loadVendors(ctx, nil, res); err != nil {
		return nil, 0, err
	}
	return res, total, nil
}

func (r Repo) CountOrders(ctx context.Context, tx *sql.Tx, f OrderFilters) (int, error) {
	where, args := f.where()
	return r.count(ctx, tx, `SELECT COUNT(*) FROM orders`+where, args...)
}

// UpdateOrderStatus moves the order from one status to another only if it is
// still in from. It reports whether the row changed.
func (r Repo) UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id string, from, to domain.OrderStatus, updatedAt string) (bool, error) {
	res, err := r.exec(ctx, tx, `UPDATE orders SET status=?, updated_at=? WHERE id=? AND status=?`,
		string(to), updatedAt, id, string(from))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r Repo) TouchOrder(ctx context.Context, tx *sql.Tx, id, updatedAt string) error {
	_, err := r.exec(ctx, tx, `UPDATE orders SET updated_at=? WHERE id=?`, updatedAt, id)
	return err
}

// AddOrderVendors inserts assignments, ignoring ones that already exist.
func (r Repo) AddOrderVendors(ctx context.Context, tx *sql.Tx, orderID string, vendorIDs []string, assignedAt string) error {
	for _, v := range vendorIDs {
		if _, err := r.exec(ctx, tx, `INSERT INTO order_vendors(order_id,vendor_id,assigned_at) VALUES (?,?,?) ON CONFLICT DO NOTHING`,
			orderID, v, assignedAt); err != nil {
			return err
		}
	}
	return nil
}

func (r Repo) loadVendors(ctx context.Context, tx *sql.Tx, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	idx := make(map[string]int, len(orders))
	args := make([]any, 0, len(orders))
	for i, o := range orders {
		idx[o.ID] = i
		args = append(args, o.ID)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(orders)), ",")
	rows, err := r.query(ctx, tx, `SELECT order_id, vendor_id FROM order_vendors WHERE order_id IN (`+placeholders+`) ORDER BY assigned_at, vendor_id`, args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var orderID, vendorID string
		if err := rows.Scan(&orderID, &vendorID); err != nil {
			return err
		}
		i := idx[orderID]
		orders[i].AssignedVendors = append(orders[i].AssignedVendors, vendorID)
	}
	return rows.Err()
}
