package repo

import (
	"context"
	"database/sql"

	"quoteline/internal/domain"
)

const quoteColumns = `id,order_id,vendor_id,amount,description,delivery_time,status,submitted_at,reviewed_at,reviewed_by`

func scanQuote(row rowScanner) (domain.Quote, error) {
	var (
		q          domain.Quote
		reviewedAt sql.NullString
		reviewedBy sql.NullString
	)
	err := row.Scan(&q.ID, &q.OrderID, &q.VendorID, &q.Amount, &q.Description, &q.DeliveryTime,
		&q.Status, &q.SubmittedAt, &reviewedAt, &reviewedBy)
	if err != nil {
		return domain.Quote{}, notFound(err)
	}
	q.ReviewedAt = optionalString(reviewedAt)
	q.ReviewedBy = optionalString(reviewedBy)
	return q, nil
}

func (r Repo) InsertQuote(ctx context.Context, tx *sql.Tx, q domain.Quote) error {
	_, err := r.exec(ctx, tx, `INSERT INTO quotes(id,order_id,vendor_id,amount,description,delivery_time,status,submitted_at) VALUES (?,?,?,?,?,?,?,?)`,
		q.ID, q.OrderID, q.VendorID, q.Amount.String(), q.Description, q.DeliveryTime, string(q.Status), q.SubmittedAt)
	return err
}

func (r Repo) GetQuote(ctx context.Context, tx *sql.Tx, id string) (domain.Quote, error) {
	return scanQuote(r.queryRow(ctx, tx, `SELECT `+quoteColumns+` FROM quotes WHERE id=?`, id))
}

type QuoteFilters struct {
	VendorID string
	OrderID  string
	Status   domain.QuoteStatus
	Page     Page
}

func (f QuoteFilters) where() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.VendorID != "" {
		conds = append(conds, "vendor_id=?")
		args = append(args, f.VendorID)
	}
	if f.OrderID != "" {
		conds = append(conds, "order_id=?")
		args = append(args, f.OrderID)
	}
	if f.Status != "" {
		conds = append(conds, "status=?")
		args = append(args, string(f.Status))
	}
	return whereClause(conds), args
}

// ListQuotes returns one page, most recently submitted first, and the total.
func (r Repo) ListQuotes(ctx context.Context, f QuoteFilters) ([]domain.Quote, int, error) {
	where, args := f.where()
	total, err := r.count(ctx, nil, `SELECT COUNT(*) FROM quotes`+where, args...)
	if err != nil {
		return nil, 0, err
	}
	pageArgs := append(append([]any(nil), args...), f.Page.Limit, f.Page.offset())
	rows, err := r.query(ctx, nil, `SELECT `+quoteColumns+` FROM quotes`+where+` ORDER BY submitted_at DESC, id DESC LIMIT ? OFFSET ?`, pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []domain.Quote{}
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, q)
	}
	return res, total, rows.Err()
}

func (r Repo) CountQuotes(ctx context.Context, tx *sql.Tx, f QuoteFilters) (int, error) {
	where, args := f.where()
	return r.count(ctx, tx, `SELECT COUNT(*) FROM quotes`+where, args...)
}

// ApproveQuote marks the quote approved only while it is still pending and no
// sibling quote of the same order is approved. It reports whether the write
// applied. A racing winner that slips past the NOT EXISTS check is caught by
// the partial unique index and surfaces as ErrDuplicate.
func (r Repo) ApproveQuote(ctx context.Context, tx *sql.Tx, id, orderID, reviewerID, reviewedAt string) (bool, error) {
	res, err := r.exec(ctx, tx, `
UPDATE quotes SET status='approved', reviewed_at=?, reviewed_by=?
WHERE id=? AND status='pending'
  AND NOT EXISTS (SELECT 1 FROM quotes sib WHERE sib.order_id=? AND sib.status='approved')`,
		reviewedAt, reviewerID, id, orderID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RejectQuote marks the quote rejected only while it is still pending.
func (r Repo) RejectQuote(ctx context.Context, tx *sql.Tx, id, reviewerID, reviewedAt string) (bool, error) {
	res, err := r.exec(ctx, tx, `UPDATE quotes SET status='rejected', reviewed_at=?, reviewed_by=? WHERE id=? AND status='pending'`,
		reviewedAt, reviewerID, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ApprovedQuoteID returns the id of the order's approved quote, or "" if none.
func (r Repo) ApprovedQuoteID(ctx context.Context, tx *sql.Tx, orderID string) (string, error) {
	var id string
	err := r.queryRow(ctx, tx, `SELECT id FROM quotes WHERE order_id=? AND status='approved'`, orderID).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}
