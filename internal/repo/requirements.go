package repo

import (
	"context"
	"database/sql"

	"quoteline/internal/domain"
)

const requirementColumns = `id,title,description,category,priority,status,created_by,created_at,updated_at`

func scanRequirement(row rowScanner) (domain.Requirement, error) {
	var req domain.Requirement
	err := row.Scan(&req.ID, &req.Title, &req.Description, &req.Category, &req.Priority,
		&req.Status, &req.CreatedBy, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return domain.Requirement{}, notFound(err)
	}
	return req, nil
}

func (r Repo) InsertRequirement(ctx context.Context, tx *sql.Tx, req domain.Requirement) error {
	_, err := r.exec(ctx, tx, `INSERT INTO requirements(`+requirementColumns+`) VALUES (?,?,?,?,?,?,?,?,?)`,
		req.ID, req.Title, req.Description, req.Category, string(req.Priority), string(req.Status),
		req.CreatedBy, req.CreatedAt, req.UpdatedAt)
	return err
}

func (r Repo) GetRequirement(ctx context.Context, tx *sql.Tx, id string) (domain.Requirement, error) {
	return scanRequirement(r.queryRow(ctx, tx, `SELECT `+requirementColumns+` FROM requirements WHERE id=?`, id))
}

type RequirementFilters struct {
	Status   domain.RequirementStatus
	Category string
	Page     Page
}

func (r Repo) ListRequirements(ctx context.Context, f RequirementFilters) ([]domain.Requirement, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		conds = append(conds, "status=?")
		args = append(args, string(f.Status))
	}
	if f.Category != "" {
		conds = append(conds, "category=?")
		args = append(args, f.Category)
	}
	where := whereClause(conds)
	total, err := r.count(ctx, nil, `SELECT COUNT(*) FROM requirements`+where, args...)
	if err != nil {
		return nil, 0, err
	}
	args = append(args, f.Page.Limit, f.Page.offset())
	rows, err := r.query(ctx, nil, `SELECT `+requirementColumns+` FROM requirements`+where+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	res := []domain.Requirement{}
	for rows.Next() {
		req, err := scanRequirement(rows)
		if err != nil {
			return nil, 0, err
		}
		res = append(res, req)
	}
	return res, total, rows.Err()
}
