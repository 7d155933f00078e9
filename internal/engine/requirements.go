package engine

import (
	"context"
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"quoteline/internal/domain"
	"quoteline/internal/engine/auth"
	"quoteline/internal/events"
	"quoteline/internal/repo"
)

type RequirementCreateOptions struct {
	Title       string
	Description string
	Category    string
	Priority    domain.Priority
}

func (e Engine) CreateRequirement(ctx context.Context, p domain.Principal, opts RequirementCreateOptions) (domain.Requirement, error) {
	if err := auth.Authorize(p, auth.RequirementCreate, auth.Target{}); err != nil {
		return domain.Requirement{}, err
	}
	opts.Title = strings.TrimSpace(opts.Title)
	if opts.Title == "" {
		return domain.Requirement{}, invalidInput("title is required")
	}
	if opts.Priority == "" {
		opts.Priority = domain.PriorityMedium
	}
	if !opts.Priority.Valid() {
		return domain.Requirement{}, invalidInput("priority %q is not one of low, medium, high", opts.Priority)
	}
	now := domain.FormatTime(e.now())
	req := domain.Requirement{
		ID:          uuid.NewString(),
		Title:       opts.Title,
		Description: opts.Description,
		Category:    opts.Category,
		Priority:    opts.Priority,
		Status:      domain.RequirementActive,
		CreatedBy:   p.ID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if err := e.Repo.InsertRequirement(ctx, tx, req); err != nil {
			return err
		}
		return e.appendEvent(ctx, tx, events.RequirementCreated, "requirement", req.ID, p.ID, events.EventPayload{
			"title": req.Title,
		})
	})
	if err != nil {
		return domain.Requirement{}, err
	}
	return req, nil
}

type RequirementListOptions struct {
	ListOptions
	Status   domain.RequirementStatus
	Category string
}

func (e Engine) ListRequirements(ctx context.Context, p domain.Principal, opts RequirementListOptions) (RequirementPage, error) {
	if err := auth.Authorize(p, auth.RequirementRead, auth.Target{}); err != nil {
		return RequirementPage{}, err
	}
	page := e.page(opts.ListOptions)
	items, total, err := e.Repo.ListRequirements(ctx, repo.RequirementFilters{
		Status:   opts.Status,
		Category: opts.Category,
		Page:     page,
	})
	if err != nil {
		return RequirementPage{}, storageError(err)
	}
	return RequirementPage{Items: items, Pagination: domain.NewPagination(page.Page, page.Limit, total)}, nil
}
