package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"quoteline/internal/domain"
	"quoteline/internal/engine/auth"
	"quoteline/internal/events"
	"quoteline/internal/repo"
)

const minPasswordLength = 6

// RegisterOptions are parameters for creating an account.
type RegisterOptions struct {
	Email       string
	Password    string
	FirstName   string
	LastName    string
	Role        domain.Role
	Phone       string
	CompanyName string
}

func (o RegisterOptions) validate() error {
	if _, err := mail.ParseAddress(strings.TrimSpace(o.Email)); err != nil {
		return invalidInput("email %q is not valid", o.Email)
	}
	if len(o.Password) < minPasswordLength {
		return invalidInput("password must be at least %d characters", minPasswordLength)
	}
	if strings.TrimSpace(o.FirstName) == "" || strings.TrimSpace(o.LastName) == "" {
		return invalidInput("first and last name are required")
	}
	if !o.Role.Valid() {
		return invalidInput("role %q is not one of manager, staff, vendor", o.Role)
	}
	return nil
}

// Register creates an account. Without a caller only vendor self sign-up is
// allowed, except on an empty store where the first account may take any
// role. With a caller, the caller must be allowed to manage users.
func (e Engine) Register(ctx context.Context, caller *domain.Principal, opts RegisterOptions) (domain.User, error) {
	if err := opts.validate(); err != nil {
		return domain.User{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(opts.Password), e.HashCost)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := domain.FormatTime(e.now())
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        repo.NormalizeEmail(opts.Email),
		PasswordHash: string(hash),
		FirstName:    strings.TrimSpace(opts.FirstName),
		LastName:     strings.TrimSpace(opts.LastName),
		Role:         opts.Role,
		Phone:        strings.TrimSpace(opts.Phone),
		CompanyName:  strings.TrimSpace(opts.CompanyName),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	actorID := u.ID
	if caller != nil {
		if err := auth.Authorize(*caller, auth.UserManage, auth.Target{}); err != nil {
			return domain.User{}, err
		}
		actorID = caller.ID
	}
	err = e.inTx(ctx, func(tx *sql.Tx) error {
		if caller == nil && u.Role != domain.RoleVendor {
			n, err := e.Repo.CountUsers(ctx, tx, repo.UserFilters{})
			if err != nil {
				return err
			}
			if n > 0 {
				return auth.ForbiddenError{Action: auth.UserManage}
			}
		}
		if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				return fmt.Errorf("%w: email %s already registered", domain.ErrConflict, u.Email)
			}
			return err
		}
		return e.appendEvent(ctx, tx, events.UserRegistered, "user", u.ID, actorID, events.EventPayload{
			"email": u.Email,
			"role":  u.Role,
		})
	})
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// Authenticate checks credentials for an active account.
func (e Engine) Authenticate(ctx context.Context, email, password string) (domain.User, error) {
	u, err := e.Repo.GetUserByEmail(ctx, nil, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
		}
		return domain.User{}, storageError(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return domain.User{}, fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)
	}
	if !u.Active {
		return domain.User{}, fmt.Errorf("%w: account is deactivated", domain.ErrUnauthenticated)
	}
	return u, nil
}

// ResolvePrincipal maps an authenticated subject to the principal used for
// authorization. Unknown and deactivated accounts are unauthenticated.
func (e Engine) ResolvePrincipal(ctx context.Context, userID string) (domain.Principal, error) {
	u, err := e.Repo.GetUser(ctx, nil, userID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Principal{}, fmt.Errorf("%w: unknown subject", domain.ErrUnauthenticated)
		}
		return domain.Principal{}, storageError(err)
	}
	if !u.Active {
		return domain.Principal{}, fmt.Errorf("%w: account is deactivated", domain.ErrUnauthenticated)
	}
	return u.Principal(), nil
}

// ResolvePrincipalByEmail is ResolvePrincipal keyed by login email.
func (e Engine) ResolvePrincipalByEmail(ctx context.Context, email string) (domain.Principal, error) {
	u, err := e.Repo.GetUserByEmail(ctx, nil, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Principal{}, fmt.Errorf("%w: unknown account %s", domain.ErrUnauthenticated, email)
		}
		return domain.Principal{}, storageError(err)
	}
	return e.ResolvePrincipal(ctx, u.ID)
}

func (e Engine) Me(ctx context.Context, p domain.Principal) (domain.User, error) {
	u, err := e.Repo.GetUser(ctx, nil, p.ID)
	if err != nil {
		return domain.User{}, storageError(err)
	}
	return u, nil
}

// ListVendors returns active vendor accounts.
func (e Engine) ListVendors(ctx context.Context, p domain.Principal) ([]domain.User, error) {
	if err := auth.Authorize(p, auth.UserList, auth.Target{}); err != nil {
		return nil, err
	}
	users, err := e.Repo.ListUsers(ctx, repo.UserFilters{Role: domain.RoleVendor, ActiveOnly: true})
	if err != nil {
		return nil, storageError(err)
	}
	if users == nil {
		users = []domain.User{}
	}
	return users, nil
}

// SetUserActive activates or deactivates an account. Deactivated accounts
// fail principal resolution on their next request.
func (e Engine) SetUserActive(ctx context.Context, p domain.Principal, userID string, active bool) (domain.User, error) {
	if err := auth.Authorize(p, auth.UserManage, auth.Target{}); err != nil {
		return domain.User{}, err
	}
	if userID == p.ID && !active {
		return domain.User{}, invalidInput("cannot deactivate your own account")
	}
	var u domain.User
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		now := domain.FormatTime(e.now())
		if err := e.Repo.SetUserActive(ctx, tx, userID, active, now); err != nil {
			return err
		}
		var err error
		u, err = e.Repo.GetUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		evt := events.UserDeactivated
		if active {
			evt = events.UserActivated
		}
		return e.appendEvent(ctx, tx, evt, "user", userID, p.ID, nil)
	})
	return u, err
}
