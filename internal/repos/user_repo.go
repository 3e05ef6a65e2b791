package repos

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"matchastock/internal/clock"
	"matchastock/internal/domain"
)

type UserRepo struct {
	DB  *sqlx.DB
	clk clock.Clock
}

func NewUserRepo(db *sqlx.DB, clk clock.Clock) *UserRepo { return &UserRepo{DB: db, clk: clk} }

const userColumns = `id, email, phone, created_at`

func (r *UserRepo) ByEmail(ctx context.Context, email string) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER(?)`, email)
}

func (r *UserRepo) ByPhone(ctx context.Context, phone string) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE phone = ?`, phone)
}

func (r *UserRepo) ByID(ctx context.Context, id string) (domain.User, error) {
	return r.one(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepo) one(ctx context.Context, q string, args ...any) (domain.User, error) {
	var u domain.User
	err := r.DB.GetContext(ctx, &u, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return u, domain.ErrNotFound
	}
	return u, err
}

// Upsert returns the user owning email or phone, creating one when neither
// is known. A known user gains any contact channel it was missing.
func (r *UserRepo) Upsert(ctx context.Context, email, phone *string) (domain.User, bool, error) {
	email, phone = normalized(email, true), normalized(phone, false)
	if email == nil && phone == nil {
		return domain.User{}, false, errors.New("user needs an email or a phone")
	}

	u, err := r.lookup(ctx, email, phone)
	if err == nil {
		return u, false, r.fillChannels(ctx, &u, email, phone)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return u, false, err
	}

	u = domain.User{ID: uuid.NewString(), Email: email, Phone: phone, CreatedAt: clock.Stamp(r.clk.Now())}
	res, err := r.DB.ExecContext(ctx, `
	  INSERT INTO users(id, email, phone, created_at) VALUES(?, ?, ?, ?)
	  ON CONFLICT DO NOTHING
	`, u.ID, u.Email, u.Phone, u.CreatedAt)
	if err != nil {
		return u, false, fmt.Errorf("insert user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		u, err = r.lookup(ctx, email, phone)
		return u, false, err
	}
	return u, true, nil
}

func (r *UserRepo) lookup(ctx context.Context, email, phone *string) (domain.User, error) {
	if email != nil {
		u, err := r.ByEmail(ctx, *email)
		if !errors.Is(err, domain.ErrNotFound) {
			return u, err
		}
	}
	if phone != nil {
		return r.ByPhone(ctx, *phone)
	}
	return domain.User{}, domain.ErrNotFound
}

// fillChannels adds the channels u is missing. A channel that already
// belongs to another user is left where it is.
func (r *UserRepo) fillChannels(ctx context.Context, u *domain.User, email, phone *string) error {
	if u.Email == nil && email != nil {
		ok, err := r.setChannel(ctx, "email", u.ID, *email)
		if err != nil {
			return err
		}
		if ok {
			u.Email = email
		}
	}
	if u.Phone == nil && phone != nil {
		ok, err := r.setChannel(ctx, "phone", u.ID, *phone)
		if err != nil {
			return err
		}
		if ok {
			u.Phone = phone
		}
	}
	return nil
}

func (r *UserRepo) setChannel(ctx context.Context, col, id, value string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE OR IGNORE users SET `+col+` = ? WHERE id = ? AND `+col+` IS NULL`, value, id)
	if err != nil {
		return false, fmt.Errorf("set %s: %w", col, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func normalized(s *string, lower bool) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	if lower {
		v = strings.ToLower(v)
	}
	return &v
}
