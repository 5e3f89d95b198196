package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kaushal/core/user"
)

const userColumns = `id, name, username, email, district_id, roles, is_active, password_hash, created_at, updated_at, last_login`

type dbUser struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     sql.NullString `db:"username"`
	Email        sql.NullString `db:"email"`
	DistrictID   string         `db:"district_id"`
	Roles        string         `db:"roles"`
	IsActive     bool           `db:"is_active"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// boil converts a user.User to its row.
func boil(usr user.User) dbUser {
	return dbUser{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     nullString(usr.Username),
		Email:        nullString(usr.Email),
		DistrictID:   usr.DistrictID,
		Roles:        strings.Join(usr.Roles, ","),
		IsActive:     usr.IsActive,
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

// unboil converts a row to a user.User.
func unboil(dbu dbUser) user.User {
	usr := user.User{
		ID:           dbu.ID,
		Name:         dbu.Name,
		Username:     dbu.Username.String,
		Email:        dbu.Email.String,
		DistrictID:   dbu.DistrictID,
		IsActive:     dbu.IsActive,
		PasswordHash: dbu.PasswordHash,
		CreatedAt:    dbu.CreatedAt.UTC(),
		UpdatedAt:    dbu.UpdatedAt.UTC(),
	}
	if dbu.Roles != "" {
		usr.Roles = strings.Split(dbu.Roles, ",")
	}
	if dbu.LastLogin.Valid {
		usr.LastLogin = dbu.LastLogin.Time.UTC()
	}
	return usr
}

func trapNoRowsErr(err error) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return err
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	q := `SELECT username, email FROM "user" WHERE (username = ? OR email = ?)`
	args := []interface{}{nullString(username), nullString(email)}
	if len(excludedUsers) > 0 {
		ids := make([]string, len(excludedUsers))
		for i, u := range excludedUsers {
			ids[i] = u.ID
		}
		inQ, inArgs, err := sqlx.In(" AND id NOT IN (?)", ids)
		if err != nil {
			return errors.Wrap(err, "building uniqueness query")
		}
		q += inQ
		args = append(args, inArgs...)
	}

	var matches []struct {
		Username sql.NullString `db:"username"`
		Email    sql.NullString `db:"email"`
	}
	if err := repo.db.SelectContext(ctx, &matches, repo.db.Rebind(q), args...); err != nil {
		return errors.Wrap(err, "checking user uniqueness")
	}
	for _, m := range matches {
		if username != "" && m.Username.String == username {
			return user.ErrUsernameExists
		}
		if email != "" && m.Email.String == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `INSERT INTO "user" (` + userColumns + `) VALUES (:id, :name, :username, :email, :district_id, :roles, ` +
		`:is_active, :password_hash, :created_at, :updated_at, :last_login)`
	if _, err := repo.db.NamedExecContext(ctx, q, boil(usr)); err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.GetUserByID(ctx, usr.ID)
}

func (repo *userRepository) get(ctx context.Context, where string, args ...interface{}) (user.User, error) {
	var dbu dbUser
	q := repo.db.Rebind(`SELECT ` + userColumns + ` FROM "user" WHERE ` + where + ` LIMIT 1`)
	if err := repo.db.GetContext(ctx, &dbu, q, args...); err != nil {
		return user.User{}, trapNoRowsErr(err)
	}
	return unboil(dbu), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	return repo.get(ctx, "id = ?", id)
}

func (repo *userRepository) GetUserByUsernameOrEmail(ctx context.Context, username string) (user.User, error) {
	return repo.get(ctx, "username = ? OR email = ?", username, username)
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	q := `UPDATE "user" SET name = :name, username = :username, email = :email, district_id = :district_id, ` +
		`roles = :roles, is_active = :is_active, password_hash = :password_hash, updated_at = :updated_at, ` +
		`last_login = :last_login WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, boil(usr))
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}
