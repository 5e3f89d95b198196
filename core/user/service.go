package user

import (
	"context"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/kaushal/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrUsernameExists     = errors.New("a user with this username already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactive           = errors.New("user account is disabled")

	NowFunc = func() time.Time { return time.Now().UTC() } // mockable
)

type (
	Repository interface {
		CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...User) error
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id string) (User, error)
		// GetUserByUsernameOrEmail matches `username` against both the usernames and the emails.
		GetUserByUsernameOrEmail(ctx context.Context, username string) (User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo       Repository
		validate   *validator.Validate
		translator ut.Translator
	}
)

func NewService(repo Repository, validate *validator.Validate, translator ut.Translator) *Service {
	return &Service{repo: repo, validate: validate, translator: translator}
}

func (svc *Service) checkUniqueness(ctx context.Context, uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(ctx, uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Create validates and stores a new active user.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	nu.Clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email); err != nil {
		return User{}, err
	}

	now := NowFunc()
	usr := User{
		ID:         uuid.NewString(),
		Name:       nu.Name,
		Username:   nu.Username,
		Email:      nu.Email,
		DistrictID: nu.DistrictID,
		IsActive:   true,
		Roles:      nu.Roles,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateUser(ctx, usr)
}

// Upsert creates the user, or updates the one holding nu.Username. created reports which happened.
func (svc *Service) Upsert(ctx context.Context, nu NewUser) (usr User, created bool, err error) {
	nu.Clean()
	usr, err = svc.repo.GetUserByUsernameOrEmail(ctx, nu.Username)
	if err == ErrNotFound {
		usr, err = svc.Create(ctx, nu)
		return usr, err == nil, err
	}
	if err != nil {
		return User{}, false, err
	}

	if err = svc.validate.Struct(nu); err != nil {
		return User{}, false, err
	}
	if err = svc.checkUniqueness(ctx, nu.Username, nu.Email, usr); err != nil {
		return User{}, false, err
	}
	if nu.Name != "" {
		usr.Name = nu.Name
	}
	usr.Email = nu.Email
	usr.DistrictID = nu.DistrictID
	usr.Roles = nu.Roles
	usr.IsActive = true
	usr.UpdatedAt = NowFunc()
	if err = usr.SetPassword(nu.Password); err != nil {
		return User{}, false, errors.Wrap(err, "hashing password")
	}
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, false, err
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByUsernameOrEmail(ctx context.Context, uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(ctx, core.CleanString(uname, true /* lower */))
}

// Authenticate checks the credentials of an active user and records the login.
func (svc *Service) Authenticate(ctx context.Context, uname, pwd string) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err == ErrNotFound {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrInactive
	}

	usr.LastLogin = NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}

// ResetPassword sets a new password on the user holding `uname` as username or email.
func (svc *Service) ResetPassword(ctx context.Context, uname string, sp SetPassword) (User, error) {
	usr, err := svc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return User{}, err
	}
	if err = svc.validate.Struct(sp); err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(sp.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = NowFunc()
	return svc.repo.UpdateUser(ctx, usr)
}
