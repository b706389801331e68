package accounts

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/unicode/norm"

	"github.com/miniintern/bizboard/internal/authz"
	"github.com/miniintern/bizboard/internal/shared"
)

// ErrDuplicateUsername indicates the username is taken.
var ErrDuplicateUsername = errors.New("accounts: duplicate username")

// Repository defines persistence operations for credentials.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*User, error)
	FindByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, user NewUser) (*User, error)
}

// BusinessLookup reports whether a business exists.
type BusinessLookup interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

var usernamePattern = regexp.MustCompile(`^[\p{L}\p{N}@.+\-_]+$`)

// Service wraps credential business rules.
type Service struct {
	repo       Repository
	businesses BusinessLookup
	validate   *validator.Validate
	hashCost   int
}

// NewService constructs a Service.
func NewService(repo Repository, businesses BusinessLookup) *Service {
	v := shared.NewValidator()
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return &Service{repo: repo, businesses: businesses, validate: v, hashCost: bcrypt.DefaultCost}
}

// WithHashCost overrides the bcrypt cost, mainly to keep tests fast.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// NormalizeUsername applies NFKC normalization and trims surrounding space.
func NormalizeUsername(username string) string {
	return norm.NFKC.String(strings.TrimSpace(username))
}

// Register validates the input and stores a new credential.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	in.Username = NormalizeUsername(in.Username)
	verr := &shared.ValidationError{}
	if err := shared.CollectFieldErrors(verr, s.validate.Struct(in), fieldMessage); err != nil {
		return nil, err
	}
	role, roleErr := authz.ParseRole(in.Role)
	if in.Role != "" && roleErr != nil {
		verr.Add("role", fmt.Sprintf("%q is not a valid choice.", in.Role))
	}
	if in.Password != "" && in.Password2 != "" && in.Password != in.Password2 {
		verr.Add("password", "Password fields didn't match.")
	}
	if in.Password != "" {
		if reason := checkPassword(in.Password, in.Username); reason != "" {
			verr.Add("password", reason)
		}
	}
	if in.BusinessID != nil {
		ok, err := s.businesses.Exists(ctx, *in.BusinessID)
		if err != nil {
			return nil, fmt.Errorf("accounts: lookup business: %w", err)
		}
		if !ok {
			verr.Add("business", fmt.Sprintf("Invalid pk %q - object does not exist.", fmt.Sprint(*in.BusinessID)))
		}
	}
	if in.Username != "" && verr.Fields["username"] == "" {
		if _, err := s.repo.FindByUsername(ctx, in.Username); err == nil {
			verr.Add("username", "A user with that username already exists.")
		} else if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("accounts: lookup username: %w", err)
		}
	}
	if !verr.Empty() {
		return nil, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("accounts: hash password: %w", err)
	}
	user, err := s.repo.Create(ctx, NewUser{
		Username:     in.Username,
		PasswordHash: string(hash),
		Role:         role,
		BusinessID:   in.BusinessID,
	})
	if errors.Is(err, ErrDuplicateUsername) {
		return nil, shared.NewValidationError("username", "A user with that username already exists.")
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Get loads a credential by id.
func (s *Service) Get(ctx context.Context, id int64) (*User, error) {
	return s.repo.FindByID(ctx, id)
}

func fieldMessage(fe validator.FieldError) string {
	if fe.Tag() == "username" {
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	}
	return shared.FieldMessage(fe)
}
