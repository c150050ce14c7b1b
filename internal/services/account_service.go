package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	domain "github.com/Hoangthang194/review-agency-sub000/internal/domain"
	"github.com/Hoangthang194/review-agency-sub000/internal/platform/auth"
	"github.com/Hoangthang194/review-agency-sub000/internal/repositories"
)

const (
	accountIDPrefix        = "acc_"
	maxDisplayNameLength   = 80
	dummyPasswordForTiming = "timing-equaliser-password"
)

var (
	// ErrAccountInvalidInput indicates validation failures for account operations.
	ErrAccountInvalidInput = errors.New("account: invalid input")
	ErrAccountNotFound     = errors.New("account: not found")
	// ErrAccountConflict indicates the email is already registered.
	ErrAccountConflict = errors.New("account: conflict")
	// ErrInvalidCredentials is returned for unknown emails and wrong passwords alike.
	ErrInvalidCredentials = errors.New("account: invalid credentials")
	ErrAccountDisabled    = errors.New("account: disabled")
)

// AccountServiceDeps bundles collaborators required to construct an AccountService.
type AccountServiceDeps struct {
	Accounts    repositories.AccountRepository
	Clock       func() time.Time
	IDGenerator func() string
	// Hasher and Checker default to bcrypt; tests swap in cheap versions.
	Hasher  func(password string) (string, error)
	Checker func(hash, password string) error
}

type accountService struct {
	accounts repositories.AccountRepository
	clock    func() time.Time
	newID    func() string
	hash     func(string) (string, error)
	check    func(string, string) error

	dummyOnce sync.Once
	dummy     string
}

var _ AccountService = (*accountService)(nil)

func NewAccountService(deps AccountServiceDeps) (AccountService, error) {
	if deps.Accounts == nil {
		return nil, errors.New("account service: account repository is required")
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = newIDGenerator(accountIDPrefix)
	}
	hasher := deps.Hasher
	if hasher == nil {
		hasher = auth.HashPassword
	}
	checker := deps.Checker
	if checker == nil {
		checker = auth.CheckPassword
	}
	return &accountService{
		accounts: deps.Accounts,
		clock:    utcClock(deps.Clock),
		newID:    idGen,
		hash:     hasher,
		check:    checker,
	}, nil
}

func (s *accountService) List(ctx context.Context, pager Pagination) (domain.CursorPage[Account], error) {
	page, err := s.accounts.List(ctx, pager)
	if err != nil {
		return domain.CursorPage[Account]{}, mapListError(err, ErrAccountInvalidInput, ErrAccountNotFound, ErrAccountConflict)
	}
	for i := range page.Items {
		page.Items[i].PasswordHash = ""
	}
	return page, nil
}

func (s *accountService) Get(ctx context.Context, accountID string) (Account, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return Account{}, fmt.Errorf("%w: account id is required", ErrAccountInvalidInput)
	}
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return Account{}, s.mapError(err)
	}
	account.PasswordHash = ""
	return account, nil
}

func (s *accountService) Create(ctx context.Context, cmd CreateAccountCommand) (Account, error) {
	email, err := normalizeEmailAddress(cmd.Email)
	if err != nil {
		return Account{}, err
	}
	role := auth.NormalizeRole(cmd.Role)
	if role == "" {
		return Account{}, fmt.Errorf("%w: role must be admin or editor", ErrAccountInvalidInput)
	}
	name, err := normalizeDisplayName(cmd.DisplayName, email)
	if err != nil {
		return Account{}, err
	}
	hash, err := s.hashPassword(cmd.Password)
	if err != nil {
		return Account{}, err
	}

	now := s.clock()
	account := Account{
		ID:           s.newID(),
		Email:        email,
		DisplayName:  name,
		Role:         role,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Insert(ctx, account); err != nil {
		return Account{}, s.mapError(err)
	}
	account.PasswordHash = ""
	return account, nil
}

func (s *accountService) Update(ctx context.Context, cmd UpdateAccountCommand) (Account, error) {
	accountID := strings.TrimSpace(cmd.AccountID)
	if accountID == "" {
		return Account{}, fmt.Errorf("%w: account id is required", ErrAccountInvalidInput)
	}
	account, err := s.accounts.FindByID(ctx, accountID)
	if err != nil {
		return Account{}, s.mapError(err)
	}

	self := strings.TrimSpace(cmd.ActorID) == accountID
	if cmd.DisplayName != nil {
		name, err := normalizeDisplayName(*cmd.DisplayName, account.Email)
		if err != nil {
			return Account{}, err
		}
		account.DisplayName = name
	}
	if cmd.Role != nil {
		role := auth.NormalizeRole(*cmd.Role)
		if role == "" {
			return Account{}, fmt.Errorf("%w: role must be admin or editor", ErrAccountInvalidInput)
		}
		if self && role != account.Role {
			return Account{}, fmt.Errorf("%w: cannot change your own role", ErrAccountInvalidInput)
		}
		account.Role = role
	}
	if cmd.Disabled != nil {
		if self && *cmd.Disabled {
			return Account{}, fmt.Errorf("%w: cannot disable your own account", ErrAccountInvalidInput)
		}
		account.Disabled = *cmd.Disabled
	}
	if cmd.Password != nil {
		hash, err := s.hashPassword(*cmd.Password)
		if err != nil {
			return Account{}, err
		}
		account.PasswordHash = hash
	}

	account.UpdatedAt = s.clock()
	if err := s.accounts.Update(ctx, account); err != nil {
		return Account{}, s.mapError(err)
	}
	account.PasswordHash = ""
	return account, nil
}

func (s *accountService) Delete(ctx context.Context, cmd DeleteAccountCommand) error {
	accountID := strings.TrimSpace(cmd.AccountID)
	if accountID == "" {
		return fmt.Errorf("%w: account id is required", ErrAccountInvalidInput)
	}
	if accountID == strings.TrimSpace(cmd.ActorID) {
		return fmt.Errorf("%w: cannot delete your own account", ErrAccountInvalidInput)
	}
	return s.mapError(s.accounts.Delete(ctx, accountID))
}

func (s *accountService) Authenticate(ctx context.Context, email, password string) (Account, error) {
	normalized, err := normalizeEmailAddress(email)
	if err != nil || password == "" {
		return Account{}, ErrInvalidCredentials
	}
	account, err := s.accounts.FindByEmail(ctx, normalized)
	if err != nil {
		if isNotFound(err) {
			// keep response time independent of whether the email exists
			_ = s.check(s.dummyHash(), password)
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, s.mapError(err)
	}
	if account.PasswordHash == "" {
		return Account{}, ErrInvalidCredentials
	}
	if err := s.check(account.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return Account{}, ErrInvalidCredentials
		}
		return Account{}, err
	}
	if account.Disabled {
		return Account{}, ErrAccountDisabled
	}

	now := s.clock()
	account.LastLoginAt = &now
	account.UpdatedAt = now
	if err := s.accounts.Update(ctx, account); err != nil {
		return Account{}, s.mapError(err)
	}
	account.PasswordHash = ""
	return account, nil
}

func (s *accountService) EnsureBootstrapAdmin(ctx context.Context, email, password string) (Account, bool, error) {
	if strings.TrimSpace(email) == "" {
		return Account{}, false, nil
	}
	count, err := s.accounts.Count(ctx)
	if err != nil {
		return Account{}, false, s.mapError(err)
	}
	if count > 0 {
		return Account{}, false, nil
	}
	account, err := s.Create(ctx, CreateAccountCommand{
		Email:       email,
		DisplayName: "Administrator",
		Role:        auth.RoleAdmin,
		Password:    password,
	})
	if errors.Is(err, ErrAccountConflict) {
		// another instance won the race
		return Account{}, false, nil
	}
	if err != nil {
		return Account{}, false, err
	}
	return account, true, nil
}

func (s *accountService) hashPassword(password string) (string, error) {
	hash, err := s.hash(password)
	switch {
	case errors.Is(err, auth.ErrPasswordTooShort), errors.Is(err, auth.ErrPasswordTooLong):
		return "", fmt.Errorf("%w: %v", ErrAccountInvalidInput, err)
	case err != nil:
		return "", err
	}
	return hash, nil
}

func (s *accountService) dummyHash() string {
	s.dummyOnce.Do(func() {
		s.dummy, _ = s.hash(dummyPasswordForTiming)
	})
	return s.dummy
}

func (s *accountService) mapError(err error) error {
	return mapRepositoryError(err, ErrAccountNotFound, ErrAccountConflict)
}

func normalizeEmailAddress(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", fmt.Errorf("%w: email is required", ErrAccountInvalidInput)
	}
	email, ok := parseEmail(raw)
	if !ok {
		return "", fmt.Errorf("%w: email is invalid", ErrAccountInvalidInput)
	}
	return email, nil
}

func normalizeDisplayName(raw, email string) (string, error) {
	name := sanitizeText(raw)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	if utf8.RuneCountInString(name) > maxDisplayNameLength {
		return "", fmt.Errorf("%w: display name must be at most %d characters", ErrAccountInvalidInput, maxDisplayNameLength)
	}
	return name, nil
}
