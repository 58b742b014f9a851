package accounts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/joinamana/amana-backend/internal/credit"
	"github.com/joinamana/amana-backend/internal/scoring"
	"github.com/joinamana/amana-backend/pkg/auth"
	"github.com/joinamana/amana-backend/pkg/config"
	"github.com/joinamana/amana-backend/pkg/db"
	"github.com/joinamana/amana-backend/pkg/db/models"
	"github.com/joinamana/amana-backend/pkg/enums"
	pkgerrors "github.com/joinamana/amana-backend/pkg/errors"
	"github.com/joinamana/amana-backend/pkg/security"
)

const maxPsychometricScore = 75

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages identity, onboarding and verification for retailers,
// agents and vendors.
type Service interface {
	RegisterRetailer(ctx context.Context, input RegisterRetailerInput) (*models.User, error)
	RegisterVendor(ctx context.Context, input RegisterVendorInput) (*models.Vendor, error)
	LoginUser(ctx context.Context, email, password string) (*models.User, string, error)
	LoginVendor(ctx context.Context, email, password string) (*models.Vendor, string, error)
	SubmitOnboarding(ctx context.Context, input OnboardingInput) (*models.User, error)
	ApproveRetailer(ctx context.Context, userID uuid.UUID) (*models.User, error)
	RejectRetailer(ctx context.Context, userID uuid.UUID) (*models.User, error)
	ApproveVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
	SetAgentFlag(ctx context.Context, userID uuid.UUID, isAgent bool) (*models.User, error)
	SetUserActive(ctx context.Context, userID uuid.UUID, active bool) (*models.User, error)
	LinkVendorProfile(ctx context.Context, userID, vendorID uuid.UUID) error
	UpdateVendorBank(ctx context.Context, input VendorBankInput) (*models.Vendor, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
}

type service struct {
	repo   Repository
	tx     txRunner
	credit credit.Service
	pwCfg  config.PasswordConfig
	jwtCfg config.JWTConfig
}

// RegisterRetailerInput creates an unverified retailer account.
type RegisterRetailerInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
}

// RegisterVendorInput creates an unverified vendor account.
type RegisterVendorInput struct {
	Email        string
	Password     string
	BusinessName string
	Phone        string
}

// OnboardingInput carries the facts that feed the initial trust score.
type OnboardingInput struct {
	UserID            uuid.UUID
	BusinessName      string
	BusinessAgeYears  int
	HasShopLocation   bool
	CapitalBand       string
	PsychometricScore int
	KYCComplete       bool
}

// VendorBankInput updates the payout destination on file.
type VendorBankInput struct {
	VendorID      uuid.UUID
	BankName      string
	AccountNumber string
	AccountName   string
}

// NewService wires the accounts service.
func NewService(
	repo Repository,
	tx txRunner,
	creditSvc credit.Service,
	pwCfg config.PasswordConfig,
	jwtCfg config.JWTConfig,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("accounts repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if creditSvc == nil {
		return nil, fmt.Errorf("credit service required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		credit: creditSvc,
		pwCfg:  pwCfg,
		jwtCfg: jwtCfg,
	}, nil
}

func (s *service) RegisterRetailer(ctx context.Context, input RegisterRetailerInput) (*models.User, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password required")
	}
	if input.FirstName == "" || input.LastName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "first and last name required")
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         enums.RoleRetailer,
		IsActive:     true,
		Verification: enums.VerificationStatusUnverified,
		Tier:         enums.TierBronze,
		CapitalBand:  scoring.CapitalBandLow,
	}
	if input.Phone != "" {
		phone := input.Phone
		user.Phone = &phone
	}

	if err := s.repo.CreateUser(ctx, user); err != nil {
		if isDuplicate(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create user")
	}
	return user, nil
}

func (s *service) RegisterVendor(ctx context.Context, input RegisterVendorInput) (*models.Vendor, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email and password required")
	}
	if input.BusinessName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "business name required")
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	vendor := &models.Vendor{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		BusinessName: input.BusinessName,
		IsActive:     true,
		Verification: enums.VerificationStatusUnverified,
	}
	if input.Phone != "" {
		phone := input.Phone
		vendor.Phone = &phone
	}

	if err := s.repo.CreateVendor(ctx, vendor); err != nil {
		if isDuplicate(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create vendor")
	}
	return vendor, nil
}

func (s *service) LoginUser(ctx context.Context, email, password string) (*models.User, string, error) {
	user, err := s.repo.FindUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}

	ok, err := security.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if !user.IsActive {
		return nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "account is suspended")
	}

	now := time.Now()
	token, err := auth.MintAccessToken(s.jwtCfg, now, auth.AccessTokenPayload{
		UserID:  user.ID,
		Role:    user.Role,
		IsAgent: user.IsAgent,
	})
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token")
	}

	user.LastLoginAt = &now
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update last login")
	}
	return user, token, nil
}

func (s *service) LoginVendor(ctx context.Context, email, password string) (*models.Vendor, string, error) {
	vendor, err := s.repo.FindVendorByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
		}
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}

	ok, err := security.VerifyPassword(password, vendor.PasswordHash)
	if err != nil || !ok {
		return nil, "", pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}
	if !vendor.IsActive {
		return nil, "", pkgerrors.New(pkgerrors.CodeForbidden, "account is suspended")
	}

	token, err := auth.MintAccessToken(s.jwtCfg, time.Now(), auth.AccessTokenPayload{
		UserID: vendor.ID,
		Role:   enums.RoleVendor,
	})
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint token")
	}
	return vendor, token, nil
}

func (s *service) SubmitOnboarding(ctx context.Context, input OnboardingInput) (*models.User, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.PsychometricScore < 0 || input.PsychometricScore > maxPsychometricScore {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "psychometric score out of range").
			WithDetails(map[string]any{"max": maxPsychometricScore})
	}
	switch input.CapitalBand {
	case scoring.CapitalBandHigh, scoring.CapitalBandMedium, scoring.CapitalBandLow:
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown capital band")
	}

	user, err := s.loadUser(ctx, input.UserID)
	if err != nil {
		return nil, err
	}
	if user.Verification == enums.VerificationStatusVerified {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "account is already verified")
	}

	if input.BusinessName != "" {
		name := input.BusinessName
		user.BusinessName = &name
	}
	user.BusinessAgeYears = input.BusinessAgeYears
	user.HasShopLocation = input.HasShopLocation
	user.CapitalBand = input.CapitalBand
	user.PsychometricScore = input.PsychometricScore
	user.KYCComplete = input.KYCComplete

	// A finished profile queues for admin review.
	if user.KYCComplete && user.BusinessName != nil {
		user.Verification = enums.VerificationStatusPending
	}

	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return user, nil
}

func (s *service) ApproveRetailer(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var user *models.User
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		var err error
		user, err = s.loadUserWith(ctx, repo, userID)
		if err != nil {
			return err
		}
		if user.Verification != enums.VerificationStatusPending {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "account is not pending review").
				WithDetails(map[string]any{"verification": user.Verification})
		}

		score := scoring.CalculateInitialScore(user.PsychometricScore, scoring.BusinessSignals{
			YearsInBusiness: user.BusinessAgeYears,
			HasShopLocation: user.HasShopLocation,
			CapitalBand:     user.CapitalBand,
		})
		if err := s.credit.ApplyScorecard(ctx, tx, user.ID, score); err != nil {
			return err
		}

		user.Verification = enums.VerificationStatusVerified
		if err := repo.UpdateUser(ctx, user); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.loadUser(ctx, userID)
}

func (s *service) RejectRetailer(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user.Verification != enums.VerificationStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "account is not pending review")
	}

	user.Verification = enums.VerificationStatusRejected
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return user, nil
}

func (s *service) ApproveVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	vendor, err := s.loadVendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if vendor.Verification == enums.VerificationStatusVerified {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "vendor is already verified")
	}

	vendor.Verification = enums.VerificationStatusVerified
	if err := s.repo.UpdateVendor(ctx, vendor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor")
	}
	return vendor, nil
}

func (s *service) SetAgentFlag(ctx context.Context, userID uuid.UUID, isAgent bool) (*models.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if isAgent && user.Verification != enums.VerificationStatusVerified {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only verified users can become agents")
	}

	user.IsAgent = isAgent
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return user, nil
}

func (s *service) SetUserActive(ctx context.Context, userID uuid.UUID, active bool) (*models.User, error) {
	user, err := s.loadUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	user.IsActive = active
	if err := s.repo.UpdateUser(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
	}
	return user, nil
}

func (s *service) LinkVendorProfile(ctx context.Context, userID, vendorID uuid.UUID) error {
	if userID == uuid.Nil || vendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user and vendor ids required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		user, err := s.loadUserWith(ctx, repo, userID)
		if err != nil {
			return err
		}
		vendor, err := repo.FindVendor(ctx, vendorID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
		}
		if user.LinkedVendorID != nil || vendor.LinkedUserID != nil {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "profile is already linked")
		}

		user.LinkedVendorID = &vendor.ID
		vendor.LinkedUserID = &user.ID
		if err := repo.UpdateUser(ctx, user); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update user")
		}
		if err := repo.UpdateVendor(ctx, vendor); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor")
		}
		return nil
	})
}

func (s *service) UpdateVendorBank(ctx context.Context, input VendorBankInput) (*models.Vendor, error) {
	if input.BankName == "" || input.AccountNumber == "" || input.AccountName == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bank name, account number and account name required")
	}

	vendor, err := s.loadVendor(ctx, input.VendorID)
	if err != nil {
		return nil, err
	}

	vendor.BankName = &input.BankName
	vendor.AccountNumber = &input.AccountNumber
	vendor.AccountName = &input.AccountName
	if err := s.repo.UpdateVendor(ctx, vendor); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update vendor")
	}
	return vendor, nil
}

func (s *service) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.loadUser(ctx, id)
}

func (s *service) GetVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	return s.loadVendor(ctx, id)
}

func (s *service) loadUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return s.loadUserWith(ctx, s.repo, id)
}

func (s *service) loadUserWith(ctx context.Context, repo Repository, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := repo.FindUser(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}

func (s *service) loadVendor(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	vendor, err := s.repo.FindVendor(ctx, id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	return vendor, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func isDuplicate(err error) bool {
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	return db.IsUniqueViolation(err, "")
}
