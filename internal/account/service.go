package account

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/account/entity"
	accountrepo "github.com/ovaphlow/pitchfork/service-rewards-go/internal/account/repo"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/docstore"
	"github.com/ovaphlow/pitchfork/service-rewards-go/internal/mailer"
	"github.com/ovaphlow/pitchfork/service-rewards-go/pkg/utilities"
)

var (
	ErrAccountNotFound = errors.New("account not found")
	ErrNotRegistered   = errors.New("email is not registered")
	ErrEmailDispatch   = errors.New("verification email could not be sent")
	ErrBadCredentials  = errors.New("invalid email or password")
)

// ValidationError is an input problem found before any remote call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func invalid(field, msg string) error { return &ValidationError{Field: field, Message: msg} }

// Config holds the knobs of the signup and reset flows.
type Config struct {
	// BaseURL is the public origin verification links point at.
	BaseURL          string
	VerifyTemplateID string
	ResetTemplateID  string
	// PasswordMinLength is the shortest password accepted.
	PasswordMinLength int
	// ResetClearsVerification marks the account unverified again after a
	// password reset so the emailed link has to be followed.
	ResetClearsVerification bool
}

// DefaultConfig returns the flow defaults.
func DefaultConfig() Config {
	return Config{
		BaseURL:                 "http://localhost:8080",
		VerifyTemplateID:        "template_verify",
		ResetTemplateID:         "template_reset",
		PasswordMinLength:       6,
		ResetClearsVerification: true,
	}
}

// SubmitResult is the outcome of the check-then-insert step.
type SubmitResult struct {
	Created       bool
	AlreadyExists bool
	Link          string
	Account       *entity.Account
}

// SignupInput is the signup form.
type SignupInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Confirm     string `json:"confirm"`
	DisplayName string `json:"display_name"`
}

// SignupOutcome reports account creation and email delivery separately so
// a created account whose email failed is not mistaken for a failed signup.
type SignupOutcome struct {
	AccountCreated bool   `json:"accountCreated"`
	EmailSent      bool   `json:"emailSent"`
	AlreadyExists  bool   `json:"alreadyExists"`
	Link           string `json:"-"`
}

// ResetOutcome reports the password change and email delivery separately.
type ResetOutcome struct {
	PasswordChanged bool   `json:"passwordChanged"`
	EmailSent       bool   `json:"emailSent"`
	Link            string `json:"-"`
}

// Service runs signup, verification, password reset and sign-in against the
// accounts collection.
type Service struct {
	repo   *accountrepo.AccountRepo
	mail   mailer.Sender
	hasher PasswordHasher
	cfg    Config
	logger *zap.SugaredLogger
	now    func() time.Time
	newUID func() string
}

func NewService(store docstore.Store, sender mailer.Sender, hasher PasswordHasher, cfg Config, logger *zap.SugaredLogger) *Service {
	if hasher == nil {
		hasher = BcryptHasher{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.PasswordMinLength <= 0 {
		cfg.PasswordMinLength = DefaultConfig().PasswordMinLength
	}
	return &Service{
		repo:   accountrepo.NewAccountRepo(store),
		mail:   sender,
		hasher: hasher,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		newUID: utilities.NewKSUID,
	}
}

// VerificationLink builds <base>/auth/verify?id=<uid>&email=<email>.
func (s *Service) VerificationLink(uid, email string) string {
	return strings.TrimRight(s.cfg.BaseURL, "/") + "/auth/verify?id=" + url.QueryEscape(uid) + "&email=" + url.QueryEscape(email)
}

// SubmitSignup creates the account unless one with the same email exists.
// The existence query always completes before the insert. Two concurrent
// submissions can both pass the query; the unique index on email, when the
// store has one, turns the second insert into AlreadyExists.
func (s *Service) SubmitSignup(ctx context.Context, email, password string) (SubmitResult, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return SubmitResult{}, err
	}
	if err := s.validatePassword(password); err != nil {
		return SubmitResult{}, err
	}

	existing, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("check email: %w", err)
	}
	if len(existing) > 0 {
		s.logger.Debugw("signup for existing email", "email", email)
		return SubmitResult{AlreadyExists: true}, nil
	}

	hash, algo, err := s.hasher.Hash(password)
	if err != nil {
		return SubmitResult{}, fmt.Errorf("hash password: %w", err)
	}
	uid := s.newUID()
	link := s.VerificationLink(uid, email)
	acct := &entity.Account{
		UID:              uid,
		Email:            email,
		PasswordHash:     hash,
		PasswordAlgo:     algo,
		EmailVerified:    false,
		VerificationLink: link,
		CreatedAt:        s.stamp(),
	}
	if _, err := s.repo.Create(ctx, acct); err != nil {
		if errors.Is(err, docstore.ErrDuplicate) {
			return SubmitResult{AlreadyExists: true}, nil
		}
		return SubmitResult{}, fmt.Errorf("create account: %w", err)
	}
	s.logger.Infow("account created", "uid", uid)
	return SubmitResult{Created: true, Link: link, Account: acct}, nil
}

// DispatchVerificationEmail sends link to email. A failure is reported as
// ErrEmailDispatch and leaves the account in place.
func (s *Service) DispatchVerificationEmail(ctx context.Context, email, link, displayName string) error {
	return s.dispatch(ctx, s.cfg.VerifyTemplateID, email, link, displayName)
}

func (s *Service) dispatch(ctx context.Context, templateID, email, link, displayName string) error {
	if displayName == "" {
		displayName = email
	}
	res, err := s.mail.Send(ctx, templateID, email, mailer.Params{ToName: displayName, ToEmail: email, Link: link})
	if err == nil && !res.Success {
		err = fmt.Errorf("provider answered %d", res.StatusCode)
	}
	if err != nil {
		s.logger.Warnw("email dispatch failed", "template", templateID, "status", res.StatusCode, "err", err)
		return fmt.Errorf("%w: %v", ErrEmailDispatch, err)
	}
	return nil
}

// Signup validates the form, creates the account and sends the verification
// email.
func (s *Service) Signup(ctx context.Context, in SignupInput) (SignupOutcome, error) {
	if in.Password != in.Confirm {
		return SignupOutcome{}, invalid("confirm", "passwords do not match")
	}
	res, err := s.SubmitSignup(ctx, in.Email, in.Password)
	if err != nil {
		return SignupOutcome{}, err
	}
	if res.AlreadyExists {
		return SignupOutcome{AlreadyExists: true}, nil
	}
	if name := strings.TrimSpace(in.DisplayName); name != "" {
		res.Account.DisplayName = name
		if err := s.repo.Update(ctx, res.Account.ID, map[string]any{"displayName": name}); err != nil {
			s.logger.Warnw("set display name failed", "uid", res.Account.UID, "err", err)
		}
	}
	out := SignupOutcome{AccountCreated: true, Link: res.Link}
	out.EmailSent = s.DispatchVerificationEmail(ctx, res.Account.Email, res.Link, res.Account.DisplayName) == nil
	return out, nil
}

// VerifyEmail marks the account with the given uid as verified. The email
// must match the account's. Verifying twice is a no-op.
func (s *Service) VerifyEmail(ctx context.Context, uid, email string) (*entity.Account, error) {
	uid = strings.TrimSpace(uid)
	email = normalizeEmail(email)
	if uid == "" || email == "" {
		return nil, ErrAccountNotFound
	}
	found, err := s.repo.FindByUID(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if len(found) == 0 || found[0].Email != email {
		return nil, ErrAccountNotFound
	}
	acct := &found[0]
	if acct.EmailVerified {
		return acct, nil
	}
	acct.EmailVerified = true
	acct.VerifiedAt = s.stamp()
	if err := s.repo.Update(ctx, acct.ID, map[string]any{
		"emailVerified": true,
		"verifiedAt":    acct.VerifiedAt,
	}); err != nil {
		return nil, fmt.Errorf("verify account: %w", err)
	}
	s.logger.Infow("email verified", "uid", uid)
	return acct, nil
}

// CheckEmailExists reports whether an account uses email.
func (s *Service) CheckEmailExists(ctx context.Context, email string) (bool, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return false, err
	}
	found, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("check email: %w", err)
	}
	return len(found) > 0, nil
}

// ResetPassword overwrites the password of the account registered under
// email and emails a fresh verification link.
func (s *Service) ResetPassword(ctx context.Context, email, newPassword string) (ResetOutcome, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return ResetOutcome{}, err
	}
	if err := s.validatePassword(newPassword); err != nil {
		return ResetOutcome{}, err
	}
	found, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return ResetOutcome{}, fmt.Errorf("find account: %w", err)
	}
	if len(found) == 0 {
		return ResetOutcome{}, ErrNotRegistered
	}
	acct := found[0]

	hash, algo, err := s.hasher.Hash(newPassword)
	if err != nil {
		return ResetOutcome{}, fmt.Errorf("hash password: %w", err)
	}
	link := s.VerificationLink(acct.UID, email)
	fields := map[string]any{
		"passwordHash":      hash,
		"passwordAlgo":      algo,
		"passwordUpdatedAt": s.stamp(),
		"verificationLink":  link,
	}
	if s.cfg.ResetClearsVerification {
		fields["emailVerified"] = false
	}
	if err := s.repo.Update(ctx, acct.ID, fields); err != nil {
		return ResetOutcome{}, fmt.Errorf("reset password: %w", err)
	}
	s.logger.Infow("password reset", "uid", acct.UID)

	out := ResetOutcome{PasswordChanged: true, Link: link}
	out.EmailSent = s.dispatch(ctx, s.cfg.ResetTemplateID, email, link, acct.DisplayName) == nil
	return out, nil
}

// ResendVerification emails the stored verification link again. It returns
// the link that was sent.
func (s *Service) ResendVerification(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return "", err
	}
	found, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return "", fmt.Errorf("find account: %w", err)
	}
	if len(found) == 0 {
		return "", ErrNotRegistered
	}
	acct := found[0]
	link := acct.VerificationLink
	if link == "" {
		link = s.VerificationLink(acct.UID, acct.Email)
	}
	if err := s.DispatchVerificationEmail(ctx, acct.Email, link, acct.DisplayName); err != nil {
		return "", err
	}
	return link, nil
}

// SignIn checks the password and records the login time. Unverified
// accounts may sign in; the session carries the verified flag.
func (s *Service) SignIn(ctx context.Context, email, password string) (*entity.Account, error) {
	email = normalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, invalid("password", "password is required")
	}
	found, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("find account: %w", err)
	}
	if len(found) == 0 || !s.hasher.Verify(found[0].PasswordHash, password) {
		return nil, ErrBadCredentials
	}
	acct := &found[0]
	acct.LastLogin = s.stamp()
	fields := map[string]any{"lastLogin": acct.LastLogin}
	if s.hasher.NeedsRehash(acct.PasswordHash) {
		if hash, algo, err := s.hasher.Hash(password); err == nil {
			fields["passwordHash"], fields["passwordAlgo"] = hash, algo
		}
	}
	if err := s.repo.Update(ctx, acct.ID, fields); err != nil {
		s.logger.Warnw("record last login failed", "uid", acct.UID, "err", err)
	}
	return acct, nil
}

func (s *Service) stamp() string { return s.now().Format(entity.TimeLayout) }

// MaxPasswordBytes is the longest password bcrypt accepts.
const MaxPasswordBytes = 72

func (s *Service) validatePassword(pw string) error {
	if len(pw) < s.cfg.PasswordMinLength {
		return invalid("password", fmt.Sprintf("password must be at least %d characters", s.cfg.PasswordMinLength))
	}
	if len(pw) > MaxPasswordBytes {
		return invalid("password", fmt.Sprintf("password must be at most %d bytes", MaxPasswordBytes))
	}
	return nil
}

func normalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func validateEmail(email string) error {
	if email == "" {
		return invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@")+1:], ".") {
		return invalid("email", "email address is not valid")
	}
	return nil
}
