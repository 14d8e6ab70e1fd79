package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"net/url"
	"strings"

	"github.com/fjod/storefront/internal/auth"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/mailer"
	"github.com/fjod/storefront/internal/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserService struct {
	users     repository.UserRepository
	tokens    *auth.TokenManager
	hasher    auth.PasswordHasher
	mailer    mailer.Sender
	verifyURL string
}

// NewUserService builds the auth flow. verifyURL is the public endpoint the
// verification token is appended to as ?token=.
func NewUserService(users repository.UserRepository, tokens *auth.TokenManager, hasher auth.PasswordHasher, sender mailer.Sender, verifyURL string) *UserService {
	return &UserService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		mailer:    sender,
		verifyURL: verifyURL,
	}
}

type RegisterInput struct {
	FullName string
	Email    string
	Password string
}

type ChangePasswordInput struct {
	OldPassword     string
	NewPassword     string
	ConfirmPassword string
}

// Session is the result of a login or refresh.
type Session struct {
	User   *domain.User
	Tokens *auth.TokenPair
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	fullName := strings.TrimSpace(in.FullName)
	email := domain.NormalizeEmail(in.Email)

	var missing []string
	if fullName == "" {
		missing = append(missing, "fullName is required")
	}
	if email == "" {
		missing = append(missing, "email is required")
	}
	if strings.TrimSpace(in.Password) == "" {
		missing = append(missing, "password is required")
	}
	if len(missing) > 0 {
		return nil, domain.InvalidInput("all fields are required").WithDetails(missing...)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, domain.InvalidInput("invalid email address")
	}

	_, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return nil, domain.Conflict("user with this email already exists")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleCustomer,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, domain.Conflict("user with this email already exists")
		}
		return nil, err
	}

	s.sendVerification(ctx, user)
	return user, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, domain.InvalidInput("email and password are required")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, notFound(err, "user does not exist")
	}
	if !s.hasher.Compare(user.PasswordHash, password) {
		return nil, domain.Unauthorized("invalid credentials")
	}

	// a new login starts a new refresh family and retires the previous one
	version, err := s.users.BumpRefreshVersion(ctx, user.ID)
	if err != nil {
		return nil, notFound(err, "user does not exist")
	}
	user.RefreshTokenVersion = version

	pair, err := s.tokens.IssuePair(user, version)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}

// Refresh rotates the refresh token. A token whose version is behind the
// user's current one has already been used, so the whole family is revoked.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, domain.Unauthorized("refresh token is required")
	}
	claims, err := s.tokens.ParseRefresh(refreshToken)
	if err != nil {
		return nil, domain.Unauthorized("invalid refresh token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, domain.Unauthorized("invalid refresh token")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.Unauthorized("invalid refresh token")
		}
		return nil, err
	}

	if claims.Version != user.RefreshTokenVersion {
		return nil, s.revokeFamily(ctx, user.ID)
	}

	version, err := s.users.RotateRefreshVersion(ctx, user.ID, claims.Version)
	if err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			// lost a race with another refresh using the same token
			return nil, s.revokeFamily(ctx, user.ID)
		}
		return nil, err
	}
	user.RefreshTokenVersion = version

	pair, err := s.tokens.IssuePair(user, version)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Tokens: pair}, nil
}

func (s *UserService) revokeFamily(ctx context.Context, userID primitive.ObjectID) error {
	slog.WarnContext(ctx, "refresh token reuse detected, revoking sessions", "user_id", userID.Hex())
	if _, err := s.users.BumpRefreshVersion(ctx, userID); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return domain.Unauthorized("refresh token has been revoked")
}

func (s *UserService) Logout(ctx context.Context, userID primitive.ObjectID) error {
	if _, err := s.users.BumpRefreshVersion(ctx, userID); err != nil {
		return notFound(err, "user does not exist")
	}
	return nil
}

func (s *UserService) ChangePassword(ctx context.Context, userID primitive.ObjectID, in ChangePasswordInput) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return notFound(err, "user does not exist")
	}
	if !user.IsEmailVerified {
		return domain.Forbidden("verify your email before changing the password")
	}
	if in.OldPassword == "" || in.NewPassword == "" || in.ConfirmPassword == "" {
		return domain.InvalidInput("oldPassword, newPassword and confirmPassword are required")
	}
	if !s.hasher.Compare(user.PasswordHash, in.OldPassword) {
		return domain.Unauthorized("old password is incorrect")
	}
	if in.NewPassword != in.ConfirmPassword {
		return domain.InvalidInput("new password and confirm password do not match")
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return notFound(err, "user does not exist")
	}
	// sessions opened with the old password must log in again
	if _, err := s.users.BumpRefreshVersion(ctx, userID); err != nil {
		return err
	}
	return nil
}

func (s *UserService) CurrentUser(ctx context.Context, userID primitive.ObjectID) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, notFound(err, "user does not exist")
	}
	return user, nil
}

func (s *UserService) UpdateAccount(ctx context.Context, userID primitive.ObjectID, fullName string) (*domain.User, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, domain.InvalidInput("fullName is required")
	}

	user, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsEmailVerified {
		return nil, domain.Forbidden("verify your email before updating the account")
	}

	updated, err := s.users.UpdateFullName(ctx, userID, fullName)
	if err != nil {
		return nil, notFound(err, "user does not exist")
	}
	return updated, nil
}

func (s *UserService) VerifyEmail(ctx context.Context, token string) error {
	claims, err := s.tokens.ParseVerify(token)
	if err != nil {
		return domain.VerificationFailed("invalid or expired verification token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return domain.VerificationFailed("invalid or expired verification token")
	}

	if err := s.users.MarkEmailVerified(ctx, userID); err != nil {
		return notFound(err, "user does not exist")
	}
	return nil
}

// Authenticate validates an access token and returns the caller's identity.
func (s *UserService) Authenticate(_ context.Context, accessToken string) (*domain.Identity, error) {
	claims, err := s.tokens.ParseAccess(accessToken)
	if err != nil {
		return nil, domain.Unauthorized("invalid or expired access token")
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, domain.Unauthorized("invalid or expired access token")
	}
	return &domain.Identity{UserID: userID, Role: claims.Role}, nil
}

// sendVerification is best effort: a mail failure never fails registration.
func (s *UserService) sendVerification(ctx context.Context, user *domain.User) {
	if s.mailer == nil {
		return
	}
	token, err := s.tokens.IssueVerify(user.ID)
	if err != nil {
		slog.ErrorContext(ctx, "issue verification token", "user_id", user.ID.Hex(), "error", err)
		return
	}

	link := s.verifyURL + "?token=" + url.QueryEscape(token)
	body := fmt.Sprintf("Hi %s,\n\nconfirm your email address by opening:\n%s\n", user.FullName, link)
	if err := s.mailer.Send(ctx, user.Email, "Verify your email", body); err != nil {
		slog.ErrorContext(ctx, "send verification email", "user_id", user.ID.Hex(), "error", err)
	}
}
