package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"site-inspector/internal/event"
	"site-inspector/internal/metrics"
	"site-inspector/internal/model"
	"site-inspector/internal/notify"
	"site-inspector/internal/repository"
	"site-inspector/internal/validate"
)

// ForgotPasswordMessage is returned for every forgot-password request so the
// response never reveals whether an account exists.
const ForgotPasswordMessage = "If an account with that email exists, a password reset link has been sent."

type AuthConfig struct {
	BcryptCost       int
	MaxFailedLogins  int
	LockoutDuration  time.Duration
	PasswordResetTTL time.Duration
	PasswordResetURL string
}

type AuthService struct {
	users   repository.UserStore
	tokens  *TokenService
	resets  repository.ResetTokenStore
	sender  notify.Sender
	bus     event.Bus
	metrics *metrics.Metrics
	cfg     AuthConfig

	// dummyHash keeps unknown-email logins as slow as wrong-password ones.
	dummyHash []byte
	mailWG    sync.WaitGroup
}

func NewAuthService(
	users repository.UserStore,
	tokens *TokenService,
	resets repository.ResetTokenStore,
	sender notify.Sender,
	bus event.Bus,
	m *metrics.Metrics,
	cfg AuthConfig,
) (*AuthService, error) {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	if bus == nil {
		bus = event.NopBus{}
	}
	if sender == nil {
		sender = notify.LogSender{}
	}

	dummy, err := bcrypt.GenerateFromPassword([]byte(uuid.NewString()), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}

	return &AuthService{
		users:     users,
		tokens:    tokens,
		resets:    resets,
		sender:    sender,
		bus:       bus,
		metrics:   m,
		cfg:       cfg,
		dummyHash: dummy,
	}, nil
}

func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, client model.ClientInfo) (model.TokenPair, error) {
	req.Email = normalizeEmail(req.Email)
	req.Username = strings.TrimSpace(req.Username)
	req.FullName = strings.TrimSpace(req.FullName)
	if err := validate.Struct(&req); err != nil {
		return model.TokenPair{}, err
	}
	if err := checkPasswordBytes("password", req.Password); err != nil {
		return model.TokenPair{}, err
	}

	exists, err := s.users.ExistsByEmail(ctx, req.Email)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !exists {
		exists, err = s.users.ExistsByUsername(ctx, req.Username)
		if err != nil {
			return model.TokenPair{}, err
		}
	}
	if exists {
		return model.TokenPair{}, model.ErrUserAlreadyExists
	}

	hash, err := s.hashPassword(req.Password)
	if err != nil {
		return model.TokenPair{}, err
	}

	now := s.tokens.Now()
	user := model.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		FullName:     req.FullName,
		PasswordHash: hash,
		Role:         model.RoleEngineer,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	// The unique indexes still decide a race between two identical sign-ups.
	if err := s.users.Create(ctx, user); err != nil {
		return model.TokenPair{}, err
	}

	pair, err := s.tokens.IssueTokens(ctx, user, client)
	if err != nil {
		return model.TokenPair{}, err
	}

	s.publish(s.event(event.TypeUserRegistered, user.ID, user.Role, client, "user:"+user.ID))
	slog.Info("user registered", "user_id", user.ID, "role", user.Role)
	return pair, nil
}

// Login returns model.ErrInvalidCredentials for every authentication
// failure: unknown email, wrong password, inactive or locked account.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest, client model.ClientInfo) (model.TokenPair, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return model.TokenPair{}, err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, model.ErrUserNotFound) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return model.TokenPair{}, s.loginFailed(ctx, "", client, "unknown_email")
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	now := s.tokens.Now()

	if !user.IsActive {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return model.TokenPair{}, s.loginFailed(ctx, user.ID, client, "inactive")
	}

	if user.IsLocked(now) {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
		return model.TokenPair{}, s.loginFailed(ctx, user.ID, client, "locked")
	}

	// An elapsed lock starts a fresh failure window.
	if user.LockedUntil != nil {
		if err := s.users.ResetFailedAttempts(ctx, user.ID, now); err != nil {
			return model.TokenPair{}, err
		}
		user.FailedLoginAttempts = 0
		user.LockedUntil = nil
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return model.TokenPair{}, s.recordBadPassword(ctx, user, client, now)
	}

	if user.FailedLoginAttempts > 0 {
		if err := s.users.ResetFailedAttempts(ctx, user.ID, now); err != nil {
			return model.TokenPair{}, err
		}
	}

	pair, err := s.tokens.IssueTokens(ctx, user, client)
	if err != nil {
		return model.TokenPair{}, err
	}

	s.metrics.LoginAttempt("success")
	s.publish(s.event(event.TypeLoginSucceeded, user.ID, user.Role, client, "user:"+user.ID))
	return pair, nil
}

// Refresh rotates raw. See TokenService.ValidateAndRotate.
func (s *AuthService) Refresh(ctx context.Context, raw string, client model.ClientInfo) (model.TokenPair, error) {
	pair, err := s.tokens.ValidateAndRotate(ctx, raw, client)
	if errors.Is(err, model.ErrInvalidToken) {
		s.publish(s.event(event.TypeTokenRejected, "", "", client, "refresh_token").Failed("invalid refresh token"))
		return model.TokenPair{}, err
	}
	if err != nil {
		return model.TokenPair{}, err
	}

	s.publish(s.event(event.TypeTokenRotated, pair.User.ID, pair.User.Role, client, "user:"+pair.User.ID))
	return pair, nil
}

// Logout succeeds for unknown, expired or already revoked tokens. Only store
// failures are returned.
func (s *AuthService) Logout(ctx context.Context, raw string, client model.ClientInfo) error {
	revoked, err := s.tokens.Revoke(ctx, raw, "logout")
	if err != nil {
		return err
	}

	e := s.event(event.TypeLogout, "", "", client, "refresh_token")
	e.Details = map[string]any{"revoked": revoked}
	s.publish(e)
	return nil
}

func (s *AuthService) LogoutAll(ctx context.Context, caller model.AuthClaims, client model.ClientInfo) (int64, error) {
	n, err := s.tokens.RevokeAllForUser(ctx, caller.UserID, caller.UserID)
	if err != nil {
		return 0, err
	}

	e := s.event(event.TypeLogoutAll, caller.UserID, caller.Role, client, "user:"+caller.UserID)
	e.Details = map[string]any{"revoked": n}
	s.publish(e)
	return n, nil
}

func (s *AuthService) Me(ctx context.Context, userID string) (model.AuthUser, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.AuthUser{}, err
	}
	return user.Public(), nil
}

// ChangePassword revokes every refresh token of the user, including the one
// used by the caller, and returns a freshly issued pair.
func (s *AuthService) ChangePassword(ctx context.Context, userID string, req model.ChangePasswordRequest, client model.ClientInfo) (model.TokenPair, error) {
	if err := validate.Struct(&req); err != nil {
		return model.TokenPair{}, err
	}
	if err := checkPasswordBytes("new_password", req.NewPassword); err != nil {
		return model.TokenPair{}, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.TokenPair{}, err
	}
	if !user.IsActive {
		return model.TokenPair{}, model.ErrUnauthorized
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		s.publish(s.event(event.TypePasswordChanged, user.ID, user.Role, client, "user:"+user.ID).Failed("invalid current password"))
		return model.TokenPair{}, model.ErrInvalidCurrentPassword
	}

	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return model.TokenPair{}, err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.tokens.Now()); err != nil {
		return model.TokenPair{}, err
	}

	revoked, err := s.tokens.RevokeAllForUser(ctx, user.ID, user.ID)
	if err != nil {
		return model.TokenPair{}, err
	}

	pair, err := s.tokens.IssueTokens(ctx, user, client)
	if err != nil {
		return model.TokenPair{}, err
	}

	e := s.event(event.TypePasswordChanged, user.ID, user.Role, client, "user:"+user.ID)
	e.Details = map[string]any{"revoked_sessions": revoked}
	s.publish(e)
	slog.Info("password changed", "user_id", user.ID, "revoked_sessions", revoked)
	return pair, nil
}

// ForgotPassword returns ForgotPasswordMessage whether or not the email
// belongs to an active account. Mail goes out in the background.
func (s *AuthService) ForgotPassword(ctx context.Context, req model.ForgotPasswordRequest, client model.ClientInfo) (string, error) {
	req.Email = normalizeEmail(req.Email)
	if err := validate.Struct(&req); err != nil {
		return "", err
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if errors.Is(err, model.ErrUserNotFound) {
		return ForgotPasswordMessage, nil
	}
	if err != nil {
		return "", err
	}
	if !user.IsActive {
		return ForgotPasswordMessage, nil
	}

	raw, err := newRefreshSecret()
	if err != nil {
		return "", fmt.Errorf("generate reset token: %w", err)
	}

	if err := s.resets.Save(ctx, HashToken(raw), user.ID, s.cfg.PasswordResetTTL); err != nil {
		return "", err
	}

	msg, err := notify.PasswordResetMessage(user.Email, s.cfg.PasswordResetURL, raw, s.cfg.PasswordResetTTL)
	if err != nil {
		return "", err
	}

	s.dispatch(ctx, user.ID, msg)
	s.publish(s.event(event.TypeResetRequested, user.ID, user.Role, client, "user:"+user.ID))
	return ForgotPasswordMessage, nil
}

// ResetPassword consumes a reset token once, sets the new password, clears
// any lockout and revokes every refresh token of the user.
func (s *AuthService) ResetPassword(ctx context.Context, req model.ResetPasswordRequest, client model.ClientInfo) error {
	if err := validate.Struct(&req); err != nil {
		return err
	}
	if err := checkPasswordBytes("new_password", req.NewPassword); err != nil {
		return err
	}

	userID, err := s.resets.Consume(ctx, HashToken(strings.TrimSpace(req.Token)))
	if errors.Is(err, model.ErrTokenNotFound) {
		return model.ErrInvalidToken
	}
	if err != nil {
		return err
	}

	user, err := s.users.FindByID(ctx, userID)
	if errors.Is(err, model.ErrUserNotFound) {
		return model.ErrInvalidToken
	}
	if err != nil {
		return err
	}
	if !user.IsActive {
		return model.ErrInvalidToken
	}

	hash, err := s.hashPassword(req.NewPassword)
	if err != nil {
		return err
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash, s.tokens.Now()); err != nil {
		return err
	}

	if _, err := s.tokens.RevokeAllForUser(ctx, user.ID, "password_reset"); err != nil {
		return err
	}

	s.publish(s.event(event.TypePasswordReset, user.ID, user.Role, client, "user:"+user.ID))
	return nil
}

// SetUserActive toggles an account. Deactivation also revokes every refresh
// token, so the user is locked out once the current access token expires.
func (s *AuthService) SetUserActive(ctx context.Context, caller model.AuthClaims, userID string, active bool, client model.ClientInfo) (model.AuthUser, error) {
	if caller.UserID == userID && !active {
		return model.AuthUser{}, validate.Fail("You cannot deactivate your own account.")
	}
	if !active {
		if err := s.keepOneAdmin(ctx, userID); err != nil {
			return model.AuthUser{}, err
		}
	}

	if err := s.users.SetActive(ctx, userID, active, s.tokens.Now()); err != nil {
		return model.AuthUser{}, err
	}

	typ := event.TypeUserActivated
	if !active {
		typ = event.TypeUserDeactivated
		if _, err := s.tokens.RevokeAllForUser(ctx, userID, caller.UserID); err != nil {
			return model.AuthUser{}, err
		}
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return model.AuthUser{}, err
	}

	s.publish(s.event(typ, caller.UserID, caller.Role, client, "user:"+userID))
	return user.Public(), nil
}

// keepOneAdmin refuses to deactivate the only remaining active Admin. A caller
// holding an unexpired access token after their own deactivation could
// otherwise lock every administrator out.
func (s *AuthService) keepOneAdmin(ctx context.Context, userID string) error {
	target, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return err
	}
	if target.Role != model.RoleAdmin || !target.IsActive {
		return nil
	}

	n, err := s.users.CountActiveAdmins(ctx)
	if err != nil {
		return err
	}
	if n <= 1 {
		return validate.Fail("The last active administrator cannot be deactivated.")
	}
	return nil
}

// EnsureAdmin creates an Admin account for email unless one already exists.
func (s *AuthService) EnsureAdmin(ctx context.Context, email string, password string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	hash, err := s.hashPassword(password)
	if err != nil {
		return err
	}

	username, _, _ := strings.Cut(email, "@")
	now := s.tokens.Now()
	admin := model.User{
		ID:           uuid.NewString(),
		Email:        email,
		Username:     username,
		FullName:     "Administrator",
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.Create(ctx, admin); err != nil && !errors.Is(err, model.ErrUserAlreadyExists) {
		return err
	}

	slog.Info("admin account seeded", "email", email)
	return nil
}

// Wait blocks until background mail deliveries finish.
func (s *AuthService) Wait() {
	s.mailWG.Wait()
}

func (s *AuthService) recordBadPassword(ctx context.Context, user model.User, client model.ClientInfo, now time.Time) error {
	attempts, err := s.users.IncrementFailedAttempts(ctx, user.ID, now)
	if err != nil {
		return err
	}

	if attempts >= s.cfg.MaxFailedLogins {
		until := now.Add(s.cfg.LockoutDuration)
		if err := s.users.LockAccount(ctx, user.ID, until, now); err != nil {
			return err
		}

		e := s.event(event.TypeAccountLocked, user.ID, user.Role, client, "user:"+user.ID)
		e.Details = map[string]any{"failed_attempts": attempts, "locked_until": until.Format(time.RFC3339)}
		s.publish(e)
		slog.Warn("account locked", "user_id", user.ID, "failed_attempts", attempts, "locked_until", until)
	}

	return s.loginFailed(ctx, user.ID, client, "bad_password")
}

// loginFailed records the real reason internally and returns the generic error.
func (s *AuthService) loginFailed(_ context.Context, userID string, client model.ClientInfo, reason string) error {
	s.metrics.LoginAttempt(reason)

	resource := "auth"
	if userID != "" {
		resource = "user:" + userID
	}

	e := s.event(event.TypeLoginFailed, userID, "", client, resource).Failed("invalid credentials")
	e.Details = map[string]any{"reason": reason}
	s.publish(e)

	slog.Info("login failed", "user_id", userID, "reason", reason, "ip", client.IP)
	return model.ErrInvalidCredentials
}

func (s *AuthService) dispatch(ctx context.Context, userID string, msg notify.Message) {
	sendCtx := context.WithoutCancel(ctx)

	s.mailWG.Add(1)
	go func() {
		defer s.mailWG.Done()
		if err := s.sender.Send(sendCtx, msg); err != nil {
			slog.Error("password reset email failed", "user_id", userID, "error", err)
		}
	}()
}

// maxPasswordBytes is bcrypt's input limit. The max tag counts characters, so
// multi-byte passwords need this second check.
const maxPasswordBytes = 72

// checkPasswordBytes runs before any state changes so an over-long password
// never consumes a reset token.
func checkPasswordBytes(field string, password string) error {
	if len(password) > maxPasswordBytes {
		return validate.Fail(fmt.Sprintf("The field '%s' must be no longer than %d bytes.", field, maxPasswordBytes))
	}
	return nil
}

func (s *AuthService) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", checkPasswordBytes("password", password)
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (s *AuthService) event(t event.Type, actorID string, role model.Role, client model.ClientInfo, resource string) event.Event {
	e := event.New(t, s.tokens.Now())
	e.ActorID = actorID
	e.ActorRole = string(role)
	e.ActorIP = client.IP
	e.Resource = resource
	return e
}

func (s *AuthService) publish(e event.Event) {
	s.bus.Publish(e)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
