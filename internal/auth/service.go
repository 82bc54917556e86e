package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mileusna/useragent"
	"golang.org/x/crypto/bcrypt"

	"github.com/fromchat/chat-core-service/internal/audit"
	"github.com/fromchat/chat-core-service/internal/domain/model"
	"github.com/fromchat/chat-core-service/internal/profanity"
	"github.com/fromchat/chat-core-service/internal/store"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,32}$`)

const (
	minPasswordLength  = 8
	maxDisplayNameLen  = 64
	defaultSuspendText = "Account suspended"
)

// Options tunes token and session lifetimes. OwnerUsername, when set,
// reserves that name for the bootstrap owner account.
type Options struct {
	Secret           []byte
	TokenTTL         time.Duration
	InactivityWindow time.Duration
	OwnerUsername    string
}

// Identity is a verified caller: the account plus the device session the
// presented token belongs to.
type Identity struct {
	User    *model.User
	Session *model.DeviceSession
}

// Service owns registration, login and per-request credential checks.
type Service struct {
	store  *store.Store
	sink   *audit.Sink
	filter *profanity.Filter
	logger *slog.Logger
	opts   Options
	now    func() time.Time
}

func NewService(s *store.Store, sink *audit.Sink, filter *profanity.Filter, logger *slog.Logger, opts Options) *Service {
	if opts.TokenTTL <= 0 || opts.TokenTTL > 365*24*time.Hour {
		opts.TokenTTL = 365 * 24 * time.Hour
	}
	if opts.InactivityWindow <= 0 {
		opts.InactivityWindow = 30 * 24 * time.Hour
	}
	return &Service{
		store:  s,
		sink:   sink,
		filter: filter,
		logger: logger,
		opts:   opts,
		now:    time.Now,
	}
}

// Register creates an account. The first account ever created becomes the
// owner by taking id 1.
func (s *Service) Register(ctx context.Context, username, displayName, password, ip string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if !usernamePattern.MatchString(username) {
		return nil, model.Validation("Username must be 3-32 characters: letters, digits, underscore")
	}
	if utf8.RuneCountInString(password) < minPasswordLength {
		return nil, model.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	displayName = strings.TrimSpace(displayName)
	if utf8.RuneCountInString(displayName) > maxDisplayNameLen {
		return nil, model.Validation("Display name too long")
	}
	if s.filter.Contains(username) || s.filter.Contains(displayName) {
		return nil, model.ContentPolicy("Name contains blocked language")
	}
	// The configured owner name is only claimable while the table is
	// empty, so it can never land on anything but id 1.
	if s.opts.OwnerUsername != "" && strings.EqualFold(username, s.opts.OwnerUsername) {
		n, err := s.store.CountUsers(ctx)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, model.Reject(409, "Username already taken")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &model.User{
		Username:     username,
		DisplayName:  displayName,
		PasswordHash: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicateUsername) {
			return nil, model.Reject(409, "Username already taken")
		}
		return nil, err
	}
	s.sink.RegistrationSuccess(user, ip)
	s.logger.Info("user registered", slog.Int64("user_id", user.ID), slog.String("username", user.Username))
	return user, nil
}

// Login verifies credentials, records a device session and mints an access
// token bound to it.
func (s *Service) Login(ctx context.Context, username, password, userAgent, ip string) (string, *model.User, *model.DeviceSession, error) {
	user, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			s.sink.LoginFailed(username, ip, "unknown username")
			return "", nil, nil, model.AuthRequired("Invalid username or password")
		}
		return "", nil, nil, err
	}
	if user.Deleted {
		s.sink.LoginFailed(username, ip, "account deleted")
		return "", nil, nil, model.Forbidden("Account deleted")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.sink.LoginFailed(username, ip, "wrong password")
		return "", nil, nil, model.AuthRequired("Invalid username or password")
	}
	if err := s.liftOwnerSuspension(ctx, user); err != nil {
		return "", nil, nil, err
	}
	if user.Suspended {
		s.sink.LoginFailed(username, ip, "account suspended")
		return "", nil, nil, model.Forbidden(suspensionDetail(user))
	}

	sessionID, err := newSessionID()
	if err != nil {
		return "", nil, nil, err
	}
	sess := describeClient(userAgent)
	sess.UserID = user.ID
	sess.SessionID = sessionID
	sess.LastSeen = s.now()
	if err := s.store.CreateDeviceSession(ctx, sess); err != nil {
		return "", nil, nil, fmt.Errorf("create device session: %w", err)
	}

	token, err := MintToken(s.opts.Secret, user.ID, user.Username, sessionID, s.opts.TokenTTL)
	if err != nil {
		return "", nil, nil, fmt.Errorf("mint token: %w", err)
	}
	s.sink.LoginSuccess(user, sess, ip)
	return token, user, sess, nil
}

// Authenticate verifies a bearer token against the account and its device
// session. A valid call slides the session's inactivity window.
func (s *Service) Authenticate(ctx context.Context, token string) (*Identity, error) {
	claims, err := ParseToken(s.opts.Secret, token)
	if err != nil || claims.IsService() || claims.UserID == 0 {
		return nil, model.AuthRequired("Invalid or expired token")
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.AuthRequired("Invalid or expired token")
		}
		return nil, err
	}
	if user.Deleted {
		return nil, model.Forbidden("Account deleted")
	}
	if err := s.liftOwnerSuspension(ctx, user); err != nil {
		return nil, err
	}
	if user.Suspended {
		return nil, model.Forbidden(suspensionDetail(user))
	}

	sess, err := s.store.GetDeviceSession(ctx, user.ID, claims.SessionID)
	if err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil, model.AuthRequired("Session expired")
		}
		return nil, err
	}
	if sess.Revoked {
		return nil, model.AuthRequired("Session expired")
	}
	now := s.now()
	if now.Sub(sess.LastSeen) > s.opts.InactivityWindow {
		if err := s.store.RevokeDeviceSession(ctx, user.ID, sess.SessionID); err != nil &&
			!errors.Is(err, model.ErrSessionNotFound) {
			s.logger.Warn("revoke stale session", slog.Any("error", err))
		}
		return nil, model.AuthRequired("Session expired")
	}
	if err := s.store.TouchDeviceSession(ctx, sess.ID, now); err != nil {
		s.logger.Warn("touch device session", slog.Any("error", err))
	}
	sess.LastSeen = now
	return &Identity{User: user, Session: sess}, nil
}

// Logout revokes the session the presented token was minted for.
func (s *Service) Logout(ctx context.Context, id *Identity) error {
	if err := s.store.RevokeDeviceSession(ctx, id.User.ID, id.Session.SessionID); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return nil
		}
		return err
	}
	s.sink.Logout(id.User, id.Session.SessionID)
	return nil
}

// ChangePassword verifies the current password and stores a new hash. All
// other sessions are revoked so stolen tokens die with the old password.
func (s *Service) ChangePassword(ctx context.Context, id *Identity, current, next string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(id.User.PasswordHash), []byte(current)); err != nil {
		return model.AuthRequired("Current password is incorrect")
	}
	if utf8.RuneCountInString(next) < minPasswordLength {
		return model.Validation(fmt.Sprintf("Password must be at least %d characters", minPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, id.User.ID, string(hash)); err != nil {
		return err
	}
	if _, err := s.store.RevokeOtherDeviceSessions(ctx, id.User.ID, id.Session.SessionID); err != nil {
		s.logger.Warn("revoke sibling sessions", slog.Any("error", err))
	}
	s.sink.PasswordChanged(id.User)
	return nil
}

// RevokeSession invalidates one of the caller's own device sessions.
func (s *Service) RevokeSession(ctx context.Context, id *Identity, sessionID string) error {
	if err := s.store.RevokeDeviceSession(ctx, id.User.ID, sessionID); err != nil {
		if errors.Is(err, model.ErrSessionNotFound) {
			return model.NotFound("Session not found")
		}
		return err
	}
	s.sink.Logout(id.User, sessionID)
	return nil
}

// Sessions lists the caller's device sessions, active ones first.
func (s *Service) Sessions(ctx context.Context, userID int64) ([]*model.DeviceSession, error) {
	return s.store.ListDeviceSessions(ctx, userID)
}

// MintServiceToken issues an operational token for the stats endpoint.
func (s *Service) MintServiceToken(subject string, ttl time.Duration) (string, error) {
	return MintServiceToken(s.opts.Secret, subject, ttl)
}

// VerifyServiceToken accepts either a service token or an owner access
// token and returns the acting subject.
func (s *Service) VerifyServiceToken(ctx context.Context, token string) (string, error) {
	claims, err := ParseToken(s.opts.Secret, token)
	if err != nil {
		return "", model.AuthRequired("Invalid or expired token")
	}
	if claims.IsService() {
		return claims.Subject, nil
	}
	id, err := s.Authenticate(ctx, token)
	if err != nil {
		return "", err
	}
	if !id.User.IsOwner() {
		return "", model.Forbidden("Owner access required")
	}
	return id.User.Username, nil
}

// liftOwnerSuspension clears any suspension on the owner account. The
// owner must never be locked out by the automatic rules.
func (s *Service) liftOwnerSuspension(ctx context.Context, user *model.User) error {
	if !user.IsOwner() || !user.Suspended {
		return nil
	}
	if err := s.store.UnsuspendUser(ctx, user.ID); err != nil {
		return err
	}
	user.Suspended = false
	user.SuspensionReason = nil
	return nil
}

func suspensionDetail(user *model.User) string {
	if user.SuspensionReason != nil && *user.SuspensionReason != "" {
		return *user.SuspensionReason
	}
	return defaultSuspendText
}

// describeClient parses the user agent into the session columns.
func describeClient(raw string) *model.DeviceSession {
	ua := useragent.Parse(raw)
	kind := model.DeviceUnknown
	switch {
	case ua.Bot:
		kind = model.DeviceBot
	case ua.Tablet:
		kind = model.DeviceTablet
	case ua.Mobile:
		kind = model.DeviceMobile
	case ua.Desktop:
		kind = model.DeviceDesktop
	}
	return &model.DeviceSession{
		RawUserAgent:   raw,
		DeviceName:     ua.Device,
		DeviceType:     kind,
		OSName:         ua.OS,
		OSVersion:      ua.OSVersion,
		BrowserName:    ua.Name,
		BrowserVersion: ua.Version,
	}
}
