package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/foursigma/foursigma/internal/adapters/storage/sqlstore"
	"github.com/foursigma/foursigma/internal/auth"
	"github.com/foursigma/foursigma/internal/domain/model"
	"github.com/foursigma/foursigma/pkg/logger"
	"github.com/foursigma/foursigma/pkg/metrics"
)

// SignUpInput is a new email account.
type SignUpInput struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
}

// SignInInput is an email sign-in.
type SignInInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned by every sign-in flow.
type AuthResult struct {
	User      model.User `json:"user"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// SignUp creates an email account and signs it in.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (AuthResult, error) {
	res, err := s.signUp(ctx, in)
	metrics.RecordAuthAttempt("signup", outcome(err))
	return res, err
}

func (s *Service) signUp(ctx context.Context, in SignUpInput) (AuthResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Username = strings.TrimSpace(in.Username)
	in.DisplayName = strings.TrimSpace(in.DisplayName)

	if in.Email == "" || in.Password == "" || in.Username == "" || in.DisplayName == "" {
		return AuthResult{}, invalid("email, password, username and displayName are required")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return AuthResult{}, invalid("malformed email %q", in.Email)
	}
	if len(in.Password) < auth.MinPasswordLength {
		return AuthResult{}, invalid("password must be at least %d characters", auth.MinPasswordLength)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return AuthResult{}, err
	}
	user, err := s.store.CreateUser(ctx, model.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		Username:     in.Username,
		DisplayName:  in.DisplayName,
		Provider:     model.ProviderEmail,
		PasswordHash: hash,
	})
	if err != nil {
		return AuthResult{}, translate("sign up", err)
	}

	s.logger.Info(ctx, "user signed up", logger.String("user_id", user.ID))
	return s.issue(user)
}

// SignIn checks an email and password. Unknown emails and wrong passwords
// both yield ErrUnauthorized.
func (s *Service) SignIn(ctx context.Context, in SignInInput) (AuthResult, error) {
	res, err := s.signIn(ctx, in)
	metrics.RecordAuthAttempt("signin", outcome(err))
	return res, err
}

func (s *Service) signIn(ctx context.Context, in SignInInput) (AuthResult, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return AuthResult{}, invalid("email and password are required")
	}

	user, err := s.store.UserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, sqlstore.ErrNotFound) {
			return AuthResult{}, errUnauthorizedCredentials
		}
		return AuthResult{}, translate("sign in", err)
	}
	if err := auth.CheckPassword(user.PasswordHash, in.Password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return AuthResult{}, errUnauthorizedCredentials
		}
		return AuthResult{}, err
	}

	at, err := s.store.TouchSignIn(ctx, user.ID)
	if err != nil {
		return AuthResult{}, translate("sign in", err)
	}
	user.LastSignInAt = &at
	return s.issue(user)
}

var errUnauthorizedCredentials = errors.Join(ErrUnauthorized, errors.New("invalid email or password"))

// OAuthCallback signs in the user bound to an identity provider account,
// creating it on first sight.
func (s *Service) OAuthCallback(ctx context.Context, id model.OAuthIdentity) (AuthResult, error) {
	res, err := s.oauthCallback(ctx, id)
	metrics.RecordAuthAttempt("oauth", outcome(err))
	return res, err
}

func (s *Service) oauthCallback(ctx context.Context, id model.OAuthIdentity) (AuthResult, error) {
	id.Provider = strings.ToLower(strings.TrimSpace(id.Provider))
	id.ProviderID = strings.TrimSpace(id.ProviderID)
	id.Email = strings.TrimSpace(id.Email)

	if id.Provider == "" || id.ProviderID == "" || id.Email == "" {
		return AuthResult{}, invalid("provider, providerId and email are required")
	}
	if id.Provider == model.ProviderEmail {
		return AuthResult{}, invalid("provider %q is reserved", id.Provider)
	}
	if id.DisplayName == "" {
		id.DisplayName = localPart(id.Email)
	}

	newID := uuid.NewString()
	username := localPart(id.Email) + "-" + newID[:8]
	user, err := s.store.UpsertOAuthUser(ctx, id, newID, username)
	if err != nil {
		return AuthResult{}, translate("oauth callback", err)
	}
	return s.issue(user)
}

func localPart(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return email
}

// Me returns the signed-in user.
func (s *Service) Me(ctx context.Context, userID string) (model.User, error) {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return model.User{}, translate("me", err)
	}
	return user, nil
}

// Profile returns a user's public profile.
func (s *Service) Profile(ctx context.Context, userID string) (model.User, error) {
	user, err := s.store.UserByID(ctx, userID)
	if err != nil {
		return model.User{}, translate("profile", err)
	}
	user.Email = ""
	return user, nil
}

// UpdateProfile changes the caller's own profile.
func (s *Service) UpdateProfile(ctx context.Context, callerID, userID string, upd model.ProfileUpdate) (model.User, error) {
	if callerID != userID {
		return model.User{}, errors.Join(ErrForbidden, errors.New("cannot edit another user's profile"))
	}
	if upd.Empty() {
		return model.User{}, invalid("nothing to update")
	}
	if upd.Username != nil {
		trimmed := strings.TrimSpace(*upd.Username)
		if trimmed == "" {
			return model.User{}, invalid("username cannot be empty")
		}
		upd.Username = &trimmed
	}
	if upd.DisplayName != nil {
		trimmed := strings.TrimSpace(*upd.DisplayName)
		if trimmed == "" {
			return model.User{}, invalid("displayName cannot be empty")
		}
		upd.DisplayName = &trimmed
	}

	user, err := s.store.UpdateProfile(ctx, userID, upd)
	if err != nil {
		return model.User{}, translate("update profile", err)
	}
	return user, nil
}

// ParseToken verifies a bearer token.
func (s *Service) ParseToken(token string) (*auth.Claims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, errors.Join(ErrUnauthorized, err)
	}
	return claims, nil
}

// Tokens exposes the token issuer to the HTTP middleware.
func (s *Service) Tokens() *auth.Tokens { return s.tokens }

func (s *Service) issue(user model.User) (AuthResult, error) { //nolint:gocritic // hugeParam
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return AuthResult{}, err
	}
	return AuthResult{User: user, Token: token, ExpiresAt: expires}, nil
}

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}
