package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/cyclopcam/logs"
	"github.com/cyclopcam/www"

	"github.com/visionguard/visionguard/server/configdb"
)

var (
	// ErrDuplicateUser means the email is already registered
	ErrDuplicateUser = errors.New("A user with that email already exists")

	// ErrInvalidCredentials covers every local login failure. We deliberately
	// do not distinguish unknown email, federated-only account, and wrong
	// password, so the response leaks nothing about which emails exist.
	ErrInvalidCredentials = errors.New("Invalid email or password")

	// ErrMissingEmailClaim means the identity provider gave us no email,
	// so we have no stable key to attach the account to
	ErrMissingEmailClaim = errors.New("Identity provider returned no email address")
)

// Credentials identify the authenticated caller of an API request
type Credentials struct {
	UserID int64
	User   *configdb.User
	// Token is the plaintext session token the request authenticated with
	Token string
}

type AuthServer struct {
	log logs.Log
	db  *configdb.ConfigDB
}

func NewAuthServer(log logs.Log, db *configdb.ConfigDB) *AuthServer {
	return &AuthServer{
		log: log,
		db:  db,
	}
}

// Register creates a local-password account
func (a *AuthServer) Register(email, username, password string) (*configdb.User, error) {
	user := &configdb.User{
		Email:    email,
		Username: username,
		Password: configdb.HashPassword(password),
		Provider: configdb.AuthProviderLocal,
	}
	if err := a.db.CreateUser(user); err != nil {
		if configdb.IsDuplicateKeyError(err) {
			return nil, ErrDuplicateUser
		}
		return nil, err
	}
	a.log.Infof("Registered new user %v", user.Email)
	return user, nil
}

// Login verifies a local email/password pair
func (a *AuthServer) Login(email, password string) (*configdb.User, error) {
	user := a.db.FindUserByEmail(email)
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	// A federated account has no password hash, and must not be
	// enterable with any password string.
	if len(user.Password) == 0 || !configdb.VerifyHash(password, user.Password) {
		return nil, ErrInvalidCredentials
	}
	a.db.TouchLastLogin(user.ID)
	return user, nil
}

// FederatedLogin upserts an account from an identity provider's claims.
// Repeat logins refresh the mutable profile fields.
func (a *AuthServer) FederatedLogin(provider string, claims *Claims) (*configdb.User, error) {
	if claims.Email == "" {
		return nil, ErrMissingEmailClaim
	}
	if user := a.db.FindUserByEmail(claims.Email); user != nil {
		err := a.db.UpdateFederatedProfile(user.ID, claims.Name, claims.Picture, claims.Locale, claims.EmailVerified)
		if err != nil {
			return nil, err
		}
		return a.db.GetUser(user.ID), nil
	}
	user := &configdb.User{
		Email:         claims.Email,
		Username:      claims.Name,
		Provider:      provider,
		Picture:       claims.Picture,
		Locale:        claims.Locale,
		EmailVerified: claims.EmailVerified,
	}
	if err := a.db.CreateUser(user); err != nil {
		return nil, err
	}
	a.log.Infof("Created user %v via %v", user.Email, provider)
	return user, nil
}

// IssueSession creates a session for the user and sets the session cookie
func (a *AuthServer) IssueSession(w http.ResponseWriter, userID int64) error {
	token, expiresAt, err := a.db.CreateSession(userID)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     configdb.SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Logout deletes the caller's session (if any) and clears the cookie.
// Safe to call without a valid session.
func (a *AuthServer) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, _ := r.Cookie(configdb.SessionCookie); cookie != nil {
		a.db.DeleteSession(cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:    configdb.SessionCookie,
		Value:   "",
		Path:    "/",
		Expires: time.Unix(0, 0),
		MaxAge:  -1,
	})
}

// If authentication fails, sends a 401 to 'w', and returns nil.
// If authentication succeeds, returns a non-nil Credentials.
func (a *AuthServer) AuthenticateRequest(w http.ResponseWriter, r *http.Request) *Credentials {
	if cred := a.CredentialsFromRequest(r); cred != nil {
		return cred
	}
	www.SendError(w, "Unauthorized", http.StatusUnauthorized)
	return nil
}

// CredentialsFromRequest resolves the session cookie without writing a
// response, for endpoints where identity is optional
func (a *AuthServer) CredentialsFromRequest(r *http.Request) *Credentials {
	cookie, _ := r.Cookie(configdb.SessionCookie)
	if cookie == nil {
		return nil
	}
	user := a.db.GetSessionUser(cookie.Value)
	if user == nil {
		return nil
	}
	return &Credentials{
		UserID: user.ID,
		User:   user,
		Token:  cookie.Value,
	}
}
