package auth

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"

	"github.com/visionguard/visionguard/server/configdb"
)

func createTestAuth(t *testing.T) *AuthServer {
	db, err := configdb.NewConfigDB(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "test-auth.sqlite"))
	require.NoError(t, err)
	return NewAuthServer(logs.NewTestingLog(t), db)
}

func TestRegisterAndLogin(t *testing.T) {
	a := createTestAuth(t)

	user, err := a.Register("alice@example.com", "alice", "hunter22")
	require.NoError(t, err)
	require.NotZero(t, user.ID)
	require.Equal(t, configdb.AuthProviderLocal, user.Provider)

	_, err = a.Register("alice@example.com", "alice2", "other")
	require.ErrorIs(t, err, ErrDuplicateUser)

	got, err := a.Login("alice@example.com", "hunter22")
	require.NoError(t, err)
	require.Equal(t, user.ID, got.ID)

	// Every failure mode looks the same to the caller
	_, err = a.Login("alice@example.com", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = a.Login("nobody@example.com", "hunter22")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestFederatedLogin(t *testing.T) {
	a := createTestAuth(t)

	claims := &Claims{
		Email:         "carol@example.com",
		Name:          "Carol",
		Picture:       "https://pics/carol.png",
		EmailVerified: true,
	}
	user, err := a.FederatedLogin(configdb.AuthProviderGoogle, claims)
	require.NoError(t, err)
	require.Equal(t, "carol@example.com", user.Email)
	require.Equal(t, "Carol", user.Username)
	require.Empty(t, user.Password)

	// A federated account cannot be logged into with a password
	_, err = a.Login("carol@example.com", "")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	// Repeat login refreshes the profile, same account
	claims.Picture = "https://pics/carol2.png"
	again, err := a.FederatedLogin(configdb.AuthProviderGoogle, claims)
	require.NoError(t, err)
	require.Equal(t, user.ID, again.ID)
	require.Equal(t, "https://pics/carol2.png", again.Picture)

	_, err = a.FederatedLogin(configdb.AuthProviderGoogle, &Claims{Name: "NoEmail"})
	require.ErrorIs(t, err, ErrMissingEmailClaim)
}

func TestSessionRoundtrip(t *testing.T) {
	a := createTestAuth(t)
	user, err := a.Register("dave@example.com", "dave", "hunter22")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	require.NoError(t, a.IssueSession(w, user.ID))
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, configdb.SessionCookie, cookies[0].Name)
	require.True(t, cookies[0].HttpOnly)

	r := httptest.NewRequest("GET", "/api/auth/check", nil)
	r.AddCookie(cookies[0])
	cred := a.CredentialsFromRequest(r)
	require.NotNil(t, cred)
	require.Equal(t, user.ID, cred.UserID)

	// Logout kills the session
	a.Logout(httptest.NewRecorder(), r)
	require.Nil(t, a.CredentialsFromRequest(r))

	// AuthenticateRequest writes a 401 for a bad token
	w2 := httptest.NewRecorder()
	require.Nil(t, a.AuthenticateRequest(w2, r))
	require.Equal(t, 401, w2.Code)
}
