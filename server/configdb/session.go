package configdb

import (
	"time"

	"github.com/cyclopcam/dbh"

	"github.com/visionguard/visionguard/pkg/rando"
)

// SYNC-VISIONGUARD-SESSION-COOKIE
const SessionCookie = "session"

// Sessions expire after this long, regardless of activity.
// The old design kept a session alive for as long as the user record existed;
// an explicit expiry replaces that.
const SessionDuration = 30 * 24 * time.Hour

// CreateSession stores a new session for userID and returns the plaintext token.
// Only the sha256 of the token is stored.
func (c *ConfigDB) CreateSession(userID int64) (token string, expiresAt time.Time, err error) {
	now := time.Now().UTC()
	expiresAt = now.Add(SessionDuration)
	token = rando.StrongRandomAlphaNumChars(30)
	session := Session{
		Key:       HashSessionToken(token),
		UserID:    userID,
		CreatedAt: dbh.MakeIntTime(now),
		ExpiresAt: dbh.MakeIntTime(expiresAt),
	}
	if err = c.DB.Create(&session).Error; err != nil {
		return "", time.Time{}, err
	}
	c.PurgeExpiredSessions()
	return token, expiresAt, nil
}

// GetSessionUser resolves a plaintext session token to its user.
// Returns nil if the token is unknown, the session has expired, or the
// user record no longer exists. None of these are errors.
func (c *ConfigDB) GetSessionUser(token string) *User {
	if token == "" {
		return nil
	}
	session := Session{}
	c.DB.Where("key = ?", HashSessionToken(token)).Find(&session)
	if session.UserID == 0 || session.ExpiresAt.Get().Before(time.Now()) {
		return nil
	}
	user := User{}
	c.DB.Find(&user, session.UserID)
	if user.ID == 0 {
		return nil
	}
	return &user
}

// DeleteSession removes the session behind a plaintext token (logout)
func (c *ConfigDB) DeleteSession(token string) {
	if token == "" {
		return
	}
	c.DB.Where("key = ?", HashSessionToken(token)).Delete(&Session{})
}

func (c *ConfigDB) PurgeExpiredSessions() {
	db, err := c.DB.DB()
	if err != nil {
		c.Log.Warnf("PurgeExpiredSessions failed (1): %v", err)
		return
	}
	_, err = db.Exec("DELETE FROM session WHERE expires_at < ?", time.Now().UnixMilli())
	if err != nil {
		c.Log.Warnf("PurgeExpiredSessions failed (2): %v", err)
	}
}
