package configdb

import (
	"strings"
	"time"

	"github.com/cyclopcam/dbh"
	"gorm.io/gorm"
)

// FindUserByEmail returns nil if no user with that email exists
func (c *ConfigDB) FindUserByEmail(email string) *User {
	user := User{}
	c.DB.Where("email = ?", NormalizeEmail(email)).Find(&user)
	if user.ID == 0 {
		return nil
	}
	return &user
}

// GetUser returns nil if the user no longer exists
func (c *ConfigDB) GetUser(userID int64) *User {
	user := User{}
	c.DB.Find(&user, userID)
	if user.ID == 0 {
		return nil
	}
	return &user
}

func (c *ConfigDB) CreateUser(user *User) error {
	user.Email = NormalizeEmail(user.Email)
	if user.CreatedAt.IsZero() {
		user.CreatedAt = dbh.MakeIntTime(time.Now().UTC())
	}
	return c.DB.Create(user).Error
}

// TouchLastLogin stamps last_login_at, without touching anything else
func (c *ConfigDB) TouchLastLogin(userID int64) {
	err := c.DB.Model(&User{}).Where("id = ?", userID).
		Update("last_login_at", time.Now().UTC().UnixMilli()).Error
	if err != nil {
		c.Log.Warnf("Failed to update last login for user %v: %v", userID, err)
	}
}

// UpdateFederatedProfile refreshes the profile fields that an identity
// provider's claims carry, leaving the local password (if any) alone.
func (c *ConfigDB) UpdateFederatedProfile(userID int64, username, picture, locale string, verified bool) error {
	updates := map[string]any{
		"picture":        picture,
		"locale":         locale,
		"email_verified": verified,
		"last_login_at":  time.Now().UTC().UnixMilli(),
	}
	if username != "" {
		updates["username"] = username
	}
	return c.DB.Model(&User{}).Where("id = ?", userID).Updates(updates).Error
}

func (c *ConfigDB) NumUsers() (int64, error) {
	n := int64(0)
	err := c.DB.Model(&User{}).Count(&n).Error
	return n, err
}

// IsDuplicateKeyError recognizes the sqlite unique constraint failure on user.email
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	if err == gorm.ErrDuplicatedKey {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key")
}
