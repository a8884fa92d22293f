package configdb

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cyclopcam/dbh"
)

// BaseModel is our base class for a GORM model.
// The default GORM Model uses int, but we prefer int64
type BaseModel struct {
	ID int64 `gorm:"primaryKey" json:"id"`
}

const (
	AuthProviderLocal  = "local"
	AuthProviderGoogle = "google"
)

// SYNC-RECORD-USER
type User struct {
	BaseModel
	Email         string      `json:"email"`
	Username      string      `json:"username"`
	Password      []byte      `json:"-" gorm:"default:null"` // scrypt hash; nil for federated accounts
	Provider      string      `json:"provider"`
	Picture       string      `json:"picture" gorm:"default:null"`
	Locale        string      `json:"locale" gorm:"default:null"`
	EmailVerified bool        `json:"emailVerified"`
	CreatedAt     dbh.IntTime `json:"createdAt"`
	LastLoginAt   dbh.IntTime `json:"lastLoginAt" gorm:"default:null"`
}

// DisplayName returns the username, falling back to the email prefix
func (u *User) DisplayName() string {
	if u.Username != "" {
		return u.Username
	}
	if i := strings.IndexByte(u.Email, '@'); i > 0 {
		return u.Email[:i]
	}
	return u.Email
}

type Session struct {
	Key       []byte `gorm:"primaryKey"`
	UserID    int64
	CreatedAt dbh.IntTime
	ExpiresAt dbh.IntTime
}

// DetectionKind says which input mode produced a detection record
const (
	KindStatic = "static"
	KindVideo  = "video"
	KindLive   = "live"
)

// LabelList stores a label set as a JSON array in a TEXT column
type LabelList []string

func (l *LabelList) Scan(src any) error {
	if src == nil {
		*l = LabelList{}
		return nil
	}
	switch v := src.(type) {
	case string:
		return json.Unmarshal([]byte(v), l)
	case []byte:
		return json.Unmarshal(v, l)
	}
	return fmt.Errorf("Unable to scan %T into LabelList", src)
}

func (l LabelList) Value() (driver.Value, error) {
	if l == nil {
		l = LabelList{}
	}
	b, err := json.Marshal(l)
	return string(b), err
}

// SYNC-RECORD-DETECTION
type Detection struct {
	BaseModel
	UserID      int64       `json:"userID"` // 0 for anonymous runs
	Filename    string      `json:"filename"`
	ArtifactURL string      `json:"artifactUrl"`
	ArtifactKey string      `json:"artifactKey" gorm:"default:null"` // blob store key, empty if serving the local fallback
	LocalPath   string      `json:"-" gorm:"default:null"`
	Labels      LabelList   `json:"labels"`
	Kind        string      `json:"kind"`
	CreatedAt   dbh.IntTime `json:"createdAt"`
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
