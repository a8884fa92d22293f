package configdb

import (
	"time"

	"github.com/cyclopcam/dbh"
)

func (c *ConfigDB) CreateDetection(det *Detection) error {
	if det.CreatedAt.IsZero() {
		det.CreatedAt = dbh.MakeIntTime(time.Now().UTC())
	}
	return c.DB.Create(det).Error
}

// ListDetections returns the user's history, newest first
func (c *ConfigDB) ListDetections(userID int64) ([]Detection, error) {
	var records []Detection
	err := c.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&records).Error
	return records, err
}

// GetDetection fetches one record, with the ownership filter applied inside
// the query, so that another user's record looks the same as a missing one.
func (c *ConfigDB) GetDetection(userID, recordID int64) *Detection {
	det := Detection{}
	c.DB.Where("id = ? AND user_id = ?", recordID, userID).Find(&det)
	if det.ID == 0 {
		return nil
	}
	return &det
}

func (c *ConfigDB) DeleteDetection(userID, recordID int64) error {
	return c.DB.Where("id = ? AND user_id = ?", recordID, userID).Delete(&Detection{}).Error
}
