package configdb

import (
	"github.com/BurntSushi/migration"
	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
)

func Migrations(log logs.Log) []migration.Migrator {
	migs := []migration.Migrator{}
	idx := 0

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE user(
			id INTEGER PRIMARY KEY,
			email TEXT NOT NULL,
			username TEXT NOT NULL,
			password BLOB,
			provider TEXT NOT NULL,
			picture TEXT,
			locale TEXT,
			email_verified INT NOT NULL DEFAULT 0,
			created_at INT NOT NULL,
			last_login_at INT
		);
		CREATE UNIQUE INDEX idx_user_email ON user (email);

		CREATE TABLE session(
			key BLOB NOT NULL PRIMARY KEY,
			user_id INT NOT NULL,
			created_at INT NOT NULL,
			expires_at INT NOT NULL
		);
		CREATE INDEX idx_session_user_id ON session (user_id);
		CREATE INDEX idx_session_expires_at ON session (expires_at);
	`))

	migs = append(migs, dbh.MakeMigrationFromSQL(log, &idx,
		`
		CREATE TABLE detection(
			id INTEGER PRIMARY KEY,
			user_id INT NOT NULL DEFAULT 0,
			filename TEXT NOT NULL,
			artifact_url TEXT NOT NULL,
			artifact_key TEXT,
			local_path TEXT,
			labels TEXT NOT NULL,
			kind TEXT NOT NULL,
			created_at INT NOT NULL
		);
		CREATE INDEX idx_detection_user_id ON detection (user_id);
		CREATE INDEX idx_detection_created_at ON detection (created_at);
	`))

	return migs
}
