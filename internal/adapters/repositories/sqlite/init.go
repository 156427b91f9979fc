package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iwtcode/diagAdapter/internal/config"
	"github.com/iwtcode/diagAdapter/internal/interfaces"
	"github.com/iwtcode/diagAdapter/internal/middleware/logging"

	_ "modernc.org/sqlite"
)

// Repository - локальное хранилище стенда: прогоны, опорное время RTC, ECID.
type Repository struct {
	db     *sql.DB
	logger *logging.Logger
}

var _ interfaces.Repository = (*Repository)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    run_id   TEXT PRIMARY KEY,
    serial   TEXT NOT NULL,
    status   TEXT NOT NULL,
    started  TEXT NOT NULL,
    finished TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS step_results (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id   TEXT NOT NULL,
    serial   TEXT NOT NULL,
    name     TEXT NOT NULL,
    status   TEXT NOT NULL,
    message  TEXT,
    margins  TEXT,
    started  TEXT NOT NULL,
    finished TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_step_results_run ON step_results(run_id);
CREATE TABLE IF NOT EXISTS rtc_reference (
    serial      TEXT PRIMARY KEY,
    server_time INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS asic_ecid (
    serial    TEXT NOT NULL,
    asic      INTEGER NOT NULL,
    core      INTEGER NOT NULL,
    type      TEXT,
    version   TEXT,
    die_id    TEXT NOT NULL,
    core_freq INTEGER,
    PRIMARY KEY (serial, asic, core)
);
`

// NewRepository открывает (и при необходимости создает) базу SQLite по cfg.Database.Path.
func NewRepository(cfg *config.AppConfig, appLogger *logging.Logger) (interfaces.Repository, error) {
	return Open(cfg.Database.Path, appLogger)
}

// Open открывает базу по пути и применяет схему.
func Open(dbPath string, appLogger *logging.Logger) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), os.ModePerm); err != nil {
		return nil, fmt.Errorf("не удалось создать каталог БД: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных '%s': %w", dbPath, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA encoding = 'UTF-8'"); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ошибка создания схемы: %w", err)
	}

	appLogger.Info("Database ready", "path", dbPath)
	return &Repository{db: db, logger: appLogger}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}
