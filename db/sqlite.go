// Package db persists prediction history and training runs in sqlite.
package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
    CREATE TABLE IF NOT EXISTS tax_queries (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        income REAL NOT NULL,
        year INTEGER NOT NULL,
        predicted_tax REAL NOT NULL,
        created_at DATETIME NOT NULL
    );
    CREATE TABLE IF NOT EXISTS training_log (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        model_type VARCHAR(50) NOT NULL,
        model_path TEXT NOT NULL,
        mse REAL,
        mae REAL,
        r2 REAL,
        data_points INTEGER,
        trained_at DATETIME NOT NULL
    );
    `

var errClosed = errors.New("database not initialized")

// DB wraps the sqlite handle.
type DB struct {
	conn *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	// sqlite allows a single writer
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, err
	}
	return &DB{conn: conn}, nil
}

func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// TaxQuery is one successful prediction shown on the form.
type TaxQuery struct {
	ID           int64     `json:"id"`
	Income       float64   `json:"income"`
	Year         int       `json:"year"`
	PredictedTax float64   `json:"predicted_tax"`
	CreatedAt    time.Time `json:"created_at"`
}

// SaveQuery records a prediction and returns its row id.
func (d *DB) SaveQuery(q TaxQuery) (int64, error) {
	if d == nil || d.conn == nil {
		return 0, errClosed
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	res, err := d.conn.Exec(`
        INSERT INTO tax_queries (income, year, predicted_tax, created_at)
        VALUES (?, ?, ?, ?)`,
		q.Income, q.Year, q.PredictedTax, q.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// RecentQueries returns up to limit queries, newest first.
func (d *DB) RecentQueries(limit int) ([]TaxQuery, error) {
	if d == nil || d.conn == nil {
		return nil, errClosed
	}
	rows, err := d.conn.Query(`
        SELECT id, income, year, predicted_tax, created_at
        FROM tax_queries
        ORDER BY created_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	queries := make([]TaxQuery, 0)
	for rows.Next() {
		var q TaxQuery
		if err := rows.Scan(&q.ID, &q.Income, &q.Year, &q.PredictedTax, &q.CreatedAt); err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, rows.Err()
}

type TrainingLog struct {
	ModelType  string    `json:"model_type"`
	ModelPath  string    `json:"model_path"`
	MSE        float64   `json:"mse"`
	MAE        float64   `json:"mae"`
	R2         float64   `json:"r2"`
	DataPoints int       `json:"data_points"`
	TrainedAt  time.Time `json:"trained_at"`
}

func (d *DB) SaveTrainingRun(run TrainingLog) error {
	if d == nil || d.conn == nil {
		return errClosed
	}
	if run.TrainedAt.IsZero() {
		run.TrainedAt = time.Now().UTC()
	}
	_, err := d.conn.Exec(`
        INSERT INTO training_log (model_type, model_path, mse, mae, r2, data_points, trained_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ModelType, run.ModelPath, run.MSE, run.MAE, run.R2, run.DataPoints, run.TrainedAt)
	return err
}

// RecentTrainingRuns returns up to limit runs, newest first.
func (d *DB) RecentTrainingRuns(limit int) ([]TrainingLog, error) {
	if d == nil || d.conn == nil {
		return nil, errClosed
	}
	rows, err := d.conn.Query(`
        SELECT model_type, model_path, mse, mae, r2, data_points, trained_at
        FROM training_log
        ORDER BY trained_at DESC, id DESC
        LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]TrainingLog, 0)
	for rows.Next() {
		var log TrainingLog
		if err := rows.Scan(&log.ModelType, &log.ModelPath, &log.MSE, &log.MAE, &log.R2, &log.DataPoints, &log.TrainedAt); err != nil {
			return nil, err
		}
		logs = append(logs, log)
	}
	return logs, rows.Err()
}
