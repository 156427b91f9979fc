package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/iwtcode/diagAdapter/models"
)

const timeLayout = time.RFC3339Nano

// SaveRun сохраняет прогон вместе со всеми шагами в одной транзакции.
func (r *Repository) SaveRun(ctx context.Context, report *models.RunReport) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO runs (run_id, serial, status, started, finished) VALUES (?, ?, ?, ?, ?)
ON CONFLICT(run_id) DO UPDATE SET
    status = excluded.status,
    finished = excluded.finished`,
		report.RunID, report.Serial, string(report.Status),
		report.Started.Format(timeLayout), report.Finished.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save run %s: %w", report.RunID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM step_results WHERE run_id = ?", report.RunID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, insertStep)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, step := range report.Steps {
		if err := execStep(ctx, stmt, report.RunID, report.Serial, step); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveStepResult добавляет один шаг к прогону.
func (r *Repository) SaveStepResult(ctx context.Context, runID, serial string, result models.StepResult) error {
	stmt, err := r.db.PrepareContext(ctx, insertStep)
	if err != nil {
		return err
	}
	defer stmt.Close()
	return execStep(ctx, stmt, runID, serial, result)
}

const insertStep = `
INSERT INTO step_results (run_id, serial, name, status, message, margins, started, finished)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

func execStep(ctx context.Context, stmt *sql.Stmt, runID, serial string, step models.StepResult) error {
	var margins []byte
	if len(step.Margins) > 0 {
		var err error
		if margins, err = json.Marshal(step.Margins); err != nil {
			return err
		}
	}
	_, err := stmt.ExecContext(ctx, runID, serial, step.Name, string(step.Status), step.Message,
		string(margins), step.Started.Format(timeLayout), step.Finished.Format(timeLayout))
	if err != nil {
		return fmt.Errorf("save step %s: %w", step.Name, err)
	}
	return nil
}

// GetStepResults возвращает шаги прогона в порядке записи.
func (r *Repository) GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT name, status, message, margins, started, finished
FROM step_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []models.StepResult
	for rows.Next() {
		var (
			step              models.StepResult
			status            string
			message, margins  sql.NullString
			started, finished string
		)
		if err := rows.Scan(&step.Name, &status, &message, &margins, &started, &finished); err != nil {
			return nil, err
		}
		step.Status = models.StepStatus(status)
		step.Message = message.String
		if margins.String != "" {
			if err := json.Unmarshal([]byte(margins.String), &step.Margins); err != nil {
				return nil, fmt.Errorf("step %s margins: %w", step.Name, err)
			}
		}
		step.Started, _ = time.Parse(timeLayout, started)
		step.Finished, _ = time.Parse(timeLayout, finished)
		results = append(results, step)
	}
	return results, rows.Err()
}
