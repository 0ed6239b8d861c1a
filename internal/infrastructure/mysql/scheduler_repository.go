package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"silent-auction/internal/domain"
)

type MySQLSchedulerRepository struct {
	db *sql.DB
}

func NewMySQLSchedulerRepository(db *sql.DB) *MySQLSchedulerRepository {
	return &MySQLSchedulerRepository{db: db}
}

func (r *MySQLSchedulerRepository) CreateJob(ctx context.Context, job *domain.ScheduledJob) error {
	query := `
        INSERT INTO scheduled_jobs (id, item_id, job_type, run_at, status, created_at)
        VALUES (?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		job.ID, job.ItemID, string(job.JobType),
		job.RunAt, string(job.Status), job.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *MySQLSchedulerRepository) GetPendingJobs(ctx context.Context, before time.Time) ([]*domain.ScheduledJob, error) {
	query := `
        SELECT id, item_id, job_type, run_at, status, created_at
        FROM scheduled_jobs
        WHERE status = ? AND run_at <= ?
        ORDER BY run_at ASC
    `

	rows, err := r.db.QueryContext(ctx, query, string(domain.JobPending), before)
	if err != nil {
		return nil, fmt.Errorf("get pending jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.ScheduledJob
	for rows.Next() {
		var job domain.ScheduledJob
		var jobType, status string

		err := rows.Scan(&job.ID, &job.ItemID, &jobType,
			&job.RunAt, &status, &job.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}

		job.JobType = domain.JobType(jobType)
		job.Status = domain.JobStatus(status)
		jobs = append(jobs, &job)
	}
	return jobs, rows.Err()
}

func (r *MySQLSchedulerRepository) UpdateJobStatus(ctx context.Context, jobID string, status domain.JobStatus) error {
	query := `UPDATE scheduled_jobs SET status = ? WHERE id = ?`
	if _, err := r.db.ExecContext(ctx, query, string(status), jobID); err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

func (r *MySQLSchedulerRepository) CancelJobsForItem(ctx context.Context, itemID string) error {
	query := `UPDATE scheduled_jobs SET status = ? WHERE item_id = ? AND status = ?`
	_, err := r.db.ExecContext(ctx, query, string(domain.JobCancelled), itemID, string(domain.JobPending))
	if err != nil {
		return fmt.Errorf("cancel jobs: %w", err)
	}
	return nil
}
