package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/repair-service/internal/domain"
)

const uniqueViolation = "23505"

const repairRequestColumns = `id, name, position, department, email, phone, location,
               problem_type, problem_detail, priority, attachments, status, technician_note, "createdAt"`

type repairRequestRepository struct {
	pool *pgxpool.Pool
}

// NewRepairRequestRepository returns a Postgres-backed implementation.
func NewRepairRequestRepository(pool *pgxpool.Pool) RepairRequestBackend {
	return &repairRequestRepository{pool: pool}
}

func (r *repairRequestRepository) ListOrdered(ctx context.Context) ([]domain.RepairRequest, error) {
	query := `SELECT ` + repairRequestColumns + `
        FROM repair_requests ORDER BY "createdAt" DESC, id DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRepairRequests(rows)
}

func (r *repairRequestRepository) GetByID(ctx context.Context, id string) (*domain.RepairRequest, error) {
	query := `SELECT ` + repairRequestColumns + ` FROM repair_requests WHERE id=$1`
	request, err := scanRepairRequest(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return request, err
}

func (r *repairRequestRepository) Insert(ctx context.Context, request *domain.RepairRequest) (*domain.RepairRequest, error) {
	query := `
        INSERT INTO repair_requests (id, name, position, department, email, phone, location,
            problem_type, problem_detail, priority, attachments, status, technician_note, "createdAt")
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
        RETURNING ` + repairRequestColumns
	created, err := scanRepairRequest(r.pool.QueryRow(ctx, query,
		request.ID,
		request.Name,
		request.Position,
		request.Department,
		request.Email,
		request.Phone,
		request.Location,
		request.ProblemType,
		request.ProblemDetail,
		request.Priority,
		request.Attachments,
		request.Status,
		request.TechnicianNote,
		request.CreatedAt,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, ErrConflict
		}
		return nil, err
	}
	return created, nil
}

func (r *repairRequestRepository) Update(ctx context.Context, id string, patch RequestPatch) error {
	if patch.Empty() {
		return nil
	}
	sets := []string{}
	args := []any{}
	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
	}
	if patch.TechnicianNote != nil {
		args = append(args, *patch.TechnicianNote)
		sets = append(sets, fmt.Sprintf("technician_note=$%d", len(args)))
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE repair_requests SET %s WHERE id=$%d`, strings.Join(sets, ", "), len(args))

	cmd, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *repairRequestRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM repair_requests`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func scanRepairRequest(row pgx.Row) (*domain.RepairRequest, error) {
	var request domain.RepairRequest
	if err := row.Scan(
		&request.ID,
		&request.Name,
		&request.Position,
		&request.Department,
		&request.Email,
		&request.Phone,
		&request.Location,
		&request.ProblemType,
		&request.ProblemDetail,
		&request.Priority,
		&request.Attachments,
		&request.Status,
		&request.TechnicianNote,
		&request.CreatedAt,
	); err != nil {
		return nil, err
	}
	if request.Attachments == nil {
		request.Attachments = []string{}
	}
	return &request, nil
}

func scanRepairRequests(rows pgx.Rows) ([]domain.RepairRequest, error) {
	result := []domain.RepairRequest{}
	for rows.Next() {
		request, err := scanRepairRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *request)
	}
	return result, rows.Err()
}
