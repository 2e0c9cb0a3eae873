package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/spec-kit/repair-service/internal/domain"
)

// MemoryBackend keeps repair requests in process. It backs the
// "memory" driver and the test suites.
type MemoryBackend struct {
	mu      sync.RWMutex
	rows    map[string]memoryRow
	nextSeq int64
}

type memoryRow struct {
	seq     int64
	request domain.RepairRequest
}

// NewMemoryBackend returns an empty in-memory collection.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{rows: make(map[string]memoryRow)}
}

func (m *MemoryBackend) ListOrdered(ctx context.Context) ([]domain.RepairRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	rows := make([]memoryRow, 0, len(m.rows))
	for _, row := range m.rows {
		rows = append(rows, row)
	}
	m.mu.RUnlock()

	// Ties on createdAt fall back to insertion order, newest first.
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i].request.CreatedAt, rows[j].request.CreatedAt
		if !a.Equal(b) {
			return a.After(b)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]domain.RepairRequest, 0, len(rows))
	for _, row := range rows {
		out = append(out, cloneRequest(row.request))
	}
	return out, nil
}

func (m *MemoryBackend) GetByID(ctx context.Context, id string) (*domain.RepairRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	request := cloneRequest(row.request)
	return &request, nil
}

func (m *MemoryBackend) Insert(ctx context.Context, request *domain.RepairRequest) (*domain.RepairRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.rows[request.ID]; exists {
		return nil, ErrConflict
	}
	m.nextSeq++
	stored := cloneRequest(*request)
	m.rows[stored.ID] = memoryRow{seq: m.nextSeq, request: stored}
	created := cloneRequest(stored)
	return &created, nil
}

func (m *MemoryBackend) Update(ctx context.Context, id string, patch RequestPatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Status != nil {
		row.request.Status = *patch.Status
	}
	if patch.TechnicianNote != nil {
		row.request.TechnicianNote = *patch.TechnicianNote
	}
	m.rows[id] = row
	return nil
}

func (m *MemoryBackend) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rows), nil
}

func cloneRequest(r domain.RepairRequest) domain.RepairRequest {
	r.Attachments = append([]string{}, r.Attachments...)
	return r
}

// MemoryRoles is an in-process role assignment table.
type MemoryRoles struct {
	mu    sync.RWMutex
	roles map[string]domain.Role
}

// NewMemoryRoles seeds the table with the given assignments.
func NewMemoryRoles(assignments map[string]domain.Role) *MemoryRoles {
	roles := make(map[string]domain.Role, len(assignments))
	for id, role := range assignments {
		roles[id] = role
	}
	return &MemoryRoles{roles: roles}
}

// Assign sets or replaces a role assignment.
func (m *MemoryRoles) Assign(principalID string, role domain.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[principalID] = role
}

func (m *MemoryRoles) RoleFor(ctx context.Context, principalID string) (domain.Role, error) {
	if err := ctx.Err(); err != nil {
		return domain.RoleNone, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	role, ok := m.roles[principalID]
	if !ok {
		return domain.RoleNone, ErrNotFound
	}
	return role, nil
}
