package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/repair-service/internal/domain"
)

// SystemPrincipal performs maintenance mutations such as seeding.
var SystemPrincipal = domain.Principal{ID: "system", Role: domain.RoleAdmin}

// SeedService inserts demonstration data into an empty collection.
type SeedService struct {
	repairs *RepairService
	logger  *zap.Logger
}

// NewSeedService constructs the service.
func NewSeedService(repairs *RepairService, logger *zap.Logger) *SeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeedService{repairs: repairs, logger: logger}
}

type seedRecord struct {
	request domain.NewRequest
	status  domain.RequestStatus
}

var sampleRequests = []seedRecord{
	{
		request: domain.NewRequest{
			Name:          "Jane Smith",
			Position:      "HR Manager",
			Department:    "Human Resources",
			Email:         "jane.smith@company.com",
			Phone:         "089-876-5432",
			Location:      "Building A, 2nd Floor",
			ProblemType:   domain.ProblemSoftware,
			ProblemDetail: "Unable to access the payroll system on the new workstation.",
			Priority:      domain.PriorityMedium,
		},
		status: domain.StatusInProgress,
	},
	{
		request: domain.NewRequest{
			Name:          "John Doe",
			Position:      "Software Engineer",
			Department:    "Development",
			Email:         "john.doe@company.com",
			Phone:         "081-234-5678",
			Location:      "Office 304",
			ProblemType:   domain.ProblemHardware,
			ProblemDetail: "Laptop screen flickers intermittently when moved.",
			Priority:      domain.PriorityHigh,
		},
		status: domain.StatusPending,
	},
}

// SeedIfEmpty inserts the sample requests when the store holds none.
// It returns how many records were inserted.
func (s *SeedService) SeedIfEmpty(ctx context.Context) (int, error) {
	count, err := s.repairs.Count(ctx)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		return 0, nil
	}

	inserted := 0
	for _, record := range sampleRequests {
		created, err := s.repairs.Submit(ctx, SystemPrincipal, record.request)
		if err != nil {
			return inserted, fmt.Errorf("seed %s: %w", record.request.Email, err)
		}
		inserted++
		if record.status != created.Status {
			if _, err := s.repairs.UpdateStatus(ctx, SystemPrincipal, created.ID, record.status); err != nil {
				return inserted, fmt.Errorf("seed status %s: %w", created.ID, err)
			}
		}
	}
	s.logger.Info("seeded initial repair requests", zap.Int("count", inserted))
	return inserted, nil
}
