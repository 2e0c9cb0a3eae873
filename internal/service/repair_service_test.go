package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/repair-service/internal/domain"
	"github.com/spec-kit/repair-service/internal/events"
	"github.com/spec-kit/repair-service/internal/repository"
	"github.com/spec-kit/repair-service/internal/store"
)

var (
	admin     = domain.Principal{ID: "admin-1", Email: "admin@company.com", Role: domain.RoleAdmin}
	staff     = domain.Principal{ID: "staff-1", Email: "tech@company.com", Role: domain.RoleStaff}
	plainUser = domain.Principal{ID: "user-1", Email: "someone@company.com", Role: domain.RoleUser}
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingDispatcher) Publish(_ context.Context, event events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (r *recordingDispatcher) types() []events.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func newTestService(t *testing.T) (*RepairService, *recordingDispatcher) {
	t.Helper()
	current := time.Date(2026, 2, 12, 10, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		current = current.Add(time.Minute)
		return current
	}
	dispatcher := &recordingDispatcher{}
	svc := NewRepairService(RepairDependencies{
		Store:      store.New(repository.NewMemoryBackend(), nil, store.WithClock(clock)),
		Dispatcher: dispatcher,
	})
	return svc, dispatcher
}

func validInput() domain.NewRequest {
	return domain.NewRequest{
		Name:          "Somchai Jaidee",
		Position:      "Accountant",
		Department:    "Finance",
		Email:         "somchai@company.com",
		Phone:         "081-234-5678",
		Location:      "Building A, Room 304",
		ProblemType:   domain.ProblemHardware,
		ProblemDetail: "Printer jams on every page.",
		Priority:      domain.PriorityUrgent,
	}
}

func mustSubmit(t *testing.T, svc *RepairService) *domain.RepairRequest {
	t.Helper()
	created, err := svc.Submit(context.Background(), domain.Anonymous(), validInput())
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return created
}

func TestSubmitUrgentHardwareAppearsFirst(t *testing.T) {
	svc, dispatcher := newTestService(t)
	ctx := context.Background()

	older := validInput()
	older.Priority = domain.PriorityLow
	if _, err := svc.Submit(ctx, domain.Anonymous(), older); err != nil {
		t.Fatalf("Submit older: %v", err)
	}

	created := mustSubmit(t, svc)
	if created.ID == "" {
		t.Fatal("empty id")
	}
	if created.Status != domain.StatusPending {
		t.Errorf("Status = %s, want pending", created.Status)
	}
	if created.Priority != domain.PriorityUrgent || created.ProblemType != domain.ProblemHardware {
		t.Errorf("fields not persisted: %+v", created)
	}

	all := svc.List(ctx, domain.RequestFilter{})
	if len(all) != 2 || all[0].ID != created.ID {
		t.Fatalf("List first = %v, want %s", all, created.ID)
	}
	if types := dispatcher.types(); len(types) != 2 || types[1] != events.EventRequestCreated {
		t.Errorf("events = %v", types)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name   string
		mutate func(*domain.NewRequest)
		field  string
	}{
		{"missing name", func(r *domain.NewRequest) { r.Name = "  " }, "name"},
		{"bad email", func(r *domain.NewRequest) { r.Email = "somchai" }, "email"},
		{"unknown problem type", func(r *domain.NewRequest) { r.ProblemType = "plumbing" }, "problem_type"},
		{"unknown priority", func(r *domain.NewRequest) { r.Priority = "critical" }, "priority"},
		{"attachment not a url", func(r *domain.NewRequest) { r.Attachments = []string{"file.png"} }, "attachments[0]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)
			_, err := svc.Submit(context.Background(), domain.Anonymous(), input)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if _, ok := verr.Fields[tt.field]; !ok {
				t.Errorf("fields = %v, want %s", verr.Fields, tt.field)
			}
			if !errors.Is(err, ErrValidation) {
				t.Error("ValidationError does not match ErrValidation")
			}
		})
	}
}

func TestSubmitNormalizesCase(t *testing.T) {
	svc, _ := newTestService(t)
	input := validInput()
	input.Priority = "URGENT"
	input.ProblemType = " Network "
	created, err := svc.Submit(context.Background(), domain.Anonymous(), input)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if created.Priority != domain.PriorityUrgent || created.ProblemType != domain.ProblemNetwork {
		t.Errorf("got priority %q type %q", created.Priority, created.ProblemType)
	}
}

func TestUpdateStatusRejectsUnprivileged(t *testing.T) {
	for _, principal := range []domain.Principal{domain.Anonymous(), plainUser} {
		svc, dispatcher := newTestService(t)
		ctx := context.Background()
		created := mustSubmit(t, svc)

		_, err := svc.UpdateStatus(ctx, principal, created.ID, domain.StatusInProgress)
		if !errors.Is(err, ErrForbidden) {
			t.Fatalf("role %q: error = %v, want ErrForbidden", principal.Role, err)
		}
		got, _ := svc.Get(ctx, created.ID)
		if got.Status != domain.StatusPending {
			t.Errorf("role %q: status changed to %s", principal.Role, got.Status)
		}
		if _, err := svc.UpdateNote(ctx, principal, created.ID, "sneaky"); !errors.Is(err, ErrForbidden) {
			t.Errorf("role %q: UpdateNote error = %v, want ErrForbidden", principal.Role, err)
		}
		if len(dispatcher.types()) != 1 {
			t.Errorf("role %q: unexpected events %v", principal.Role, dispatcher.types())
		}
	}
}

func TestForbiddenCheckedBeforeStore(t *testing.T) {
	svc := NewRepairService(RepairDependencies{Store: store.New(nil, nil)})
	_, err := svc.UpdateStatus(context.Background(), domain.Anonymous(), "REQ-1", domain.StatusCompleted)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("error = %v, want ErrForbidden even with an unreachable store", err)
	}
}

func TestUpdateStatusLifecycle(t *testing.T) {
	svc, dispatcher := newTestService(t)
	ctx := context.Background()
	created := mustSubmit(t, svc)

	if _, err := svc.UpdateStatus(ctx, staff, created.ID, domain.StatusCompleted); !errors.Is(err, ErrIllegalTransition) {
		t.Fatalf("pending -> completed error = %v, want ErrIllegalTransition", err)
	}
	for _, next := range []domain.RequestStatus{domain.StatusInProgress, domain.StatusCompleted} {
		updated, err := svc.UpdateStatus(ctx, staff, created.ID, next)
		if err != nil {
			t.Fatalf("-> %s: %v", next, err)
		}
		if updated.Status != next {
			t.Errorf("returned status %s, want %s", updated.Status, next)
		}
	}
	if _, err := svc.UpdateStatus(ctx, admin, created.ID, domain.StatusCancelled); !errors.Is(err, ErrIllegalTransition) {
		t.Errorf("completed -> cancelled error = %v, want ErrIllegalTransition", err)
	}

	got, _ := svc.Get(ctx, created.ID)
	if got.Status != domain.StatusCompleted {
		t.Errorf("stored status %s, want completed", got.Status)
	}
	statusEvents := 0
	for _, typ := range dispatcher.types() {
		if typ == events.EventRequestStatusChanged {
			statusEvents++
		}
	}
	if statusEvents != 2 {
		t.Errorf("status events = %d, want 2", statusEvents)
	}
}

func TestUpdateStatusIdempotent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustSubmit(t, svc)

	for i := 0; i < 2; i++ {
		updated, err := svc.UpdateStatus(ctx, admin, created.ID, domain.StatusInProgress)
		if err != nil {
			t.Fatalf("call %d: %v", i+1, err)
		}
		if updated.Status != domain.StatusInProgress {
			t.Errorf("call %d: status %s", i+1, updated.Status)
		}
	}
}

func TestUpdateStatusInvalidValue(t *testing.T) {
	svc, _ := newTestService(t)
	created := mustSubmit(t, svc)
	_, err := svc.UpdateStatus(context.Background(), admin, created.ID, "closed")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("error = %v, want ErrInvalidStatus", err)
	}
}

func TestUpdateStatusNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.UpdateStatus(context.Background(), admin, "REQ-NOPE", domain.StatusInProgress)
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want store.ErrNotFound", err)
	}
}

func TestUpdateNoteAtAnyState(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	created := mustSubmit(t, svc)
	if _, err := svc.UpdateStatus(ctx, admin, created.ID, domain.StatusCancelled); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	if _, err := svc.UpdateNote(ctx, staff, created.ID, "Duplicate of REQ-OTHER"); err != nil {
		t.Fatalf("UpdateNote on terminal request: %v", err)
	}
	if _, err := svc.UpdateNote(ctx, staff, created.ID, "Closed as duplicate"); err != nil {
		t.Fatalf("second UpdateNote: %v", err)
	}
	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.TechnicianNote != "Closed as duplicate" {
		t.Errorf("note = %q, want overwrite", got.TechnicianNote)
	}
	if got.Status != domain.StatusCancelled {
		t.Errorf("status = %s, want cancelled", got.Status)
	}
	if len(svc.List(ctx, domain.RequestFilter{})) != 1 {
		t.Error("cancelled request missing from listing")
	}
}

func TestUpdateNoteTooLong(t *testing.T) {
	svc, _ := newTestService(t)
	created := mustSubmit(t, svc)
	_, err := svc.UpdateNote(context.Background(), admin, created.ID, strings.Repeat("x", maxNoteLength+1))
	if !errors.Is(err, ErrValidation) {
		t.Errorf("error = %v, want ErrValidation", err)
	}
}

func TestListFilter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	first := mustSubmit(t, svc)
	mustSubmit(t, svc)
	if _, err := svc.UpdateStatus(ctx, admin, first.ID, domain.StatusInProgress); err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}

	got := svc.List(ctx, domain.RequestFilter{Status: domain.StatusInProgress})
	if len(got) != 1 || got[0].ID != first.ID {
		t.Errorf("status filter = %v", got)
	}
	got = svc.List(ctx, domain.RequestFilter{Search: strings.ToLower(first.ID)})
	if len(got) != 1 || got[0].ID != first.ID {
		t.Errorf("id search = %v", got)
	}
}

func TestSeedIfEmpty(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	seeder := NewSeedService(svc, nil)

	inserted, err := seeder.SeedIfEmpty(ctx)
	if err != nil {
		t.Fatalf("SeedIfEmpty: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("inserted = %d, want 2", inserted)
	}
	all := svc.List(ctx, domain.RequestFilter{})
	if all[0].Email != "john.doe@company.com" || all[0].Status != domain.StatusPending {
		t.Errorf("newest seed = %+v", all[0])
	}
	if all[1].Status != domain.StatusInProgress {
		t.Errorf("older seed status = %s, want in_progress", all[1].Status)
	}

	again, err := seeder.SeedIfEmpty(ctx)
	if err != nil || again != 0 {
		t.Errorf("second SeedIfEmpty = (%d, %v), want (0, nil)", again, err)
	}
}

func TestSeedUnconfigured(t *testing.T) {
	svc := NewRepairService(RepairDependencies{Store: store.New(nil, nil)})
	if _, err := NewSeedService(svc, nil).SeedIfEmpty(context.Background()); !errors.Is(err, store.ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}
