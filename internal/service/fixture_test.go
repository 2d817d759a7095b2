package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/warranty-service/internal/domain"
	"github.com/spec-kit/warranty-service/internal/events"
	"github.com/spec-kit/warranty-service/internal/notification"
	"github.com/spec-kit/warranty-service/internal/observability"
	"github.com/spec-kit/warranty-service/internal/repository"
)

var (
	staff      = domain.Actor{ID: "staff-1", Roles: []domain.Role{domain.RoleServiceStaff}}
	technician = domain.Actor{ID: "tech-1", Roles: []domain.Role{domain.RoleTechnician}}
	evm        = domain.Actor{ID: "evm-1", Roles: []domain.Role{domain.RoleEVMStaff}}
)

type fixture struct {
	now           time.Time
	claims        *repository.MemoryClaimRepository
	tasks         *repository.MemoryApprovalTaskRepository
	cancellations *repository.MemoryCancellationRepository
	serials       *repository.MemoryPartSerialRepository
	workOrders    *repository.MemoryWorkOrderRepository
	vehicles      *repository.MemoryVehicleRepository
	history       *repository.MemoryClaimHistoryRepository
	metrics       *observability.Metrics
	dispatcher    events.Dispatcher
	queue         *recordingQueue

	ledger        *LedgerService
	eligibility   *EligibilityService
	claimSvc      *ClaimService
	cancellation  *CancellationService
	notifications *NotificationService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:           time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
		claims:        repository.NewMemoryClaimRepository(),
		tasks:         repository.NewMemoryApprovalTaskRepository(),
		cancellations: repository.NewMemoryCancellationRepository(),
		serials:       repository.NewMemoryPartSerialRepository(),
		workOrders:    repository.NewMemoryWorkOrderRepository(),
		vehicles:      repository.NewMemoryVehicleRepository(),
		history:       repository.NewMemoryClaimHistoryRepository(),
		metrics:       observability.NewMetrics(),
		dispatcher:    events.NewInMemoryDispatcher(),
		queue:         &recordingQueue{},
	}
	clock := func() time.Time { return f.now }
	rules := repository.NewMemoryWarrantyRuleRepository(domain.WarrantyRule{
		ID:            "ev-x-base",
		VehicleModel:  "EV-X",
		CoverageYears: ptr(3),
		CoverageKm:    ptr(60000),
		EffectiveFrom: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	f.ledger = NewLedgerService(LedgerDependencies{
		SerialRepo:    f.serials,
		WorkOrderRepo: f.workOrders,
		Clock:         clock,
	})
	f.eligibility = NewEligibilityService(EligibilityDependencies{
		ClaimRepo:   f.claims,
		VehicleRepo: f.vehicles,
		RuleRepo:    rules,
		HistoryRepo: f.history,
		Dispatcher:  f.dispatcher,
		Metrics:     f.metrics,
		Clock:       clock,
	})
	f.claimSvc = NewClaimService(ClaimDependencies{
		ClaimRepo:     f.claims,
		TaskRepo:      f.tasks,
		WorkOrderRepo: f.workOrders,
		VehicleRepo:   f.vehicles,
		SerialRepo:    f.serials,
		HistoryRepo:   f.history,
		Ledger:        f.ledger,
		Eligibility:   f.eligibility,
		Dispatcher:    f.dispatcher,
		Metrics:       f.metrics,
		Clock:         clock,
		MaxRejections: 3,
	})
	f.cancellation = NewCancellationService(CancellationDependencies{
		ClaimRepo:        f.claims,
		CancellationRepo: f.cancellations,
		TaskRepo:         f.tasks,
		WorkOrderRepo:    f.workOrders,
		HistoryRepo:      f.history,
		Ledger:           f.ledger,
		Dispatcher:       f.dispatcher,
		Metrics:          f.metrics,
		Clock:            clock,
	})
	f.notifications = NewNotificationService(f.dispatcher, f.queue, nil, clock)
	f.notifications.RegisterHandlers()

	registered := time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := f.eligibility.RegisterVehicle(context.Background(), domain.Vehicle{
		ID:               "veh-1",
		VIN:              "VIN0001",
		Model:            "EV-X",
		CustomerID:       "cust-1",
		RegistrationDate: &registered,
		MileageKm:        40000,
	}); err != nil {
		t.Fatalf("register vehicle: %v", err)
	}
	return f
}

func (f *fixture) addSerials(t *testing.T, partID string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := f.ledger.RegisterSerial(context.Background(), RegisterSerialInput{
			PartID:       partID,
			SerialNumber: partID + "-" + string(rune('A'+i)),
		}); err != nil {
			t.Fatalf("register serial: %v", err)
		}
	}
}

// openClaim creates an intake claim for veh-1.
func (f *fixture) openClaim(t *testing.T) *domain.Claim {
	t.Helper()
	claim, err := f.claimSvc.CreateIntake(context.Background(), staff, ClaimRef{}, ClaimInput{
		CustomerID:         "cust-1",
		VehicleID:          "veh-1",
		FailureDescription: "battery does not charge above 60%",
		Attachments:        []string{"photo-1.jpg"},
	})
	if err != nil {
		t.Fatalf("create intake: %v", err)
	}
	return claim
}

// diagnosedClaim advances a new claim to DIAGNOSED with one OEM part line.
func (f *fixture) diagnosedClaim(t *testing.T) *domain.Claim {
	t.Helper()
	claim := f.openClaim(t)
	claim, err := f.claimSvc.UpdateDiagnostic(context.Background(), technician, ClaimRef{ID: claim.ID}, DiagnosticInput{
		Findings:          "cell module 3 degraded",
		Component:         "battery",
		LaborHours:        2.5,
		Parts:             []domain.ClaimPart{{PartID: "P-BMS", Quantity: 1, UnitCostCents: 45000}},
		WarrantyCostCents: ptr(int64(52000)),
		Evaluate:          true,
	})
	if err != nil {
		t.Fatalf("diagnose: %v", err)
	}
	return claim
}

// pendingClaim advances a new claim to PENDING_EVM_APPROVAL.
func (f *fixture) pendingClaim(t *testing.T) *domain.Claim {
	t.Helper()
	claim := f.diagnosedClaim(t)
	claim, err := f.claimSvc.SubmitToEvm(context.Background(), staff, ClaimRef{ID: claim.ID}, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return claim
}

type recordingQueue struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (q *recordingQueue) Enqueue(msg notification.Message) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, msg)
	return true
}

func (q *recordingQueue) byEvent(event events.EventType) []notification.Message {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []notification.Message
	for _, m := range q.messages {
		if m.Event == string(event) {
			out = append(out, m)
		}
	}
	return out
}
