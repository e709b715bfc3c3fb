package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/otcheredev/ris-hl7-service/internal/cache"
	"github.com/otcheredev/ris-hl7-service/internal/models"
	"github.com/otcheredev/ris-hl7-service/internal/records"
)

// fixedNow is a weekday morning before shift start
var fixedNow = time.Date(2024, 3, 15, 7, 0, 0, 0, time.Local)

func testScheduler(t *testing.T, store records.Store, dayRange int) *Scheduler {
	t.Helper()
	s, err := NewScheduler(store, cache.NewMemoryCache(), "08:00", "12:00", dayRange)
	if err != nil {
		t.Fatalf("NewScheduler failed: %v", err)
	}
	s.now = func() time.Time { return fixedNow }
	return s
}

func seedOrder(t *testing.T, store records.Store, id, patientID, station, date, start, end string, status models.OrderStatus) {
	t.Helper()
	err := store.CreateOrder(context.Background(), &models.Order{
		ID:         id,
		PatientID:  patientID,
		StationAET: station,
		Date:       date,
		StartTime:  start,
		EndTime:    end,
		Status:     status,
		IsActive:   true,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestOverlaps(t *testing.T) {
	at := func(h, m int) time.Time {
		return time.Date(2024, 3, 15, h, m, 0, 0, time.Local)
	}

	tests := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd time.Time
		want                       bool
	}{
		{"disjoint", at(8, 0), at(9, 0), at(10, 0), at(11, 0), false},
		{"touching boundaries", at(8, 0), at(9, 0), at(9, 0), at(10, 0), false},
		{"partial overlap", at(8, 0), at(9, 0), at(8, 30), at(9, 30), true},
		{"containment", at(8, 0), at(10, 0), at(8, 30), at(9, 0), true},
		{"identical windows", at(8, 0), at(9, 0), at(8, 0), at(9, 0), true},
	}
	for _, tt := range tests {
		if got := overlaps(tt.aStart, tt.aEnd, tt.bStart, tt.bEnd); got != tt.want {
			t.Errorf("%s: overlaps = %v, want %v", tt.name, got, tt.want)
		}
		// The predicate is symmetric
		if got := overlaps(tt.bStart, tt.bEnd, tt.aStart, tt.aEnd); got != tt.want {
			t.Errorf("%s (swapped): overlaps = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestGridCoversShift(t *testing.T) {
	store := records.NewMemoryStore()
	s := testScheduler(t, store, 0)

	proposals, err := s.GetPossibleSchedules(context.Background(), 60, "pat-1", []string{"CT1"})
	if err != nil {
		t.Fatalf("GetPossibleSchedules failed: %v", err)
	}
	// 08:00-12:00 shift with 60-minute slots: 4 per day, single day
	if len(proposals) != 4 {
		t.Fatalf("Got %d proposals, want 4", len(proposals))
	}
	if proposals[0].Slot.StartTime != "08:00" || proposals[0].Slot.EndTime != "09:00" {
		t.Errorf("First slot = %s-%s", proposals[0].Slot.StartTime, proposals[0].Slot.EndTime)
	}
	if proposals[3].Slot.StartTime != "11:00" {
		t.Errorf("Last slot starts %s, want 11:00", proposals[3].Slot.StartTime)
	}
	for _, p := range proposals {
		if p.Station != "CT1" {
			t.Errorf("Station = %q", p.Station)
		}
	}
}

func TestGridDropsPartialSlot(t *testing.T) {
	store := records.NewMemoryStore()
	s := testScheduler(t, store, 0)

	// 90-minute slots in a 4-hour shift: 08:00 and 09:30 fit, 11:00 would
	// end past shift end.
	proposals, err := s.GetPossibleSchedules(context.Background(), 90, "pat-1", []string{"CT1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(proposals) != 2 {
		t.Fatalf("Got %d proposals, want 2", len(proposals))
	}
}

func TestElapsedSlotsDropped(t *testing.T) {
	store := records.NewMemoryStore()
	s := testScheduler(t, store, 0)
	s.now = func() time.Time { return time.Date(2024, 3, 15, 9, 30, 0, 0, time.Local) }

	proposals, err := s.GetPossibleSchedules(context.Background(), 60, "pat-1", []string{"CT1"})
	if err != nil {
		t.Fatal(err)
	}
	// 08:00 and 09:00 already started; 10:00 and 11:00 remain
	if len(proposals) != 2 {
		t.Fatalf("Got %d proposals, want 2", len(proposals))
	}
	if proposals[0].Slot.StartTime != "10:00" {
		t.Errorf("First remaining slot = %s", proposals[0].Slot.StartTime)
	}
}

func TestStationConflictRemovesStation(t *testing.T) {
	store := records.NewMemoryStore()
	s := testScheduler(t, store, 0)
	seedOrder(t, store, "o1", "other-patient", "CT1", "2024-03-15", "08:00", "09:00", models.OrderScheduled)

	proposals, err := s.GetPossibleSchedules(context.Background(), 60, "pat-1", []string{"CT1", "CT2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(proposals) != 4 {
		t.Fatalf("Got %d proposals, want 4", len(proposals))
	}
	// CT1 is blocked at 08:00 so CT2 must carry that slot; later slots
	// prefer CT1 which now has equal workload... CT1 carries one
	// outstanding order, CT2 none, so CT2 wins every tie.
	if proposals[0].Station != "CT2" {
		t.Errorf("08:00 station = %s, want CT2", proposals[0].Station)
	}
	if len(proposals[0].Slot.Stations) != 1 {
		t.Errorf("08:00 candidates = %v, want only CT2", proposals[0].Slot.Stations)
	}
}

func TestSlotDroppedWhenAllStationsBusy(t *testing.T) {
	store := records.NewMemoryStore()
	s := testScheduler(t, store, 0)
	seedOrder(t, store, "o1", "p-a", "CT1", "2024-03-15", "08:00", "09:00", models.OrderScheduled)
	seedOrder(t, store, "o2", "p-b", "CT2", "2024-03-15", "08:00", "09:00", models.OrderInProgress)

	proposals, err := s.GetPossibleSchedules(context.Background(), 60, "pat-1", []string{"CT1", "CT2"})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range proposals {
		if p.Slot.StartTime == "08:00" {
			t.Error("08:00 slot should be gone, both stations are busy")
		}
	}
}

func TestFinishedOrdersDoNotBlock(t *testing.T) {
	store := records.NewMemoryStore()
	s := testScheduler(t, store, 0)
	seedOrder(t, store, "o1", "p-a", "CT1", "2024-03-15", "08:00", "09:00", models.OrderFinished)
	seedOrder(t, store, "o2", "p-b", "CT1", "2024-03-15", "09:00", "10:00", models.OrderCancelled)

	proposals, err := s.GetPossibleSchedules(context.Background(), 60, "pat-1", []string{"CT1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(proposals) != 4 {
		t.Errorf("Got %d proposals, want 4; terminal orders must not occupy slots", len(proposals))
	}
}

func TestPatientConflictDropsSlot(t *testing.T) {
	store := records.NewMemoryStore()
	s := testScheduler(t, store, 0)
	// The patient already has a booking on some other station
	seedOrder(t, store, "o1", "pat-1", "MR1", "2024-03-15", "09:00", "10:00", models.OrderScheduled)

	proposals, err := s.GetPossibleSchedules(context.Background(), 60, "pat-1", []string{"CT1"})
	if err != nil {
		t.Fatal(err)
	}
	if len(proposals) != 3 {
		t.Fatalf("Got %d proposals, want 3", len(proposals))
	}
	for _, p := range proposals {
		if p.Slot.StartTime == "09:00" {
			t.Error("09:00 slot should be dropped, the patient is booked elsewhere")
		}
	}
}

func TestWorkloadTieBreak(t *testing.T) {
	store := records.NewMemoryStore()
	s := testScheduler(t, store, 0)
	// CT1 carries two outstanding orders on another day, CT2 one
	seedOrder(t, store, "o1", "p-a", "CT1", "2024-03-16", "08:00", "09:00", models.OrderScheduled)
	seedOrder(t, store, "o2", "p-b", "CT1", "2024-03-16", "09:00", "10:00", models.OrderScheduled)
	seedOrder(t, store, "o3", "p-c", "CT2", "2024-03-16", "08:00", "09:00", models.OrderScheduled)

	proposals, err := s.GetPossibleSchedules(context.Background(), 60, "pat-1", []string{"CT1", "CT2"})
	if err != nil {
		t.Fatal(err)
	}
	if len(proposals) == 0 {
		t.Fatal("No proposals")
	}
	for _, p := range proposals {
		if p.Station != "CT2" {
			t.Errorf("Station = %s, want least-loaded CT2", p.Station)
		}
	}
}

func TestWorkloadTieFallsToFirstCandidate(t *testing.T) {
	store := records.NewMemoryStore()
	s := testScheduler(t, store, 0)

	proposals, err := s.GetPossibleSchedules(context.Background(), 60, "pat-1", []string{"CT2", "CT1"})
	if err != nil {
		t.Fatal(err)
	}
	for _, p := range proposals {
		if p.Station != "CT2" {
			t.Errorf("Station = %s, want first candidate CT2", p.Station)
		}
	}
}

func bookableOrder() *models.Order {
	return &models.Order{
		ID:          "ord-1",
		PatientID:   "pat-1",
		ProcedureID: "proc-ct",
		Status:      models.OrderUnscheduled,
		IsActive:    true,
	}
}

// seedCandidates registers the procedure and its bookable station
func seedCandidates(store *records.MemoryStore) {
	store.AddProcedure(models.Procedure{ID: "proc-ct", Name: "CT Head", Modality: "CT", DurationMinutes: 60})
	store.AddStation(models.Station{AET: "CT1", Name: "CT room 1", Modality: "CT", IsActive: true})
}

func proposalAt(station, date, start, end string) Proposal {
	return Proposal{
		Station: station,
		Slot:    Slot{Date: date, StartTime: start, EndTime: end},
	}
}

func TestBookCommits(t *testing.T) {
	store := records.NewMemoryStore()
	seedCandidates(store)
	s := testScheduler(t, store, 0)
	ctx := context.Background()

	order := bookableOrder()
	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatal(err)
	}

	confirmed := false
	p := proposalAt("CT1", "2024-03-15", "09:00", "10:00")
	err := s.Book(ctx, order, p, func(context.Context) error {
		confirmed = true
		return nil
	})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	if !confirmed {
		t.Error("Confirm callback not invoked")
	}

	stored, _ := store.GetOrder(ctx, "ord-1")
	if stored.Status != models.OrderScheduled {
		t.Errorf("Status = %s, want SCHEDULED", stored.Status)
	}
	if stored.StationAET != "CT1" || stored.Date != "2024-03-15" || stored.StartTime != "09:00" {
		t.Errorf("Booking fields = %+v", stored)
	}
}

func TestBookRejectsTerminalOrder(t *testing.T) {
	store := records.NewMemoryStore()
	s := testScheduler(t, store, 0)

	order := bookableOrder()
	order.Status = models.OrderCancelled
	err := s.Book(context.Background(), order, proposalAt("CT1", "2024-03-15", "09:00", "10:00"), nil)
	if err == nil {
		t.Error("Booking a cancelled order should fail")
	}
}

func TestBookRejectsElapsedSlot(t *testing.T) {
	store := records.NewMemoryStore()
	s := testScheduler(t, store, 0)

	err := s.Book(context.Background(), bookableOrder(), proposalAt("CT1", "2024-03-14", "09:00", "10:00"), nil)
	if !errors.Is(err, ErrSlotTaken) {
		t.Errorf("err = %v, want ErrSlotTaken", err)
	}
}

func TestBookRejectsUnknownStation(t *testing.T) {
	store := records.NewMemoryStore()
	seedCandidates(store)
	// A second station of the right modality, but switched off
	store.AddStation(models.Station{AET: "CT2", Name: "CT room 2", Modality: "CT", IsActive: false})
	s := testScheduler(t, store, 0)
	ctx := context.Background()

	order := bookableOrder()
	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatal(err)
	}

	for _, station := range []string{"MR9", "CT2"} {
		err := s.Book(ctx, order, proposalAt(station, "2024-03-15", "09:00", "10:00"), nil)
		if !errors.Is(err, ErrUnknownStation) {
			t.Errorf("Book(%s): err = %v, want ErrUnknownStation", station, err)
		}
	}

	stored, _ := store.GetOrder(ctx, "ord-1")
	if stored.Status != models.OrderUnscheduled || stored.StationAET != "" {
		t.Errorf("Rejected booking mutated the order: %+v", stored)
	}
}

func TestBookDetectsStaleSlot(t *testing.T) {
	store := records.NewMemoryStore()
	seedCandidates(store)
	s := testScheduler(t, store, 0)
	ctx := context.Background()

	// Another order took the window after the slots were computed
	seedOrder(t, store, "o-race", "p-x", "CT1", "2024-03-15", "09:00", "10:00", models.OrderScheduled)

	order := bookableOrder()
	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatal(err)
	}
	err := s.Book(ctx, order, proposalAt("CT1", "2024-03-15", "09:30", "10:30"), nil)
	if !errors.Is(err, ErrSlotTaken) {
		t.Errorf("err = %v, want ErrSlotTaken", err)
	}
	stored, _ := store.GetOrder(ctx, "ord-1")
	if stored.Status != models.OrderUnscheduled {
		t.Errorf("Losing booking mutated the order: %s", stored.Status)
	}
}

func TestBookLosesHoldRace(t *testing.T) {
	store := records.NewMemoryStore()
	seedCandidates(store)
	holds := cache.NewMemoryCache()
	s, err := NewScheduler(store, holds, "08:00", "12:00", 0)
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	// A concurrent booking holds the slot
	key := cache.HoldKey("CT1", "2024-03-15", "09:00")
	if ok, err := holds.SetNX(ctx, key, []byte("other-order"), time.Minute); err != nil || !ok {
		t.Fatalf("Failed to seed hold: %v", err)
	}

	order := bookableOrder()
	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatal(err)
	}
	err = s.Book(ctx, order, proposalAt("CT1", "2024-03-15", "09:00", "10:00"), nil)
	if !errors.Is(err, ErrSlotTaken) {
		t.Errorf("err = %v, want ErrSlotTaken", err)
	}
}

func TestBookConfirmFailureLeavesOrderUntouched(t *testing.T) {
	store := records.NewMemoryStore()
	seedCandidates(store)
	s := testScheduler(t, store, 0)
	ctx := context.Background()

	order := bookableOrder()
	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatal(err)
	}

	confirmErr := errors.New("counterpart unreachable")
	err := s.Book(ctx, order, proposalAt("CT1", "2024-03-15", "09:00", "10:00"), func(context.Context) error {
		return confirmErr
	})
	if !errors.Is(err, confirmErr) {
		t.Fatalf("err = %v, want confirm error", err)
	}

	stored, _ := store.GetOrder(ctx, "ord-1")
	if stored.Status != models.OrderUnscheduled || stored.StationAET != "" {
		t.Errorf("Failed confirm mutated the order: %+v", stored)
	}
}

func TestBookReleasesHoldAfterCommit(t *testing.T) {
	store := records.NewMemoryStore()
	seedCandidates(store)
	holds := cache.NewMemoryCache()
	s, err := NewScheduler(store, holds, "08:00", "12:00", 0)
	if err != nil {
		t.Fatal(err)
	}
	s.now = func() time.Time { return fixedNow }
	ctx := context.Background()

	order := bookableOrder()
	if err := store.CreateOrder(ctx, order); err != nil {
		t.Fatal(err)
	}
	if err := s.Book(ctx, order, proposalAt("CT1", "2024-03-15", "09:00", "10:00"), nil); err != nil {
		t.Fatalf("Book failed: %v", err)
	}

	key := cache.HoldKey("CT1", "2024-03-15", "09:00")
	if _, err := holds.Get(ctx, key); !errors.Is(err, cache.ErrCacheMiss) {
		t.Error("Hold should be released after the commit")
	}
}
