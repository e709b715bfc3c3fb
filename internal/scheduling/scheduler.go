// Package scheduling computes bookable examination slots for a procedure
// over a bounded future window and commits bookings with an optimistic
// check-and-set so two concurrent requests cannot take the same slot.
package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/otcheredev/ris-hl7-service/internal/cache"
	"github.com/otcheredev/ris-hl7-service/internal/models"
	"github.com/otcheredev/ris-hl7-service/internal/records"
)

// ErrSlotTaken is returned when a booking loses the race for its slot
var ErrSlotTaken = errors.New("slot no longer available")

// ErrUnknownStation is returned when a booking names a station that is not
// an active candidate for the order's procedure.
var ErrUnknownStation = errors.New("station not available for this procedure")

// holdTTL bounds how long a booking hold can block a slot if the holder
// dies before committing.
const holdTTL = 30 * time.Second

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Slot is an immutable candidate time window. Stations lists the
// candidates still available for the window after conflict filtering.
type Slot struct {
	Date      string   `json:"date"`
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Stations  []string `json:"stations"`

	start time.Time
	end   time.Time
}

// Proposal pairs a slot with the station elected for it
type Proposal struct {
	Station string `json:"station"`
	Slot    Slot   `json:"slot"`
}

// Scheduler computes and commits examination slots
type Scheduler struct {
	store      records.Store
	holds      cache.Cache
	dayRange   int
	shiftStart timeOfDay
	shiftEnd   timeOfDay
	now        func() time.Time
}

type timeOfDay struct {
	hour, minute int
}

func (t timeOfDay) on(date time.Time) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), t.hour, t.minute, 0, 0, date.Location())
}

// NewScheduler creates a scheduler for the configured shift window.
// shiftStart and shiftEnd use the "15:04" layout; dayRange is the number
// of days beyond today to consider.
func NewScheduler(store records.Store, holds cache.Cache, shiftStart, shiftEnd string, dayRange int) (*Scheduler, error) {
	start, err := parseTimeOfDay(shiftStart)
	if err != nil {
		return nil, fmt.Errorf("invalid shift start: %w", err)
	}
	end, err := parseTimeOfDay(shiftEnd)
	if err != nil {
		return nil, fmt.Errorf("invalid shift end: %w", err)
	}
	return &Scheduler{
		store:      store,
		holds:      holds,
		dayRange:   dayRange,
		shiftStart: start,
		shiftEnd:   end,
		now:        time.Now,
	}, nil
}

// GetPossibleSchedules returns every bookable (station, slot) pair for a
// procedure of the given duration, in grid day-then-time order. Station
// workload only breaks ties between stations free for the same slot; it
// never filters.
func (s *Scheduler) GetPossibleSchedules(ctx context.Context, durationMinutes int, patientID string, stations []string) ([]Proposal, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("invalid procedure duration %d", durationMinutes)
	}
	if len(stations) == 0 {
		return nil, nil
	}

	stationOrders := make(map[string][]models.Order, len(stations))
	workload := make(map[string]int, len(stations))
	for _, station := range stations {
		orders, err := s.store.QueryOrders(ctx, records.OrderFilter{
			StationAET: station,
			Statuses:   models.OutstandingStatuses,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to load station bookings: %w", err)
		}
		stationOrders[station] = orders
		workload[station] = len(orders)
	}

	patientOrders, err := s.store.QueryOrders(ctx, records.OrderFilter{
		PatientID: patientID,
		Statuses:  models.OutstandingStatuses,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load patient bookings: %w", err)
	}

	now := s.now()
	slots := s.grid(now, durationMinutes, stations)
	slots = dropElapsed(slots, now)
	slots = filterStationConflicts(slots, stationOrders)
	slots = filterPatientConflicts(slots, patientOrders)

	proposals := make([]Proposal, 0, len(slots))
	for _, slot := range slots {
		proposals = append(proposals, Proposal{Station: electStation(slot.Stations, workload), Slot: slot})
	}
	return proposals, nil
}

// Book assigns the proposal to the order. Availability is re-validated
// under a short-lived hold inside the same operation that commits, so a
// stale read from an earlier GetPossibleSchedules cannot double-book a
// station or a patient. The confirm callback runs between validation and
// the local commit; when it fails no local state changes.
func (s *Scheduler) Book(ctx context.Context, order *models.Order, p Proposal, confirm func(context.Context) error) error {
	if order.Status.IsTerminal() {
		return fmt.Errorf("order %s is %s and cannot be scheduled", order.ID, order.Status)
	}

	slotStart, slotEnd, err := parseWindow(p.Slot.Date, p.Slot.StartTime, p.Slot.EndTime)
	if err != nil {
		return err
	}
	if !slotStart.After(s.now()) {
		return ErrSlotTaken
	}

	if err := s.validStation(ctx, order, p.Station); err != nil {
		return err
	}

	holdKey := cache.HoldKey(p.Station, p.Slot.Date, p.Slot.StartTime)
	acquired, err := s.holds.SetNX(ctx, holdKey, []byte(order.ID), holdTTL)
	if err != nil {
		return fmt.Errorf("failed to acquire booking hold: %w", err)
	}
	if !acquired {
		return ErrSlotTaken
	}
	defer func() {
		// The hold only needs to outlive the commit; once the order row
		// carries the booking the store is authoritative.
		_ = s.holds.Delete(ctx, holdKey)
	}()

	free, err := s.windowFree(ctx, order, p.Station, slotStart, slotEnd)
	if err != nil {
		return err
	}
	if !free {
		return ErrSlotTaken
	}

	if confirm != nil {
		if err := confirm(ctx); err != nil {
			return err
		}
	}

	order.Date = p.Slot.Date
	order.StartTime = p.Slot.StartTime
	order.EndTime = p.Slot.EndTime
	order.StationAET = p.Station
	order.Status = models.OrderScheduled
	if err := s.store.UpdateOrder(ctx, order); err != nil {
		return fmt.Errorf("failed to commit booking: %w", err)
	}
	return nil
}

// validStation checks the requested station against the active stations
// for the order's procedure modality; a proposal is only trusted for its
// window, never for its station.
func (s *Scheduler) validStation(ctx context.Context, order *models.Order, station string) error {
	procedure, err := s.store.GetProcedure(ctx, order.ProcedureID)
	if err != nil {
		return fmt.Errorf("failed to load procedure: %w", err)
	}
	stations, err := s.store.ActiveStations(ctx, procedure.Modality)
	if err != nil {
		return fmt.Errorf("failed to load stations: %w", err)
	}
	for _, st := range stations {
		if st.AET == station {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownStation, station)
}

// windowFree re-checks the station and the patient against the store
func (s *Scheduler) windowFree(ctx context.Context, order *models.Order, station string, start, end time.Time) (bool, error) {
	booked, err := s.store.QueryOrders(ctx, records.OrderFilter{
		StationAET: station,
		Statuses:   models.OutstandingStatuses,
	})
	if err != nil {
		return false, fmt.Errorf("failed to re-check station: %w", err)
	}
	patientBooked, err := s.store.QueryOrders(ctx, records.OrderFilter{
		PatientID: order.PatientID,
		Statuses:  models.OutstandingStatuses,
	})
	if err != nil {
		return false, fmt.Errorf("failed to re-check patient: %w", err)
	}
	for _, o := range append(booked, patientBooked...) {
		if o.ID == order.ID {
			continue
		}
		oStart, oEnd, err := parseWindow(o.Date, o.StartTime, o.EndTime)
		if err != nil {
			continue
		}
		if overlaps(start, end, oStart, oEnd) {
			return false, nil
		}
	}
	return true, nil
}

// grid builds the theoretical slot grid: consecutive duration-sized
// windows from shift start, ending no later than shift end, for each of
// the next dayRange+1 days including today.
func (s *Scheduler) grid(now time.Time, durationMinutes int, stations []string) []Slot {
	duration := time.Duration(durationMinutes) * time.Minute
	var slots []Slot
	for day := 0; day <= s.dayRange; day++ {
		date := now.AddDate(0, 0, day)
		start := s.shiftStart.on(date)
		dayEnd := s.shiftEnd.on(date)
		for end := start.Add(duration); !end.After(dayEnd); end = start.Add(duration) {
			slots = append(slots, newSlot(start, end, stations))
			start = end
		}
	}
	return slots
}

func newSlot(start, end time.Time, stations []string) Slot {
	return Slot{
		Date:      start.Format(dateLayout),
		StartTime: start.Format(timeLayout),
		EndTime:   end.Format(timeLayout),
		Stations:  append([]string(nil), stations...),
		start:     start,
		end:       end,
	}
}

// dropElapsed removes today's slots whose start time has already passed
func dropElapsed(slots []Slot, now time.Time) []Slot {
	out := slots[:0]
	for _, slot := range slots {
		if slot.start.Before(now) {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// filterStationConflicts removes each station from the slots overlapping
// one of that station's outstanding orders; slots left with no station
// are dropped.
func filterStationConflicts(slots []Slot, stationOrders map[string][]models.Order) []Slot {
	out := slots[:0]
	for _, slot := range slots {
		remaining := slot.Stations
		for _, station := range slot.Stations {
			for _, o := range stationOrders[station] {
				if orderOverlaps(o, slot) {
					remaining = without(remaining, station)
					break
				}
			}
		}
		if len(remaining) == 0 {
			continue
		}
		slot.Stations = remaining
		out = append(out, slot)
	}
	return out
}

// filterPatientConflicts drops a slot entirely when it overlaps any of the
// patient's outstanding orders, whatever station those are booked on.
func filterPatientConflicts(slots []Slot, patientOrders []models.Order) []Slot {
	out := slots[:0]
	for _, slot := range slots {
		conflict := false
		for _, o := range patientOrders {
			if orderOverlaps(o, slot) {
				conflict = true
				break
			}
		}
		if conflict {
			continue
		}
		out = append(out, slot)
	}
	return out
}

// electStation picks the least-loaded of the stations still available for
// a slot; ties resolve to the first in candidate order.
func electStation(stations []string, workload map[string]int) string {
	best := stations[0]
	for _, station := range stations[1:] {
		if workload[station] < workload[best] {
			best = station
		}
	}
	return best
}

// overlaps is the canonical interval intersection test. Two windows
// conflict when each starts before the other ends; touching boundaries do
// not conflict, identical windows do.
func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func orderOverlaps(o models.Order, slot Slot) bool {
	oStart, oEnd, err := parseWindow(o.Date, o.StartTime, o.EndTime)
	if err != nil {
		return false
	}
	return overlaps(slot.start, slot.end, oStart, oEnd)
}

func parseWindow(date, startTime, endTime string) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+startTime, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid window start: %w", err)
	}
	end, err := time.ParseInLocation(dateLayout+" "+timeLayout, date+" "+endTime, time.Local)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid window end: %w", err)
	}
	return start, end, nil
}

func parseTimeOfDay(v string) (timeOfDay, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		return timeOfDay{}, err
	}
	return timeOfDay{hour: t.Hour(), minute: t.Minute()}, nil
}

func without(list []string, v string) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item != v {
			out = append(out, item)
		}
	}
	return out
}
