package arrivals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrStopNotFound aborts an arrivals query; no partial result is returned.
var ErrStopNotFound = errors.New("stop not found")

// TransitStore is the read side the service needs from storage. Implementations return
// ErrStopNotFound for unknown stops and fully resolved Bus values.
type TransitStore interface {
	FindStopByID(ctx context.Context, id uint) (Stop, error)
	FindStopByCode(ctx context.Context, code string) (Stop, error)
	FindActiveBusesServingStop(ctx context.Context, stopID uint) ([]Bus, error)
}

// Recorder receives per-query measurements.
type Recorder interface {
	ObserveArrivalsQuery(d time.Duration, buses int, passenger bool)
	ArrivalsQueryFailed(reason string)
}

// Service loads snapshots from a TransitStore and runs ComputeArrivals on them.
type Service struct {
	store    TransitStore
	recorder Recorder
	log      logrus.FieldLogger
}

// NewService builds a Service. recorder may be nil.
func NewService(store TransitStore, recorder Recorder, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{store: store, recorder: recorder, log: log.WithField("component", "arrivals")}
}

// Arrivals answers the query for the stop with the given id.
func (s *Service) Arrivals(ctx context.Context, stopID uint, passenger *Coordinate) (Result, error) {
	stop, err := s.store.FindStopByID(ctx, stopID)
	if err != nil {
		return Result{}, s.fail(err, logrus.Fields{"stop_id": stopID})
	}
	return s.run(ctx, stop, passenger)
}

// ArrivalsByCode answers the query for the stop with the given short code (QR payload).
func (s *Service) ArrivalsByCode(ctx context.Context, code string, passenger *Coordinate) (Result, error) {
	stop, err := s.store.FindStopByCode(ctx, code)
	if err != nil {
		return Result{}, s.fail(err, logrus.Fields{"stop_code": code})
	}
	return s.run(ctx, stop, passenger)
}

func (s *Service) run(ctx context.Context, stop Stop, passenger *Coordinate) (Result, error) {
	start := time.Now()

	buses, err := s.store.FindActiveBusesServingStop(ctx, stop.ID)
	if err != nil {
		return Result{}, s.fail(fmt.Errorf("load buses for stop %d: %w", stop.ID, err), logrus.Fields{"stop_id": stop.ID})
	}

	res := ComputeArrivals(stop, buses, passenger)

	if s.recorder != nil {
		s.recorder.ObserveArrivalsQuery(time.Since(start), len(res.Buses), res.Passenger != nil)
	}
	s.log.WithFields(logrus.Fields{
		"stop_id":     stop.ID,
		"candidates":  len(buses),
		"approaching": len(res.Buses),
		"passenger":   res.Passenger != nil,
	}).Debug("arrivals computed")

	return res, nil
}

func (s *Service) fail(err error, fields logrus.Fields) error {
	reason := "store_error"
	if errors.Is(err, ErrStopNotFound) {
		reason = "stop_not_found"
		s.log.WithFields(fields).Debug("arrivals query for unknown stop")
	} else {
		s.log.WithError(err).WithFields(fields).Error("arrivals query failed")
	}
	if s.recorder != nil {
		s.recorder.ArrivalsQueryFailed(reason)
	}
	return err
}
