package arrivals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	stops   map[uint]Stop
	buses   map[uint][]Bus
	busErr  error
	queried []uint
}

func (f *fakeStore) FindStopByID(_ context.Context, id uint) (Stop, error) {
	s, ok := f.stops[id]
	if !ok {
		return Stop{}, ErrStopNotFound
	}
	return s, nil
}

func (f *fakeStore) FindStopByCode(_ context.Context, code string) (Stop, error) {
	for _, s := range f.stops {
		if s.Code == code {
			return s, nil
		}
	}
	return Stop{}, ErrStopNotFound
}

func (f *fakeStore) FindActiveBusesServingStop(_ context.Context, stopID uint) ([]Bus, error) {
	f.queried = append(f.queried, stopID)
	if f.busErr != nil {
		return nil, f.busErr
	}
	return f.buses[stopID], nil
}

type fakeRecorder struct {
	observed []int
	failures []string
}

func (r *fakeRecorder) ObserveArrivalsQuery(_ time.Duration, buses int, _ bool) {
	r.observed = append(r.observed, buses)
}

func (r *fakeRecorder) ArrivalsQueryFailed(reason string) {
	r.failures = append(r.failures, reason)
}

func newFixture() (*fakeStore, *fakeRecorder, *Service) {
	stop, route := threeStopRoute()
	store := &fakeStore{
		stops: map[uint]Stop{stop.ID: stop},
		buses: map[uint][]Bus{stop.ID: {busAt(1, route, northOf(chennai, -10), 30, 1)}},
	}
	rec := &fakeRecorder{}
	logger, _ := test.NewNullLogger()
	return store, rec, NewService(store, rec, logger)
}

func TestService_Arrivals(t *testing.T) {
	store, rec, svc := newFixture()

	res, err := svc.Arrivals(context.Background(), 2, nil)

	require.NoError(t, err)
	require.Len(t, res.Buses, 1)
	assert.Equal(t, 20, res.Buses[0].ETAMinutes)
	assert.Equal(t, []uint{2}, store.queried)
	assert.Equal(t, []int{1}, rec.observed)
}

func TestService_ArrivalsByCode(t *testing.T) {
	_, _, svc := newFixture()

	res, err := svc.ArrivalsByCode(context.Background(), "CEN", nil)

	require.NoError(t, err)
	assert.Equal(t, "Central", res.Stop.Name)
}

func TestService_UnknownStop(t *testing.T) {
	store, rec, svc := newFixture()

	_, err := svc.Arrivals(context.Background(), 99, nil)

	assert.ErrorIs(t, err, ErrStopNotFound)
	assert.Empty(t, store.queried)
	assert.Equal(t, []string{"stop_not_found"}, rec.failures)

	_, err = svc.ArrivalsByCode(context.Background(), "NOPE", nil)
	assert.ErrorIs(t, err, ErrStopNotFound)
}

func TestService_StoreFailure(t *testing.T) {
	store, rec, _ := newFixture()
	store.busErr = errors.New("connection reset")
	logger, hook := test.NewNullLogger()
	svc := NewService(store, rec, logger)

	_, err := svc.Arrivals(context.Background(), 2, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, []string{"store_error"}, rec.failures)
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}
