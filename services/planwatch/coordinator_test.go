package planwatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"launtel-backend/lib/scrapers/launtel"
	"launtel-backend/lib/telemetry"
)

type fakePortal struct {
	mu sync.Mutex

	services    []launtel.Service
	servicesErr error
	catalog     launtel.Catalog
	catalogErr  error
	balance     float64
	balanceOk   bool
	changeErr   error

	servicesCalls int
	catalogCalls  int
	changeCalls   []launtel.ChangeRequest
}

func (f *fakePortal) Services(ctx context.Context) ([]launtel.Service, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.servicesCalls++
	if f.servicesErr != nil {
		return nil, f.servicesErr
	}
	return f.services, nil
}

func (f *fakePortal) Catalog(ctx context.Context, avcid string) (launtel.Catalog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.catalogCalls++
	if f.catalogErr != nil {
		return launtel.Catalog{}, f.catalogErr
	}
	return f.catalog, nil
}

func (f *fakePortal) Balance(ctx context.Context) (float64, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balance, f.balanceOk, nil
}

func (f *fakePortal) ChangePlan(ctx context.Context, req launtel.ChangeRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changeCalls = append(f.changeCalls, req)
	return f.changeErr
}

type recordingScheduler struct {
	intervals []time.Duration
}

func (s *recordingScheduler) SetInterval(d time.Duration) {
	s.intervals = append(s.intervals, d)
}

func activeService() launtel.Service {
	return launtel.Service{
		Title:      "Home Fibre",
		ServiceID:  123456,
		AvcID:      "AVC000111222",
		UserID:     "78910",
		SpeedLabel: "Fibre 250/100 Mbps",
	}
}

func usableCatalog() launtel.Catalog {
	return launtel.Catalog{
		Options:      []string{"Fibre 100/40 Mbps - $3.30/day", "Fibre 250/100 Mbps - $4.40/day"},
		LabelToPsid:  map[string]int{"Fibre 100/40 Mbps - $3.30/day": 1100, "Fibre 250/100 Mbps - $4.40/day": 1186},
		CurrentLabel: "Fibre 250/100 Mbps - $4.40/day",
		LocationID:   "LOC5558",
	}
}

func TestRefreshSteadyState(t *testing.T) {
	cleanup := telemetry.SetupForTesting("test:planwatch")
	defer cleanup()

	portal := &fakePortal{
		services:  []launtel.Service{activeService()},
		catalog:   usableCatalog(),
		balance:   112.65,
		balanceOk: true,
	}
	c := NewCoordinator(portal, Options{
		ServiceID: 123456,
		AvcID:     "AVC000111222",
		UserID:    "78910",
	})

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)

	require.False(t, snap.ChangeInProgress)
	require.Equal(t, "Home Fibre", snap.Title)
	require.Equal(t, "Fibre 250/100 Mbps - $4.40/day", snap.CurrentLabel)
	require.Equal(t, "LOC5558", snap.LocationID)
	require.Len(t, snap.Options, 2)
	require.True(t, snap.BalanceKnown)
	require.Equal(t, 112.65, snap.Balance)
	require.Equal(t, DefaultNormalInterval, c.Interval())

	published, ok := c.Snapshot()
	require.True(t, ok)
	require.Equal(t, snap, published)
}

func TestRefreshChangeInProgressSkipsCatalog(t *testing.T) {
	svc := activeService()
	svc.ChangeInProgress = true
	portal := &fakePortal{services: []launtel.Service{svc}}
	c := NewCoordinator(portal, Options{ServiceID: 123456})

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)

	require.True(t, snap.ChangeInProgress)
	require.Zero(t, portal.catalogCalls)
	require.Equal(t, "Fibre 250/100 Mbps", snap.CurrentLabel)
	require.Empty(t, snap.Options)
	require.Equal(t, DefaultChangeInterval, c.Interval())
}

func TestRefreshUnusableCatalogForcesChange(t *testing.T) {
	portal := &fakePortal{
		services: []launtel.Service{activeService()},
		// no location id makes the page unusable
		catalog: launtel.Catalog{CurrentLabel: "Fibre 250/100 Mbps - $4.40/day"},
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456})

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)

	require.True(t, snap.ChangeInProgress)
	require.Equal(t, "Fibre 250/100 Mbps - $4.40/day", snap.CurrentLabel)
	require.Empty(t, snap.Options)
	require.Empty(t, snap.LocationID)
}

func TestRefreshCatalogErrorForcesChange(t *testing.T) {
	portal := &fakePortal{
		services:   []launtel.Service{activeService()},
		catalogErr: fmt.Errorf("%w: status code 502", launtel.ErrPortalUnavailable),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456})

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)

	require.True(t, snap.ChangeInProgress)
	require.Equal(t, "Fibre 250/100 Mbps", snap.CurrentLabel)
	require.Equal(t, DefaultChangeInterval, c.Interval())
}

func TestRefreshMissingServiceReusesPrevious(t *testing.T) {
	portal := &fakePortal{
		services: []launtel.Service{activeService()},
		catalog:  usableCatalog(),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456})

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	portal.mu.Lock()
	portal.services = nil
	portal.mu.Unlock()

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)

	require.True(t, snap.ChangeInProgress)
	require.Equal(t, "Home Fibre", snap.Title)
	require.Equal(t, "AVC000111222", snap.AvcID)
	require.Equal(t, DefaultChangeInterval, c.Interval())
}

func TestRefreshMissingServiceSynthesizesPlaceholder(t *testing.T) {
	portal := &fakePortal{}
	c := NewCoordinator(portal, Options{
		ServiceID: 123456,
		AvcID:     "AVC000111222",
		UserID:    "78910",
	})

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)

	require.True(t, snap.ChangeInProgress)
	require.Equal(t, "Launtel 123456", snap.Title)
	require.Equal(t, "AVC000111222", snap.AvcID)
}

func TestRefreshMissingServiceFailFast(t *testing.T) {
	portal := &fakePortal{}
	c := NewCoordinator(portal, Options{ServiceID: 123456, Policy: FailFast})

	_, err := c.Refresh(context.Background())
	require.Error(t, err)
	_, ok := c.Snapshot()
	require.False(t, ok)
}

func TestRefreshPortalDownFallsBackToPrevious(t *testing.T) {
	portal := &fakePortal{
		services: []launtel.Service{activeService()},
		catalog:  usableCatalog(),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456})

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	portal.mu.Lock()
	portal.servicesErr = fmt.Errorf("%w: connection refused", launtel.ErrPortalUnavailable)
	portal.mu.Unlock()

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, snap.ChangeInProgress)
	require.Equal(t, "Home Fibre", snap.Title)
}

func TestRefreshPortalDownFailFast(t *testing.T) {
	portal := &fakePortal{
		servicesErr: fmt.Errorf("%w: connection refused", launtel.ErrPortalUnavailable),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456, Policy: FailFast})

	_, err := c.Refresh(context.Background())
	require.ErrorIs(t, err, launtel.ErrPortalUnavailable)
}

func TestRefreshFirstCycleAuthErrorIsAlwaysLoud(t *testing.T) {
	portal := &fakePortal{
		servicesErr: fmt.Errorf("%w: login rejected", launtel.ErrAuthentication),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456})

	_, err := c.Refresh(context.Background())
	require.ErrorIs(t, err, launtel.ErrAuthentication)
}

func TestRefreshLaterAuthErrorIsAbsorbed(t *testing.T) {
	portal := &fakePortal{
		services: []launtel.Service{activeService()},
		catalog:  usableCatalog(),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456})

	_, err := c.Refresh(context.Background())
	require.NoError(t, err)

	portal.mu.Lock()
	portal.servicesErr = fmt.Errorf("%w: session no longer accepted", launtel.ErrAuthentication)
	portal.mu.Unlock()

	snap, err := c.Refresh(context.Background())
	require.NoError(t, err)
	require.True(t, snap.ChangeInProgress)
}

func TestSchedulerOnlyNotifiedOnTransitions(t *testing.T) {
	sched := &recordingScheduler{}
	portal := &fakePortal{
		services: []launtel.Service{activeService()},
		catalog:  usableCatalog(),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456, Scheduler: sched})

	ctx := context.Background()
	_, err := c.Refresh(ctx)
	require.NoError(t, err)
	_, err = c.Refresh(ctx)
	require.NoError(t, err)
	// still normal cadence, no calls yet
	require.Empty(t, sched.intervals)

	svc := activeService()
	svc.ChangeInProgress = true
	portal.mu.Lock()
	portal.services = []launtel.Service{svc}
	portal.mu.Unlock()

	_, err = c.Refresh(ctx)
	require.NoError(t, err)
	_, err = c.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, []time.Duration{DefaultChangeInterval}, sched.intervals)

	portal.mu.Lock()
	portal.services = []launtel.Service{activeService()}
	portal.mu.Unlock()

	_, err = c.Refresh(ctx)
	require.NoError(t, err)
	require.Equal(t, []time.Duration{DefaultChangeInterval, DefaultNormalInterval}, sched.intervals)
}

func TestSubmitChange(t *testing.T) {
	portal := &fakePortal{
		services: []launtel.Service{activeService()},
		catalog:  usableCatalog(),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456})

	ctx := context.Background()
	_, err := c.Refresh(ctx)
	require.NoError(t, err)

	callsBefore := portal.servicesCalls
	err = c.SubmitChange(ctx, 1100)
	require.NoError(t, err)

	require.Len(t, portal.changeCalls, 1)
	req := portal.changeCalls[0]
	require.Equal(t, "78910", req.UserID)
	require.Equal(t, 1100, req.Psid)
	require.Equal(t, 123456, req.ServiceID)
	require.Equal(t, "AVC000111222", req.AvcID)
	require.Equal(t, "LOC5558", req.LocationID)

	// a change submission forces a refresh
	require.Greater(t, portal.servicesCalls, callsBefore)
}

func TestSubmitChangeRequiresSnapshot(t *testing.T) {
	c := NewCoordinator(&fakePortal{}, Options{ServiceID: 123456})
	err := c.SubmitChange(context.Background(), 1100)
	require.ErrorIs(t, err, launtel.ErrPlanChange)
}

func TestSubmitChangeRefusedWhileChangeInProgress(t *testing.T) {
	svc := activeService()
	svc.ChangeInProgress = true
	portal := &fakePortal{services: []launtel.Service{svc}}
	c := NewCoordinator(portal, Options{ServiceID: 123456})

	ctx := context.Background()
	_, err := c.Refresh(ctx)
	require.NoError(t, err)

	err = c.SubmitChange(ctx, 1100)
	require.ErrorIs(t, err, launtel.ErrPlanChange)
	require.Empty(t, portal.changeCalls)
}

func TestSubmitChangeSurfacesPortalError(t *testing.T) {
	portal := &fakePortal{
		services:  []launtel.Service{activeService()},
		catalog:   usableCatalog(),
		changeErr: fmt.Errorf("%w: confirmation fetch failed", launtel.ErrPlanChange),
	}
	c := NewCoordinator(portal, Options{ServiceID: 123456})

	ctx := context.Background()
	_, err := c.Refresh(ctx)
	require.NoError(t, err)

	err = c.SubmitChange(ctx, 1100)
	require.Error(t, err)
	require.True(t, errors.Is(err, launtel.ErrPlanChange))
}
