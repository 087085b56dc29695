// Package planwatch polls the Launtel residential portal for a single
// service and publishes plan snapshots. While a plan change is in
// progress it tightens the polling cadence from hours to minutes so the
// completion of the change is observed promptly.
package planwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"launtel-backend/lib/notify"
	"launtel-backend/lib/planstore"
	"launtel-backend/lib/scrapers/launtel"
	"launtel-backend/lib/timezone"
)

var tracer = otel.Tracer("services/planwatch")

// Portal is the slice of the Launtel client the coordinator needs.
// *launtel.Client satisfies it.
type Portal interface {
	Services(ctx context.Context) ([]launtel.Service, error)
	Catalog(ctx context.Context, avcid string) (launtel.Catalog, error)
	Balance(ctx context.Context) (float64, bool, error)
	ChangePlan(ctx context.Context, req launtel.ChangeRequest) error
}

// Scheduler receives cadence adjustments from the coordinator. The
// daemon loop implements it; tests substitute a recorder.
type Scheduler interface {
	SetInterval(d time.Duration)
}

// FailurePolicy decides what a refresh cycle does when the portal
// cannot be reached or the watched service is missing from the
// directory.
type FailurePolicy int

const (
	// FallbackToCached reuses the previous directory entry (or a
	// placeholder) and keeps the cycle alive.
	FallbackToCached FailurePolicy = iota
	// FailFast surfaces the error to the caller instead.
	FailFast
)

func (p FailurePolicy) String() string {
	if p == FailFast {
		return "fail-fast"
	}
	return "fallback-to-cached"
}

const (
	DefaultNormalInterval = 6 * time.Hour
	DefaultChangeInterval = time.Minute
)

type Options struct {
	ServiceID int
	AvcID     string
	UserID    string
	// DisplayName is used for synthesized placeholder entries when the
	// service has vanished from the directory. Empty means
	// "Launtel <service id>".
	DisplayName string

	NormalInterval time.Duration
	ChangeInterval time.Duration
	Policy         FailurePolicy

	// LowBalanceFloor enables a notification when the account balance
	// drops below it. Zero disables the check.
	LowBalanceFloor float64

	Scheduler Scheduler
	Store     *planstore.Store
	Notifier  notify.Notifier
}

// PollSnapshot is one observed state of the watched service.
type PollSnapshot struct {
	ServiceID        int       `json:"service_id"`
	AvcID            string    `json:"avcid"`
	UserID           string    `json:"user_id"`
	Title            string    `json:"title"`
	ChangeInProgress bool      `json:"change_in_progress"`
	CurrentLabel     string    `json:"current_label"`
	SpeedLabel       string    `json:"speed_label"`
	FetchedAt        time.Time `json:"fetched_at"`

	// Catalog fields. Empty while a change is in progress or while the
	// catalog page is unusable.
	Options     []string                   `json:"options,omitempty"`
	LabelToPsid map[string]int             `json:"label_to_psid,omitempty"`
	Plans       map[int]launtel.PlanOption `json:"plans,omitempty"`
	LocationID  string                     `json:"location_id,omitempty"`

	BalanceKnown bool    `json:"balance_known"`
	Balance      float64 `json:"balance,omitempty"`
}

// Coordinator runs refresh cycles against the portal. Cycles and plan
// changes are serialized on one mutex, so a change request never races
// a concurrent poll.
type Coordinator struct {
	portal Portal
	opts   Options

	mu       sync.Mutex
	previous *launtel.Service
	interval time.Duration
	everOK   bool

	snapMu sync.RWMutex
	snap   *PollSnapshot
}

func NewCoordinator(portal Portal, opts Options) *Coordinator {
	if opts.NormalInterval <= 0 {
		opts.NormalInterval = DefaultNormalInterval
	}
	if opts.ChangeInterval <= 0 {
		opts.ChangeInterval = DefaultChangeInterval
	}
	if opts.DisplayName == "" {
		opts.DisplayName = fmt.Sprintf("Launtel %d", opts.ServiceID)
	}
	return &Coordinator{
		portal:   portal,
		opts:     opts,
		interval: opts.NormalInterval,
	}
}

// Snapshot returns the most recently published snapshot.
func (c *Coordinator) Snapshot() (PollSnapshot, bool) {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	if c.snap == nil {
		return PollSnapshot{}, false
	}
	return *c.snap, true
}

// Interval reports the current polling cadence.
func (c *Coordinator) Interval() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.interval
}

// Refresh runs one poll cycle and publishes the resulting snapshot.
func (c *Coordinator) Refresh(ctx context.Context) (PollSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

func (c *Coordinator) refreshLocked(ctx context.Context) (PollSnapshot, error) {
	ctx, span := tracer.Start(ctx, "Refresh", trace.WithAttributes(
		attribute.Int("service_id", c.opts.ServiceID),
	))
	defer span.End()

	svc, err := c.resolveService(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "")
		return PollSnapshot{}, err
	}

	snap := PollSnapshot{
		ServiceID:        c.opts.ServiceID,
		AvcID:            c.opts.AvcID,
		UserID:           c.opts.UserID,
		Title:            svc.Title,
		ChangeInProgress: svc.ChangeInProgress,
		SpeedLabel:       svc.SpeedLabel,
		CurrentLabel:     svc.SpeedLabel,
		FetchedAt:        timezone.Now(),
	}
	if svc.AvcID != "" {
		snap.AvcID = svc.AvcID
	}
	if svc.UserID != "" {
		snap.UserID = svc.UserID
	}

	if !snap.ChangeInProgress {
		catalog, err := c.portal.Catalog(ctx, snap.AvcID)
		switch {
		case err != nil:
			// The service card exists but its plan page is broken or
			// mid-migration. Treat it like a change in progress so the
			// tight cadence rechecks it soon.
			slog.WarnContext(ctx, "catalog fetch failed, treating as change in progress",
				"err", err, "avcid", snap.AvcID)
			snap.ChangeInProgress = true
		case !catalog.Usable():
			slog.WarnContext(ctx, "catalog page unusable, treating as change in progress",
				"avcid", snap.AvcID)
			snap.ChangeInProgress = true
			if catalog.CurrentLabel != "" {
				snap.CurrentLabel = catalog.CurrentLabel
			}
		default:
			snap.Options = catalog.Options
			snap.LabelToPsid = catalog.LabelToPsid
			snap.Plans = catalog.Plans
			snap.LocationID = catalog.LocationID
			if catalog.CurrentLabel != "" {
				snap.CurrentLabel = catalog.CurrentLabel
			}
		}
	}

	if balance, known, err := c.portal.Balance(ctx); err != nil {
		slog.WarnContext(ctx, "balance fetch failed", "err", err)
	} else if known {
		snap.Balance = balance
		snap.BalanceKnown = true
	}

	c.previous = svc
	c.everOK = true
	c.adjustInterval(ctx, snap.ChangeInProgress)
	c.publish(ctx, snap)
	return snap, nil
}

// resolveService fetches the directory and returns the watched
// service's entry, applying the failure policy when the portal is down
// or the service is missing.
func (c *Coordinator) resolveService(ctx context.Context) (*launtel.Service, error) {
	services, err := c.portal.Services(ctx)
	if err != nil {
		// A rejected login on the very first cycle means the
		// credentials are wrong, not that the portal hiccuped. Always
		// surface that.
		if errors.Is(err, launtel.ErrAuthentication) && !c.everOK {
			return nil, err
		}
		if c.opts.Policy == FailFast {
			return nil, err
		}
		slog.WarnContext(ctx, "directory fetch failed, falling back to cached entry", "err", err)
		return c.standIn(), nil
	}

	for i := range services {
		if services[i].ServiceID == c.opts.ServiceID {
			return &services[i], nil
		}
	}

	// Services disappear from the directory while Launtel migrates them
	// between plans.
	if c.opts.Policy == FailFast {
		return nil, fmt.Errorf("service %d not in directory", c.opts.ServiceID)
	}
	slog.InfoContext(ctx, "service missing from directory, assuming change in progress",
		"service_id", c.opts.ServiceID)
	return c.standIn(), nil
}

// standIn returns the previous cycle's entry, or a synthesized
// placeholder when there has never been one, always marked as change in
// progress.
func (c *Coordinator) standIn() *launtel.Service {
	if c.previous != nil {
		svc := *c.previous
		svc.ChangeInProgress = true
		return &svc
	}
	return &launtel.Service{
		Title:            c.opts.DisplayName,
		ServiceID:        c.opts.ServiceID,
		AvcID:            c.opts.AvcID,
		UserID:           c.opts.UserID,
		ChangeInProgress: true,
	}
}

func (c *Coordinator) adjustInterval(ctx context.Context, changing bool) {
	want := c.opts.NormalInterval
	if changing {
		want = c.opts.ChangeInterval
	}
	if want == c.interval {
		return
	}
	slog.InfoContext(ctx, "polling cadence changed", "from", c.interval, "to", want)
	c.interval = want
	if c.opts.Scheduler != nil {
		c.opts.Scheduler.SetInterval(want)
	}
}

func (c *Coordinator) publish(ctx context.Context, snap PollSnapshot) {
	c.snapMu.Lock()
	prev := c.snap
	c.snap = &snap
	c.snapMu.Unlock()

	if c.opts.Store != nil {
		err := c.opts.Store.Push(ctx, planstore.Record{
			ServiceID:        snap.ServiceID,
			Time:             snap.FetchedAt,
			CurrentLabel:     snap.CurrentLabel,
			SpeedLabel:       snap.SpeedLabel,
			ChangeInProgress: snap.ChangeInProgress,
			BalanceKnown:     snap.BalanceKnown,
			Balance:          snap.Balance,
		})
		if err != nil {
			slog.ErrorContext(ctx, "failed to record snapshot", "err", err)
		}
	}

	if !c.opts.Notifier.Enabled() {
		return
	}
	if prev != nil && prev.ChangeInProgress && !snap.ChangeInProgress {
		if err := c.opts.Notifier.PlanChangeComplete(ctx, snap.Title, snap.CurrentLabel); err != nil {
			slog.ErrorContext(ctx, "failed to send plan change notification", "err", err)
		}
	}
	if c.opts.LowBalanceFloor > 0 && snap.BalanceKnown && snap.Balance < c.opts.LowBalanceFloor {
		alreadyLow := prev != nil && prev.BalanceKnown && prev.Balance < c.opts.LowBalanceFloor
		if !alreadyLow {
			if err := c.opts.Notifier.LowBalance(ctx, snap.Title, snap.Balance, c.opts.LowBalanceFloor); err != nil {
				slog.ErrorContext(ctx, "failed to send low balance notification", "err", err)
			}
		}
	}
}

// SubmitChange requests a move to the plan identified by psid and then
// forces an immediate refresh so the tight cadence kicks in without
// waiting for the next scheduled poll.
func (c *Coordinator) SubmitChange(ctx context.Context, psid int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, span := tracer.Start(ctx, "SubmitChange", trace.WithAttributes(
		attribute.Int("psid", psid),
	))
	defer span.End()

	c.snapMu.RLock()
	snap := c.snap
	c.snapMu.RUnlock()
	if snap == nil {
		return fmt.Errorf("%w: no snapshot yet, refresh first", launtel.ErrPlanChange)
	}
	if snap.ChangeInProgress {
		return fmt.Errorf("%w: a plan change is already in progress", launtel.ErrPlanChange)
	}
	if snap.LocationID == "" {
		return fmt.Errorf("%w: no location id in current snapshot", launtel.ErrPlanChange)
	}

	err := c.portal.ChangePlan(ctx, launtel.ChangeRequest{
		UserID:     snap.UserID,
		Psid:       psid,
		ServiceID:  snap.ServiceID,
		AvcID:      snap.AvcID,
		LocationID: snap.LocationID,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "")
		return err
	}
	slog.InfoContext(ctx, "plan change submitted", "psid", psid, "service_id", snap.ServiceID)

	if _, err := c.refreshLocked(ctx); err != nil {
		slog.WarnContext(ctx, "refresh after plan change failed", "err", err)
	}
	return nil
}
