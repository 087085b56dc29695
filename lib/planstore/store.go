// Package planstore persists the history of poll snapshots so consumers
// can see a service's plan and balance over time.
package planstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"launtel-backend/lib/planstore/db"
)

type Store struct {
	db  *sql.DB
	qry *db.Queries
}

func NewStore(database *sql.DB) Store {
	return Store{
		db:  database,
		qry: db.New(database),
	}
}

// Record is one observed state of a service at a point in time.
type Record struct {
	ServiceID        int
	Time             time.Time
	CurrentLabel     string
	SpeedLabel       string
	ChangeInProgress bool
	// false when the balance could not be read that cycle
	BalanceKnown bool
	Balance      float64
}

func (s Store) Push(ctx context.Context, rec Record) error {
	return s.qry.CreateSnapshot(ctx, db.CreateSnapshotParams{
		Serviceid:        int64(rec.ServiceID),
		Time:             rec.Time.Unix(),
		Currentlabel:     rec.CurrentLabel,
		Speedlabel:       rec.SpeedLabel,
		Changeinprogress: boolToInt(rec.ChangeInProgress),
		Balanceknown:     boolToInt(rec.BalanceKnown),
		Balance:          rec.Balance,
	})
}

// Pull returns the service's history at or after `since`, oldest first.
// A zero `since` returns everything.
func (s Store) Pull(ctx context.Context, serviceId int, since time.Time) ([]Record, error) {
	var sinceUnix int64
	if !since.IsZero() {
		sinceUnix = since.Unix()
	}
	rows, err := s.qry.GetSnapshots(ctx, db.GetSnapshotsParams{
		Serviceid: int64(serviceId),
		Since:     sinceUnix,
	})
	if err != nil {
		return nil, err
	}

	records := make([]Record, len(rows))
	for i, r := range rows {
		records[i] = recordFromRow(r)
	}
	return records, nil
}

// Latest returns the most recent record for the service; ok is false when
// the service has no history yet.
func (s Store) Latest(ctx context.Context, serviceId int) (Record, bool, error) {
	row, err := s.qry.GetLatestSnapshot(ctx, int64(serviceId))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return recordFromRow(row), true, nil
}

// Prune drops records older than `before`.
func (s Store) Prune(ctx context.Context, serviceId int, before time.Time) error {
	return s.qry.DeleteSnapshotsBefore(ctx, db.DeleteSnapshotsBeforeParams{
		Serviceid: int64(serviceId),
		Before:    before.Unix(),
	})
}

func recordFromRow(r db.PollSnapshot) Record {
	return Record{
		ServiceID:        int(r.Serviceid),
		Time:             time.Unix(r.Time, 0),
		CurrentLabel:     r.Currentlabel,
		SpeedLabel:       r.Speedlabel,
		ChangeInProgress: r.Changeinprogress != 0,
		BalanceKnown:     r.Balanceknown != 0,
		Balance:          r.Balance,
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
