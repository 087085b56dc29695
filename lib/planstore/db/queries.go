package db

import (
	"context"
	"database/sql"
)

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type PollSnapshot struct {
	ID               int64
	Serviceid        int64
	Time             int64
	Currentlabel     string
	Speedlabel       string
	Changeinprogress int64
	Balanceknown     int64
	Balance          float64
}

const createSnapshot = `
INSERT INTO poll_snapshot (serviceid, time, currentlabel, speedlabel, changeinprogress, balanceknown, balance)
VALUES (?, ?, ?, ?, ?, ?, ?)
`

type CreateSnapshotParams struct {
	Serviceid        int64
	Time             int64
	Currentlabel     string
	Speedlabel       string
	Changeinprogress int64
	Balanceknown     int64
	Balance          float64
}

func (q *Queries) CreateSnapshot(ctx context.Context, arg CreateSnapshotParams) error {
	_, err := q.db.ExecContext(ctx, createSnapshot,
		arg.Serviceid,
		arg.Time,
		arg.Currentlabel,
		arg.Speedlabel,
		arg.Changeinprogress,
		arg.Balanceknown,
		arg.Balance,
	)
	return err
}

const getSnapshots = `
SELECT id, serviceid, time, currentlabel, speedlabel, changeinprogress, balanceknown, balance
FROM poll_snapshot
WHERE serviceid = ? AND time >= ?
ORDER BY time ASC
`

type GetSnapshotsParams struct {
	Serviceid int64
	Since     int64
}

func (q *Queries) GetSnapshots(ctx context.Context, arg GetSnapshotsParams) ([]PollSnapshot, error) {
	rows, err := q.db.QueryContext(ctx, getSnapshots, arg.Serviceid, arg.Since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []PollSnapshot
	for rows.Next() {
		var i PollSnapshot
		err := rows.Scan(
			&i.ID,
			&i.Serviceid,
			&i.Time,
			&i.Currentlabel,
			&i.Speedlabel,
			&i.Changeinprogress,
			&i.Balanceknown,
			&i.Balance,
		)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const getLatestSnapshot = `
SELECT id, serviceid, time, currentlabel, speedlabel, changeinprogress, balanceknown, balance
FROM poll_snapshot
WHERE serviceid = ?
ORDER BY time DESC
LIMIT 1
`

func (q *Queries) GetLatestSnapshot(ctx context.Context, serviceid int64) (PollSnapshot, error) {
	row := q.db.QueryRowContext(ctx, getLatestSnapshot, serviceid)
	var i PollSnapshot
	err := row.Scan(
		&i.ID,
		&i.Serviceid,
		&i.Time,
		&i.Currentlabel,
		&i.Speedlabel,
		&i.Changeinprogress,
		&i.Balanceknown,
		&i.Balance,
	)
	return i, err
}

const deleteSnapshotsBefore = `
DELETE FROM poll_snapshot
WHERE serviceid = ? AND time < ?
`

type DeleteSnapshotsBeforeParams struct {
	Serviceid int64
	Before    int64
}

func (q *Queries) DeleteSnapshotsBefore(ctx context.Context, arg DeleteSnapshotsBeforeParams) error {
	_, err := q.db.ExecContext(ctx, deleteSnapshotsBefore, arg.Serviceid, arg.Before)
	return err
}
