package db

import (
	"context"
)

const createRun = `
insert into Run(id, startedAt, finishedAt, providers)
values (?, ?, ?, ?)
`

type CreateRunParams struct {
	ID         string
	Startedat  int64
	Finishedat int64
	Providers  int64
}

func (q *Queries) CreateRun(ctx context.Context, arg CreateRunParams) error {
	_, err := q.db.ExecContext(ctx, createRun,
		arg.ID,
		arg.Startedat,
		arg.Finishedat,
		arg.Providers,
	)
	return err
}

const createRunResult = `
insert into RunResult(runId, category, position, providerId, siteId, status, error)
values (?, ?, ?, ?, ?, ?, ?)
`

type CreateRunResultParams struct {
	Runid      string
	Category   string
	Position   int64
	Providerid string
	Siteid     string
	Status     string
	Error      string
}

func (q *Queries) CreateRunResult(ctx context.Context, arg CreateRunResultParams) error {
	_, err := q.db.ExecContext(ctx, createRunResult,
		arg.Runid,
		arg.Category,
		arg.Position,
		arg.Providerid,
		arg.Siteid,
		arg.Status,
		arg.Error,
	)
	return err
}

const createRunRecord = `
insert into RunRecord(runId, providerIndex, position, siteId, externalId, data)
values (?, ?, ?, ?, ?, ?)
`

type CreateRunRecordParams struct {
	Runid         string
	Providerindex int64
	Position      int64
	Siteid        string
	Externalid    string
	Data          string
}

func (q *Queries) CreateRunRecord(ctx context.Context, arg CreateRunRecordParams) error {
	_, err := q.db.ExecContext(ctx, createRunRecord,
		arg.Runid,
		arg.Providerindex,
		arg.Position,
		arg.Siteid,
		arg.Externalid,
		arg.Data,
	)
	return err
}

const getRuns = `
select
    Run.id, Run.startedAt, Run.finishedAt, Run.providers,
    (select count(*) from RunRecord where RunRecord.runId = Run.id) as records,
    (select count(*) from RunResult where RunResult.runId = Run.id and RunResult.status = 'success') as succeeded,
    (select count(*) from RunResult where RunResult.runId = Run.id and RunResult.status in ('failed', 'login_error')) as failed
from Run
order by Run.startedAt desc, Run.id
limit ?
`

type GetRunsRow struct {
	ID         string
	Startedat  int64
	Finishedat int64
	Providers  int64
	Records    int64
	Succeeded  int64
	Failed     int64
}

func (q *Queries) GetRuns(ctx context.Context, limit int64) ([]GetRunsRow, error) {
	rows, err := q.db.QueryContext(ctx, getRuns, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetRunsRow
	for rows.Next() {
		var i GetRunsRow
		if err := rows.Scan(
			&i.ID,
			&i.Startedat,
			&i.Finishedat,
			&i.Providers,
			&i.Records,
			&i.Succeeded,
			&i.Failed,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getRunResults = `
select category, position, providerId, siteId, status, error from RunResult
where runId = ?
order by case category when 'primary' then 0 when 'platform' then 1 else 2 end, position
`

type GetRunResultsRow struct {
	Category   string
	Position   int64
	Providerid string
	Siteid     string
	Status     string
	Error      string
}

func (q *Queries) GetRunResults(ctx context.Context, runid string) ([]GetRunResultsRow, error) {
	rows, err := q.db.QueryContext(ctx, getRunResults, runid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetRunResultsRow
	for rows.Next() {
		var i GetRunResultsRow
		if err := rows.Scan(
			&i.Category,
			&i.Position,
			&i.Providerid,
			&i.Siteid,
			&i.Status,
			&i.Error,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getRunRecords = `
select providerIndex, position, data from RunRecord
where runId = ?
order by providerIndex, position
`

type GetRunRecordsRow struct {
	Providerindex int64
	Position      int64
	Data          string
}

func (q *Queries) GetRunRecords(ctx context.Context, runid string) ([]GetRunRecordsRow, error) {
	rows, err := q.db.QueryContext(ctx, getRunRecords, runid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []GetRunRecordsRow
	for rows.Next() {
		var i GetRunRecordsRow
		if err := rows.Scan(&i.Providerindex, &i.Position, &i.Data); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const getRunProviders = `
select providers from Run where id = ?
`

func (q *Queries) GetRunProviders(ctx context.Context, id string) (int64, error) {
	row := q.db.QueryRowContext(ctx, getRunProviders, id)
	var providers int64
	err := row.Scan(&providers)
	return providers, err
}
