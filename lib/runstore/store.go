// Package runstore keeps an immutable history of finished batch runs in sqlite.
package runstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cetracker/lib/compliance"
	"cetracker/lib/runstore/db"
	"cetracker/lib/sites"

	"github.com/mazen160/go-random"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	_ "modernc.org/sqlite"
)

var tracer = otel.Tracer("cetracker.lib.runstore")

const runIDLength = 12

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

// Open opens (creating if needed) the history database at path.
func Open(ctx context.Context, path string) (Store, error) {
	if path != ":memory:" {
		err := os.MkdirAll(filepath.Dir(path), 0755)
		if err != nil {
			return Store{}, fmt.Errorf("open db: %w", err)
		}
	}
	database, err := sql.Open("sqlite", path)
	if err != nil {
		return Store{}, fmt.Errorf("open db: %w", err)
	}
	database.SetMaxOpenConns(1)
	if path != ":memory:" {
		_, err = database.ExecContext(ctx, "PRAGMA journal_mode=WAL")
		if err != nil {
			database.Close()
			return Store{}, fmt.Errorf("open db: %w", err)
		}
	}
	_, err = database.ExecContext(ctx, db.Schema)
	if err != nil {
		database.Close()
		return Store{}, fmt.Errorf("apply schema: %w", err)
	}
	return NewStore(database), nil
}

func (s Store) Close() error {
	return s.db.Close()
}

// Result is a RunResult together with the category of its site.
type Result struct {
	Category sites.Category `json:"category"`
	compliance.RunResult
}

type PushRequest struct {
	StartedAt  time.Time
	FinishedAt time.Time
	// Records holds one group per provider, in roster order.
	Records [][]compliance.Record
	Results []Result
}

// Push stores a finished run and returns its id.
func (s Store) Push(ctx context.Context, req PushRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "runstore:Push")
	defer span.End()

	id, err := random.String(runIDLength)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to generate run id")
		return "", err
	}
	span.SetAttributes(attribute.String("run", id))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()
	txqry := s.qry.WithTx(tx)

	err = txqry.CreateRun(ctx, db.CreateRunParams{
		ID:         id,
		Startedat:  req.StartedAt.UnixMilli(),
		Finishedat: req.FinishedAt.UnixMilli(),
		Providers:  int64(len(req.Records)),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create run")
		return "", err
	}

	positions := map[sites.Category]int64{}
	for _, res := range req.Results {
		err = txqry.CreateRunResult(ctx, db.CreateRunResultParams{
			Runid:      id,
			Category:   string(res.Category),
			Position:   positions[res.Category],
			Providerid: res.ProviderID,
			Siteid:     res.SiteID,
			Status:     string(res.Status),
			Error:      res.Error,
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to create run result")
			return "", err
		}
		positions[res.Category]++
	}

	for providerIndex, group := range req.Records {
		for position, record := range group {
			data, err := json.Marshal(record)
			if err != nil {
				return "", err
			}
			err = txqry.CreateRunRecord(ctx, db.CreateRunRecordParams{
				Runid:         id,
				Providerindex: int64(providerIndex),
				Position:      int64(position),
				Siteid:        record.SiteID,
				Externalid:    record.ExternalID,
				Data:          string(data),
			})
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "failed to create run record")
				return "", err
			}
		}
	}

	err = tx.Commit()
	if err != nil {
		return "", err
	}
	slog.DebugContext(ctx, "run stored", "run", id, "results", len(req.Results))
	return id, nil
}

// Run summarizes one stored run.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Providers  int
	Records    int
	Succeeded  int
	// Failed counts both failed and login_error results.
	Failed int
}

// Runs lists the most recent runs first.
func (s Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.qry.GetRuns(ctx, int64(limit))
	if err != nil {
		return nil, err
	}
	runs := make([]Run, len(rows))
	for i, r := range rows {
		runs[i] = Run{
			ID:         r.ID,
			StartedAt:  time.UnixMilli(r.Startedat),
			FinishedAt: time.UnixMilli(r.Finishedat),
			Providers:  int(r.Providers),
			Records:    int(r.Records),
			Succeeded:  int(r.Succeeded),
			Failed:     int(r.Failed),
		}
	}
	return runs, nil
}

// Results returns the results of a run, primary first, then platforms, then
// boards, each in the order they were pushed.
func (s Store) Results(ctx context.Context, runID string) ([]Result, error) {
	rows, err := s.qry.GetRunResults(ctx, runID)
	if err != nil {
		return nil, err
	}
	results := make([]Result, len(rows))
	for i, r := range rows {
		results[i] = Result{
			Category: sites.Category(r.Category),
			RunResult: compliance.RunResult{
				ProviderID: r.Providerid,
				SiteID:     r.Siteid,
				Status:     compliance.Status(r.Status),
				Error:      r.Error,
			},
		}
	}
	return results, nil
}

// Records returns the records of a run grouped per provider. It returns
// sql.ErrNoRows when the run does not exist.
func (s Store) Records(ctx context.Context, runID string) ([][]compliance.Record, error) {
	providers, err := s.qry.GetRunProviders(ctx, runID)
	if err != nil {
		return nil, err
	}
	rows, err := s.qry.GetRunRecords(ctx, runID)
	if err != nil {
		return nil, err
	}

	groups := make([][]compliance.Record, providers)
	for _, r := range rows {
		if r.Providerindex < 0 || r.Providerindex >= providers {
			slog.WarnContext(ctx, "stored record outside provider range", "run", runID, "index", r.Providerindex)
			continue
		}
		var record compliance.Record
		err = json.Unmarshal([]byte(r.Data), &record)
		if err != nil {
			slog.WarnContext(ctx, "failed to unmarshal stored record", "run", runID, "err", err)
			continue
		}
		groups[r.Providerindex] = append(groups[r.Providerindex], record)
	}
	return groups, nil
}
