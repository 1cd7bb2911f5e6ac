package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/nstehr/creep/creep-core/model"
	"github.com/nstehr/creep/creep-core/storage/migrations"
)

// PostgresStore keeps terrain in the room_terrain table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore runs migrations and connects a pool.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if err := RunMigrations(ctx, dsn); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// RunMigrations runs goose migrations on the given DSN.
func RunMigrations(ctx context.Context, dsn string) error {
	sqlDB, err := sql.Open("pgx", dsn)
	if err != nil {
		return fmt.Errorf("opening sql connection for migrations: %w", err)
	}
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}
	if err := goose.UpContext(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveTerrain(ctx context.Context, room string, grid *model.TerrainGrid) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO room_terrain (room, terrain, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (room) DO UPDATE SET terrain = EXCLUDED.terrain, updated_at = now()`,
		room, grid.String(),
	)
	if err != nil {
		return fmt.Errorf("saving terrain for %s: %w", room, err)
	}
	return nil
}

func (s *PostgresStore) LoadTerrain(ctx context.Context, room string) (string, error) {
	var terrain string
	err := s.pool.QueryRow(ctx,
		`SELECT terrain FROM room_terrain WHERE room = $1`, room,
	).Scan(&terrain)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("%s: %w", room, ErrNotFound)
		}
		return "", fmt.Errorf("querying terrain for %s: %w", room, err)
	}
	return terrain, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
