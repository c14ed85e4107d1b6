package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/anthrasite/leadfactory-cli/internal/cost"
	"github.com/anthrasite/leadfactory-cli/internal/db"
	"github.com/anthrasite/leadfactory-cli/internal/model"
	"github.com/anthrasite/leadfactory-cli/internal/similarity"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const businessColumns = `id, name, address, city, state, zip, phone, email, website, category, description, status, score, merged_into, created_at, updated_at`

const pairColumns = `id, business1_id, business2_id, similarity, status, verified_by_llm, llm_confidence, llm_reasoning, created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot dedupe-loop operations.
var preparedStatements = map[string]string{
	"get_business":       `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1`,
	"update_pair_status": `UPDATE candidate_duplicate_pairs SET status = $1, updated_at = $2 WHERE id = $3`,
	"record_verification": `UPDATE candidate_duplicate_pairs
		SET status = $1, verified_by_llm = TRUE, llm_confidence = $2, llm_reasoning = $3, updated_at = $4
		WHERE id = $5`,
	"record_cost": `INSERT INTO api_costs (service, operation, cost_cents, tier, business_id, tokens, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems that need
// direct query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE EXTENSION IF NOT EXISTS pg_trgm;

CREATE TABLE IF NOT EXISTS businesses (
	id          BIGSERIAL PRIMARY KEY,
	name        TEXT NOT NULL,
	address     TEXT NOT NULL DEFAULT '',
	city        TEXT NOT NULL DEFAULT '',
	state       TEXT NOT NULL DEFAULT '',
	zip         TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	email       TEXT NOT NULL DEFAULT '',
	website     TEXT NOT NULL DEFAULT '',
	category    TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	score       DOUBLE PRECISION,
	merged_into BIGINT REFERENCES businesses(id),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS candidate_duplicate_pairs (
	id              BIGSERIAL PRIMARY KEY,
	business1_id    BIGINT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	business2_id    BIGINT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	similarity      DOUBLE PRECISION NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'pending',
	verified_by_llm BOOLEAN NOT NULL DEFAULT FALSE,
	llm_confidence  DOUBLE PRECISION,
	llm_reasoning   TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT pair_ordered CHECK (business1_id < business2_id),
	CONSTRAINT pair_unique UNIQUE (business1_id, business2_id)
);

CREATE TABLE IF NOT EXISTS features (
	id           BIGSERIAL PRIMARY KEY,
	business_id  BIGINT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	tech_stack   JSONB,
	page_speed   INTEGER,
	screenshot_url TEXT,
	semrush_json JSONB,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mockups (
	id          BIGSERIAL PRIMARY KEY,
	business_id BIGINT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	content     JSONB,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS emails (
	id          BIGSERIAL PRIMARY KEY,
	business_id BIGINT NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	variant_id  TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	sent_at     TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS api_costs (
	id          BIGSERIAL PRIMARY KEY,
	service     TEXT NOT NULL,
	operation   TEXT NOT NULL,
	cost_cents  DOUBLE PRECISION NOT NULL DEFAULT 0,
	tier        INTEGER NOT NULL DEFAULT 0,
	business_id BIGINT,
	tokens      INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_businesses_status ON businesses(status);
CREATE INDEX IF NOT EXISTS idx_businesses_merged_into ON businesses(merged_into);
CREATE INDEX IF NOT EXISTS idx_businesses_zip ON businesses(zip);
CREATE INDEX IF NOT EXISTS idx_businesses_name_trgm ON businesses USING gin (name gin_trgm_ops);
CREATE INDEX IF NOT EXISTS idx_pairs_status ON candidate_duplicate_pairs(status);
CREATE INDEX IF NOT EXISTS idx_features_business_id ON features(business_id);
CREATE INDEX IF NOT EXISTS idx_mockups_business_id ON mockups(business_id);
CREATE INDEX IF NOT EXISTS idx_emails_business_id ON emails(business_id);
CREATE INDEX IF NOT EXISTS idx_api_costs_service_created ON api_costs(service, created_at);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO businesses (name, address, city, state, zip, phone, email, website, category, description, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING id`,
		b.Name, b.Address, b.City, b.State, b.Zip, b.Phone, b.Email, b.Website,
		b.Category, b.Description, string(model.BusinessStatusPending), now, now,
	).Scan(&b.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: insert business")
	}
	b.Status = model.BusinessStatusPending
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id int64) (*model.Business, error) {
	var b model.Business
	err := s.pool.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id,
	).Scan(
		&b.ID, &b.Name, &b.Address, &b.City, &b.State, &b.Zip, &b.Phone,
		&b.Email, &b.Website, &b.Category, &b.Description, &b.Status,
		&b.Score, &b.MergedInto, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get business %d", id)
	}
	return &b, nil
}

func (s *PostgresStore) ImportBusinesses(ctx context.Context, businesses []model.Business) (int64, error) {
	if len(businesses) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	rows := make([][]any, 0, len(businesses))
	for _, b := range businesses {
		rows = append(rows, []any{
			b.Name, b.Address, b.City, b.State, b.Zip, b.Phone, b.Email,
			b.Website, b.Category, b.Description, string(model.BusinessStatusPending), now, now,
		})
	}

	n, err := db.CopyFrom(ctx, s.pool, "businesses", []string{
		"name", "address", "city", "state", "zip", "phone", "email",
		"website", "category", "description", "status", "created_at", "updated_at",
	}, rows)
	return n, eris.Wrap(err, "postgres: import businesses")
}

func (s *PostgresStore) CountBusinessesByStatus(ctx context.Context) (map[model.BusinessStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM businesses GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count businesses")
	}
	defer rows.Close()

	counts := make(map[model.BusinessStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan business count")
		}
		counts[model.BusinessStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count businesses iterate")
}

func (s *PostgresStore) CreatePair(ctx context.Context, p *model.CandidatePair) error {
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx,
		`INSERT INTO candidate_duplicate_pairs (business1_id, business2_id, similarity, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		p.Business1ID, p.Business2ID, p.Similarity, string(p.Status), now, now,
	).Scan(&p.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: insert pair")
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (s *PostgresStore) ListPendingPairs(ctx context.Context, limit int) ([]model.CandidatePair, error) {
	if limit <= 0 {
		limit = 1000000
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+pairColumns+` FROM candidate_duplicate_pairs
		 WHERE status = $1
		 ORDER BY similarity DESC, id ASC
		 LIMIT $2`,
		string(model.PairStatusPending), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending pairs")
	}
	defer rows.Close()

	var pairs []model.CandidatePair
	for rows.Next() {
		var p model.CandidatePair
		if err := rows.Scan(
			&p.ID, &p.Business1ID, &p.Business2ID, &p.Similarity, &p.Status,
			&p.VerifiedByLLM, &p.LLMConfidence, &p.LLMReasoning, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pair")
		}
		pairs = append(pairs, p)
	}
	return pairs, eris.Wrap(rows.Err(), "postgres: list pending pairs iterate")
}

func (s *PostgresStore) UpdatePairStatus(ctx context.Context, pairID int64, status model.PairStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE candidate_duplicate_pairs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), pairID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update pair status %d", pairID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("pair not found: %d", pairID)
	}
	return nil
}

func (s *PostgresStore) RecordVerification(ctx context.Context, pairID int64, status model.PairStatus, confidence float64, reasoning string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE candidate_duplicate_pairs
		 SET status = $1, verified_by_llm = TRUE, llm_confidence = $2, llm_reasoning = $3, updated_at = $4
		 WHERE id = $5`,
		string(status), confidence, reasoning, time.Now().UTC(), pairID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: record verification %d", pairID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("pair not found: %d", pairID)
	}
	return nil
}

func (s *PostgresStore) CountPairsByStatus(ctx context.Context) (map[model.PairStatus]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM candidate_duplicate_pairs GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count pairs")
	}
	defer rows.Close()

	counts := make(map[model.PairStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pair count")
		}
		counts[model.PairStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count pairs iterate")
}

func (s *PostgresStore) GenerateCandidates(ctx context.Context, fuzzyThreshold float64) (*CandidateStats, error) {
	stats := &CandidateStats{}

	tag, err := s.pool.Exec(ctx, similarity.PhoneExactSQL())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: candidate pass phone_exact")
	}
	stats.PhoneExact = tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, similarity.NameZipExactSQL())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: candidate pass name_zip_exact")
	}
	stats.NameZipExact = tag.RowsAffected()

	tag, err = s.pool.Exec(ctx, similarity.FuzzyNameSQL(), fuzzyThreshold)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: candidate pass fuzzy_name")
	}
	stats.FuzzyName = tag.RowsAffected()

	return stats, nil
}

func (s *PostgresStore) ChildCounts(ctx context.Context, businessID int64) (*ChildCounts, error) {
	var c ChildCounts
	err := s.pool.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM features WHERE business_id = $1),
			(SELECT COUNT(*) FROM mockups WHERE business_id = $1),
			(SELECT COUNT(*) FROM emails WHERE business_id = $1)`,
		businessID,
	).Scan(&c.Features, &c.Mockups, &c.Emails)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: child counts %d", businessID)
	}
	return &c, nil
}

// childTables are the enrichment tables whose business_id foreign keys move
// from the secondary to the primary during a merge.
var childTables = []string{"features", "mockups", "emails"}

func (s *PostgresStore) MergeBusinesses(ctx context.Context, primaryID, secondaryID int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: merge begin")
	}
	defer tx.Rollback(ctx)

	// Lock both records; refuse merge chains in either direction.
	var primaryMerged, secondaryMerged *int64
	if err := tx.QueryRow(ctx,
		`SELECT merged_into FROM businesses WHERE id = $1 FOR UPDATE`, primaryID,
	).Scan(&primaryMerged); err != nil {
		return eris.Wrapf(err, "postgres: merge lock primary %d", primaryID)
	}
	if err := tx.QueryRow(ctx,
		`SELECT merged_into FROM businesses WHERE id = $1 FOR UPDATE`, secondaryID,
	).Scan(&secondaryMerged); err != nil {
		return eris.Wrapf(err, "postgres: merge lock secondary %d", secondaryID)
	}
	if primaryMerged != nil {
		return eris.Errorf("postgres: merge target %d is already merged into %d", primaryID, *primaryMerged)
	}
	if secondaryMerged != nil {
		return eris.Errorf("postgres: business %d is already merged into %d", secondaryID, *secondaryMerged)
	}

	for _, table := range childTables {
		if _, err := tx.Exec(ctx,
			`UPDATE `+table+` SET business_id = $1 WHERE business_id = $2`,
			primaryID, secondaryID,
		); err != nil {
			return eris.Wrapf(err, "postgres: merge repoint %s", table)
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE businesses SET status = $1, merged_into = $2, updated_at = $3 WHERE id = $4`,
		string(model.BusinessStatusMerged), primaryID, time.Now().UTC(), secondaryID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: merge mark secondary %d", secondaryID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("business not found: %d", secondaryID)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: merge commit")
}

func (s *PostgresStore) RecordCost(ctx context.Context, ev cost.Event) error {
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_costs (service, operation, cost_cents, tier, business_id, tokens, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.Service, ev.Operation, ev.CostCents, ev.Tier, ev.BusinessID, ev.Tokens, occurred,
	)
	return eris.Wrap(err, "postgres: record cost")
}

func (s *PostgresStore) SumCostCents(ctx context.Context, lookback time.Duration) (float64, error) {
	cutoff := time.Now().UTC().Add(-lookback)
	var total float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(cost_cents), 0) FROM api_costs WHERE created_at >= $1`,
		cutoff,
	).Scan(&total)
	return total, eris.Wrap(err, "postgres: sum cost")
}
