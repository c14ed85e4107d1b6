package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/anthrasite/leadfactory-cli/internal/cost"
	"github.com/anthrasite/leadfactory-cli/internal/model"
	"github.com/anthrasite/leadfactory-cli/internal/similarity"
)

// SQLiteStore implements Store using modernc.org/sqlite. Candidate
// generation runs in memory because SQLite has neither pg_trgm nor
// regexp-based normalization.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
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
	score       REAL,
	merged_into INTEGER REFERENCES businesses(id),
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS candidate_duplicate_pairs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	business1_id    INTEGER NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	business2_id    INTEGER NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	similarity      REAL NOT NULL DEFAULT 0,
	status          TEXT NOT NULL DEFAULT 'pending',
	verified_by_llm INTEGER NOT NULL DEFAULT 0,
	llm_confidence  REAL,
	llm_reasoning   TEXT NOT NULL DEFAULT '',
	created_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at      DATETIME NOT NULL DEFAULT (datetime('now')),
	CHECK (business1_id < business2_id),
	UNIQUE (business1_id, business2_id)
);

CREATE TABLE IF NOT EXISTS features (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	business_id    INTEGER NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	tech_stack     TEXT,
	page_speed     INTEGER,
	screenshot_url TEXT,
	semrush_json   TEXT,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS mockups (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	business_id INTEGER NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	content     TEXT,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS emails (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	business_id INTEGER NOT NULL REFERENCES businesses(id) ON DELETE CASCADE,
	variant_id  TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL DEFAULT 'pending',
	sent_at     DATETIME,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS api_costs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	service     TEXT NOT NULL,
	operation   TEXT NOT NULL,
	cost_cents  REAL NOT NULL DEFAULT 0,
	tier        INTEGER NOT NULL DEFAULT 0,
	business_id INTEGER,
	tokens      INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_businesses_status ON businesses(status);
CREATE INDEX IF NOT EXISTS idx_businesses_merged_into ON businesses(merged_into);
CREATE INDEX IF NOT EXISTS idx_pairs_status ON candidate_duplicate_pairs(status);
CREATE INDEX IF NOT EXISTS idx_features_business_id ON features(business_id);
CREATE INDEX IF NOT EXISTS idx_mockups_business_id ON mockups(business_id);
CREATE INDEX IF NOT EXISTS idx_emails_business_id ON emails(business_id);
CREATE INDEX IF NOT EXISTS idx_api_costs_service_created ON api_costs(service, created_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateBusiness(ctx context.Context, b *model.Business) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO businesses (name, address, city, state, zip, phone, email, website, category, description, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Name, b.Address, b.City, b.State, b.Zip, b.Phone, b.Email, b.Website,
		b.Category, b.Description, string(model.BusinessStatusPending), now, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert business")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: insert business id")
	}
	b.ID = id
	b.Status = model.BusinessStatusPending
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) GetBusiness(ctx context.Context, id int64) (*model.Business, error) {
	var b model.Business
	err := s.db.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id,
	).Scan(
		&b.ID, &b.Name, &b.Address, &b.City, &b.State, &b.Zip, &b.Phone,
		&b.Email, &b.Website, &b.Category, &b.Description, &b.Status,
		&b.Score, &b.MergedInto, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get business %d", id)
	}
	return &b, nil
}

func (s *SQLiteStore) ImportBusinesses(ctx context.Context, businesses []model.Business) (int64, error) {
	if len(businesses) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import begin")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO businesses (name, address, city, state, zip, phone, email, website, category, description, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: import prepare")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	var n int64
	for _, b := range businesses {
		if _, err := stmt.ExecContext(ctx,
			b.Name, b.Address, b.City, b.State, b.Zip, b.Phone, b.Email,
			b.Website, b.Category, b.Description, string(model.BusinessStatusPending), now, now,
		); err != nil {
			return 0, eris.Wrap(err, "sqlite: import insert")
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: import commit")
	}
	return n, nil
}

func (s *SQLiteStore) CountBusinessesByStatus(ctx context.Context) (map[model.BusinessStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM businesses GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count businesses")
	}
	defer rows.Close()

	counts := make(map[model.BusinessStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan business count")
		}
		counts[model.BusinessStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count businesses iterate")
}

func (s *SQLiteStore) CreatePair(ctx context.Context, p *model.CandidatePair) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO candidate_duplicate_pairs (business1_id, business2_id, similarity, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		p.Business1ID, p.Business2ID, p.Similarity, string(p.Status), now, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert pair")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: insert pair id")
	}
	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

func (s *SQLiteStore) ListPendingPairs(ctx context.Context, limit int) ([]model.CandidatePair, error) {
	if limit <= 0 {
		limit = 1000000
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+pairColumns+` FROM candidate_duplicate_pairs
		 WHERE status = ?
		 ORDER BY similarity DESC, id ASC
		 LIMIT ?`,
		string(model.PairStatusPending), limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending pairs")
	}
	defer rows.Close()

	var pairs []model.CandidatePair
	for rows.Next() {
		var p model.CandidatePair
		if err := rows.Scan(
			&p.ID, &p.Business1ID, &p.Business2ID, &p.Similarity, &p.Status,
			&p.VerifiedByLLM, &p.LLMConfidence, &p.LLMReasoning, &p.CreatedAt, &p.UpdatedAt,
		); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pair")
		}
		pairs = append(pairs, p)
	}
	return pairs, eris.Wrap(rows.Err(), "sqlite: list pending pairs iterate")
}

func (s *SQLiteStore) UpdatePairStatus(ctx context.Context, pairID int64, status model.PairStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE candidate_duplicate_pairs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), pairID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update pair status %d", pairID)
	}
	return checkRowsAffected(res, "pair", pairID)
}

func (s *SQLiteStore) RecordVerification(ctx context.Context, pairID int64, status model.PairStatus, confidence float64, reasoning string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE candidate_duplicate_pairs
		 SET status = ?, verified_by_llm = 1, llm_confidence = ?, llm_reasoning = ?, updated_at = ?
		 WHERE id = ?`,
		string(status), confidence, reasoning, time.Now().UTC(), pairID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: record verification %d", pairID)
	}
	return checkRowsAffected(res, "pair", pairID)
}

func (s *SQLiteStore) CountPairsByStatus(ctx context.Context) (map[model.PairStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM candidate_duplicate_pairs GROUP BY status`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count pairs")
	}
	defer rows.Close()

	counts := make(map[model.PairStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pair count")
		}
		counts[model.PairStatus(status)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count pairs iterate")
}

// candidateRow is the subset of business fields needed for in-memory
// candidate blocking.
type candidateRow struct {
	id    int64
	name  string
	zip   string
	state string
	phone string
}

func (s *SQLiteStore) GenerateCandidates(ctx context.Context, fuzzyThreshold float64) (*CandidateStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, zip, state, phone FROM businesses WHERE merged_into IS NULL ORDER BY id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: load candidates")
	}
	defer rows.Close()

	var all []candidateRow
	for rows.Next() {
		var r candidateRow
		if err := rows.Scan(&r.id, &r.name, &r.zip, &r.state, &r.phone); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan candidate")
		}
		all = append(all, r)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: load candidates iterate")
	}

	stats := &CandidateStats{}

	// Pass 1: exact phone match.
	byPhone := make(map[string][]int64)
	for _, r := range all {
		if p := similarity.NormalizePhone(r.phone); p != "" {
			byPhone[p] = append(byPhone[p], r.id)
		}
	}
	n, err := s.insertCandidateGroups(ctx, byPhone, 1.00)
	if err != nil {
		return nil, err
	}
	stats.PhoneExact = n

	// Pass 2: normalized name + zip.
	byNameZip := make(map[string][]int64)
	for _, r := range all {
		name := similarity.NormalizeName(r.name)
		if name == "" || r.zip == "" {
			continue
		}
		key := name + "|" + r.zip
		byNameZip[key] = append(byNameZip[key], r.id)
	}
	n, err = s.insertCandidateGroups(ctx, byNameZip, 0.95)
	if err != nil {
		return nil, err
	}
	stats.NameZipExact = n

	// Pass 3: fuzzy name within the same state. Quadratic per state,
	// acceptable at SQLite-backend scale.
	byState := make(map[string][]candidateRow)
	for _, r := range all {
		byState[r.state] = append(byState[r.state], r)
	}
	for _, group := range byState {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				sim := similarity.Ratio(
					similarity.Normalize(group[i].name),
					similarity.Normalize(group[j].name),
				)
				if sim < fuzzyThreshold {
					continue
				}
				inserted, err := s.insertCandidatePair(ctx, group[i].id, group[j].id, sim)
				if err != nil {
					return nil, err
				}
				stats.FuzzyName += inserted
			}
		}
	}

	return stats, nil
}

func (s *SQLiteStore) insertCandidateGroups(ctx context.Context, groups map[string][]int64, sim float64) (int64, error) {
	var total int64
	for _, ids := range groups {
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				n, err := s.insertCandidatePair(ctx, ids[i], ids[j], sim)
				if err != nil {
					return total, err
				}
				total += n
			}
		}
	}
	return total, nil
}

func (s *SQLiteStore) insertCandidatePair(ctx context.Context, id1, id2 int64, sim float64) (int64, error) {
	if id2 < id1 {
		id1, id2 = id2, id1
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO candidate_duplicate_pairs (business1_id, business2_id, similarity, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id1, id2, sim, string(model.PairStatusPending), now, now,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: insert candidate pair")
	}
	n, err := res.RowsAffected()
	return n, eris.Wrap(err, "sqlite: insert candidate pair rows")
}

func (s *SQLiteStore) ChildCounts(ctx context.Context, businessID int64) (*ChildCounts, error) {
	var c ChildCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT
			(SELECT COUNT(*) FROM features WHERE business_id = ?),
			(SELECT COUNT(*) FROM mockups WHERE business_id = ?),
			(SELECT COUNT(*) FROM emails WHERE business_id = ?)`,
		businessID, businessID, businessID,
	).Scan(&c.Features, &c.Mockups, &c.Emails)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: child counts %d", businessID)
	}
	return &c, nil
}

func (s *SQLiteStore) MergeBusinesses(ctx context.Context, primaryID, secondaryID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: merge begin")
	}
	defer tx.Rollback()

	var primaryMerged, secondaryMerged *int64
	if err := tx.QueryRowContext(ctx,
		`SELECT merged_into FROM businesses WHERE id = ?`, primaryID,
	).Scan(&primaryMerged); err != nil {
		return eris.Wrapf(err, "sqlite: merge lock primary %d", primaryID)
	}
	if err := tx.QueryRowContext(ctx,
		`SELECT merged_into FROM businesses WHERE id = ?`, secondaryID,
	).Scan(&secondaryMerged); err != nil {
		return eris.Wrapf(err, "sqlite: merge lock secondary %d", secondaryID)
	}
	if primaryMerged != nil {
		return eris.Errorf("sqlite: merge target %d is already merged into %d", primaryID, *primaryMerged)
	}
	if secondaryMerged != nil {
		return eris.Errorf("sqlite: business %d is already merged into %d", secondaryID, *secondaryMerged)
	}

	for _, table := range childTables {
		if _, err := tx.ExecContext(ctx,
			`UPDATE `+table+` SET business_id = ? WHERE business_id = ?`,
			primaryID, secondaryID,
		); err != nil {
			return eris.Wrapf(err, "sqlite: merge repoint %s", table)
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE businesses SET status = ?, merged_into = ?, updated_at = ? WHERE id = ?`,
		string(model.BusinessStatusMerged), primaryID, time.Now().UTC(), secondaryID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: merge mark secondary %d", secondaryID)
	}
	if err := checkRowsAffected(res, "business", secondaryID); err != nil {
		return err
	}

	return eris.Wrap(tx.Commit(), "sqlite: merge commit")
}

func (s *SQLiteStore) RecordCost(ctx context.Context, ev cost.Event) error {
	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_costs (service, operation, cost_cents, tier, business_id, tokens, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Service, ev.Operation, ev.CostCents, ev.Tier, ev.BusinessID, ev.Tokens, occurred,
	)
	return eris.Wrap(err, "sqlite: record cost")
}

func (s *SQLiteStore) SumCostCents(ctx context.Context, lookback time.Duration) (float64, error) {
	cutoff := time.Now().UTC().Add(-lookback)
	var total float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost_cents), 0) FROM api_costs WHERE created_at >= ?`,
		cutoff,
	).Scan(&total)
	return total, eris.Wrap(err, "sqlite: sum cost")
}

func checkRowsAffected(res sql.Result, kind string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: %s %d rows affected", kind, id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", kind, id)
	}
	return nil
}
