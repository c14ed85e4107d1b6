package similarity

// Candidate generation runs as INSERT ... SELECT passes inside Postgres so
// blocking never pulls the full businesses table over the wire. Each pass
// writes pending rows into candidate_duplicate_pairs with LEAST/GREATEST id
// ordering and ON CONFLICT DO NOTHING, so reruns are idempotent and a pair
// already produced by a cheaper pass is never duplicated.

// PhoneExactSQL returns the pass 1 SQL: identical normalized phone digits.
func PhoneExactSQL() string {
	return `
INSERT INTO candidate_duplicate_pairs (business1_id, business2_id, similarity, status)
SELECT
    LEAST(a.id, b.id),
    GREATEST(a.id, b.id),
    1.00,
    'pending'
FROM businesses a
JOIN businesses b
    ON REGEXP_REPLACE(a.phone, '[^0-9]', '', 'g') = REGEXP_REPLACE(b.phone, '[^0-9]', '', 'g')
   AND a.id < b.id
WHERE a.phone IS NOT NULL AND a.phone != ''
  AND b.phone IS NOT NULL AND b.phone != ''
  AND a.merged_into IS NULL
  AND b.merged_into IS NULL
ON CONFLICT (business1_id, business2_id) DO NOTHING`
}

// NameZipExactSQL returns the pass 2 SQL: identical normalized name within
// the same zip code.
func NameZipExactSQL() string {
	return `
INSERT INTO candidate_duplicate_pairs (business1_id, business2_id, similarity, status)
SELECT
    LEAST(a.id, b.id),
    GREATEST(a.id, b.id),
    0.95,
    'pending'
FROM businesses a
JOIN businesses b
    ON ` + NormalizeNameSQL("a.name") + ` = ` + NormalizeNameSQL("b.name") + `
   AND a.zip = b.zip
   AND a.id < b.id
WHERE a.zip IS NOT NULL AND a.zip != ''
  AND a.merged_into IS NULL
  AND b.merged_into IS NULL
ON CONFLICT (business1_id, business2_id) DO NOTHING`
}

// FuzzyNameSQL returns the pass 3 SQL: pg_trgm name similarity above the
// given threshold within the same state. Requires the pg_trgm extension.
func FuzzyNameSQL() string {
	return `
INSERT INTO candidate_duplicate_pairs (business1_id, business2_id, similarity, status)
SELECT
    LEAST(a.id, b.id),
    GREATEST(a.id, b.id),
    similarity(UPPER(a.name), UPPER(b.name))::NUMERIC(3,2),
    'pending'
FROM businesses a
JOIN businesses b
    ON similarity(UPPER(a.name), UPPER(b.name)) > $1
   AND a.state = b.state
   AND a.id < b.id
WHERE a.merged_into IS NULL
  AND b.merged_into IS NULL
ON CONFLICT (business1_id, business2_id) DO NOTHING`
}

// NormalizeNameSQL returns a SQL expression applying the same normalization
// as NormalizeName to a column, for use inside INSERT ... SELECT passes.
func NormalizeNameSQL(col string) string {
	return `UPPER(TRIM(
    REGEXP_REPLACE(
        REGEXP_REPLACE(
            REPLACE(REPLACE(REPLACE(REPLACE(REPLACE(REPLACE(` + col + `,
                ',', ''), '.', ''), '''', ''), '"', ''), '&', 'AND'), '-', ' '),
            '\s*(LLC|L\.?L\.?C\.?|INC\.?|INCORPORATED|CORP\.?|CORPORATION|LTD\.?|LIMITED|L\.?P\.?|L\.?L\.?P\.?|P\.?C\.?|P\.?A\.?|CO\.?|PLC|P\.?L\.?C\.?|D/?B/?A|PLLC)\s*$',
            '', 'i'),
        '\s+', ' ', 'g')
    ))`
}
