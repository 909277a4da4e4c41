package pg

import (
	"context"
	"fmt"
	"time"

	"github.com/pvzzle/txrecorder/internal/storage"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Postgres struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Postgres { return &Postgres{pool: pool} }

func (r *Postgres) EnsureSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS submissions (
  id TEXT PRIMARY KEY,
  account   TEXT NOT NULL,
  recipient TEXT NOT NULL,

  amount_wei NUMERIC(78,0) NOT NULL,
  keyword TEXT NOT NULL,
  message TEXT NOT NULL,

  transfer_hash TEXT NULL,
  record_hash   TEXT NULL,
  block_number  BIGINT NULL,

  status TEXT NOT NULL, -- pending|transfer_sent|record_sent|confirmed|failed|partial
  error  TEXT NULL,

  created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS submissions_account_created_idx ON submissions(account, created_at DESC);
`
	_, err := r.pool.Exec(ctx, ddl)
	return err
}

func (r *Postgres) UpsertSubmission(ctx context.Context, s storage.Submission) error {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var (
		transferHash any = nil
		recordHash   any = nil
		blockNum     any = nil
		errText      any = nil
	)

	if s.TransferHash != nil {
		transferHash = *s.TransferHash
	}
	if s.RecordHash != nil {
		recordHash = *s.RecordHash
	}
	if s.BlockNum != nil {
		blockNum = int64(*s.BlockNum)
	}
	if s.Error != nil {
		errText = *s.Error
	}

	q := `
INSERT INTO submissions(
  id, account, recipient,
  amount_wei, keyword, message,
  transfer_hash, record_hash, block_number,
  status, error
) VALUES (
  $1, $2, $3,
  $4::numeric, $5, $6,
  $7, $8, $9,
  $10, $11
)
ON CONFLICT(id) DO UPDATE SET
  transfer_hash = COALESCE(EXCLUDED.transfer_hash, submissions.transfer_hash),
  record_hash   = COALESCE(EXCLUDED.record_hash,   submissions.record_hash),
  block_number  = COALESCE(EXCLUDED.block_number,  submissions.block_number),
  status        = EXCLUDED.status,
  error         = COALESCE(EXCLUDED.error, submissions.error),
  updated_at    = now()
`
	_, err := r.pool.Exec(cctx, q,
		s.ID, s.Account, s.Recipient,
		s.AmountWei, s.Keyword, s.Message,
		transferHash, recordHash, blockNum,
		string(s.Status), errText,
	)
	return err
}

func (r *Postgres) ListSubmissions(ctx context.Context, account string, limit int) ([]storage.Submission, error) {
	if limit <= 0 {
		limit = 10
	}
	cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	q := `
SELECT
  id, account, recipient,
  amount_wei::text, keyword, message,
  transfer_hash, record_hash, block_number,
  status, error,
  created_at, updated_at
FROM submissions
WHERE account = $1
ORDER BY created_at DESC
LIMIT $2
`
	rows, err := r.pool.Query(cctx, q, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.Submission
	for rows.Next() {
		var (
			s        storage.Submission
			blockNum *int64
			status   string
		)

		if err := rows.Scan(
			&s.ID, &s.Account, &s.Recipient,
			&s.AmountWei, &s.Keyword, &s.Message,
			&s.TransferHash, &s.RecordHash, &blockNum,
			&status, &s.Error,
			&s.CreatedAt, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}

		if blockNum != nil {
			u := uint64(*blockNum)
			s.BlockNum = &u
		}
		s.Status = storage.SubmissionStatus(status)

		out = append(out, s)
	}

	if rows.Err() != nil {
		return nil, rows.Err()
	}

	return out, nil
}

func (r *Postgres) String() string { return fmt.Sprintf("pgrepo(%p)", r.pool) }
