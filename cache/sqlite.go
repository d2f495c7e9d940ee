package cache

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	_ "modernc.org/sqlite"
)

type sqliteCache struct {
	db        *sql.DB
	ctx       context.Context
	cancel    context.CancelFunc
	waitGroup sync.WaitGroup
	once      sync.Once
	cfg       config
}

var _ Tier = (*sqliteCache)(nil)

// NewSQLite returns the disk tier backed by a SQLite database at dbPath.
// If dbPath is empty or ":memory:", an in-memory database is used.
func NewSQLite(ctx context.Context, dbPath string, opts ...Option) (Tier, error) {
	cfg := applyOptions(opts)
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrapf(err, "cache: open sqlite %s", dbPath)
	}
	if dbPath == ":memory:" {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: enable WAL")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: set busy timeout")
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS cache (
		space TEXT NOT NULL,
		key TEXT NOT NULL,
		kind INTEGER NOT NULL,
		class TEXT NOT NULL DEFAULT '',
		value BLOB NOT NULL,
		expires_at INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (space, key)
	)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: create table")
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_cache_expires_at ON cache(expires_at)`); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "cache: create index")
	}

	childCtx, cancel := context.WithCancel(ctx)
	c := &sqliteCache{
		db:     db,
		ctx:    childCtx,
		cancel: cancel,
		cfg:    cfg,
	}

	c.waitGroup.Add(1)
	go c.run()

	return c, nil
}

func (c *sqliteCache) queryCtx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, c.cfg.queryTimeout)
}

// live is the predicate selecting unexpired rows; expires_at 0 never expires.
const live = `(expires_at = 0 OR expires_at >= ?)`

func (c *sqliteCache) Get(ctx context.Context, space, key string) (bool, Entry, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	var (
		entry     Entry
		kind      int64
		expiresAt int64
	)
	err := c.db.QueryRowContext(qctx,
		`SELECT kind, class, value, expires_at FROM cache WHERE space = ? AND key = ?`, space, key,
	).Scan(&kind, &entry.Class, &entry.Data, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, Entry{}, nil
	}
	if err != nil {
		return false, Entry{}, errors.Wrapf(err, "cache: sqlite get %s/%s", space, key)
	}
	if expiresAt != 0 && expiresAt < time.Now().UnixNano() {
		_, _ = c.db.ExecContext(qctx, `DELETE FROM cache WHERE space = ? AND key = ?`, space, key)
		return false, Entry{}, nil
	}
	entry.Kind = Kind(kind)
	if entry.Data == nil {
		entry.Data = []byte{}
	}
	return true, entry, nil
}

func (c *sqliteCache) Set(ctx context.Context, space, key string, entry Entry, expires time.Duration) error {
	if expires <= 0 {
		expires = c.cfg.defaultExpires
	}
	var exp int64
	if t := expiresAt(time.Now(), expires); !t.IsZero() {
		exp = t.UnixNano()
	}
	data := entry.Data
	if data == nil {
		data = []byte{}
	}
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	_, err := c.db.ExecContext(qctx,
		`INSERT INTO cache (space, key, kind, class, value, expires_at) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(space, key) DO UPDATE SET kind = excluded.kind, class = excluded.class,
		value = excluded.value, expires_at = excluded.expires_at`,
		space, key, int64(entry.Kind), entry.Class, data, exp,
	)
	if err != nil {
		return errors.Wrapf(err, "cache: sqlite set %s/%s", space, key)
	}
	return nil
}

func (c *sqliteCache) Contains(ctx context.Context, space, key string) (bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	var n int
	err := c.db.QueryRowContext(qctx,
		`SELECT COUNT(1) FROM cache WHERE space = ? AND key = ? AND `+live,
		space, key, time.Now().UnixNano(),
	).Scan(&n)
	if err != nil {
		return false, errors.Wrapf(err, "cache: sqlite contains %s/%s", space, key)
	}
	return n > 0, nil
}

func (c *sqliteCache) Expire(ctx context.Context, space, key string) (bool, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	result, err := c.db.ExecContext(qctx, `DELETE FROM cache WHERE space = ? AND key = ?`, space, key)
	if err != nil {
		return false, errors.Wrapf(err, "cache: sqlite expire %s/%s", space, key)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (c *sqliteCache) ExpireAll(ctx context.Context, space string) error {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	if _, err := c.db.ExecContext(qctx, `DELETE FROM cache WHERE space = ?`, space); err != nil {
		return errors.Wrapf(err, "cache: sqlite expire all %s", space)
	}
	return nil
}

func (c *sqliteCache) Count(ctx context.Context, space string) (uint64, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	var n int64
	err := c.db.QueryRowContext(qctx,
		`SELECT COUNT(1) FROM cache WHERE space = ? AND `+live, space, time.Now().UnixNano(),
	).Scan(&n)
	if err != nil {
		return 0, errors.Wrapf(err, "cache: sqlite count %s", space)
	}
	return uint64(n), nil
}

func (c *sqliteCache) Keys(ctx context.Context, space string) ([]string, error) {
	qctx, cancel := c.queryCtx(ctx)
	defer cancel()
	rows, err := c.db.QueryContext(qctx,
		`SELECT key FROM cache WHERE space = ? AND `+live, space, time.Now().UnixNano())
	if err != nil {
		return nil, errors.Wrapf(err, "cache: sqlite keys %s", space)
	}
	defer rows.Close()
	keys := make([]string, 0)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (c *sqliteCache) Close(_ context.Context) error {
	var dbErr error
	c.once.Do(func() {
		c.cancel()
		c.waitGroup.Wait()
		dbErr = c.db.Close()
	})
	return dbErr
}

func (c *sqliteCache) run() {
	defer c.waitGroup.Done()
	ticker := time.NewTicker(c.cfg.expiryCheck)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			qctx, cancel := c.queryCtx(c.ctx)
			_, _ = c.db.ExecContext(qctx, `DELETE FROM cache WHERE expires_at != 0 AND expires_at < ?`, time.Now().UnixNano())
			cancel()
		}
	}
}
