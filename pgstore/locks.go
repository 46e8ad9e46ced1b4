package pgstore

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/binary"
	"fmt"
	"sync"
)

// userLockKey maps a user to the advisory lock that serializes its writers.
func userLockKey(userID int64) int64 {
	return keyFromString(fmt.Sprintf("ridestats:user:%d", userID))
}

func keyFromString(s string) int64 {
	sum := sha256.Sum256([]byte(s))
	return int64(binary.LittleEndian.Uint64(sum[:8]))
}

// LeaderLock is a session-level advisory lock held on a dedicated
// connection until Unlock.
type LeaderLock struct {
	conn *sql.Conn
	key  int64
	once sync.Once
}

// TryLeaderLock attempts to take the named lock without waiting. It returns
// false when another session holds it.
func (s *Store) TryLeaderLock(ctx context.Context, name string) (*LeaderLock, bool, error) {
	key := keyFromString("ridestats:leader:" + name)
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}
	var ok bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&ok); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("try advisory lock %q: %w", name, err)
	}
	if !ok {
		_ = conn.Close()
		return nil, false, nil
	}
	return &LeaderLock{conn: conn, key: key}, true, nil
}

// Unlock releases the lock and returns the connection to the pool. It is
// safe to call more than once.
func (l *LeaderLock) Unlock(ctx context.Context) error {
	if l == nil {
		return nil
	}
	var unlockErr error
	l.once.Do(func() {
		var ok bool
		unlockErr = l.conn.QueryRowContext(ctx, `SELECT pg_advisory_unlock($1)`, l.key).Scan(&ok)
		if unlockErr == nil && !ok {
			unlockErr = fmt.Errorf("advisory lock %d not held", l.key)
		}
		if closeErr := l.conn.Close(); unlockErr == nil {
			unlockErr = closeErr
		}
	})
	return unlockErr
}
