package redisstore

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Store wraps the redis client. Its one job here is the per-session turn
// lock: turns for the same session must be processed one at a time, and
// the lock has to hold across server instances.
type Store struct {
	rdb *redis.Client
}

func New(addr, password string, db int) *Store {
	return &Store{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// turnLockTTL bounds how long a crashed turn can keep a session locked.
const turnLockTTL = 30 * time.Second

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// AcquireTurnLock takes the per-session mutual exclusion lock. It returns
// a release func and whether the lock was obtained; a held lock means a
// concurrent turn is in flight for this session.
func (s *Store) AcquireTurnLock(ctx context.Context, sessionID string) (release func(), ok bool, err error) {
	key := "lock:turn:" + sessionID
	token := uuid.NewString()

	ok, err = s.rdb.SetNX(ctx, key, token, turnLockTTL).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	release = func() {
		// best effort; the TTL cleans up after us anyway
		_ = releaseScript.Run(context.Background(), s.rdb, []string{key}, token).Err()
	}
	return release, true, nil
}

// AcquireUserLock guards the finalize-at-start logic on session creation
// against parallel creations for the same user.
func (s *Store) AcquireUserLock(ctx context.Context, userID uint64) (release func(), ok bool, err error) {
	key := "lock:user:" + strconv.FormatUint(userID, 10)
	token := uuid.NewString()

	ok, err = s.rdb.SetNX(ctx, key, token, turnLockTTL).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release = func() {
		_ = releaseScript.Run(context.Background(), s.rdb, []string{key}, token).Err()
	}
	return release, true, nil
}
