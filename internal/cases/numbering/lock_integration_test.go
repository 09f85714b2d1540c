//go:build integration

package numbering_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bsm/redislock"
	"github.com/stretchr/testify/suite"

	"casedesk/internal/cases/models"
	"casedesk/internal/cases/numbering"
	"casedesk/pkg/testutil/containers"
)

type RedisLockerSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	locker *numbering.RedisLocker
}

func TestRedisLockerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockerSuite))
}

func (s *RedisLockerSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.locker = numbering.NewRedisLocker(redislock.New(s.redis.Client), 5*time.Second)
}

func (s *RedisLockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

// TestLockSerialisesHolders verifies that at most one goroutine holds the
// allocation lock for a (type, year) at a time.
func (s *RedisLockerSuite) TestLockSerialisesHolders() {
	ctx := context.Background()
	const goroutines = 10

	var wg sync.WaitGroup
	var inside atomic.Int32
	var maxInside atomic.Int32
	var acquired atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := s.locker.Lock(ctx, models.CaseTypePreventive, 2024)
			if err != nil {
				return
			}
			acquired.Add(1)
			n := inside.Add(1)
			for {
				m := maxInside.Load()
				if n <= m || maxInside.CompareAndSwap(m, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			inside.Add(-1)
			_ = unlock(ctx)
		}()
	}
	wg.Wait()

	s.Equal(int32(goroutines), acquired.Load())
	s.Equal(int32(1), maxInside.Load())
}

func (s *RedisLockerSuite) TestKeysAreScopedByTypeAndYear() {
	ctx := context.Background()

	unlockA, err := s.locker.Lock(ctx, models.CaseTypePreventive, 2024)
	s.Require().NoError(err)
	defer func() { _ = unlockA(ctx) }()

	unlockB, err := s.locker.Lock(ctx, models.CaseTypeCorrective, 2024)
	s.Require().NoError(err)
	s.Require().NoError(unlockB(ctx))

	exists, err := s.redis.Client.Exists(ctx, numbering.LockKey(models.CaseTypePreventive, 2024)).Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists)
}
