package cache

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/metrics"
	"gitlab.ozon.dev/pupkingeorgij/apiaudit/internal/repository"
)

type UserLister interface {
	List(ctx context.Context) ([]*repository.User, error)
}

// UserCache keeps user records by username. Values are copied in and out so
// callers never share a record with the cache.
type UserCache struct {
	mu     sync.RWMutex
	cache  map[string]*repository.User
	repo   UserLister
	logger *zap.Logger
}

func NewUserCache(repo UserLister, logger *zap.Logger) *UserCache {
	return &UserCache{
		cache:  make(map[string]*repository.User),
		repo:   repo,
		logger: logger,
	}
}

func (c *UserCache) LoadInitialData(ctx context.Context) error {
	c.logger.Info("Loading initial data into user cache...")
	users, err := c.repo.List(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, user := range users {
		userCopy := *user
		c.cache[user.Username] = &userCopy
	}
	metrics.UserCacheItems.Set(float64(len(c.cache)))
	c.logger.Info("Loaded users into cache", zap.Int("count", len(c.cache)))
	return nil
}

func (c *UserCache) Get(username string) (*repository.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	user, found := c.cache[username]
	if !found {
		return nil, false
	}
	userCopy := *user
	return &userCopy, true
}

func (c *UserCache) Set(user *repository.User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	userCopy := *user
	c.cache[user.Username] = &userCopy
	metrics.UserCacheItems.Set(float64(len(c.cache)))
	c.logger.Debug("Cache: set user", zap.String("username", user.Username), zap.Int64("id", user.ID))
}

func (c *UserCache) Delete(username string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, found := c.cache[username]; found {
		delete(c.cache, username)
		metrics.UserCacheItems.Set(float64(len(c.cache)))
		c.logger.Debug("Cache: deleted user", zap.String("username", username))
	}
}

func (c *UserCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}
