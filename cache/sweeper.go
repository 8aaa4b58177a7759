package cache

import (
	"context"
	"time"

	"go.uber.org/zap"
)

func (c *ManagedCache[K, V]) startSweeper(interval time.Duration) {
	ctx, cancel := context.WithCancel(context.Background())
	c.sweepCancel = cancel

	c.sweepWG.Add(1)
	go func() {
		defer c.sweepWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := c.maintain(ctx); err != nil {
					c.logger.Warn("Cache sweep stopped early", zap.String("cache", c.name), zap.Error(err))
				}
			}
		}
	}()
}

func (c *ManagedCache[K, V]) stopSweeper() {
	c.sweepOnce.Do(func() {
		if c.sweepCancel == nil {
			return
		}
		c.sweepCancel()
		c.sweepWG.Wait()
	})
}
