package session

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"lernguide/internal/notify"
	"lernguide/internal/store"
)

// runPersister is the single writer of the stored snapshot. Save intents are
// coalesced: a burst of signals within the debounce window yields one save of
// the state as it is when the save runs.
func (c *Controller) runPersister() {
	defer c.wg.Done()

	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
	}
	drain := func() {
		select {
		case <-c.saveCh:
		default:
		}
	}

	for {
		select {
		case <-c.saveCh:
			if c.debounce <= 0 {
				c.persist()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(c.debounce)
				timerC = timer.C
			}
		case <-timerC:
			timer, timerC = nil, nil
			c.persist()
		case req := <-c.reqCh:
			stopTimer()
			drain()
			switch req.kind {
			case requestFlush:
				req.result <- c.persist()
			case requestClear:
				ctx, cancel := context.WithTimeout(context.Background(), c.saveTimeout)
				c.store.Clear(ctx)
				cancel()
				req.result <- nil
			}
		case <-c.done:
			stopTimer()
			return
		}
	}
}

// persist saves the current state if the session is active and not on a
// transient screen. It returns the store error, if any.
func (c *Controller) persist() error {
	c.mu.Lock()
	if c.phase != PhaseActive || c.state.Screen.IsTransient() {
		c.mu.Unlock()
		return nil
	}
	if c.hasSaved && c.savedVersion == c.state.Version {
		c.mu.Unlock()
		return nil
	}
	st := c.state.clone()
	c.mu.Unlock()

	// encode outside the lock
	snap := st.Snapshot()
	ctx, cancel := context.WithTimeout(context.Background(), c.saveTimeout)
	err := c.store.Save(ctx, snap)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.handleSaveResultLocked(st.Version, err)
	return err
}

func (c *Controller) handleSaveResultLocked(version uint64, err error) {
	switch {
	case err == nil:
		c.savedVersion = version
		c.hasSaved = true
		c.unavailableWarned = false
		if c.quotaExceeded {
			c.quotaExceeded = false
			c.metrics.SetQuotaExceeded(false)
			c.notes.ClearKey(QuotaNotificationKey)
			c.log.Info("snapshot saved again after quota failure")
		}
	case errors.Is(err, store.ErrQuotaExceeded):
		c.log.Warn("snapshot exceeds storage quota", zap.Error(err))
		if !c.quotaExceeded {
			c.quotaExceeded = true
			c.metrics.SetQuotaExceeded(true)
		}
		c.notes.PushSticky(QuotaNotificationKey, notify.LevelWarning,
			"Storage is full: the session is no longer saved. Remove documents or export the session to keep your progress.")
	case errors.Is(err, store.ErrTransientState):
	default:
		c.log.Error("snapshot save failed", zap.Error(err))
		if !c.unavailableWarned {
			c.unavailableWarned = true
			c.notes.Push(notify.LevelWarning, "Session storage is unavailable. Your work continues but will not survive a reload.")
		}
	}
}
