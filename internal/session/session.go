// Package session caps the number of concurrent online sessions and
// computes queue positions for visitors over the cap.
package session

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/driver"
	"github.com/coal/gatetrap/internal/policy"
)

// Admission is the outcome of one admission check.
type Admission struct {
	Verdict policy.Verdict
	// Order is the 1-based position of this session in the online pool,
	// oldest first.
	Order int
	// Count is the number of online sessions including this one.
	Count int
	// Queue is how far over the limit this session is; positive values
	// mean waiting.
	Queue int
}

// Controller admits sessions against the configured cap. A zero Count
// disables the cap and every call allows.
type Controller struct {
	drv driver.Driver
	cfg config.SessionConfig
	log zerolog.Logger
}

// NewController creates a session admission controller.
func NewController(drv driver.Driver, cfg config.SessionConfig, log zerolog.Logger) *Controller {
	return &Controller{drv: drv, cfg: cfg, log: log.With().Str("component", "session").Logger()}
}

// Limit returns the configured cap; zero means unlimited.
func (c *Controller) Limit() int {
	return c.cfg.Count
}

// OnlineCount returns the number of session records currently persisted.
func (c *Controller) OnlineCount() (int, error) {
	recs, err := driver.GetAllSessions(c.drv)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

// Admit scans the session table, lazily expiring stale records, and decides
// whether the session fits under the cap. Expiry is a side effect of the
// scan, not a separate sweep.
func (c *Controller) Admit(ip, sessionID string, now, micro int64) (Admission, error) {
	if c.cfg.Count <= 0 {
		return Admission{Verdict: policy.VerdictAllow}, nil
	}

	recs, err := driver.GetAllSessions(c.drv)
	if err != nil {
		return Admission{}, fmt.Errorf("scanning session table: %w", err)
	}
	// Drivers return unordered values; (time, microtimestamp) restores the
	// oldest-first insertion order the queue position depends on.
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Time != recs[j].Time {
			return recs[i].Time < recs[j].Time
		}
		return recs[i].Microtimestamp < recs[j].Microtimestamp
	})

	order := 0
	pool := 0
	for _, rec := range recs {
		if now-rec.Time > c.cfg.Period {
			if err := driver.DeleteSession(c.drv, rec.ID); err != nil {
				return Admission{}, fmt.Errorf("expiring session %s: %w", rec.ID, err)
			}
			c.log.Debug().Str("session", rec.ID).Str("ip", rec.IP).Msg("session expired")
			continue
		}
		pool++
		if rec.ID == sessionID {
			order = pool
		}
	}

	adm := Admission{Order: order, Count: pool}
	if order == 0 {
		// Unknown session: append it and take the seat after the pool.
		adm.Order = pool + 1
		adm.Count = pool + 1
		rec := &driver.SessionRecord{ID: sessionID, IP: ip, Time: now, Microtimestamp: micro}
		if err := driver.SaveSession(c.drv, rec); err != nil {
			return Admission{}, fmt.Errorf("recording session %s: %w", sessionID, err)
		}
	}

	adm.Queue = adm.Order - c.cfg.Count
	if adm.Order >= c.cfg.Count {
		adm.Verdict = policy.VerdictLimitSession
		return adm, nil
	}
	adm.Verdict = policy.VerdictAllow
	return adm, nil
}
