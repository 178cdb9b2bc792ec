// Package filter implements the per-visit behavioral checks: referer,
// session, cookie, and frequency. Each evaluation mutates and re-persists
// the visitor's filter record.
package filter

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/driver"
	"github.com/coal/gatetrap/internal/policy"
	"github.com/coal/gatetrap/internal/visitor"
)

// Window durations for the four frequency units, in seconds.
const (
	windowS = int64(1)
	windowM = int64(60)
	windowH = int64(3600)
	windowD = int64(86400)
)

// Result is the outcome of one filter evaluation.
type Result struct {
	Verdict policy.Verdict
	Reason  policy.Reason
	// Directives for the HTTP layer, e.g. clearing the JS cookie after a
	// cookie-counter self-heal.
	Directives []visitor.Directive
}

// Engine runs the behavioral checks against the driver-backed filter table.
type Engine struct {
	drv driver.Driver
	cfg config.FiltersConfig
	log zerolog.Logger
}

// NewEngine creates a filter engine over the given driver.
func NewEngine(drv driver.Driver, cfg config.FiltersConfig, log zerolog.Logger) *Engine {
	return &Engine{drv: drv, cfg: cfg, log: log.With().Str("component", "filter").Logger()}
}

// Evaluate runs all enabled checks for this visit, persisting the updated
// filter record. The first visit only initializes the record and allows.
// A rejection short-circuits the remaining checks.
func (e *Engine) Evaluate(v *visitor.Visit, now int64) (Result, error) {
	rec, found, err := driver.GetFilter(e.drv, v.IP)
	if err != nil {
		return Result{}, fmt.Errorf("loading filter record: %w", err)
	}

	if !found {
		rec = &driver.FilterRecord{
			IP:         v.IP,
			Hostname:   v.Hostname,
			SessionID:  v.SessionID,
			LastTime:   now,
			PageviewsS: 1, PageviewsM: 1, PageviewsH: 1, PageviewsD: 1,
			FirstTimeS: now, FirstTimeM: now, FirstTimeH: now, FirstTimeD: now,
		}
		if err := driver.SaveFilter(e.drv, rec); err != nil {
			return Result{}, fmt.Errorf("saving filter record: %w", err)
		}
		return Result{Verdict: policy.VerdictAllow}, nil
	}

	// Counters are bumped against the values loaded this call; a window
	// reset below zeroes them so the next visit starts at 1 again.
	rec.PageviewsS++
	rec.PageviewsM++
	rec.PageviewsH++
	rec.PageviewsD++

	res := Result{Verdict: policy.VerdictAllow}
	flagged := false

	checks := []func(*driver.FilterRecord, *visitor.Visit, int64, *Result) (bool, policy.Reason){
		e.checkReferer,
		e.checkSession,
		e.checkCookie,
		e.checkFrequency,
	}
	for _, check := range checks {
		f, reject := check(rec, v, now, &res)
		flagged = flagged || f
		if reject != policy.ReasonNone {
			res.Verdict = policy.VerdictTempDeny
			res.Reason = reject
			e.log.Info().Str("ip", v.IP).Str("reason", reject.Text()).Msg("visitor rejected")
			break
		}
	}

	if flagged && rec.FirstTimeFlag == 0 {
		rec.FirstTimeFlag = now
	}

	// Flags that survived long enough without escalating get a fresh start.
	if rec.FirstTimeFlag != 0 && now-rec.FirstTimeFlag > e.cfg.TimeResetLimit {
		rec.FlagEmptyReferer = 0
		rec.FlagJSCookie = 0
		rec.FlagMultiSession = 0
		rec.FirstTimeFlag = 0
	}

	rec.Hostname = v.Hostname
	rec.SessionID = v.SessionID
	rec.LastTime = now

	if err := driver.SaveFilter(e.drv, rec); err != nil {
		return Result{}, fmt.Errorf("saving filter record: %w", err)
	}
	return res, nil
}

// checkReferer raises the empty-referer flag. Skipped when the previous
// visit was recent; normal navigation produces bursts without referers.
func (e *Engine) checkReferer(rec *driver.FilterRecord, v *visitor.Visit, now int64, _ *Result) (bool, policy.Reason) {
	if !e.cfg.Referer.Enabled {
		return false, policy.ReasonNone
	}
	if now-rec.LastTime <= e.cfg.Referer.IntervalCheck {
		return false, policy.ReasonNone
	}
	if v.Referer != "" {
		return false, policy.ReasonNone
	}
	rec.FlagEmptyReferer++
	if rec.FlagEmptyReferer > e.cfg.Referer.Limit {
		return true, policy.ReasonEmptyReferer
	}
	return true, policy.ReasonNone
}

// checkSession raises the multi-session flag when the session id changed
// since the last visit.
func (e *Engine) checkSession(rec *driver.FilterRecord, v *visitor.Visit, _ int64, _ *Result) (bool, policy.Reason) {
	if !e.cfg.Session.Enabled {
		return false, policy.ReasonNone
	}
	if v.SessionID == rec.SessionID {
		return false, policy.ReasonNone
	}
	rec.FlagMultiSession++
	if rec.FlagMultiSession > e.cfg.Session.Limit {
		return true, policy.ReasonTooManySessions
	}
	return true, policy.ReasonNone
}

// checkCookie verifies the JS-set cookie. The exact expected value counts a
// clean pageview; anything else raises the flag. Once the clean counter
// passes the limit both counters restart and the client cookie is cleared so
// the cycle can begin again.
func (e *Engine) checkCookie(rec *driver.FilterRecord, v *visitor.Visit, _ int64, res *Result) (bool, policy.Reason) {
	if !e.cfg.Cookie.Enabled {
		return false, policy.ReasonNone
	}
	if v.HasCookie && v.CookieValue == e.cfg.Cookie.Value {
		rec.PageviewsCookie++
		if rec.PageviewsCookie > e.cfg.Cookie.Limit {
			rec.PageviewsCookie = 0
			rec.FlagJSCookie = 0
			res.Directives = append(res.Directives, visitor.Directive{ClearCookie: e.cfg.Cookie.Name})
		}
		return false, policy.ReasonNone
	}
	rec.FlagJSCookie++
	if rec.FlagJSCookie > e.cfg.Cookie.Limit {
		return true, policy.ReasonEmptyJSCookie
	}
	return true, policy.ReasonNone
}

// checkFrequency enforces the four pageview quotas. Expired windows are
// collected first and reset only after every unit was checked.
func (e *Engine) checkFrequency(rec *driver.FilterRecord, _ *visitor.Visit, now int64, _ *Result) (bool, policy.Reason) {
	if !e.cfg.Frequency.Enabled {
		return false, policy.ReasonNone
	}

	units := []struct {
		window    int64
		quota     int64
		pageviews *int64
		firstTime *int64
		reason    policy.Reason
	}{
		{windowS, e.cfg.Frequency.QuotaS, &rec.PageviewsS, &rec.FirstTimeS, policy.ReasonReachSecondlyLimit},
		{windowM, e.cfg.Frequency.QuotaM, &rec.PageviewsM, &rec.FirstTimeM, policy.ReasonReachMinutelyLimit},
		{windowH, e.cfg.Frequency.QuotaH, &rec.PageviewsH, &rec.FirstTimeH, policy.ReasonReachHourlyLimit},
		{windowD, e.cfg.Frequency.QuotaD, &rec.PageviewsD, &rec.FirstTimeD, policy.ReasonReachDailyLimit},
	}

	var pending []int
	for i, u := range units {
		// The extra second keeps a visit landing exactly on the window
		// edge counted against the old window.
		if now-*u.firstTime >= u.window+1 {
			pending = append(pending, i)
			continue
		}
		if *u.pageviews > u.quota {
			return false, u.reason
		}
	}
	for _, i := range pending {
		*units[i].firstTime = rec.LastTime
		*units[i].pageviews = 0
	}
	return false, policy.ReasonNone
}
