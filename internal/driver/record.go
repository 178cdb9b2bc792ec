package driver

import (
	"encoding/json"
	"fmt"

	"github.com/coal/gatetrap/internal/policy"
)

// FilterRecord accumulates per-visitor behavioral counters. One record per
// visitor in the filter table; created on first visit, updated every visit.
type FilterRecord struct {
	IP        string `json:"ip"`
	Hostname  string `json:"hostname"`
	SessionID string `json:"session_id"`
	LastTime  int64  `json:"last_time"`

	PageviewsS int64 `json:"pageviews_s"`
	PageviewsM int64 `json:"pageviews_m"`
	PageviewsH int64 `json:"pageviews_h"`
	PageviewsD int64 `json:"pageviews_d"`

	FirstTimeS int64 `json:"first_time_s"`
	FirstTimeM int64 `json:"first_time_m"`
	FirstTimeH int64 `json:"first_time_h"`
	FirstTimeD int64 `json:"first_time_d"`

	FlagEmptyReferer int64 `json:"flag_empty_referer"`
	FlagJSCookie     int64 `json:"flag_js_cookie"`
	FlagMultiSession int64 `json:"flag_multi_session"`
	PageviewsCookie  int64 `json:"pageviews_cookie"`

	// FirstTimeFlag is the time the first flag was raised, zero when no
	// flag is outstanding.
	FirstTimeFlag int64 `json:"first_time_flag"`
}

// RuleRecord is a standing allow/deny/temp-deny rule for one visitor.
type RuleRecord struct {
	IP       string          `json:"log_ip"`
	Hostname string          `json:"ip_resolve"`
	Type     policy.RuleType `json:"type"`
	Reason   policy.Reason   `json:"reason"`
	Time     int64           `json:"time"`
	Attempts int64           `json:"attempts"`
}

// SessionRecord is one sighting of an online session.
type SessionRecord struct {
	ID             string `json:"id"`
	IP             string `json:"ip"`
	Time           int64  `json:"time"`
	Microtimestamp int64  `json:"microtimestamp"`
}

// GetFilter loads and decodes the visitor's filter record.
func GetFilter(d Driver, ip string) (*FilterRecord, bool, error) {
	raw, ok, err := d.Get(ip, TableFilter)
	if err != nil || !ok {
		return nil, false, err
	}
	var rec FilterRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decoding filter record for %s: %w", ip, err)
	}
	return &rec, true, nil
}

// SaveFilter encodes and upserts the visitor's filter record.
func SaveFilter(d Driver, rec *FilterRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding filter record for %s: %w", rec.IP, err)
	}
	return d.Save(rec.IP, raw, TableFilter)
}

// GetRule loads and decodes the visitor's standing rule, if any.
func GetRule(d Driver, ip string) (*RuleRecord, bool, error) {
	raw, ok, err := d.Get(ip, TableRule)
	if err != nil || !ok {
		return nil, false, err
	}
	var rec RuleRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, false, fmt.Errorf("decoding rule record for %s: %w", ip, err)
	}
	return &rec, true, nil
}

// SaveRule encodes and upserts the visitor's standing rule.
func SaveRule(d Driver, rec *RuleRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding rule record for %s: %w", rec.IP, err)
	}
	return d.Save(rec.IP, raw, TableRule)
}

// DeleteRule removes the visitor's standing rule.
func DeleteRule(d Driver, ip string) error {
	return d.Delete(ip, TableRule)
}

// GetAllRules loads every standing rule in the current channel.
func GetAllRules(d Driver) ([]*RuleRecord, error) {
	raws, err := d.GetAll(TableRule)
	if err != nil {
		return nil, err
	}
	recs := make([]*RuleRecord, 0, len(raws))
	for _, raw := range raws {
		var rec RuleRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding rule record: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}

// SaveSession encodes and upserts a session record keyed by session id.
func SaveSession(d Driver, rec *SessionRecord) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding session record %s: %w", rec.ID, err)
	}
	return d.Save(rec.ID, raw, TableSession)
}

// DeleteSession removes a session record by id.
func DeleteSession(d Driver, id string) error {
	return d.Delete(id, TableSession)
}

// GetAllSessions loads every session record in the current channel.
func GetAllSessions(d Driver) ([]*SessionRecord, error) {
	raws, err := d.GetAll(TableSession)
	if err != nil {
		return nil, err
	}
	recs := make([]*SessionRecord, 0, len(raws))
	for _, raw := range raws {
		var rec SessionRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decoding session record: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}
