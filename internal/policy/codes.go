package policy

import "fmt"

// Verdict is the terminal pipeline response for a single request.
type Verdict int

const (
	VerdictDeny         Verdict = 0
	VerdictAllow        Verdict = 1
	VerdictTempDeny     Verdict = 2
	VerdictLimitSession Verdict = 3
)

// String returns the canonical verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictDeny:
		return "DENY"
	case VerdictAllow:
		return "ALLOW"
	case VerdictTempDeny:
		return "TEMP_DENY"
	case VerdictLimitSession:
		return "LIMIT_SESSION"
	default:
		return fmt.Sprintf("VERDICT(%d)", int(v))
	}
}

// RuleType is the standing verdict stored in a rule record. The numeric
// values are persisted in driver records and must stay stable.
type RuleType int

const (
	RuleDeny     RuleType = 0
	RuleAllow    RuleType = 1
	RuleTempDeny RuleType = 2
	RuleUnban    RuleType = 9
)

// String returns the canonical rule type name.
func (t RuleType) String() string {
	switch t {
	case RuleDeny:
		return "deny"
	case RuleAllow:
		return "allow"
	case RuleTempDeny:
		return "captcha"
	case RuleUnban:
		return "unban"
	default:
		return fmt.Sprintf("rule(%d)", int(t))
	}
}

// Verdict maps a standing rule type to the pipeline verdict it produces.
func (t RuleType) Verdict() Verdict {
	switch t {
	case RuleAllow:
		return VerdictAllow
	case RuleTempDeny:
		return VerdictTempDeny
	default:
		return VerdictDeny
	}
}

// Reason is the enumerated cause attached to a verdict. The numeric values
// are persisted in rule records and audit logs and must stay stable.
type Reason int

const (
	ReasonNone Reason = 0

	ReasonTooManySessions Reason = 1
	ReasonTooManyAccesses Reason = 2
	ReasonEmptyJSCookie   Reason = 3
	ReasonEmptyReferer    Reason = 4

	ReasonReachDailyLimit    Reason = 11
	ReasonReachHourlyLimit   Reason = 12
	ReasonReachMinutelyLimit Reason = 13
	ReasonReachSecondlyLimit Reason = 14

	ReasonInvalidIP Reason = 40
	ReasonDenyIP    Reason = 41
	ReasonAllowIP   Reason = 42

	ReasonComponentIP           Reason = 81
	ReasonComponentRDNS         Reason = 82
	ReasonComponentHeader       Reason = 83
	ReasonComponentUserAgent    Reason = 84
	ReasonComponentTrustedRobot Reason = 85

	ReasonManualBan      Reason = 99
	ReasonIsSearchEngine Reason = 100
	ReasonIsGoogle       Reason = 101
	ReasonIsBing         Reason = 102
	ReasonIsYahoo        Reason = 103
)

var reasonTexts = map[Reason]string{
	ReasonNone:                  "none",
	ReasonTooManySessions:       "Too many sessions.",
	ReasonTooManyAccesses:       "Too many attempts.",
	ReasonEmptyJSCookie:         "Unable to create JS cookies.",
	ReasonEmptyReferer:          "Empty referrer.",
	ReasonReachDailyLimit:       "Daily pageview limit reached.",
	ReasonReachHourlyLimit:      "Hourly pageview limit reached.",
	ReasonReachMinutelyLimit:    "Minutely pageview limit reached.",
	ReasonReachSecondlyLimit:    "Secondly pageview limit reached.",
	ReasonInvalidIP:             "Invalid IP address.",
	ReasonDenyIP:                "IP address denied by rule list.",
	ReasonAllowIP:               "IP address allowed by rule list.",
	ReasonComponentIP:           "Denied by IP component.",
	ReasonComponentRDNS:         "Denied by RDNS component.",
	ReasonComponentHeader:       "Denied by header component.",
	ReasonComponentUserAgent:    "Denied by user-agent component.",
	ReasonComponentTrustedRobot: "Fake search engine bot.",
	ReasonManualBan:             "Banned by administrator.",
	ReasonIsSearchEngine:        "Verified search engine bot.",
	ReasonIsGoogle:              "Verified Google bot.",
	ReasonIsBing:                "Verified Bing bot.",
	ReasonIsYahoo:               "Verified Yahoo bot.",
}

// Text returns the human-readable reason line used in notifications and
// audit entries.
func (r Reason) Text() string {
	if t, ok := reasonTexts[r]; ok {
		return t
	}
	return fmt.Sprintf("Unknown reason (%d).", int(r))
}

// HandleType names the escalation stage that produced a notification.
type HandleType string

const (
	HandleDataCircle     HandleType = "data_circle"
	HandleSystemFirewall HandleType = "system_firewall"
)
