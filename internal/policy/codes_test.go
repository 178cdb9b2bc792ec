package policy

import "testing"

func TestVerdictCodes(t *testing.T) {
	// These numeric values are persisted in records and audit logs and must
	// never shift.
	if VerdictDeny != 0 || VerdictAllow != 1 || VerdictTempDeny != 2 || VerdictLimitSession != 3 {
		t.Error("verdict codes shifted")
	}
	if VerdictTempDeny.String() != "TEMP_DENY" {
		t.Errorf("got %q", VerdictTempDeny.String())
	}
	if Verdict(42).String() != "VERDICT(42)" {
		t.Errorf("got %q", Verdict(42).String())
	}
}

func TestRuleTypeVerdictMapping(t *testing.T) {
	cases := []struct {
		rt   RuleType
		want Verdict
	}{
		{RuleDeny, VerdictDeny},
		{RuleAllow, VerdictAllow},
		{RuleTempDeny, VerdictTempDeny},
		{RuleUnban, VerdictDeny},
	}
	for _, tc := range cases {
		if got := tc.rt.Verdict(); got != tc.want {
			t.Errorf("%s: got %v, want %v", tc.rt, got, tc.want)
		}
	}
	if RuleTempDeny.String() != "captcha" {
		t.Errorf("got %q", RuleTempDeny.String())
	}
}

func TestReasonText(t *testing.T) {
	if ReasonReachSecondlyLimit != 14 {
		t.Error("reason codes shifted")
	}
	if ReasonReachSecondlyLimit.Text() != "Secondly pageview limit reached." {
		t.Errorf("got %q", ReasonReachSecondlyLimit.Text())
	}
	if Reason(250).Text() != "Unknown reason (250)." {
		t.Errorf("got %q", Reason(250).Text())
	}
}
