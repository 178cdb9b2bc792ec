package component

import (
	"net/netip"

	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/policy"
	"github.com/coal/gatetrap/internal/visitor"
)

// IPList matches the visitor against standing allow and deny lists of
// literal addresses and CIDR prefixes. Deny wins over allow.
type IPList struct {
	allowAddrs map[string]struct{}
	denyAddrs  map[string]struct{}
	allowNets  []netip.Prefix
	denyNets   []netip.Prefix
}

// NewIPList builds the component from config; malformed entries are
// silently skipped, matching the tolerant list handling of the admin side.
func NewIPList(cfg config.IPListConfig) *IPList {
	l := &IPList{
		allowAddrs: make(map[string]struct{}),
		denyAddrs:  make(map[string]struct{}),
	}
	for _, e := range cfg.Allow {
		if p, err := netip.ParsePrefix(e); err == nil {
			l.allowNets = append(l.allowNets, p)
		} else if a, err := netip.ParseAddr(e); err == nil {
			l.allowAddrs[a.String()] = struct{}{}
		}
	}
	for _, e := range cfg.Deny {
		if p, err := netip.ParsePrefix(e); err == nil {
			l.denyNets = append(l.denyNets, p)
		} else if a, err := netip.ParseAddr(e); err == nil {
			l.denyAddrs[a.String()] = struct{}{}
		}
	}
	return l
}

// Name implements Component.
func (l *IPList) Name() string { return "ip_list" }

// Check implements Component.
func (l *IPList) Check(v *visitor.Visit) CheckResult {
	addr, err := netip.ParseAddr(v.IP)
	if err != nil {
		return deny(policy.ReasonInvalidIP)
	}
	key := addr.String()

	if _, ok := l.denyAddrs[key]; ok {
		return deny(policy.ReasonDenyIP)
	}
	for _, p := range l.denyNets {
		if p.Contains(addr) {
			return deny(policy.ReasonDenyIP)
		}
	}

	if _, ok := l.allowAddrs[key]; ok {
		return allow(policy.ReasonAllowIP)
	}
	for _, p := range l.allowNets {
		if p.Contains(addr) {
			return allow(policy.ReasonAllowIP)
		}
	}
	return CheckResult{}
}
