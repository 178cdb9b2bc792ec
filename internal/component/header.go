package component

import (
	"strings"

	"github.com/coal/gatetrap/internal/config"
	"github.com/coal/gatetrap/internal/policy"
	"github.com/coal/gatetrap/internal/visitor"
)

// Header denies requests carrying a configured header. An entry with an
// empty value denies on presence alone; a non-empty value denies only when
// the header contains it.
type Header struct {
	deny map[string]string
}

// NewHeader builds the component.
func NewHeader(cfg config.HeaderConfig) *Header {
	return &Header{deny: cfg.Deny}
}

// Name implements Component.
func (h *Header) Name() string { return "header" }

// Check implements Component.
func (h *Header) Check(v *visitor.Visit) CheckResult {
	if v.Header == nil {
		return CheckResult{}
	}
	for name, want := range h.deny {
		got := v.Header.Get(name)
		if got == "" {
			continue
		}
		if want == "" || strings.Contains(got, want) {
			return deny(policy.ReasonComponentHeader)
		}
	}
	return CheckResult{}
}
