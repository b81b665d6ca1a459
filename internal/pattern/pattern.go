// Package pattern implements allow/deny regular-expression rules used to
// select which platform resources a source extracts.
package pattern

import (
	"fmt"
	"regexp"

	"github.com/datascienceChris/datahub/internal/config"
)

// CatchAll matches every resource name.
const CatchAll = ".*"

// AllowDeny admits a name iff it fully matches at least one allow pattern and
// no deny pattern. Deny takes precedence. An empty allow list admits nothing.
type AllowDeny struct {
	allowSrc   []string
	denySrc    []string
	allow      []*regexp.Regexp
	deny       []*regexp.Regexp
	ignoreCase bool
}

// Option customizes pattern compilation.
type Option func(*AllowDeny)

// WithIgnoreCase compiles every pattern case-insensitively.
func WithIgnoreCase() Option {
	return func(p *AllowDeny) { p.ignoreCase = true }
}

// New compiles the allow and deny lists. A malformed pattern fails here, not
// at match time.
func New(allow, deny []string, opts ...Option) (*AllowDeny, error) {
	p := &AllowDeny{
		allowSrc: append([]string(nil), allow...),
		denySrc:  append([]string(nil), deny...),
	}
	for _, opt := range opts {
		opt(p)
	}
	var err error
	if p.allow, err = p.compile("allow", allow); err != nil {
		return nil, err
	}
	if p.deny, err = p.compile("deny", deny); err != nil {
		return nil, err
	}
	return p, nil
}

// MustNew is New that panics on a malformed pattern. For package-level defaults.
func MustNew(allow, deny []string, opts ...Option) *AllowDeny {
	p, err := New(allow, deny, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// AllowAll admits every name.
func AllowAll() *AllowDeny {
	return MustNew([]string{CatchAll}, nil)
}

// FromConfig reads {allow, deny, ignoreCase} from a recipe mapping. Lists that
// are absent fall back to the ones of fallback; a nil fallback means AllowAll.
func FromConfig(params map[string]any, fallback *AllowDeny) (*AllowDeny, error) {
	if fallback == nil {
		fallback = AllowAll()
	}
	if params == nil {
		return fallback, nil
	}
	allow, ok, err := config.StringSlice(params, "allow")
	if err != nil {
		return nil, err
	}
	if !ok {
		allow = fallback.Allow()
	}
	deny, ok, err := config.StringSlice(params, "deny")
	if err != nil {
		return nil, err
	}
	if !ok {
		deny = fallback.Deny()
	}
	ignoreCase, err := config.Bool(params, fallback.ignoreCase, "ignoreCase", "ignore_case")
	if err != nil {
		return nil, err
	}
	if unknown := config.UnknownKeys(params, "allow", "deny", "ignoreCase", "ignore_case"); len(unknown) > 0 {
		return nil, fmt.Errorf("unknown pattern keys %v", unknown)
	}
	var opts []Option
	if ignoreCase {
		opts = append(opts, WithIgnoreCase())
	}
	return New(allow, deny, opts...)
}

// Allowed reports whether name passes the rule set.
func (p *AllowDeny) Allowed(name string) bool {
	for _, re := range p.deny {
		if re.MatchString(name) {
			return false
		}
	}
	for _, re := range p.allow {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// Allow returns a copy of the allow patterns as configured.
func (p *AllowDeny) Allow() []string { return append([]string(nil), p.allowSrc...) }

// Deny returns a copy of the deny patterns as configured.
func (p *AllowDeny) Deny() []string { return append([]string(nil), p.denySrc...) }

func (p *AllowDeny) String() string {
	return fmt.Sprintf("allow=%q deny=%q", p.allowSrc, p.denySrc)
}

func (p *AllowDeny) compile(list string, patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for i, raw := range patterns {
		expr := "^(?:" + raw + ")$"
		if p.ignoreCase {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("%s[%d] %q: %w", list, i, raw, err)
		}
		out = append(out, re)
	}
	return out, nil
}
