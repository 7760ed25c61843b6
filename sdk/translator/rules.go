package translator

import (
	"fmt"
	"regexp"
	"sync"
)

// AnyDomain keys rules that apply regardless of the context's domain.
const AnyDomain = "*"

// Rule rewrites text before or after translation.
type Rule func(text string, tctx Context) string

// RuleSpec is the declarative form of a regex substitution rule.
type RuleSpec struct {
	Pattern string `yaml:"pattern" json:"pattern"`
	Replace string `yaml:"replace" json:"replace"`
}

// DomainRules groups the pre- and post-translation rules of one domain.
type DomainRules struct {
	Pre  []RuleSpec `yaml:"pre" json:"pre"`
	Post []RuleSpec `yaml:"post" json:"post"`
}

// RuleRegistry holds pre- and post-translation rules keyed by domain.
// Rules run in registration order, AnyDomain rules first.
type RuleRegistry struct {
	mu   sync.RWMutex
	pre  map[string][]Rule
	post map[string][]Rule
}

// NewRuleRegistry creates an empty RuleRegistry.
func NewRuleRegistry() *RuleRegistry {
	return &RuleRegistry{
		pre:  make(map[string][]Rule),
		post: make(map[string][]Rule),
	}
}

// RegisterPre adds a rule applied to source text of domain.
func (rr *RuleRegistry) RegisterPre(domain string, r Rule) {
	if r == nil {
		return
	}
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.pre[domain] = append(rr.pre[domain], r)
}

// RegisterPost adds a rule applied to translated text of domain.
func (rr *RuleRegistry) RegisterPost(domain string, r Rule) {
	if r == nil {
		return
	}
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.post[domain] = append(rr.post[domain], r)
}

// Load compiles declarative rules and registers them.
func (rr *RuleRegistry) Load(rules map[string]DomainRules) error {
	for domain, dr := range rules {
		for _, spec := range dr.Pre {
			r, err := RegexRule(spec.Pattern, spec.Replace)
			if err != nil {
				return fmt.Errorf("domain %s pre rule: %w", domain, err)
			}
			rr.RegisterPre(domain, r)
		}
		for _, spec := range dr.Post {
			r, err := RegexRule(spec.Pattern, spec.Replace)
			if err != nil {
				return fmt.Errorf("domain %s post rule: %w", domain, err)
			}
			rr.RegisterPost(domain, r)
		}
	}
	return nil
}

// ApplyPre runs the pre rules for the context's domain.
func (rr *RuleRegistry) ApplyPre(text string, tctx Context) string {
	return rr.apply(rr.pre, text, tctx)
}

// ApplyPost runs the post rules for the context's domain.
func (rr *RuleRegistry) ApplyPost(text string, tctx Context) string {
	return rr.apply(rr.post, text, tctx)
}

func (rr *RuleRegistry) apply(set map[string][]Rule, text string, tctx Context) string {
	rr.mu.RLock()
	defer rr.mu.RUnlock()

	for _, r := range set[AnyDomain] {
		text = r(text, tctx)
	}
	if domain := tctx.String(KeyDomain); domain != "" && domain != AnyDomain {
		for _, r := range set[domain] {
			text = r(text, tctx)
		}
	}
	return text
}

// Clear removes all rules.
func (rr *RuleRegistry) Clear() {
	rr.mu.Lock()
	defer rr.mu.Unlock()
	rr.pre = make(map[string][]Rule)
	rr.post = make(map[string][]Rule)
}

// Count returns the number of pre and post rules registered for domain.
func (rr *RuleRegistry) Count(domain string) (pre, post int) {
	rr.mu.RLock()
	defer rr.mu.RUnlock()
	return len(rr.pre[domain]), len(rr.post[domain])
}

// RegexRule replaces every match of pattern with replacement ($1 expansion allowed).
func RegexRule(pattern, replacement string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	return func(text string, _ Context) string {
		return re.ReplaceAllString(text, replacement)
	}, nil
}

// ConditionalRule runs r only when cond holds for the context.
func ConditionalRule(cond func(Context) bool, r Rule) Rule {
	return func(text string, tctx Context) string {
		if cond(tctx) {
			return r(text, tctx)
		}
		return text
	}
}

// ChainRules composes rules left to right, skipping nil entries.
func ChainRules(rules ...Rule) Rule {
	return func(text string, tctx Context) string {
		for _, r := range rules {
			if r != nil {
				text = r(text, tctx)
			}
		}
		return text
	}
}
