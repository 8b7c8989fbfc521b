// Package filter implements address and interface-name allow/deny
// lists for candidate harvesting, spec.md Section 10
// "ALLOWED_INTERFACES, BLOCKED_INTERFACES, ALLOWED_ADDRESSES,
// BLOCKED_ADDRESSES", adapted from gortcd's internal/filter (address
// filtering for TURN relay permissions) by replacing its gortc.io/turn
// Addr parameter with net.IP, since nothing in this module depends on
// a turn.Addr (see DESIGN.md), and adding an interface-name Rule
// variant the teacher's TURN relay never needed.
package filter

import "net"

// Action is possible action that can be applied to address.
type Action byte

var actionToStr = map[Action]string{
	Pass:  "pass",
	Allow: "allow",
	Deny:  "deny",
}

func (a Action) String() string {
	return actionToStr[a]
}

// Possible action list.
const (
	Pass Action = iota
	Allow
	Deny
)

// Rule represents a filtering rule over an IP address.
type Rule interface {
	Action(ip net.IP) Action
}

type subnetRule struct {
	action Action
	net    *net.IPNet
}

func (r subnetRule) Action(ip net.IP) Action {
	if r.net.Contains(ip) {
		return r.action
	}
	return Pass
}

// AllowNet allows any address from subnet.
func AllowNet(subnet string) (Rule, error) {
	return StaticNetRule(Allow, subnet)
}

// ForbidNet blocks any address from subnet.
func ForbidNet(subnet string) (Rule, error) {
	return StaticNetRule(Deny, subnet)
}

// StaticNetRule returns a static rule that applies action to every
// address contained in subnet.
func StaticNetRule(action Action, subnet string) (Rule, error) {
	_, parsedNet, err := net.ParseCIDR(subnet)
	if err != nil {
		return nil, err
	}
	return subnetRule{action: action, net: parsedNet}, nil
}

type allowAll struct{}

func (allowAll) Action(net.IP) Action { return Allow }

// AllowAll is a Rule that always returns Allow.
var AllowAll Rule = allowAll{}

// List is a list of rules with a default action.
type List struct {
	action Action
	rules  []Rule
}

// Action implements Rule.
//
// Returns the first matched rule's action (Allow or Deny, not Pass),
// or the list's default action if none of the rules matched.
func (f *List) Action(ip net.IP) Action {
	for i := range f.rules {
		a := f.rules[i].Action(ip)
		if a == Pass {
			continue
		}
		return a
	}
	return f.action
}

// NewFilter initializes a List with the given default action and rules.
func NewFilter(action Action, rules ...Rule) *List { return &List{rules: rules, action: action} }

// NewAddressFilter builds a List from explicit allow/block IP
// literals, spec.md Section 10 "ALLOWED_ADDRESSES, BLOCKED_ADDRESSES":
// the allow list takes precedence over the block list.
func NewAddressFilter(allowed, blocked []net.IP) *List {
	rules := make([]Rule, 0, len(allowed)+len(blocked))
	for _, ip := range allowed {
		rules = append(rules, hostRule{ip: ip, action: Allow})
	}
	for _, ip := range blocked {
		rules = append(rules, hostRule{ip: ip, action: Deny})
	}
	return NewFilter(Pass, rules...)
}

type hostRule struct {
	ip     net.IP
	action Action
}

func (r hostRule) Action(ip net.IP) Action {
	if r.ip.Equal(ip) {
		return r.action
	}
	return Pass
}

// InterfaceNames filters by network interface name rather than
// address, spec.md Section 10 "ALLOWED_INTERFACES, BLOCKED_INTERFACES":
// the allow list, if non-empty, takes precedence and excludes every
// name not listed in it.
type InterfaceNames struct {
	allowed map[string]bool
	blocked map[string]bool
}

// NewInterfaceFilter builds an InterfaceNames filter from configured
// allow/block lists.
func NewInterfaceFilter(allowed, blocked []string) InterfaceNames {
	f := InterfaceNames{}
	if len(allowed) > 0 {
		f.allowed = toSet(allowed)
	}
	if len(blocked) > 0 {
		f.blocked = toSet(blocked)
	}
	return f
}

// Allowed reports whether name passes this filter.
func (f InterfaceNames) Allowed(name string) bool {
	if f.allowed != nil {
		return f.allowed[name]
	}
	if f.blocked != nil {
		return !f.blocked[name]
	}
	return true
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}
