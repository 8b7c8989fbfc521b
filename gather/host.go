package gather

import (
	"context"
	"net"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/internal/filter"
	"github.com/netice/ice/socket"
	"github.com/netice/ice/transport"
)

// HostHarvester enumerates local interface addresses as HOST
// candidates, spec.md Section 4.4 "Host candidates", grounded on the
// vendored gortc/ice host.go's HostAddresses (interface enumeration)
// and processDualStack (RFC 8421 local-preference interleaving between
// address families) before vendor/ was pruned, generalized with
// gortcd's internal/filter rules (adapted, see DESIGN.md) so
// ALLOWED_INTERFACES/BLOCKED_INTERFACES and
// ALLOWED_ADDRESSES/BLOCKED_ADDRESSES (spec.md Section 10) apply at
// harvest time rather than only at relay-permission time.
type HostHarvester struct {
	Interfaces       filter.InterfaceNames
	Addresses        *filter.List
	DisableIPv6      bool
	DisableLinkLocal bool
}

// NewHostHarvester constructs a HostHarvester with no filtering; set
// its exported fields to apply interface/address policy.
func NewHostHarvester() *HostHarvester { return &HostHarvester{} }

// Gather lists interface unicast addresses of every address family,
// taking base's port and protocol, and returns one HOST candidate per
// address passing the configured
// interface and address filters, local-preference-ranked per RFC 8421.
func (h *HostHarvester) Gather(ctx context.Context, componentID int, base socket.Socket) (candidate.Candidates, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	local := base.LocalAddr()
	var cs candidate.Candidates
	for _, iface := range ifaces {
		if !h.Interfaces.Allowed(iface.Name) {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipNet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP
			if ip.IsLoopback() || ip.IsMulticast() || ip.IsUnspecified() {
				continue
			}
			if h.DisableIPv6 && ip.To4() == nil {
				continue
			}
			if h.DisableLinkLocal && (ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast()) {
				continue
			}
			if h.Addresses != nil && h.Addresses.Action(ip) == filter.Deny {
				continue
			}
			ta := transport.Address{IP: ip, Port: local.Port, Proto: local.Proto}
			c := candidate.Candidate{
				TransportAddress: ta,
				Base:             ta,
				Type:             candidate.Host,
				ComponentID:      componentID,
			}
			c.Foundation = candidate.ComputeFoundation(candidate.Host, ta, transport.Address{}, ta.Proto)
			cs = append(cs, c)
		}
	}
	candidate.AssignLocalPreferences(cs)
	return cs, nil
}
