// Package gather implements ICE candidate harvesting: discovering the
// HOST, SERVER-REFLEXIVE, RELAYED and statically-mapped candidates a
// component advertises, spec.md Section 4.4 "Harvesting", grounded on
// the tagged-harvester shape of the vendored github.com/gortc/ice
// Gatherer interface (captured before vendor/ was pruned, see
// DESIGN.md) and on gortcd's internal/allocator for relayed-candidate
// lifecycle management (refresh, permission/binding timeouts).
package gather

import (
	"context"
	"net"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/netice/ice/candidate"
	"github.com/netice/ice/internal/filter"
	"github.com/netice/ice/internal/workerpool"
	"github.com/netice/ice/socket"
	"github.com/netice/ice/transport"
)

func sortByPriority(cs candidate.Candidates) { sort.Sort(cs) }

// Harvester discovers candidates for one component over one base
// socket. Each concrete harvester covers exactly one candidate.Type
// except StaticMappingHarvester, which synthesizes SERVER-REFLEXIVE
// candidates from configured external mappings without a round trip.
type Harvester interface {
	// Gather blocks until candidates are discovered or ctx is done,
	// returning every candidate found (zero or more; a STUN harvester
	// against an unreachable server returns zero, not an error, per
	// spec.md Section 4.4 "Partial failure").
	Gather(ctx context.Context, componentID int, base socket.Socket) (candidate.Candidates, error)
}

// HarvestConfig is the single configuration surface every harvester
// constructor reads from, mirroring internal/server.Options's one
// flat options struct rather than per-harvester functional options
// (Open Question decision, see DESIGN.md).
type HarvestConfig struct {
	Log *zap.Logger

	// STUNServers are server-reflexive harvester targets.
	STUNServers []transport.Address
	// TURNServers are relayed-candidate harvester targets, paired with
	// long-term credentials.
	TURNServers []TURNServerConfig
	// StaticMappings are externally-known (internal, external) address
	// pairs, e.g. from a NAT with a well-known 1:1 port mapping.
	StaticMappings []StaticMapping

	// RequestTimeout becomes the TCPTimeout of the reflexive and relayed
	// harvesters' client transactions; 9.5s if zero. It bounds only
	// requests sent over TCP: UDP requests, which include every TURN
	// request, follow DefaultClientConfig's retransmission schedule.
	RequestTimeout time.Duration

	// AllowedInterfaces, BlockedInterfaces restrict which network
	// interfaces the host harvester enumerates, spec.md Section 10
	// "ALLOWED_INTERFACES, BLOCKED_INTERFACES".
	AllowedInterfaces []string
	BlockedInterfaces []string
	// AllowedAddresses, BlockedAddresses restrict which addresses the
	// host harvester advertises, spec.md Section 10 "ALLOWED_ADDRESSES,
	// BLOCKED_ADDRESSES".
	AllowedAddresses []net.IP
	BlockedAddresses []net.IP
	// DisableIPv6 and DisableLinkLocalAddresses exclude IPv6 and
	// link-local addresses from host harvesting, spec.md Section 10.
	DisableIPv6               bool
	DisableLinkLocalAddresses bool

	// AWSProvider, EnableAWSHarvester and ForceAWSHarvester wire the
	// out-of-scope EC2-metadata producer, spec.md Section 10
	// "ENABLE_AWS_HARVESTER, FORCE_AWS_HARVESTER". AWSProvider is nil by
	// default; a caller wanting the AWS harvester supplies one (see
	// AWSMetadataProvider, gather/aws.go).
	AWSProvider        AWSMetadataProvider
	EnableAWSHarvester bool
	ForceAWSHarvester  bool

	// MaxExtenderWorkers bounds how many extender harvesters (every
	// harvester but the host harvester: STUN, TURN, static-mapping,
	// AWS) may run concurrently, spec.md Section 5's "extender... runs
	// in parallel with siblings, bounded by a thread pool". Defaults to
	// 8 if zero.
	MaxExtenderWorkers int
}

// TURNServerConfig names one TURN server and the long-term credential
// used to authenticate Allocate/Refresh/CreatePermission requests
// against it.
type TURNServerConfig struct {
	Server   transport.Address
	Username string
	Password string
	Realm    string
}

// StaticMapping is one externally-known 1:1 NAT mapping, spec.md
// Section 4.4 "Static mappings".
type StaticMapping struct {
	Internal transport.Address
	External transport.Address
}

func (c HarvestConfig) log() *zap.Logger {
	if c.Log != nil {
		return c.Log
	}
	return zap.NewNop()
}

func (c HarvestConfig) requestTimeout() time.Duration {
	if c.RequestTimeout > 0 {
		return c.RequestTimeout
	}
	return 9500 * time.Millisecond
}

func (c HarvestConfig) maxExtenderWorkers() int {
	if c.MaxExtenderWorkers > 0 {
		return c.MaxExtenderWorkers
	}
	return 8
}

// Gatherer runs every configured harvester for one component over
// base and returns the union of their candidates with redundant
// entries eliminated, spec.md Section 4.4 "Harvesting pipeline".
type Gatherer struct {
	cfg HarvestConfig
}

// NewGatherer builds a Gatherer from cfg.
func NewGatherer(cfg HarvestConfig) *Gatherer { return &Gatherer{cfg: cfg} }

// Gather runs the host harvester synchronously (spec.md Section 5: a
// host harvester "must not block and must not depend on other
// harvesters"), then runs every configured STUN/TURN/static-mapping/
// AWS extender harvester on a bounded worker pool (spec.md Section 5:
// an extender "may depend on hosts and may block; runs in parallel
// with siblings, bounded by a thread pool"), and returns the combined,
// priority-sorted, redundancy-eliminated candidate set.
func (g *Gatherer) Gather(ctx context.Context, componentID int, base socket.Socket) (candidate.Candidates, error) {
	host := NewHostHarvester()
	host.Interfaces = filter.NewInterfaceFilter(g.cfg.AllowedInterfaces, g.cfg.BlockedInterfaces)
	if len(g.cfg.AllowedAddresses) > 0 || len(g.cfg.BlockedAddresses) > 0 {
		host.Addresses = filter.NewAddressFilter(g.cfg.AllowedAddresses, g.cfg.BlockedAddresses)
	}
	host.DisableIPv6 = g.cfg.DisableIPv6
	host.DisableLinkLocal = g.cfg.DisableLinkLocalAddresses

	var all candidate.Candidates
	hostCandidates, err := host.Gather(ctx, componentID, base)
	if err != nil {
		g.cfg.log().Debug("host harvester failed", zap.Error(err))
	} else {
		all = append(all, hostCandidates...)
	}

	var extenders []Harvester
	for _, s := range g.cfg.STUNServers {
		extenders = append(extenders, NewReflexiveHarvester(s, g.cfg.requestTimeout(), g.cfg.log()))
	}
	for _, t := range g.cfg.TURNServers {
		extenders = append(extenders, NewRelayedHarvester(t, g.cfg.requestTimeout(), g.cfg.log()))
	}
	if len(g.cfg.StaticMappings) > 0 {
		extenders = append(extenders, NewStaticMappingHarvester(g.cfg.StaticMappings))
	}
	if g.cfg.EnableAWSHarvester && g.cfg.AWSProvider != nil {
		extenders = append(extenders, NewAWSHarvester(g.cfg.AWSProvider, g.cfg.ForceAWSHarvester))
	}

	if len(extenders) > 0 {
		pool := workerpool.New(g.cfg.maxExtenderWorkers(), g.cfg.log())
		var mu sync.Mutex
		for _, h := range extenders {
			h := h
			pool.Go(func() {
				cs, err := h.Gather(ctx, componentID, base)
				if err != nil {
					// Partial failure: one extender erroring does not abort
					// the others, spec.md Section 4.4.
					g.cfg.log().Debug("extender harvester failed", zap.Error(err))
					return
				}
				mu.Lock()
				all = append(all, cs...)
				mu.Unlock()
			})
		}
		pool.Wait()
	}

	sortByPriority(all)
	return candidate.EliminateRedundant(all), nil
}
