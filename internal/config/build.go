package config

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/netice/ice"
	"github.com/netice/ice/gather"
	"github.com/netice/ice/internal/metrics"
	"github.com/netice/ice/socket"
	"github.com/netice/ice/transaction"
)

// Built is the typed configuration a running icedaemon process
// assembles from a decoded Raw, spec.md Section 10's "decoded into a
// HarvestConfig/AgentConfig pair (see Design Notes §9's 'treat the
// config object as canonical')".
type Built struct {
	Agent      ice.Config
	Bind       socket.BindOptions
	Management RawManagement
	Metrics    *metrics.Metrics
	Log        *zap.Logger
}

// Build converts a decoded Raw into a Built, resolving the agent role
// string and assembling gather.HarvestConfig from the harvest section.
func Build(raw *Raw) (*Built, error) {
	log, err := raw.Log.Build()
	if err != nil {
		return nil, errors.Wrap(err, "build logger")
	}

	role, err := parseRole(raw.Agent.Role)
	if err != nil {
		return nil, err
	}

	harvest := gather.HarvestConfig{
		Log:                       log,
		STUNServers:               raw.Harvest.STUNMappingHarvesterAddresses,
		AllowedInterfaces:         raw.Harvest.AllowedInterfaces,
		BlockedInterfaces:         raw.Harvest.BlockedInterfaces,
		AllowedAddresses:          raw.Harvest.AllowedAddresses,
		BlockedAddresses:          raw.Harvest.BlockedAddresses,
		DisableIPv6:               raw.Harvest.DisableIPv6,
		DisableLinkLocalAddresses: raw.Harvest.DisableLinkLocalAddresses,
		EnableAWSHarvester:        raw.Harvest.EnableAWSHarvester,
		ForceAWSHarvester:         raw.Harvest.ForceAWSHarvester,
		MaxExtenderWorkers:        raw.Harvest.MaxExtenderWorkers,
	}
	if !raw.Harvest.NATHarvesterLocalAddress.IsZero() || !raw.Harvest.NATHarvesterPublicAddress.IsZero() {
		harvest.StaticMappings = []gather.StaticMapping{{
			Internal: raw.Harvest.NATHarvesterLocalAddress,
			External: raw.Harvest.NATHarvesterPublicAddress,
		}}
	}
	for _, t := range raw.Harvest.TURNServers {
		harvest.TURNServers = append(harvest.TURNServers, gather.TURNServerConfig{
			Server:   t.Server,
			Username: t.Username,
			Password: t.Password,
			Realm:    t.Realm,
		})
	}

	m := metrics.New(prometheus.Labels{"role": raw.Agent.Role})

	agentCfg := ice.Config{
		Role:         role,
		LocalUfrag:   raw.Agent.LocalUfrag,
		LocalPwd:     raw.Agent.LocalPwd,
		Harvest:      harvest,
		Log:          log,
		ClientConfig: clientConfig(raw.Agent),
		Ta:           raw.Agent.Ta,
		Trickle:      raw.Agent.Trickle,
		Metrics:      m,
	}

	bind := socket.BindOptions{
		ReusePort: raw.Harvest.BindWildcard,
		Retries:   raw.Harvest.BindRetries,
		RcvBuf:    raw.Harvest.SoRcvBuf,
	}

	return &Built{Agent: agentCfg, Bind: bind, Management: raw.Management, Metrics: m, Log: log}, nil
}

func parseRole(s string) (ice.Role, error) {
	switch strings.ToLower(s) {
	case "", "controlling":
		return ice.Controlling, nil
	case "controlled":
		return ice.Controlled, nil
	default:
		return 0, errors.Errorf("unknown agent role %q", s)
	}
}

func clientConfig(a RawAgent) transaction.ClientConfig {
	cfg := transaction.DefaultClientConfig()
	if a.RTO > 0 {
		cfg.RTO = a.RTO
	}
	if a.Rc > 0 {
		cfg.Rc = a.Rc
	}
	return cfg
}
