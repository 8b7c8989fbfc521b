// Package config loads and decodes the YAML configuration file that
// drives an ICE agent and its harvesters, spec.md Section 10
// "Configuration keys", grounded on gortcd's internal/cli/cli.go
// (explicit *viper.Viper threading, getZapConfig, initConfigCommon,
// initViper) rather than the older global-viper style retained for
// reference in internal/cli/run.go (see DESIGN.md).
package config

import (
	"net"
	"reflect"
	"strings"
	"time"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/netice/ice/transport"
)

// fileName and searchPaths mirror gortcd's "gortcd.yml" resolved from
// the current directory, /etc/icedaemon/ and the user's home
// directory, internal/cli/cli.go's initConfigCommon.
const fileName = "icedaemon"

var searchPaths = []string{".", "/etc/icedaemon/"}

// Raw is the literal shape of the YAML config file, decoded with
// gopkg.in/yaml.v2 via viper the way internal/cli/cli.go's
// getZapConfig parses server.log directly. Fields hold the string/
// primitive forms closest to the file; Build (build.go) converts them
// into the typed ice.Config/gather.HarvestConfig pair a running agent
// needs.
type Raw struct {
	Log        zap.Config    `mapstructure:"log"`
	Agent      RawAgent      `mapstructure:"agent"`
	Harvest    RawHarvest    `mapstructure:"harvest"`
	Management RawManagement `mapstructure:"management"`
}

// RawAgent is the "agent:" section: spec.md Section 10's "agent Ta,
// RTO, Rc, role, tie-breaker, trickle".
type RawAgent struct {
	Role       string        `mapstructure:"role"`
	LocalUfrag string        `mapstructure:"local_ufrag"`
	LocalPwd   string        `mapstructure:"local_pwd"`
	Ta         time.Duration `mapstructure:"ta"`
	RTO        time.Duration `mapstructure:"rto"`
	Rc         int           `mapstructure:"rc"`
	Trickle    bool          `mapstructure:"trickle"`
}

// RawHarvest is the "harvest:" section covering every key spec.md
// Section 10 names for candidate harvesting.
type RawHarvest struct {
	AllowedInterfaces             []string            `mapstructure:"allowed_interfaces"`
	BlockedInterfaces             []string            `mapstructure:"blocked_interfaces"`
	AllowedAddresses              []net.IP            `mapstructure:"allowed_addresses"`
	BlockedAddresses              []net.IP            `mapstructure:"blocked_addresses"`
	DisableIPv6                   bool                `mapstructure:"disable_ipv6"`
	DisableLinkLocalAddresses     bool                `mapstructure:"disable_link_local_addresses"`
	BindWildcard                  bool                `mapstructure:"bind_wildcard"`
	BindRetries                   int                 `mapstructure:"bind_retries"`
	SoRcvBuf                      int                 `mapstructure:"so_rcvbuf"`
	NATHarvesterLocalAddress      transport.Address   `mapstructure:"nat_harvester_local_address"`
	NATHarvesterPublicAddress     transport.Address   `mapstructure:"nat_harvester_public_address"`
	EnableAWSHarvester            bool                `mapstructure:"enable_aws_harvester"`
	ForceAWSHarvester             bool                `mapstructure:"force_aws_harvester"`
	STUNMappingHarvesterAddresses []transport.Address `mapstructure:"stun_mapping_harvester_addresses"`
	TURNServers                   []RawTURNServer     `mapstructure:"turn_servers"`
	MaxExtenderWorkers            int                 `mapstructure:"max_extender_workers"`
}

// RawTURNServer is one "turn_servers:" entry.
type RawTURNServer struct {
	Server   transport.Address `mapstructure:"server"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Realm    string            `mapstructure:"realm"`
}

// RawManagement is the "management:" section: the prometheus/reload
// HTTP endpoint internal/manage exposes, spec.md Section 12
// "Supplemented features".
type RawManagement struct {
	Prometheus bool   `mapstructure:"prometheus"`
	Addr       string `mapstructure:"addr"`
}

// defaultConfig is read when no config file is found on any search
// path, mirroring internal/cli/cli.go's fallback to
// defaultConfigFileContent (the constant itself is absent from the
// retrieval pack, see DESIGN.md — this is this module's replacement).
const defaultConfig = `
log:
  level: info
  encoding: json
agent:
  role: controlling
  ta: 50ms
  rto: 500ms
  rc: 7
  trickle: false
harvest:
  disable_ipv6: false
  disable_link_local_addresses: true
  bind_wildcard: true
  bind_retries: 50
management:
  prometheus: true
  addr: ":9090"
`

// New returns a *viper.Viper preconfigured with this package's search
// paths and defaults, reading through fs (afero.NewOsFs() in
// production, an in-memory afero.Fs in tests, spec.md Section 11's
// afero entry).
func New(fs afero.Fs) *viper.Viper {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigName(fileName)
	v.SetConfigType("yaml")
	v.AddConfigPath(searchPaths[0])
	v.AddConfigPath(searchPaths[1])
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(home)
	}
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("agent.role", "controlling")
	v.SetDefault("agent.ta", 50*time.Millisecond)
	v.SetDefault("agent.rto", 500*time.Millisecond)
	v.SetDefault("agent.rc", 7)
	v.SetDefault("harvest.bind_wildcard", true)
	v.SetDefault("harvest.bind_retries", 50)
	v.SetDefault("harvest.disable_link_local_addresses", true)
	v.SetDefault("management.prometheus", true)
	v.SetDefault("management.addr", ":9090")
}

// Load reads the config file v was set up to find, falling back to
// defaultConfig when none is found on disk, and decodes it into a Raw,
// mirroring internal/cli/cli.go's initConfig fallback to
// defaultConfigFileContent.
func Load(v *viper.Viper) (*Raw, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "read config")
		}
		if err := v.ReadConfig(strings.NewReader(defaultConfig)); err != nil {
			return nil, errors.Wrap(err, "read default config")
		}
	}
	raw := &Raw{}
	if err := v.Unmarshal(raw, viper.DecodeHook(decodeHook())); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	return raw, nil
}

// decodeHook composes mapstructure.StringToTimeDurationHookFunc with
// two hooks unique to this config surface: "host:port" strings into
// transport.Address (NAT_HARVESTER_*_ADDRESS,
// STUN_MAPPING_HARVESTER_ADDRESSES, turn_servers[].server) and dotted
// strings into net.IP (ALLOWED_ADDRESSES/BLOCKED_ADDRESSES), spec.md
// Section 11's mapstructure entry.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.TextUnmarshallerHookFunc(),
		stringToTransportAddressHook,
		stringToIPHook,
	)
}

var (
	addressType = reflect.TypeOf(transport.Address{})
	ipType      = reflect.TypeOf(net.IP{})
)

// stringToTransportAddressHook parses a "host:port" string into a UDP
// transport.Address.
func stringToTransportAddressHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != addressType {
		return data, nil
	}
	s, ok := data.(string)
	if !ok || s == "" {
		return transport.Address{}, nil
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return nil, errors.Wrapf(err, "parse address %q", s)
	}
	ip := net.ParseIP(host)
	if ip == nil {
		resolved, err := net.ResolveIPAddr("ip", host)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve host %q", host)
		}
		ip = resolved.IP
	}
	port, err := parsePort(portStr)
	if err != nil {
		return nil, errors.Wrapf(err, "parse port in %q", s)
	}
	return transport.Address{IP: ip, Port: port, Proto: transport.UDP}, nil
}

// stringToIPHook parses a dotted/colon IP literal string into a net.IP.
func stringToIPHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if from.Kind() != reflect.String || to != ipType {
		return data, nil
	}
	s, ok := data.(string)
	if !ok {
		return data, nil
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, errors.Errorf("invalid IP literal %q", s)
	}
	return ip, nil
}

func parsePort(s string) (int, error) {
	var port int
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, errors.Errorf("not a port: %q", s)
		}
		port = port*10 + int(r-'0')
	}
	return port, nil
}
