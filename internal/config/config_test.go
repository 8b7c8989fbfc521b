package config

import (
	"testing"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/netice/ice"
)

const sampleConfig = `
agent:
  role: controlled
  local_ufrag: abcd
  local_pwd: secretpwd0123456789
  rto: 300ms
  rc: 5
harvest:
  allowed_interfaces: ["eth0"]
  blocked_addresses: ["192.168.1.1"]
  disable_ipv6: true
  bind_retries: 3
  so_rcvbuf: 4096
  nat_harvester_local_address: "10.0.0.5:9000"
  nat_harvester_public_address: "203.0.113.9:9000"
  stun_mapping_harvester_addresses: ["stun.example.org:3478"]
  turn_servers:
    - server: "turn.example.org:3478"
      username: bob
      password: hunter2
      realm: example.org
management:
  prometheus: false
  addr: ":9999"
`

func newTestFs(t *testing.T, content string) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "icedaemon.yaml", []byte(content), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return fs
}

func TestLoadDecodesHarvestAndAgentSections(t *testing.T) {
	fs := newTestFs(t, sampleConfig)
	v := New(fs)
	raw, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if raw.Agent.Role != "controlled" {
		t.Fatalf("got role %q", raw.Agent.Role)
	}
	if raw.Agent.RTO.String() != "300ms" {
		t.Fatalf("got RTO %v", raw.Agent.RTO)
	}
	if len(raw.Harvest.AllowedInterfaces) != 1 || raw.Harvest.AllowedInterfaces[0] != "eth0" {
		t.Fatalf("got allowed interfaces %v", raw.Harvest.AllowedInterfaces)
	}
	if len(raw.Harvest.BlockedAddresses) != 1 || raw.Harvest.BlockedAddresses[0].String() != "192.168.1.1" {
		t.Fatalf("got blocked addresses %v", raw.Harvest.BlockedAddresses)
	}
	if raw.Harvest.NATHarvesterLocalAddress.Port != 9000 {
		t.Fatalf("got static mapping local %v", raw.Harvest.NATHarvesterLocalAddress)
	}
	if len(raw.Harvest.STUNMappingHarvesterAddresses) != 1 || raw.Harvest.STUNMappingHarvesterAddresses[0].Port != 3478 {
		t.Fatalf("got stun mapping addresses %v", raw.Harvest.STUNMappingHarvesterAddresses)
	}
	if len(raw.Harvest.TURNServers) != 1 || raw.Harvest.TURNServers[0].Username != "bob" {
		t.Fatalf("got turn servers %v", raw.Harvest.TURNServers)
	}
	if raw.Management.Prometheus {
		t.Fatal("expected prometheus disabled by the fixture")
	}
}

func TestLoadFallsBackToDefaultWhenMissing(t *testing.T) {
	fs := afero.NewMemMapFs()
	v := New(fs)
	raw, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if raw.Agent.Role != "controlling" {
		t.Fatalf("expected default role controlling, got %q", raw.Agent.Role)
	}
	if !raw.Harvest.BindWildcard {
		t.Fatal("expected default bind_wildcard true")
	}
}

func TestBuildParsesRoleAndWiresHarvestConfig(t *testing.T) {
	fs := newTestFs(t, sampleConfig)
	v := New(fs)
	raw, err := Load(v)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	built, err := Build(raw)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if built.Agent.Role != ice.Controlled {
		t.Fatalf("expected Controlled role, got %v", built.Agent.Role)
	}
	if built.Agent.ClientConfig.RTO.String() != "300ms" {
		t.Fatalf("got RTO %v", built.Agent.ClientConfig.RTO)
	}
	if len(built.Agent.Harvest.StaticMappings) != 1 {
		t.Fatalf("expected one static mapping, got %d", len(built.Agent.Harvest.StaticMappings))
	}
	if built.Bind.Retries != 3 || built.Bind.RcvBuf != 4096 {
		t.Fatalf("got bind options %+v", built.Bind)
	}
	if built.Metrics == nil || built.Agent.Metrics == nil {
		t.Fatal("expected Build to wire a metrics.Metrics into both Built and Agent config")
	}
}

func TestBuildRejectsUnknownRole(t *testing.T) {
	raw := &Raw{Log: zap.NewProductionConfig(), Agent: RawAgent{Role: "bystander"}}
	if _, err := Build(raw); err == nil {
		t.Fatal("expected an error for an unrecognized role")
	}
}
