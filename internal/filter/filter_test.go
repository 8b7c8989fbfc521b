package filter

import (
	"net"
	"testing"
)

func TestAllowAll_Allowed(t *testing.T) {
	if AllowAll.Action(net.IPv4(1, 2, 3, 4)) != Allow {
		t.Error("should be allowed")
	}
}

func TestStaticNetRule(t *testing.T) {
	t.Run("OK", func(t *testing.T) {
		rule, err := StaticNetRule(Allow, "127.0.0.1/32")
		if err != nil {
			t.Fatal(err)
		}
		for _, tc := range []struct {
			IP     net.IP
			Action Action
		}{
			{net.IPv4(127, 0, 0, 1), Allow},
			{net.IPv4(127, 0, 0, 2), Pass},
		} {
			t.Run(tc.IP.String(), func(t *testing.T) {
				if rule.Action(tc.IP) != tc.Action {
					t.Error("failed")
				}
			})
		}
	})
	t.Run("ParseError", func(t *testing.T) {
		if _, err := StaticNetRule(Allow, "bad"); err == nil {
			t.Error("should error")
		}
	})
}

func TestAllowNet(t *testing.T) {
	rule, err := AllowNet("192.168.0.0/24")
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		IP     net.IP
		Action Action
	}{
		{net.IPv4(192, 168, 0, 1), Allow},
		{net.IPv4(127, 0, 0, 2), Pass},
	} {
		t.Run(tc.IP.String(), func(t *testing.T) {
			if rule.Action(tc.IP) != tc.Action {
				t.Error("failed")
			}
		})
	}
}

func TestForbidNet(t *testing.T) {
	rule, err := ForbidNet("192.168.0.0/24")
	if err != nil {
		t.Fatal(err)
	}
	for _, tc := range []struct {
		IP     net.IP
		Action Action
	}{
		{net.IPv4(192, 168, 0, 1), Deny},
		{net.IPv4(127, 0, 0, 2), Pass},
	} {
		t.Run(tc.IP.String(), func(t *testing.T) {
			if rule.Action(tc.IP) != tc.Action {
				t.Error("failed")
			}
		})
	}
}

func TestFilter_Allowed(t *testing.T) {
	allowLoopback, err := AllowNet("127.0.0.1/32")
	if err != nil {
		t.Fatal(err)
	}
	forbidNet, err := ForbidNet("192.168.0.0/24")
	if err != nil {
		t.Fatal(err)
	}
	f := NewFilter(Deny, allowLoopback, forbidNet)
	for _, tc := range []struct {
		IP     net.IP
		Action Action
	}{
		{net.IPv4(192, 120, 0, 1), Deny},
		{net.IPv4(192, 168, 0, 1), Deny},
		{net.IPv4(127, 0, 0, 1), Allow},
	} {
		t.Run(tc.IP.String(), func(t *testing.T) {
			if f.Action(tc.IP) != tc.Action {
				t.Error("failed")
			}
		})
	}
	f = NewFilter(Allow, forbidNet)
	for _, tc := range []struct {
		IP     net.IP
		Action Action
	}{
		{net.IPv4(192, 120, 0, 1), Allow},
		{net.IPv4(192, 168, 0, 1), Deny},
		{net.IPv4(127, 0, 0, 1), Allow},
	} {
		t.Run(tc.IP.String(), func(t *testing.T) {
			if f.Action(tc.IP) != tc.Action {
				t.Error("failed")
			}
		})
	}
}

func TestNewAddressFilterAllowTakesPrecedence(t *testing.T) {
	allowed := []net.IP{net.IPv4(10, 0, 0, 1)}
	blocked := []net.IP{net.IPv4(10, 0, 0, 1), net.IPv4(10, 0, 0, 2)}
	f := NewAddressFilter(allowed, blocked)
	if f.Action(net.IPv4(10, 0, 0, 1)) != Allow {
		t.Error("expected allow list to take precedence over block list")
	}
	if f.Action(net.IPv4(10, 0, 0, 2)) != Deny {
		t.Error("expected blocked-only address to be denied")
	}
	if f.Action(net.IPv4(10, 0, 0, 3)) != Pass {
		t.Error("expected unmentioned address to pass")
	}
}

func TestInterfaceNamesAllowListWins(t *testing.T) {
	f := NewInterfaceFilter([]string{"eth0"}, []string{"eth0", "lo"})
	if !f.Allowed("eth0") {
		t.Error("expected eth0 to be allowed despite also being blocked")
	}
	if f.Allowed("eth1") {
		t.Error("expected eth1 to be rejected when not in allow list")
	}
}

func TestInterfaceNamesBlockList(t *testing.T) {
	f := NewInterfaceFilter(nil, []string{"docker0"})
	if !f.Allowed("eth0") {
		t.Error("expected eth0 to pass with no allow list")
	}
	if f.Allowed("docker0") {
		t.Error("expected docker0 to be rejected by block list")
	}
}

func TestInterfaceNamesNoFilter(t *testing.T) {
	f := NewInterfaceFilter(nil, nil)
	if !f.Allowed("anything") {
		t.Error("expected no filter to allow everything")
	}
}
