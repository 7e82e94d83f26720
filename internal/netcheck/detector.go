// Package netcheck classifies the active network connection so the
// configuration optimizer can bias provider ordering. Its output is advisory:
// a wrong classification reorders providers, it never removes one.
package netcheck

import (
	"context"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/couchcryptid/whereami/internal/adapter/ipgeo"
	"github.com/couchcryptid/whereami/internal/domain"
)

// Connection type labels.
const (
	TypeEthernet = "ethernet"
	TypeWiFi     = "wifi"
	TypeMobile   = "mobile"
	TypeVPN      = "vpn"
	TypeUnknown  = "unknown"
)

// vpnDisagreementKm is the coordinate spread between independent IP lookups
// past which the exit node is assumed not to be the physical location.
const vpnDisagreementKm = 100.0

// Linux interface name prefixes per connection class.
var (
	mobilePrefixes = []string{"wwan", "wwp", "ppp", "rmnet", "usb"}
	wifiPrefixes   = []string{"wl", "ath", "wifi"}
	wiredPrefixes  = []string{"en", "eth", "em", "eno", "ens", "enp"}
	vpnPrefixes    = []string{"tun", "tap", "wg", "vpn", "ipsec", "tailscale", "zt", "nordlynx", "proton"}
)

// vpnOrgKeywords flag geolocation org/ISP strings that belong to hosting
// providers or VPN operators rather than consumer access networks.
var vpnOrgKeywords = []string{
	"vpn", "proxy", "hosting", "datacenter", "data center", "dedicated server",
	"cloud", "amazon", "aws", "google llc", "microsoft", "azure",
	"digitalocean", "linode", "vultr", "ovh", "hetzner", "m247", "leaseweb",
	"choopa", "nordvpn", "expressvpn", "mullvad", "private internet access",
}

// Condition is the detector's view of the current network.
type Condition struct {
	IsMobile       bool   `json:"is_mobile"`
	IsVPN          bool   `json:"is_vpn"`
	IsReliable     bool   `json:"is_reliable"`
	ConnectionType string `json:"connection_type"`
}

// Prober performs single-endpoint IP geolocation lookups. *ipgeo.Provider
// satisfies it.
type Prober interface {
	EndpointNames() []string
	LookupEndpoint(ctx context.Context, name string) (ipgeo.Fix, time.Duration, error)
}

// Detector classifies the network from interface metadata, falling back to
// geolocation heuristics when interfaces alone are inconclusive about VPNs.
type Detector struct {
	prober Prober
	logger *slog.Logger

	// listInterfaces is swapped out in tests.
	listInterfaces func() ([]net.Interface, error)
}

func New(prober Prober, logger *slog.Logger) *Detector {
	return &Detector{
		prober:         prober,
		logger:         logger,
		listInterfaces: net.Interfaces,
	}
}

// Detect classifies the current connection. It never returns an error; on
// total failure it reports an unknown, unreliable network.
func (d *Detector) Detect(ctx context.Context) Condition {
	cond := d.classifyInterfaces()

	// Interface names catch tun/wg style VPNs. Userspace or router-level
	// tunnels need the lookup heuristics.
	if !cond.IsVPN {
		cond.IsVPN = d.vpnByLookups(ctx, &cond)
	}
	if cond.IsVPN && cond.ConnectionType == TypeUnknown {
		cond.ConnectionType = TypeVPN
	}

	d.logger.Debug("network condition detected",
		"type", cond.ConnectionType, "mobile", cond.IsMobile, "vpn", cond.IsVPN, "reliable", cond.IsReliable)
	return cond
}

// classifyInterfaces inspects up, non-loopback interfaces and picks the most
// specific physical class present. A VPN interface sets IsVPN without
// replacing the physical connection type.
func (d *Detector) classifyInterfaces() Condition {
	cond := Condition{ConnectionType: TypeUnknown}

	ifaces, err := d.listInterfaces()
	if err != nil {
		d.logger.Warn("listing network interfaces failed", "error", err)
		return cond
	}

	var wired, wifi, mobile bool
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		name := strings.ToLower(iface.Name)
		switch {
		case hasAnyPrefix(name, vpnPrefixes):
			cond.IsVPN = true
		case hasAnyPrefix(name, mobilePrefixes):
			mobile = true
		case hasAnyPrefix(name, wifiPrefixes):
			wifi = true
		case hasAnyPrefix(name, wiredPrefixes):
			wired = true
		}
	}

	switch {
	case wired:
		cond.ConnectionType = TypeEthernet
		cond.IsReliable = true
	case wifi:
		cond.ConnectionType = TypeWiFi
		cond.IsReliable = true
	case mobile:
		cond.ConnectionType = TypeMobile
		cond.IsMobile = true
	}
	return cond
}

// vpnByLookups probes up to two endpoints and flags a VPN when the reported
// org matches a hosting/VPN keyword or when two lookups disagree on where the
// exit node is. Lookup failures also mark the network unreliable.
func (d *Detector) vpnByLookups(ctx context.Context, cond *Condition) bool {
	if d.prober == nil {
		return false
	}

	names := d.prober.EndpointNames()
	if len(names) > 2 {
		names = names[:2]
	}

	var fixes []ipgeo.Fix
	for _, name := range names {
		fix, _, err := d.prober.LookupEndpoint(ctx, name)
		if err != nil {
			d.logger.Debug("network probe lookup failed", "endpoint", name, "error", err)
			cond.IsReliable = false
			continue
		}
		fixes = append(fixes, fix)

		if org := strings.ToLower(fix.Org + " " + fix.ISP); containsAny(org, vpnOrgKeywords) {
			d.logger.Debug("vpn keyword match", "endpoint", name, "org", fix.Org, "isp", fix.ISP)
			return true
		}
	}

	if len(fixes) >= 2 {
		if km := domain.Distance(fixes[0].Lat, fixes[0].Lon, fixes[1].Lat, fixes[1].Lon); km > vpnDisagreementKm {
			d.logger.Debug("vpn suspected from endpoint disagreement", "distance_km", km)
			return true
		}
	}
	return false
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
