// Package geoip wraps IP-to-country lookups behind a narrow interface so
// detection code never depends on a concrete geolocation provider.
package geoip

import (
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

// Location is the subset of geolocation data the engine consumes
type Location struct {
	CountryCode string
	City        string
}

// Resolver maps an IP address to a location. A nil location with a nil
// error means the address is valid but unknown (private ranges, missing
// database entries); detectors skip the location heuristic in that case.
type Resolver interface {
	Resolve(ip string) (*Location, error)
}

// MaxMindResolver resolves locations from a MaxMind GeoLite2/GeoIP2
// database file
type MaxMindResolver struct {
	reader *geoip2.Reader
}

// NewMaxMindResolver opens the mmdb file at the given path
func NewMaxMindResolver(path string) (*MaxMindResolver, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open geoip database: %w", err)
	}
	return &MaxMindResolver{reader: reader}, nil
}

func (r *MaxMindResolver) Resolve(ip string) (*Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("invalid ip address %q", ip)
	}
	if isPrivate(parsed) {
		return nil, nil
	}

	record, err := r.reader.City(parsed)
	if err != nil {
		return nil, fmt.Errorf("geoip lookup failed: %w", err)
	}
	if record.Country.IsoCode == "" {
		return nil, nil
	}

	return &Location{
		CountryCode: record.Country.IsoCode,
		City:        record.City.Names["en"],
	}, nil
}

// Close releases the underlying database reader
func (r *MaxMindResolver) Close() error {
	return r.reader.Close()
}

// StaticResolver resolves from a fixed IP-to-country map. Used in tests
// and in deployments without a GeoIP database, where every lookup is
// unknown and the location heuristic is effectively disabled.
type StaticResolver struct {
	countries map[string]string
}

// NewStaticResolver creates a resolver over a fixed ip -> country code map
func NewStaticResolver(countries map[string]string) *StaticResolver {
	if countries == nil {
		countries = make(map[string]string)
	}
	return &StaticResolver{countries: countries}
}

func (r *StaticResolver) Resolve(ip string) (*Location, error) {
	if net.ParseIP(ip) == nil {
		return nil, fmt.Errorf("invalid ip address %q", ip)
	}
	code, ok := r.countries[ip]
	if !ok {
		return nil, nil
	}
	return &Location{CountryCode: code}, nil
}

func isPrivate(ip net.IP) bool {
	return ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast()
}
