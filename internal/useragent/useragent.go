// Package useragent turns raw User-Agent strings into the coarse device
// fingerprints the anomaly detector compares against login history.
package useragent

import (
	"crypto/sha256"
	"fmt"
	"strings"

	ua "github.com/mileusna/useragent"
)

// Device kinds
const (
	DeviceTypeDesktop = "desktop"
	DeviceTypeMobile  = "mobile"
	DeviceTypeTablet  = "tablet"
	DeviceTypeBot     = "bot"
	DeviceTypeUnknown = "unknown"
)

// Device is the parsed identity of a client
type Device struct {
	Name    string
	Type    string
	Browser string
	OS      string
}

// Fingerprint returns a stable identifier for the device class. Raw UA
// strings churn on every browser patch release, so the fingerprint hashes
// the parsed browser/OS/type triple instead.
func (d Device) Fingerprint() string {
	data := []byte(strings.ToLower(strings.Join([]string{d.Browser, d.OS, d.Type}, ":")))
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash)[:32]
}

// Parser parses a User-Agent header into a Device
type Parser interface {
	Parse(userAgent string) Device
}

// StdParser parses with the mileusna/useragent tokenizer
type StdParser struct{}

// NewParser creates the default Parser
func NewParser() *StdParser {
	return &StdParser{}
}

func (p *StdParser) Parse(userAgent string) Device {
	parsed := ua.Parse(userAgent)

	deviceType := DeviceTypeUnknown
	switch {
	case parsed.Bot:
		deviceType = DeviceTypeBot
	case parsed.Mobile:
		deviceType = DeviceTypeMobile
	case parsed.Tablet:
		deviceType = DeviceTypeTablet
	case parsed.Desktop:
		deviceType = DeviceTypeDesktop
	}

	name := parsed.Device
	if name == "" {
		name = strings.TrimSpace(parsed.Name + " " + parsed.OS)
	}
	if name == "" {
		name = DeviceTypeUnknown
	}

	return Device{
		Name:    name,
		Type:    deviceType,
		Browser: parsed.Name,
		OS:      parsed.OS,
	}
}
