package useragent_test

import (
	"testing"

	"github.com/calebmoore/vaultguard/internal/useragent"
	"github.com/stretchr/testify/assert"
)

const (
	chromeMacUA   = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	chromeMacUA2  = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	safariPhoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_1 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Mobile/15E148 Safari/604.1"
	googlebotUA   = "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"
)

func TestStdParserParse_Desktop(t *testing.T) {
	device := useragent.NewParser().Parse(chromeMacUA)

	assert.Equal(t, useragent.DeviceTypeDesktop, device.Type)
	assert.Equal(t, "Chrome", device.Browser)
	assert.Equal(t, "macOS", device.OS)
}

func TestStdParserParse_Mobile(t *testing.T) {
	device := useragent.NewParser().Parse(safariPhoneUA)

	assert.Equal(t, useragent.DeviceTypeMobile, device.Type)
}

func TestStdParserParse_Bot(t *testing.T) {
	device := useragent.NewParser().Parse(googlebotUA)

	assert.Equal(t, useragent.DeviceTypeBot, device.Type)
}

func TestStdParserParse_GarbageYieldsUnknown(t *testing.T) {
	device := useragent.NewParser().Parse("not a user agent")

	assert.NotEmpty(t, device.Name)
}

func TestDeviceFingerprint_StableAcrossPatchReleases(t *testing.T) {
	parser := useragent.NewParser()

	// Version churn must not change the fingerprint
	assert.Equal(t, parser.Parse(chromeMacUA).Fingerprint(), parser.Parse(chromeMacUA2).Fingerprint())
}

func TestDeviceFingerprint_DistinguishesDevices(t *testing.T) {
	parser := useragent.NewParser()

	a := parser.Parse(chromeMacUA).Fingerprint()
	b := parser.Parse(safariPhoneUA).Fingerprint()

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 32)
}
