package security

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/user_agent"
)

// DeviceInfo holds the attributes that identify a client device.
type DeviceInfo struct {
	Browser    string `json:"browser"`
	OS         string `json:"os"`
	DeviceType string `json:"device_type"`
	IP         string `json:"ip"`
}

// ParseDevice extracts device attributes from a User-Agent header and the
// client IP.
func ParseDevice(userAgent, ip string) *DeviceInfo {
	ua := user_agent.New(userAgent)
	browser, _ := ua.Browser()

	deviceType := "desktop"
	lower := strings.ToLower(userAgent)
	switch {
	case strings.Contains(lower, "tablet") || strings.Contains(lower, "ipad"):
		deviceType = "tablet"
	case ua.Mobile():
		deviceType = "mobile"
	case ua.Bot():
		deviceType = "bot"
	}

	osName := ua.OS()
	if i := strings.Index(osName, " "); i > 0 {
		osName = osName[:i]
	}

	return &DeviceInfo{
		Browser:    browser,
		OS:         osName,
		DeviceType: deviceType,
		IP:         ip,
	}
}

// Fingerprint derives the opaque device fingerprint hashed over the
// identifying attributes. IP participates deliberately; see the trusted
// device documentation for the NAT caveat.
func (d *DeviceInfo) Fingerprint() string {
	sum := sha256.Sum256([]byte(d.Browser + "|" + d.OS + "|" + d.DeviceType + "|" + d.IP))
	return hex.EncodeToString(sum[:])
}

// FriendlyName renders a human-readable device label for the trust record.
func (d *DeviceInfo) FriendlyName() string {
	var parts []string
	if d.Browser != "" {
		parts = append(parts, d.Browser)
	}
	if d.OS != "" {
		parts = append(parts, "on "+d.OS)
	}
	if len(parts) == 0 {
		return "Unknown Device"
	}
	name := strings.Join(parts, " ")
	if d.DeviceType != "" && d.DeviceType != "desktop" {
		name += " (" + d.DeviceType + ")"
	}
	return name
}
