package trust

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceSignals are the stable client characteristics a fingerprint is
// derived from. Two devices with identical signal tuples produce the same
// fingerprint; this is best-effort identification, not cryptographic
// identity.
type DeviceSignals struct {
	UserAgent           string `json:"user_agent"`
	Language            string `json:"language"`
	ScreenWidth         int    `json:"screen_width"`
	ScreenHeight        int    `json:"screen_height"`
	ColorDepth          int    `json:"color_depth"`
	TimezoneOffsetMin   int    `json:"timezone_offset_min"`
	HardwareConcurrency int    `json:"hardware_concurrency"`
	MaxTouchPoints      int    `json:"max_touch_points"`
}

// Fingerprint derives the deterministic device identifier from the signal
// tuple via an order-sensitive 32-bit string hash.
func (ds DeviceSignals) Fingerprint() string {
	components := []string{
		ds.UserAgent,
		ds.Language,
		fmt.Sprintf("%dx%d", ds.ScreenWidth, ds.ScreenHeight),
		strconv.Itoa(ds.ColorDepth),
		strconv.Itoa(ds.TimezoneOffsetMin),
		strconv.Itoa(ds.HardwareConcurrency),
		strconv.Itoa(ds.MaxTouchPoints),
	}
	return "device_" + hashBase36(strings.Join(components, "|"))
}

// Platform classifies the device from its user agent string.
func (ds DeviceSignals) Platform() string {
	switch {
	case strings.Contains(ds.UserAgent, "Android"):
		return "android"
	case strings.Contains(ds.UserAgent, "iPhone"):
		return "ios"
	}
	return "web"
}

// hashBase36 is the classic djb-style rolling hash over UTF-16 code units,
// truncated to 32 bits, rendered base36. Not collision resistant.
func hashBase36(s string) string {
	var hash int32
	for _, r := range s {
		// Surrogate-pair split matters only for characters outside the BMP,
		// which device signals do not realistically contain.
		hash = (hash << 5) - hash + int32(uint16(r))
	}
	v := int64(hash)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}
