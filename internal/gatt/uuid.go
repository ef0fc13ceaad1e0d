package gatt

import "strings"

// bluetoothBaseSuffix is the tail of the Bluetooth SIG base UUID
// (0000xxxx-0000-1000-8000-00805f9b34fb) once dashes are stripped.
const bluetoothBaseSuffix = "00001000800000805f9b34fb"

// NormalizeUUID converts a UUID string to the BLE library format (lowercase,
// no dashes). Strips a 0x prefix if present (e.g. "0x2ACD" -> "2acd"). Full
// 128-bit UUIDs in the Bluetooth SIG base format are reduced to their 16-bit
// short form so "00001826-0000-1000-8000-00805f9b34fb" and "1826" compare
// equal.
func NormalizeUUID(uuid string) string {
	u := strings.ToLower(strings.TrimSpace(uuid))
	u = strings.TrimPrefix(u, "0x")
	u = strings.ReplaceAll(u, "-", "")
	if len(u) == 32 && strings.HasPrefix(u, "0000") && strings.HasSuffix(u, bluetoothBaseSuffix) {
		return u[4:8]
	}
	return u
}

// ShortenUUID returns a truncated version of a UUID for display purposes.
// Returns the first eight characters for long UUIDs and short UUIDs by themselves.
func ShortenUUID(uuid string) string {
	if len(uuid) > 8 {
		return uuid[:8]
	}
	return uuid
}

// shortServiceList renders advertised service UUIDs compactly for log output.
func shortServiceList(uuids []string) string {
	short := make([]string, 0, len(uuids))
	for _, u := range uuids {
		short = append(short, ShortenUUID(u))
	}
	return strings.Join(short, ",")
}
