// Package ftms implements the Fitness Machine Service (FTMS) GATT profile
// for treadmills.
//
// The package covers the protocol surface an FTMS treadmill exposes:
//   - Treadmill Data notification parsing (flag-driven optional fields)
//   - Training Status decoding
//   - Fitness Machine Control Point request/response round-trips
//   - Device Information Service and GAP device name reads
//   - A Client that merges notifications into a last-known snapshot
package ftms
