// Package timezone provides UTC/local conversion for the dosetrack engine.
//
// This package includes:
//   - Provider: the injected source of the configured IANA zone, with
//     explicit hot-reload via Refresh
//   - Converter: DST-aware conversion and time-of-day resolution
//
// DST policy: a local time that falls in a spring-forward gap resolves by
// advancing past the gap; an ambiguous fall-back time resolves to the
// earlier occurrence. Both cases are deterministic and logged, never errors.
package timezone
