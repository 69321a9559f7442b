// Package ir provides the value model and domain records shared by every
// encounterlab package.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Rule-engine data is an IRObject tree. Clone is the only way a tree may
//     cross a snapshot boundary; it never shares mutable substructure.
//   - NO float values inside IR trees. Positions are carried as integer
//     hundredths (see Centi).
//   - Canonical JSON (RFC 8785 key order, NFC strings) backs every digest,
//     so identical analyses produce byte-identical output.
//   - JSON tags use snake_case.
package ir
