// Package refreshstore persists the server-side half of refresh-token
// lineage: per subject, the sha256 digest of the current token, the digest
// of the immediately prior token, and the timestamp of the last genuine
// rotation.
//
// Rotation runs as one Redis Lua script so that two concurrent refresh
// calls for the same subject can never create two divergent current
// generations. The decision table inside the script:
//
//   - presented digest == current: genuine rotation. Current is demoted to
//     previous, the new digest becomes current, the rotation timestamp is
//     restamped.
//   - presented digest == previous and the grace window since the last
//     genuine rotation has not elapsed: a client retry that never received
//     the prior rotation response. The new digest replaces current;
//     previous and the rotation timestamp are left untouched, so the
//     lineage stays one generation deep and the window cannot extend
//     itself.
//   - anything else: reuse of an expired, foreign, or stolen token. The
//     whole record is destroyed, forcing re-authentication everywhere.
package refreshstore
