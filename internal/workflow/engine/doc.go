// Package engine runs resolution passes end to end and publishes each
// successful result as an immutable snapshot. Readers never block on a pass:
// they see the previous snapshot until the next one is complete. A rejected
// configuration leaves the current snapshot in place.
package engine
