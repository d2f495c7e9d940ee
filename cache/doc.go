// Package cache provides the storage tiers the engine is assembled from.
//
// # Tier Interface
//
// The [Tier] interface stores [Entry] values addressed by a space name and a key.
// Spaces are independent key ranges inside one tier: the same key may hold
// unrelated values in two spaces, and [Tier.ExpireAll], [Tier.Count] and
// [Tier.Keys] operate on a single space.
//
// An [Entry] is already encoded. Its [Kind] records which primitive accessor wrote
// it, so a reader asking for a different kind can report a miss instead of
// misreading the bytes. Tiers never look inside [Entry.Data].
//
// # Implementations
//
//   - [NewInMemory]: Sharded maps guarded by one mutex per shard. The shard is
//     picked with xxhash over space and key. Entries are stored as-is. Expired
//     entries are removed lazily on access and by a background sweeper.
//
//   - [NewSQLite]: Backed by a SQLite database using [modernc.org/sqlite]
//     (pure Go, no CGO). One row per entry with kind, class and value columns.
//     WAL mode is enabled. Each operation uses a per-query timeout
//     ([DefaultQueryTimeout]).
//
//   - [NewRedis]: Backed by Redis using [github.com/redis/go-redis/v9]. Each
//     entry is a hash (fields "k", "c", "v") under "<prefix>:<space>:<key>".
//     Expiry uses native Redis TTL. The caller owns the [redis.Client].
//
//   - [NewGuarded]: Wraps a remote tier with a [resilience.Breaker]. While the
//     circuit is open reads miss and writes are skipped.
//
//   - [NewComposite]: Chains tiers fastest first. A hit in a lower tier is
//     copied into the tiers above it, so the memory tier warms up from disk.
//
// # Expiry
//
// Set takes a TTL. When it is zero or negative the tier's [WithExpires] default
// applies, and the default itself is zero, meaning entries live until removed.
package cache
