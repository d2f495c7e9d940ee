// Package engine combines the cache tiers into the store that backs every
// cache space.
//
// Reads go to an in-process memory tier first and fall back to a SQLite
// database at <path>/cache.sqlite, copying disk hits back into memory. Writes
// go to both, so values survive a restart of the process. An optional Redis
// tier can be appended with [WithRedis] to share values between processes.
package engine
