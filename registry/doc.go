// Package registry owns the cache engine of a process and the named spaces
// built over it.
//
// A [Registry] is created empty with [New] and becomes usable after one call to
// [Registry.Initialize], which opens the engine and registers the default space
// under [DefaultSpaceName]:
//
//	reg := registry.New(registry.WithLogger(log))
//	if err := reg.Initialize(ctx, "/var/cache/myapp"); err != nil {
//	    return err
//	}
//	session := reg.Space("session")
//	space.Set(session, "isActive", true)
//
// Asking for a space before Initialize is a programming error and panics.
package registry
