// Package space implements named cache spaces and the typed storage protocol
// layered over them.
//
// A [Space] is a named partition of a [Store]. It exposes one accessor pair per
// primitive kind (SetInt32/Int32, SetString/String, ...) plus a class-tagged
// object pair ([Space.SetObject], [Space.Object]). Readers report absence with a
// second boolean result; they never substitute a zero value for a value that is
// missing, stored under another kind, or undecodable. Writers never return
// errors: a failed write is logged and otherwise dropped.
//
// The generic [Set] and [Get] functions pick the accessor from the static type:
//
//	space.Set(s, "isActive", true)
//	active, ok := space.Get[bool](s, "isActive")
//
// Types outside the built-in set can take over their own encoding by
// implementing [Storable] and [Loader]. Anything else is stored as an object
// whose class token is [ClassArray] for slices, [ClassDictionary] for maps and
// the Go type name otherwise. Values are encoded with msgpack, so struct fields
// must be exported to survive.
package space
