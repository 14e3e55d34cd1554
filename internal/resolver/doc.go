// Package resolver answers table queries from several places at once.
//
// Caches are consulted first, then sources in priority order. Each one is
// asked for its Capability against the part of the query still outstanding:
// a superset query it can run, a refine to cut the superset down, and the
// remainder it cannot serve. Resolution succeeds when no remainder is left.
// The engine then reads every superset, refines it and unions the parts.
//
// DecomposingSource offers a fixed query through query.DecomposeQuery.
// StoreCache keeps raw rows in the SQLite store under the canonical key of
// the query they answer. TableRemote adapts a Resolver into the remote of a
// cache.MinimalCache.
package resolver
