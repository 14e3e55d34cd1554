// Package cache answers filter requests from previously fetched data.
//
// A Store maps filters to the datasets that satisfy them. MinimalCache
// walks the stored filters, uses every one that overlaps the request and
// fetches only the leftover from a Remote, at most once at a time per
// leftover filter. Planning relies on full simplification (DNF expansion and
// domain reduction) to decide overlap, memoized in an LRU keyed by the
// canonical form of each expression.
//
// Two stores are provided: MemoryStore for a process-local cache and
// PersistentStore on top of the SQLite store.
package cache
