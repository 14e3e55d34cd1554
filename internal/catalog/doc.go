// Package catalog loads dataset definitions written in CUE.
//
// A dataset names a table, types its columns and lists the remote sources
// that serve it, each as a fixed query. The catalog type-checks filters
// before they reach the simplifier and builds resolver sources for a
// dataset.
package catalog
