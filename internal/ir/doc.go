// Package ir provides the canonical expression representation for splitq.
//
// Every filter handled by the simplifier, the DNF expander, the domain reducer
// and the decomposition layer is an ir.Expression. The package owns the value
// types that may appear inside relations, the node constructors, the tree
// simplifier and the canonical encoding that gives each expression a stable
// identity.
//
// Key design constraints:
//   - Expressions are immutable values. Constructors normalize trivially
//     (membership values and compound children are deduplicated and sorted)
//     but never simplify semantically.
//   - Identity is the canonical JSON key (RFC 8785 style: sorted object keys,
//     NFC-normalized strings, no HTML escaping). Equal, Hash and Digest are all
//     derived from it, so two variants with identical payloads never collide.
//   - The canonical key is also the wire format, so an expression decoded from
//     its key is Equal to the original.
//
// ir imports nothing internal. All other internal packages import ir.
package ir
