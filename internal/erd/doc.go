// Package erd holds the in-memory ERD state for every appliance the bridge
// has heard from.
//
// An ERD (Extended Retail Data point) is a 16-bit addressed register on an
// appliance. Each device keeps two disjoint sets of ERDs: supported ones,
// which some active appliance API manifest requires and whose writes fan out
// to subscribers, and unsupported ones, which are recorded but silent.
//
// The package also provides the field codec used to pull byte- and
// bit-aligned fields out of an ERD value and splice new values back in.
//
// Thread Safety:
//   - Store and Event are safe for concurrent use.
//   - Subscribers are invoked synchronously without any store lock held,
//     so a subscriber may call back into the Store.
package erd
