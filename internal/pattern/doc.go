// Package pattern defines the records tracked by the pattern-lifecycle engine.
//
// A Pattern is a short, reusable observation captured during one workflow
// scope (research, plan, implement, review, release). Patterns carry raw
// metrics (frequency, success rate, first/last seen) plus derived caches
// (confidence, score, embedding) that are always recomputable from the raw
// fields and the engine configuration.
//
// Clusters group related patterns within one scope. A cluster holds pattern
// IDs only; patterns point back through ClusterID. Neither side owns the
// other, so removing a pattern only requires pruning membership lists.
//
// # Identity
//
// Pattern IDs are derived from scope, type and normalized text, so the same
// observation always maps to the same ID. Cluster IDs are derived from the
// sorted member ID set, so identical membership always yields the same ID.
package pattern
