// Package resolver decides, for every thread of a configuration, how each
// requirement of each active provider is satisfied: locally, by the default
// set, or by exactly one other thread (directly or through an alias). The
// result is the cross-thread transport manifest consumed by the scheduler and
// the execution view exporter.
package resolver
