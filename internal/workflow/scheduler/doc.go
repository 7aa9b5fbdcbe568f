// Package scheduler orders the providers of each thread so that every provider
// runs after the local providers of the representations it requires. Names
// satisfied by defaults or by other threads never produce edges.
package scheduler
