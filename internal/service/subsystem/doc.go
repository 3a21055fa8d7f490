// Package subsystem manages mailing-list subscriptions: which subsystems the
// poller follows, lookup and search over known subsystem names, and the
// audit log of operator actions.
package subsystem
