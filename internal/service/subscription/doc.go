// Package subscription manages the contact opt-out flag that gates campaign
// audiences. Unsubscribing is idempotent and survives later registrations:
// registration merges never flip unsubscribed back on their own.
package subscription
