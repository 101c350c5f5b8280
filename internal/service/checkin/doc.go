// Package checkin implements the ticket validation state machine for event
// check-in. Transitions are conditional updates executed by the repository
// ("move to checked_in only if currently registered"), so concurrent
// duplicate scans of the same token resolve to exactly one success.
package checkin
