// Package campaign implements campaign lifecycle management: drafting,
// deliverability testing, the send loop, and stats.
//
// The service layer contains all business logic. It depends on the
// repository interface defined in this package and on the mailer transport
// chain; it should never import from api/.
//
// The send loop is resumable. Send enqueues one durable queue row per
// recipient before it delivers anything, then works through the rows; a
// crash mid-send leaves the campaign in "sending" with its remaining rows
// pending, and the recovery worker re-runs the same loop.
package campaign
