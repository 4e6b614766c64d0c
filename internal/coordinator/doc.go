// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

/*
Package coordinator applies operator mutations optimistically and reconciles
them with the backend.

Every Modify and Cancel follows the same protocol:

 1. Reject blocked target dates, unknown reservations and non-movable moves
    locally, without touching the network.
 2. Capture the prior snapshot and mark an echo fingerprint.
 3. Write the change to the event store with OriginLocal and remember the
    generation it received.
 4. Watch for the confirmation, send the message, and wait.
 5. On success, repack the source and destination slots (OriginReflow).
 6. On failure, restore the snapshot with OriginRollback if the entry still
    carries our generation; otherwise the result is reported as stale.

# Pending mutations

At most one mutation is outstanding per reservation. A newer mutation on the
same reservation supersedes the older one: the older wait is cancelled and
returns a superseded result without reverting, and the newer mutation inherits
the older one's prior snapshot so a later failure restores the last state the
backend confirmed.

# Cancel over HTTP

When the transport is not open and an HTTP client is configured, Cancel uses
the synchronous HTTP API instead of queueing. A channel send that fails also
falls back to HTTP. Both paths return the same Result shape.

Results never carry Go errors: every outcome is a models.Result.
*/
package coordinator
