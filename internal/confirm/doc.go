// Slotsync - Real-Time Reservation Synchronization Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/slotsync

/*
Package confirm resolves outstanding mutations against the inbound message stream.

A caller describes what it is waiting for with an Expectation (correlation id,
reservation id, subject and date) and blocks in Registry.Await until one of
the following happens:

  - an explicit *_ack or *_nack carrying the same correlation id arrives
  - a state broadcast of an accepted type matches the reservation id or the
    (subject, date) pair, for servers that never send explicit acks
  - the confirmation timeout elapses, counted only from the moment the
    transport is open
  - the absolute ceiling elapses, whether or not the transport ever opened
  - the caller's context is cancelled

The first of these wins. The stream subscription and every timer are released
on each path.
*/
package confirm
