// Package models holds the typed records returned by the local gateway and
// cloud APIs.
//
// Records are plain value snapshots. Decoding maps vendor field names to Go
// names and smooths over the differences between the two APIs:
//
//   - "id" becomes ID; LocalID defaults to ID when "local_id" is absent
//   - a location is read from a nested "location" object or, when there is
//     none, from the record's own flat fields; "room" stands in for "room_id"
//     and floor coordinates missing either axis are dropped
//   - "status": 1 inside an output status means on; "dimmer" is the level
//   - lights without "capabilities" get ON_OFF, plus RANGE on dimmer modules
//   - energy readings arrive as [voltage, frequency, current, power]
//   - the cloud's "_acl" and "_version" are accepted where "acl" and
//     "version" are expected
//
// Unknown vendor fields are ignored. Encoding a decoded record and decoding it
// again yields the same record.
package models
