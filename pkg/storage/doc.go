/*
Package storage provides bbolt-backed persistence for the resource graph.

BoltStore implements the Store interface with one bucket per resource Kind
(resource_collection, resource_collection_commit, ...) plus an id_sequence
bucket that hands out monotonically increasing IDs per kind. Every row is a
JSON-encoded AttrMap, the same attribute-name-to-string-value shape
pkg/meta's codec produces — the storage layer never looks inside a
resource's concrete Go type, only at its attribute map.

# Transactions

Single-row operations (Create, Update, Get, Remove) each run in their own
bbolt transaction. ApplyOperation, used by pkg/snapshot to persist an
entire operation's writes at once, runs the whole batch inside one
transaction: either every write in the batch lands or none do. The Store
interface itself only promises that a caller "tolerates partial
persistence" on error, since not every possible backend can offer atomic
multi-row writes the way bbolt can; BoltStore happens to exceed that
baseline for free.

# Scans

GetCollectionIDs, GetSnapshotIDs, and GetAllActiveSnapshotIDs are bucket
ForEach scans filtered by the state and collection_id attributes. There is
no secondary index: a full bucket walk is the cost of every list query.
That's acceptable here because snapshot metadata buckets are small
relative to the segment data they describe, and matches the teacher's own
approach to by-name lookups (GetServiceByName, GetVolumeByName) before
this was adapted to a by-kind model.
*/
package storage
