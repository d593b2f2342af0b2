// Package jobstore persists repair jobs, technicians, and the append-only
// stage transition ledger in SQLite.
//
// The store owns the job's hot-path row (current stage, stage entry time,
// version) and a separate stage_transitions table that only ever receives
// INSERTs; triggers reject UPDATE and DELETE on it. CommitTransition advances
// a job's stage pointer with a compare-and-swap on version and current stage
// and inserts the ledger row in the same transaction, so either both land or
// neither does. A lost race surfaces as ErrConflict.
//
// The store also serves as the technician directory: technicians are listed
// per shop and their assigned hours are the sum of the estimated hours of
// their open jobs.
package jobstore
