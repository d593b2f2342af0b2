// Package ledger is the append-only stage history of every repair job.
//
// Append is the only way a Record comes into existence. It stamps the
// transition time, derives the minutes spent in the stage being left (null
// for a job's first transition, when no entry time exists yet), and hands the
// record to the Store together with the caller's expected job version so the
// store can advance the job's stage pointer and insert the record in one
// atomic commit. Records are never updated or deleted.
//
// The ledger is the sole source of truth for "how long was job X in stage Y":
// TotalCycleTime and the per-stage StageMinutes are computed from the stored
// records plus the open interval of the stage the job currently sits in.
package ledger
