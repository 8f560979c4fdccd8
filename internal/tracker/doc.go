// Package tracker accumulates foreground time and reconciles it with the
// backend.
//
// A Tracker is driven by three inputs:
//
//   - lifecycle notifications (OnForeground / OnBackground) that start and
//     stop accrual,
//   - a periodic flush that writes the running total to a storage slot while
//     accruing,
//   - reconciliation (Start, Reset, Sync) that delivers the persisted total
//     to the user or visitor endpoint and clears the slot on success.
//
// The persisted value only shrinks after the backend confirmed a delivery or
// when it is below the reporting threshold. Failed deliveries stay in the
// slot for the next start.
package tracker
