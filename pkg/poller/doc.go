// Package poller watches long-running generation jobs.
//
// The generation backend runs one job at a time and exposes its progress as
// a single status object. A job is finished when the reported step equals
// the step the caller started and the completed flag is set. [Decode] turns
// that object into a [Status] whose Payload is a typed value for the step
// (titles, pictograms, export result) instead of a loose map.
//
// [Poller.Poll] queries the status at a fixed interval until the target step
// completes. Polling is fail-stop: the first query error ends the poll and is
// returned unchanged, there is no retry. [Poller.Start] runs a poll in the
// background and cancels whichever poll was running before it.
//
// [Debouncer] coalesces bursts of requests so only the latest one runs, and
// drops requests that arrive while a previous one is still executing.
package poller
