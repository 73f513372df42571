// Package backend is an HTTP client for the generation backend.
//
// The backend runs the slow work (reference search, layout extraction, title
// and pictogram generation, AI refinement) as background jobs. Trigger
// methods such as [Client.StartTitleGeneration] return as soon as the job is
// accepted; progress is read with [Client.Status], which implements
// poller.Source so a poller.Poller can wait for the job.
//
// Generated assets are served as static files. [Client.AssetURL] resolves a
// backend-relative path and appends a timestamp so a regenerated image is
// never served from a stale cache.
//
// Requests are not retried unless the client is built [WithRetries]; a
// failed status query should stop polling rather than be masked.
package backend
