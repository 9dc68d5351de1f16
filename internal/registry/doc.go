// Package registry implements the validation and history state machine of
// service provider records.
//
// Every edit runs inside one store transaction. Changing a tracked field of
// a validated version freezes that version into history and starts a new,
// unvalidated current version with the same ID, so child records keep
// pointing at the live identity. Validation stamps the current version and
// its pending children.
//
// Resolve reconstructs what published metadata should show: the live view
// (current version, active children) or the validated view (the latest
// validated version and the children that were visible at its validation
// time).
package registry
