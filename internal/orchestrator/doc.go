// Package orchestrator drives one sync run against the roster site:
//
//	login -> roster -> profiles -> complete
//
// Any phase can end the run as failed, or as cancelled when the context is
// cancelled. The browser session is closed on every exit path.
//
// The run is strictly sequential because a single browser session is being
// driven. Progress is reported through a synchronous callback at fixed
// checkpoints, and every run is tracked as a types.SyncSession that is
// persisted through an optional SessionStore.
//
// Profiles are opened by clicking member names on the roster, so before each
// profile the browser is moved back to the roster page that member was read
// on. Back from a profile is assumed to return to that same page.
package orchestrator
