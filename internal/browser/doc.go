// Package browser drives an external browser-automation CLI.
//
// Every operation is one invocation of the CLI binary with a single command
// (open, snapshot, click, fill, press, back, close, screenshot, find). The
// CLI keeps the browser alive between invocations under a named session, so
// the Client is a thin, stateless-looking wrapper over a stateful remote page.
//
// Pages are read through accessibility snapshots: a map of element refs
// ("e12") to role and accessible name, plus a text rendering of the tree.
// A ref is only meaningful against the snapshot it came from.
//
// All waiting is active polling (WaitFor). The remote page has no push channel.
package browser
