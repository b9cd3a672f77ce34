// Package cli is the marinelog technician command line.
//
// Every command opens the local record store, restores the saved session
// and probes the server once before doing its work, so add, edit and delete
// behave the same offline as online: the change is kept locally and synced
// immediately when the server is reachable, later otherwise. The watch
// command keeps running, syncing on every reconnect and on every change
// pushed by the server.
package cli
