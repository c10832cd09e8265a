// Package watcher turns kernel filesystem notifications into activity records.
//
// A Registry owns the set of watched directories, Walk seeds it from a root
// at startup, and a Dispatcher runs the read/decode/dispatch loop, extending
// the registry as subdirectories appear and throttling access records per
// path. None of these types lock: they are owned by the goroutine running the
// Dispatcher, and shutdown happens on that same goroutine after Run returns.
package watcher
