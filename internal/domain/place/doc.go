// Package place defines the contract between the kernel and its places.
//
// A place is a named directory under the application root with its own
// loader: schemas, static, resources, api, lib, db, domain and scheduler.
// Every place can Load; Change, Delete and Stoppers are optional and
// discovered through interface assertions. Table is the fixed name to
// place mapping the hot-reload dispatcher routes through.
//
// Tree holds what a place has loaded. The sandbox exposes trees to hosted
// code by reference, so a reload is visible without rebuilding the sandbox.
package place
