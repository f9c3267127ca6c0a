// Package store defines the narrow document-store contract the authorization
// core consumes, partitioned into platform, per-tenant and legacy databases.
//
// The core only ever needs findOne/find/insertOne/updateOne style operations
// over a handful of named collections; everything else about the backing
// store is out of scope. Two implementations are provided: MongoDB for
// production and an in-memory store for tests and single-node development.
package store
