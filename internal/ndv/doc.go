// Package ndv is the session and resolution layer for a mainframe-hosted
// Natural development server reached through a vendor transport.
//
// The transport multiplexes every request over one socket and is not safe for
// concurrent use, so all access goes through [Client], which serializes every
// transport call behind a single mutex and owns the per-connection caches.
//
// # Components
//
//   - [ParsePath]: pure parser for LIBRARY, LIBRARY/ and LIBRARY/NAME[.EXT].
//   - [AreaResolver]: picks the storage area (database id, file number, kind)
//     a read or write must target, memoized for the life of a connection.
//   - [Paginate]: drives the transport's first/next listing idiom over an
//     explicit [Step] result so end-of-data is never mistaken for a failure.
//   - [Session]: connect, logon and disconnect, codepage negotiation and
//     classification of connect failures.
//   - [Client]: the serializing facade callers use.
//
// # Storage areas
//
// Listing tolerates the server default area (0/0), content operations do not.
// A read or write therefore targets the object's own coordinates when the
// listing reported them and only falls back to the connection-wide area
// otherwise.
//
// # Thread Safety
//
// [Client] is safe for concurrent use; operations are strictly serialized and
// may block for a full round trip including pagination. [Session] and
// [AreaResolver] are not synchronized and are owned by one Client.
package ndv
