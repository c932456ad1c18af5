// Package realtime is the websocket side of parley.
//
// A Gateway admits upgrade requests carrying a realtime session credential,
// matches the path against a RouteTable and hands the accepted connection to
// the route's ConnHandler. The handler requires an in-band authenticate frame
// with a valid access credential before any message is broadcast. A single
// LivenessMonitor pings every open connection and terminates the ones that
// stop answering.
package realtime
