// Package exitnode resolves which exit relay the session's traffic leaves
// through.
//
// The Tracker asks a what-is-my-IP service for the network-visible address,
// verifies with the project's own checker that the address really is a known
// exit, and then geolocates it. All requests go through the SOCKS client;
// only the address is required, every geographic field is optional. The
// geolocation call sits behind a circuit breaker so a flaky provider cannot
// be hammered after every rotation.
package exitnode
