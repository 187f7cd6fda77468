// Package config holds the runtime configuration for rustator.
//
// Configuration is assembled from CLI flags and an optional YAML policy file,
// then passed into constructors via dependency injection. There is no global
// configuration state: the control, rotation, and exit-node components each
// receive the values they need, which keeps them testable against in-memory
// transports and httptest servers.
package config
