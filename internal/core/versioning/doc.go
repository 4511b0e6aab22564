// Package versioning decides which application versions are newer than the
// one currently deployed.
//
// This package is part of the Functional Core: every function is pure and
// works only on the values it is given.
//
// # Strategies
//
//   - Semver: compares version names as semantic versions, tolerating a
//     leading "v" and partial versions such as "1.2".
//   - Chronological: compares version creation timestamps.
//
// A Strategy is picked once, by name, with New. The resolver never branches on
// the strategy kind itself.
//
// # Usage
//
//	strategy, err := versioning.New("semver")
//	newer := versioning.NewerVersions(app.Versions, &current, strategy)
//	latest, ok := versioning.Latest(newer)
package versioning
