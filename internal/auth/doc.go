// Package auth implements staff authentication for Shelfwise.
//
// Passwords are hashed with Argon2id and stored in PHC string format.
// Accounts accumulate a failed-login counter and lock once it reaches the
// configured threshold; only an administrative unlock clears it. On first
// boot a seed admin account is created with a random password logged at
// warn level.
//
// Library members are deliberately outside this package: they have no
// credentials and never authenticate.
package auth
