// Package password hashes account passwords with Argon2id.
//
// Hashes use the PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// NeedsRehash reports hashes made with weaker parameters than the current
// configuration so they can be upgraded on the next successful sign-in.
package password
