// Package auth provides authentication for Gadget Core.
//
// It covers:
//   - Password hashing with argon2id (default) or bcrypt, with verification
//     of either format and transparent upgrade on login
//   - Stateless HS256 bearer tokens whose subject is the user ID, with an
//     optional expiry
//   - SQLite-backed user accounts with unique usernames
//   - Registration and login, where an unknown username and a wrong
//     password are indistinguishable to the caller
package auth
