// Package tracking signs and verifies the per-subscriber tokens embedded in
// unsubscribe links.
//
// A token is base64url(email) + "." + base64url(HMAC-SHA256(secret, email)).
// Tokens carry no timestamp, so the same subscriber always receives the same
// link and rendered messages stay byte-identical across sends. Rotating the
// secret invalidates every outstanding link.
package tracking
