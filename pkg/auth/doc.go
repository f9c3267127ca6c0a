// Package auth holds the identity model shared across the authorization
// core: the closed role set, the user record shape, the signed login token
// codec and the structured authentication error type.
package auth
