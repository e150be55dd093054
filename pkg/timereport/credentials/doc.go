// Package credentials persists the single login record (server URL and token)
// that authorizes every remote call, either in a JSON file under the user's
// config directory or in the OS keychain.
package credentials
