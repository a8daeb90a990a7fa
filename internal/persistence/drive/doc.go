// Package drive is the cloud destination backed by the Google Drive v3 REST
// API.
//
// Credentials live in an explicit Session constructed once and shared by
// every call; nothing is kept in package state. Projects are saved into one
// folder that is found by name or created on first use. Each save uploads a
// new file.
package drive
