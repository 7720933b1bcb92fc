// Package downvid holds metadata shared by the binaries.
package downvid

// Version is the application version, set at release time.
const Version = "0.3.1"
