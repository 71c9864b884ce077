// Package apiclient is the HTTP runtime shared by generated Go SDKs.
//
// client.go is self-contained so it can be copied into generated code:
// Source holds its text and the Go target rewrites only the package clause.
package apiclient

import _ "embed"

//go:embed client.go
var Source string
