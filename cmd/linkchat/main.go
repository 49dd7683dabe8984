// Command linkchat serves a chat API that answers questions about the web
// pages linked in each message.
//
// Usage:
//
//	linkchat serve
//	linkchat fetch <url>...
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
