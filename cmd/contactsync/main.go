// Package main provides the entry point for the contactsync CLI.
package main

import (
	"github.com/agentstation/contactsync/cmd/contactsync/cmd"
)

// Version information populated by goreleaser.
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	cmd.Execute(version, commit, date)
}
