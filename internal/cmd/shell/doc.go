// Package shell provides the `multiflow shell` and `multiflow exec` commands.
//
// Both run an in-process device registry and drive it with a small line
// language:
//
//	open 0            # open a session on device 0 (closes the current one)
//	priority low      # low | high
//	blocking on       # on | off
//	timeout 500       # milliseconds; 0 means try once
//	write hello world
//	read 5
//	disable 1 / enable 1
//	status            # optional CEL filter: status unread > 0
//	sleep 100         # milliseconds, handy in scripts
//	close
//	quit
//
// The shell reads commands from stdin; exec reads them from a file (or "-")
// and stops at the first failing command unless --keep-going is set.
package shell
