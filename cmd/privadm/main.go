// Command privadm is the administrative CLI for privd: it talks to the
// daemon's admin socket to manage buckets and policies, and offers
// offline conveniences (config inspection, hash-key) that need no
// running daemon.
package main

import "github.com/privd/privd/cmd/privadm/cmd"

func main() {
	cmd.Execute()
}
