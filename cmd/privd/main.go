// Command privd is the policy-decision daemon (§4, §6): it listens on the
// client, admin, and agent UNIX sockets and answers CHECK requests against
// the bucketed policy store.
package main

import "github.com/privd/privd/cmd/privd/cmd"

func main() {
	cmd.Execute()
}
