// Command suprema-gate runs the datagate HTTP gateway.
package main

import "github.com/ridgeline-io/datagate/cmd/suprema-gate/cmd"

func main() {
	cmd.Execute()
}
