// Command ratmaze runs rats through a maze of capacity-limited rooms and
// reports how long the traversal took.
package main

import "github.com/sarchlab/ratmaze/ratmaze/cmd"

func main() {
	cmd.Execute()
}
