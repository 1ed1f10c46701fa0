// cloudcoach answers cloud architecture questionnaires and evaluates
// identity policies from the command line.
package main

import "github.com/fystack/cloudcoach/internal/cli"

func main() {
	cli.Execute()
}
