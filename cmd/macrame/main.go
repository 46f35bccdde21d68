// Command macrame is the operator CLI of the admin: migrations, page tree
// inspection and reordering, tree integrity checks and one-off maintenance runs.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
