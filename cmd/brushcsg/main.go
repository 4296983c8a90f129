// Command brushcsg evaluates brush scenes written in the scene Lisp and
// reports the meshes, routing tables and previews they produce.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "brushcsg:", err)
		os.Exit(1)
	}
}
