// Command dataproxy runs the S3-compatible proxy: the HTTP gateway,
// the peer pull-replication listener, and the replication scheduler,
// all sharing one process's cache and backend adapter.
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
