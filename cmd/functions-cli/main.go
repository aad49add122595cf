package main

import (
	"fmt"
	"os"

	"mosaic-functions/internal/cli"
	"mosaic-functions/internal/common/errors"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.CodeOf(err) == string(errors.ErrCodeMissingSecret) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
