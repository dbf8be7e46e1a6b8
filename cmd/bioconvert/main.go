// Command bioconvert converts ISO/IEC 19794 record files on the local disk and
// wraps raw images into records for fixtures.
package main

import (
	"fmt"
	"io"
	"log"
	"os"
)

const usage = `usage:
  bioconvert convert -source <format> -target <format> [-key k] file...
  bioconvert wrap -modality finger|face|iris -tag <n> [-width w] [-height h] [-out path] image`

func main() {
	logger := log.New(os.Stderr, "[cli] ", log.LstdFlags|log.Lmsgprefix)
	os.Exit(run(os.Args[1:], os.Stdout, logger))
}

func run(args []string, stdout io.Writer, logger *log.Logger) int {
	if len(args) == 0 {
		fmt.Fprintln(stdout, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "convert":
		err = runConvert(args[1:], stdout, logger)
	case "wrap":
		err = runWrap(args[1:], stdout, logger)
	case "help", "-h", "--help":
		fmt.Fprintln(stdout, usage)
		return 0
	default:
		fmt.Fprintln(stdout, usage)
		return 2
	}
	if err != nil {
		logger.Printf("%s failed: %v", args[0], err)
		return 1
	}
	return 0
}
