package main

import (
	"os"

	"github.com/odb-lang/odb-compiler/cmd/odbc/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
