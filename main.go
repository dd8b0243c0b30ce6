package main

import (
	"os"

	"quietlibrary/app"
)

func main() {
	os.Exit(app.Execute())
}
