package main

import (
	"os"

	"github.com/DebritB/NewsRAG/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
