package main

import (
	"os"

	"github.com/okian/clickrank/internal/loadcheck"
)

func main() {
	if err := loadcheck.NewCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
