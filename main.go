package main

import (
	"github.com/AzielCF/az-sticker/cmd"
)

func main() {
	cmd.Execute()
}
