package main

import "github.com/IaSoC/sekai-pass-l10n/internal/cli"

func main() {
	cli.Execute()
}
