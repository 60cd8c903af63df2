package main

import (
	_ "go.uber.org/automaxprocs"

	"github.com/opsdeck/opsdeck/cmd/opsdeck/app"
)

func main() {
	app.NewApp().Run()
}
