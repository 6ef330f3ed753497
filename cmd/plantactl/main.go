package main

import (
	"fmt"
	"log"
	"os"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/kpsoft/kp-planta/internal/config"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Error: %s\n", err)
	}
}

func run() (returnError error) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic: %v\n", r)
			debug.PrintStack()
			returnError = fmt.Errorf("panic recovered")
		}
	}()

	config.Load()
	c := config.New()

	app, err := newApp(c)
	if err != nil {
		return err
	}

	root := newRootCommand(app, c)
	if len(os.Args) <= 1 {
		displayAppname(c.GetAppName())
	}
	return root.Execute()
}

func displayAppname(appName string) {
	banner := figure.NewFigure(appName, "", true)
	banner.Print()
	fmt.Println()
}
