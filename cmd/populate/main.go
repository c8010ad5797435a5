// Command populate loads the demo catalog into the configured database.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/talkincode/storefront/config"
	"github.com/talkincode/storefront/internal/app"
)

func main() {
	conffile := flag.String("c", "", "config yaml file")
	flag.Parse()

	cfg := config.LoadConfig(*conffile)
	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	res, err := application.SeedDemoData()
	if err != nil {
		fmt.Fprintf(os.Stderr, "populate failed: %v\n", err)
		application.Release()
		os.Exit(1)
	}
	fmt.Printf("Created %d categories, %d products, %d offers\n", res.Categories, res.Products, res.Offers)
	fmt.Println("Sample data populated successfully!")
}
