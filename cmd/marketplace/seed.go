package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RushiPardeshi/agent-marketplace/internal/market"
)

// catalog is the sample inventory used for demos and local testing.
var catalog = []market.Listing{
	{ID: "macbook-pro-2021", Title: "MacBook Pro 2021 (14-inch)", Description: "M1 Pro, 16GB RAM, 512GB SSD. Excellent condition.", Price: 1200, Category: "electronics"},
	{ID: "macbook-air-m1", Title: "MacBook Air 2020 (M1)", Description: "13-inch, 8GB RAM, 256GB SSD. Great battery. Includes charger.", Price: 650, Category: "electronics"},
	{ID: "thinkpad-t480", Title: "Lenovo ThinkPad T480", Description: "i5, 16GB RAM, 512GB SSD. Great keyboard. New battery.", Price: 420, Category: "electronics"},
	{ID: "rog-gaming-laptop", Title: "ASUS ROG Gaming Laptop", Description: "RTX 3060, 16GB RAM, 1TB SSD. 144Hz display. Runs cool.", Price: 950, Category: "electronics"},
	{ID: "iphone-13", Title: "iPhone 13 (128GB)", Description: "Unlocked. Battery health 92%. Like new.", Price: 420, Category: "electronics"},
	{ID: "pixel-7", Title: "Google Pixel 7", Description: "Unlocked. 128GB. Great photos. Includes case.", Price: 320, Category: "electronics"},
	{ID: "nintendo-switch", Title: "Nintendo Switch", Description: "Includes dock + 2 joycons + HDMI cable.", Price: 180, Category: "electronics"},
	{ID: "sony-xm4", Title: "Sony WH-1000XM4 Headphones", Description: "Noise-cancelling. Includes case and cable.", Price: 160, Category: "electronics"},
	{ID: "mountain-bike", Title: "Mountain Bike", Description: "Hardtail bike, tuned recently. Helmet optional.", Price: 220, Category: "sports"},
	{ID: "gaming-chair", Title: "Gaming Chair", Description: "Ergonomic chair, minor wear on armrests.", Price: 75, Category: "furniture"},
	{ID: "dining-table", Title: "Dining Table", Description: "Wooden dining table for 6 people. Solid construction.", Price: 200, Category: "furniture"},
	{ID: "kindle-paperwhite", Title: "Kindle Paperwhite", Description: "Latest gen. Great condition.", Price: 80, Category: "electronics"},
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the sample listing catalog into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			repo, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			for i := range catalog {
				l := catalog[i]
				if err := repo.SaveListing(cmd.Context(), &l); err != nil {
					return fmt.Errorf("save listing %s: %w", l.ID, err)
				}
			}
			fmt.Printf("Seeded %d listings\n", len(catalog))
			return nil
		},
	}
}
