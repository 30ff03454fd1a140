package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"foodcourt/internal/config"
	"foodcourt/internal/db"
	"foodcourt/internal/models"
)

// Seed the database with demo data: one merchant with a two-dish stall and
// two customers with open orders.
func main() {
	ctx := context.Background()
	cfg := config.Load()

	database, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if _, err := database.MerchantByUsername(ctx, "noodle-stand"); err == nil {
		fmt.Println("Database already seeded.")
		os.Exit(0)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	merchant, err := database.CreateMerchant(ctx, "noodle-stand", string(hash))
	if err != nil {
		log.Fatalf("Failed to create merchant: %v", err)
	}
	restaurant, err := database.CreateRestaurant(ctx, merchant.ID, "Noodle Stand")
	if err != nil {
		log.Fatalf("Failed to create restaurant: %v", err)
	}

	prepTen := 10
	noodles, err := database.CreateMenu(ctx, models.Menu{
		RestaurantID:      restaurant.ID,
		Name:              "Beef Noodles",
		Price:             decimal.NewFromFloat(6.50),
		EstimatedPrepTime: &prepTen,
	})
	if err != nil {
		log.Fatalf("Failed to create menu: %v", err)
	}
	prepFive := 5
	rice, err := database.CreateMenu(ctx, models.Menu{
		RestaurantID:      restaurant.ID,
		Name:              "Fried Rice",
		Price:             decimal.NewFromFloat(5.00),
		EstimatedPrepTime: &prepFive,
	})
	if err != nil {
		log.Fatalf("Failed to create menu: %v", err)
	}

	extra := decimal.NewFromFloat(1.00)
	spicy, err := database.CreateOption(ctx, models.Option{MenuID: noodles.ID, Name: "Extra Spicy"})
	if err != nil {
		log.Fatalf("Failed to create option: %v", err)
	}
	egg, err := database.CreateOption(ctx, models.Option{MenuID: rice.ID, Name: "Add Egg", ExtraPrice: &extra})
	if err != nil {
		log.Fatalf("Failed to create option: %v", err)
	}

	for i, username := range []string{"alice", "bob"} {
		customer, err := database.CreateCustomer(ctx, username, string(hash))
		if err != nil {
			log.Fatalf("Failed to create customer %s: %v", username, err)
		}
		menu, optionID := noodles, spicy.ID
		if i == 1 {
			menu, optionID = rice, egg.ID
		}
		_, err = database.CreateOrder(ctx, &models.Order{
			RestaurantID: restaurant.ID,
			CustomerID:   customer.ID,
			Status:       models.StatusOrdered,
			PricePaid:    menu.Price,
			OrderedAt:    int64(1700000000 + i),
			Items: []models.OrderItem{
				{MenuID: menu.ID, Quantity: 1, OptionIDs: []int{optionID}},
			},
		})
		if err != nil {
			log.Fatalf("Failed to create order for %s: %v", username, err)
		}
	}

	fmt.Println("Successfully seeded the database!")
}
