package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/rusticroots/storefront-api/logger"
	"github.com/rusticroots/storefront-api/models"
	"github.com/rusticroots/storefront-api/services"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const placeholderImage = "https://files.therusticroots.com.au/images/placeholder-furniture.svg"

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo users, furniture and the WELCOME10 promotion",
	Long: `Loads an admin and a customer account, the starter furniture catalog
and the WELCOME10 promotion. Existing rows are left alone, so the command
can be run more than once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bootDB()
		if err != nil {
			return err
		}
		defer closeDB(db)

		if err := migrateSchema(db); err != nil {
			return err
		}
		return seedDatabase(cmd.Context(), db, seedPassword, time.Now())
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "password123", "password for the seeded accounts")
	rootCmd.AddCommand(seedCmd)
}

type seedProduct struct {
	name        string
	description string
	price       float64
	category    string
	stock       int
	featured    bool
}

var starterCatalog = []seedProduct{
	{"Rustic Oak Dining Table", "Handcrafted solid oak dining table with a live edge. Seats six to eight and is finished in natural oil.", 1299.99, "Tables", 5, true},
	{"Walnut Bookshelf", "Walnut bookshelf with five adjustable shelves for books, decor and keepsakes.", 899.99, "Storage", 3, true},
	{"Cedar Chest", "Aromatic cedar chest with dovetail joints and brass hardware for blankets and clothing.", 649.99, "Storage", 8, true},
	{"Maple Rocking Chair", "Maple rocking chair with a cushioned seat and a hand-shaped curved back.", 499.99, "Chairs", 12, false},
	{"Pine Coffee Table", "Distressed pine coffee table with a lower shelf for storage.", 399.99, "Tables", 7, false},
	{"Oak Dining Chairs (Set of 4)", "Four matching oak dining chairs with linen upholstered seats.", 799.99, "Chairs", 6, false},
	{"Cherry Wood Dresser", "Cherry wood dresser with six soft-close drawers.", 1099.99, "Storage", 4, false},
	{"Reclaimed Wood Console Table", "Console table built from reclaimed barn wood with its weathered patina intact.", 549.99, "Tables", 9, false},
	{"Mahogany Office Desk", "Mahogany desk with built-in drawers and cable management.", 1499.99, "Decor", 2, false},
	{"Teak Outdoor Bench", "Weather-resistant teak bench for gardens, patios and entryways.", 349.99, "Outdoor", 15, false},
}

// seedDatabase inserts the demo data that is missing
func seedDatabase(ctx context.Context, db *gorm.DB, password string, now time.Time) error {
	log := logger.FromContext(ctx)

	hash, err := services.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash seed password: %w", err)
	}

	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		admin, err := seedUser(tx, "Admin User", "admin@therusticroots.com.au", models.RoleAdmin, hash)
		if err != nil {
			return err
		}
		if _, err := seedUser(tx, "John Doe", "john@example.com", models.RoleUser, hash); err != nil {
			return err
		}

		var productCount int64
		if err := tx.Model(&models.Product{}).Count(&productCount).Error; err != nil {
			return err
		}
		if productCount == 0 {
			products := make([]models.Product, 0, len(starterCatalog))
			for _, p := range starterCatalog {
				products = append(products, models.Product{
					Name:        p.name,
					Description: p.description,
					Price:       p.price,
					Images:      []string{placeholderImage},
					Category:    p.category,
					Stock:       p.stock,
					Featured:    p.featured,
					OwnerID:     admin.ID,
				})
			}
			if err := tx.Create(&products).Error; err != nil {
				return fmt.Errorf("failed to seed products: %w", err)
			}
			log.Info("seeded products", slog.Int("count", len(products)))
		}

		maxDiscount, minOrder := 200.0, 100.0
		welcome := models.Promotion{
			Name:          "Welcome Discount",
			Description:   "10% off your first order",
			Code:          "WELCOME10",
			Type:          models.PromotionTypePercentage,
			Value:         10,
			UsageType:     models.UsageTypeOneTime,
			MinOrderValue: &minOrder,
			MaxDiscount:   &maxDiscount,
			IsActive:      true,
			StartDate:     now,
			EndDate:       now.AddDate(1, 0, 0),
			CreatedByID:   admin.ID,
		}
		err = tx.Where("code = ?", welcome.Code).First(&models.Promotion{}).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&welcome).Error; err != nil {
				return fmt.Errorf("failed to seed promotion: %w", err)
			}
			log.Info("seeded promotion", slog.String("code", welcome.Code))
		case err != nil:
			return err
		}
		return nil
	})
}

func seedUser(tx *gorm.DB, name, email, role, hash string) (models.User, error) {
	user := models.User{Name: name, Email: email, Role: role, PasswordHash: hash}
	if err := tx.Where(models.User{Email: email}).FirstOrCreate(&user).Error; err != nil {
		return user, fmt.Errorf("failed to seed user %s: %w", email, err)
	}
	return user, nil
}
