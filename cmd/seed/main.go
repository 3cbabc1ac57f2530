package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/luminapay/schoolpay/app/models"
	"github.com/luminapay/schoolpay/app/repository"
	"github.com/luminapay/schoolpay/internal/pkg/config"
	"github.com/luminapay/schoolpay/internal/pkg/database"
	"github.com/luminapay/schoolpay/internal/pkg/logging"
)

func main() {
	fs := flag.NewFlagSet("seed", flag.ExitOnError)
	reset := fs.Bool("reset", false, "delete all orders, statuses, webhook logs and api clients first")
	extra := fs.Int("orders", 0, "number of generated orders to add after the demo ones")
	_ = fs.Parse(os.Args[1:])
	// conf parses os.Args; keep only the program name
	os.Args = os.Args[:1]

	cfg, err := config.Load("seed")
	if err != nil {
		if errors.Is(err, config.ErrHelpWanted) {
			return
		}
		logrus.Fatal(err)
	}
	log := logging.Setup(cfg.Log.Level, "text")

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if *reset {
		if err := resetData(ctx, db); err != nil {
			log.Fatalf("reset: %v", err)
		}
		log.Info("existing data removed")
	}

	res, err := seed(ctx, repository.NewFactory(db).GetRepositories(), *extra, time.Now())
	if err != nil {
		log.Fatal(err)
	}

	log.WithFields(logrus.Fields{
		"orders":   res.Orders,
		"statuses": res.Statuses,
	}).Info("seed data created")
	fmt.Printf("\nAPI key (shown once): %s\n", res.APIKey)
}

func resetData(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&models.OrderStatus{}, &models.Order{}, &models.WebhookLog{}, &models.APIClient{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
