package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB: %v", err)
	}

	stmts := []string{`
	CREATE TABLE IF NOT EXISTS payments (
	  id CHAR(36) NOT NULL,
	  order_id VARCHAR(64) NULL,
	  customer_id VARCHAR(64) NULL,
	  rp_order_id VARCHAR(64) NOT NULL,
	  rp_payment_id VARCHAR(64) NULL,
	  amount BIGINT NOT NULL,
	  currency CHAR(3) NOT NULL,
	  status VARCHAR(32) NOT NULL,
	  method VARCHAR(32) NULL,
	  email VARCHAR(255) NULL,
	  contact VARCHAR(32) NULL,
	  last_event VARCHAR(64) NULL,
	  metadata JSON NULL,
	  idem_create_key VARCHAR(128) NOT NULL,
	  created_at DATETIME(3) NOT NULL,
	  updated_at DATETIME(3) NOT NULL,
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_payments_rp_order_id (rp_order_id),
	  UNIQUE KEY ux_payments_idem_create_key (idem_create_key),
	  KEY ix_payments_order_id (order_id),
	  KEY ix_payments_customer_id (customer_id),
	  KEY ix_payments_rp_payment_id (rp_payment_id),
	  KEY ix_payments_status (status)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
	CREATE TABLE IF NOT EXISTS refunds (
	  id CHAR(36) NOT NULL,
	  payment_id CHAR(36) NOT NULL,
	  rp_refund_id VARCHAR(64) NOT NULL,
	  amount BIGINT NOT NULL,
	  status VARCHAR(32) NOT NULL,
	  idempotency_key VARCHAR(128) NULL,
	  created_at DATETIME(3) NOT NULL,
	  updated_at DATETIME(3) NOT NULL,
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_refunds_rp_refund_id (rp_refund_id),
	  UNIQUE KEY ux_refunds_payment_idem (payment_id, idempotency_key),
	  KEY ix_refunds_payment_id (payment_id),
	  CONSTRAINT fk_refunds_payment FOREIGN KEY (payment_id) REFERENCES payments(id) ON DELETE RESTRICT
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`, `
	CREATE TABLE IF NOT EXISTS provider_events (
	  id CHAR(36) NOT NULL,
	  event_id VARCHAR(128) NOT NULL,
	  event_type VARCHAR(64) NOT NULL,
	  payload_json JSON NOT NULL,
	  received_at DATETIME(3) NOT NULL,
	  processed_at DATETIME(3) NULL,
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_provider_events_event_id (event_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`}

	for _, stmt := range stmts {
		if _, err := sqlDB.Exec(stmt); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
	}

	log.Println("Tables created.")
}
