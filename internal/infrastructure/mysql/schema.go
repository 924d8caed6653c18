package mysql

import (
	"context"
	"database/sql"
	"fmt"
)

// Tables lists the schema in dependency order (parents first).
var Tables = []struct {
	Name string
	DDL  string
}{
	{"Orders", `
	CREATE TABLE IF NOT EXISTS Orders (
		id CHAR(36) NOT NULL PRIMARY KEY,
		orderNumber VARCHAR(32) NOT NULL UNIQUE,
		userId VARCHAR(64) NOT NULL,
		subtotal DECIMAL(12,2) NOT NULL,
		discount DECIMAL(12,2) NOT NULL DEFAULT 0.00,
		deliveryCharge DECIMAL(12,2) NOT NULL DEFAULT 0.00,
		tax DECIMAL(12,2) NOT NULL DEFAULT 0.00,
		total DECIMAL(12,2) NOT NULL,
		couponCode VARCHAR(64) NULL,
		shippingAddress JSON NOT NULL,
		deliveryPincode VARCHAR(16) NOT NULL,
		paymentMethod VARCHAR(16) NOT NULL,
		paymentStatus VARCHAR(16) NOT NULL,
		paymentId VARCHAR(64) NULL,
		gatewayOrderId VARCHAR(64) NULL,
		status VARCHAR(16) NOT NULL,
		statusHistory JSON NOT NULL,
		trackingNumber VARCHAR(128) NULL,
		trackingUrl VARCHAR(512) NULL,
		courierName VARCHAR(128) NULL,
		cancelledAt DATETIME(6) NULL,
		cancellationReason TEXT NULL,
		estimatedDeliveryDate DATETIME(6) NULL,
		createdAt DATETIME(6) NOT NULL,
		updatedAt DATETIME(6) NOT NULL,
		version INT NOT NULL DEFAULT 1,
		INDEX idx_user_created (userId, createdAt),
		INDEX idx_created (createdAt),
		INDEX idx_status (status)
	)`},
	{"OrderItems", `
	CREATE TABLE IF NOT EXISTS OrderItems (
		id CHAR(36) NOT NULL PRIMARY KEY,
		orderId CHAR(36) NOT NULL,
		productId VARCHAR(64) NOT NULL,
		productName VARCHAR(255) NOT NULL,
		productImage VARCHAR(512) NULL,
		variantId VARCHAR(64) NULL,
		variantName VARCHAR(255) NULL,
		quantity INT NOT NULL,
		price DECIMAL(12,2) NOT NULL,
		subtotal DECIMAL(12,2) NOT NULL,
		lineNumber INT NOT NULL DEFAULT 0,
		FOREIGN KEY (orderId) REFERENCES Orders(id) ON DELETE CASCADE,
		INDEX idx_order (orderId)
	)`},
	{"OrderSequences", `
	CREATE TABLE IF NOT EXISTS OrderSequences (
		year INT NOT NULL PRIMARY KEY,
		value BIGINT NOT NULL
	)`},
	{"Coupons", `
	CREATE TABLE IF NOT EXISTS Coupons (
		id CHAR(36) NOT NULL PRIMARY KEY,
		code VARCHAR(64) NOT NULL UNIQUE,
		description VARCHAR(255) NOT NULL DEFAULT '',
		discountType VARCHAR(16) NOT NULL,
		discountValue DECIMAL(12,2) NOT NULL,
		minOrderValue DECIMAL(12,2) NULL,
		maxDiscount DECIMAL(12,2) NULL,
		usageLimit INT NULL,
		usageCount INT NOT NULL DEFAULT 0,
		perUserLimit INT NULL,
		validFrom DATETIME(6) NOT NULL,
		validUntil DATETIME(6) NOT NULL,
		isActive TINYINT(1) NOT NULL DEFAULT 1,
		createdAt DATETIME(6) NOT NULL,
		updatedAt DATETIME(6) NOT NULL
	)`},
	{"DeliverySettings", `
	CREATE TABLE IF NOT EXISTS DeliverySettings (
		id INT NOT NULL PRIMARY KEY,
		businessPincode CHAR(6) NOT NULL DEFAULT '',
		businessCity VARCHAR(128) NOT NULL,
		businessState VARCHAR(128) NOT NULL,
		businessLatitude DOUBLE NOT NULL,
		businessLongitude DOUBLE NOT NULL,
		localDeliveryCharge DECIMAL(12,2) NOT NULL,
		cityDeliveryCharge DECIMAL(12,2) NOT NULL,
		stateDeliveryCharge DECIMAL(12,2) NOT NULL,
		nationalDeliveryCharge DECIMAL(12,2) NOT NULL,
		freeShippingEnabled TINYINT(1) NOT NULL DEFAULT 0,
		freeShippingThreshold DECIMAL(12,2) NOT NULL DEFAULT 0.00,
		updatedAt DATETIME(6) NOT NULL
	)`},
	{"Pincodes", `
	CREATE TABLE IF NOT EXISTS Pincodes (
		pincode CHAR(6) NOT NULL PRIMARY KEY,
		city VARCHAR(128) NOT NULL,
		state VARCHAR(128) NOT NULL,
		latitude DOUBLE NULL,
		longitude DOUBLE NULL
	)`},
	{"Profiles", `
	CREATE TABLE IF NOT EXISTS Profiles (
		id VARCHAR(64) NOT NULL PRIMARY KEY,
		email VARCHAR(255) NOT NULL,
		fullName VARCHAR(255) NOT NULL DEFAULT ''
	)`},
	{"NotificationLogs", `
	CREATE TABLE IF NOT EXISTS NotificationLogs (
		id CHAR(36) NOT NULL PRIMARY KEY,
		type VARCHAR(32) NOT NULL,
		recipient VARCHAR(255) NOT NULL,
		subject VARCHAR(255) NOT NULL,
		body MEDIUMTEXT NOT NULL,
		orderId CHAR(36) NULL,
		status VARCHAR(16) NOT NULL,
		retryCount INT NOT NULL DEFAULT 0,
		errorMessage TEXT NULL,
		providerId VARCHAR(128) NULL,
		createdAt DATETIME(6) NOT NULL,
		updatedAt DATETIME(6) NOT NULL,
		sentAt DATETIME(6) NULL,
		INDEX idx_order (orderId),
		INDEX idx_status (status)
	)`},
	{"ReportJobs", `
	CREATE TABLE IF NOT EXISTS ReportJobs (
		id CHAR(36) NOT NULL PRIMARY KEY,
		requestedBy VARCHAR(64) NOT NULL,
		status VARCHAR(16) NOT NULL,
		filter JSON NOT NULL,
		result JSON NULL,
		error TEXT NULL,
		createdAt DATETIME(6) NOT NULL,
		updatedAt DATETIME(6) NOT NULL,
		completedAt DATETIME(6) NULL,
		INDEX idx_requested_by (requestedBy)
	)`},
}

// Migrate creates any missing table. It is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, tbl := range Tables {
		if _, err := db.ExecContext(ctx, tbl.DDL); err != nil {
			return fmt.Errorf("creating table %s: %w", tbl.Name, err)
		}
	}
	return nil
}
