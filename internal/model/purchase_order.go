package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PurchaseOrderStatus constants
const (
	POStatusOpen     = "OPEN"
	POStatusReceived = "RECEIVED"
	POStatusClosed   = "CLOSED"
)

// PurchaseOrder is the downstream document an approved purchase request
// eventually becomes. Data shape only for now.
// TODO: conversion of approved requests into purchase orders.
type PurchaseOrder struct {
	ID           uuid.UUID           `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderNo      string              `gorm:"type:varchar(20);uniqueIndex;not null" json:"order_no"`
	RequestID    *uuid.UUID          `gorm:"type:uuid;index" json:"request_id"`
	SupplierName string              `gorm:"type:varchar(255)" json:"supplier_name"`
	Status       string              `gorm:"type:varchar(20);not null;default:'OPEN'" json:"status"`
	OrderDate    time.Time           `gorm:"type:date" json:"order_date"`
	Lines        []PurchaseOrderLine `gorm:"foreignKey:OrderID" json:"lines"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// PurchaseOrderLine mirrors a request line with an agreed price.
type PurchaseOrderLine struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"order_id"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index" json:"product_id"`
	UnitID    uuid.UUID       `gorm:"type:uuid;not null" json:"unit_id"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0" json:"unit_price"`
}

// GoodsReceipt records goods arriving against a purchase order.
type GoodsReceipt struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID      uuid.UUID  `gorm:"type:uuid;not null;index" json:"order_id"`
	ReceivedBy   *uuid.UUID `gorm:"type:uuid" json:"received_by"`
	ReceivedDate time.Time  `gorm:"type:date" json:"received_date"`
	Notes        string     `gorm:"type:text" json:"notes"`
	CreatedAt    time.Time  `json:"created_at"`
}
