package storage

import (
	"blendshop/internal/models"
)

type Store interface {
	// Intent mirror operations
	SaveIntent(record *models.PaymentIntentRecord) error
	GetIntent(intentID string) (*models.PaymentIntentRecord, error)
	GetIntentByOrderID(orderID string) (*models.PaymentIntentRecord, error)
	UpdateIntentStatus(intentID, status string) error
	ListIntents(orderID string, limit, offset int) ([]*models.PaymentIntentRecord, error)

	// Health and maintenance
	Close() error
	HealthCheck() error
}
