package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/payment-fulfillment/internal/domain"
	"github.com/robertarktes/payment-fulfillment/internal/observability"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CatalogRepository reads stall configuration. Stall documents are written
// at seller onboarding, outside the pipeline.
type CatalogRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		coll:   db.Collection("stalls"),
		logger: logger,
	}
}

type StallDoc struct {
	ID             uuid.UUID `bson:"_id"`
	ShopID         uuid.UUID `bson:"shop_id"`
	Name           string    `bson:"name"`
	CommissionRate *float64  `bson:"commission_rate"`
	CreatedAt      time.Time `bson:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at"`
}

// CommissionRate resolves a stall's configured rate in percent. Any miss,
// lookup failure or absent rate falls back to the default so a
// misconfigured stall never blocks checkout.
func (c *CatalogRepository) CommissionRate(ctx context.Context, stallID uuid.UUID) (decimal.Decimal, error) {
	var stall StallDoc
	err := c.coll.FindOne(ctx, bson.M{"_id": stallID}).Decode(&stall)
	if err != nil {
		c.logger.WithField("stall_id", stallID.String()).Warn("stall lookup failed, using default rate", err)
		return domain.DefaultCommissionRate, nil
	}
	if stall.CommissionRate == nil {
		return domain.DefaultCommissionRate, nil
	}
	return decimal.NewFromFloat(*stall.CommissionRate), nil
}

func (c *CatalogRepository) CreateStall(ctx context.Context, stall StallDoc) error {
	stall.CreatedAt = time.Now()
	stall.UpdatedAt = time.Now()
	_, err := c.coll.InsertOne(ctx, stall)
	if err != nil {
		c.logger.Error("failed to create stall", err)
		return err
	}
	return nil
}
