package mongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func optionsFindLimit(limit int64) *options.FindOptions {
	return options.Find().SetLimit(limit).SetSort(bson.M{"timestamp": -1})
}
