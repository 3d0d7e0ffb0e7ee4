package translate

import (
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sheenazien8/mysql2mongo/schema"
	"github.com/sheenazien8/mysql2mongo/typemap"
)

const enumDescription = "can only be one of the enum values"

// BuildValidator returns the $jsonSchema validator for a table, with one
// property per column in column order. An unmapped column type fails the
// whole table.
func BuildValidator(tbl *schema.Table) (bson.D, error) {
	props := bson.D{}
	for _, c := range tbl.Columns {
		prop, err := columnProperty(c)
		if err != nil {
			return nil, err
		}
		props = append(props, bson.E{Key: c.Name, Value: prop})
	}

	return bson.D{{Key: "$jsonSchema", Value: bson.D{
		{Key: "bsonType", Value: "object"},
		{Key: "properties", Value: props},
	}}}, nil
}

func columnProperty(c *schema.Column) (bson.D, error) {
	dt, err := typemap.ToDocumentType(c.Type)
	if err != nil {
		return nil, typemap.Annotate(err, c.TableName, c.Name)
	}

	if dt.Keyword == "ENUM" {
		values := bson.A{}
		for _, v := range typemap.EnumValues(c.Type) {
			values = append(values, v)
		}
		return bson.D{
			{Key: "enum", Value: values},
			{Key: "description", Value: enumDescription},
		}, nil
	}
	return bson.D{{Key: "bsonType", Value: dt.BSONType()}}, nil
}
