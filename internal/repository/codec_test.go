package repository

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
)

type priced struct {
	Price decimal.Decimal `bson:"price"`
}

func TestDecimalCodec_StoresDecimal128(t *testing.T) {
	reg := NewRegistry()

	raw, err := bson.MarshalWithRegistry(reg, priced{Price: decimal.RequireFromString("1999.99")})
	require.NoError(t, err)

	v := bson.Raw(raw).Lookup("price")
	assert.Equal(t, bsontype.Decimal128, v.Type)

	var out priced
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
	assert.True(t, decimal.RequireFromString("1999.99").Equal(out.Price))
}

func TestDecimalCodec_DecodesLegacyNumbers(t *testing.T) {
	reg := NewRegistry()

	cases := map[string]bson.M{
		"double": {"price": 12.5},
		"int32":  {"price": int32(12)},
		"int64":  {"price": int64(12)},
		"string": {"price": "12.50"},
	}
	want := map[string]string{"double": "12.5", "int32": "12", "int64": "12", "string": "12.5"}

	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := bson.Marshal(doc)
			require.NoError(t, err)

			var out priced
			require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
			assert.True(t, decimal.RequireFromString(want[name]).Equal(out.Price), "got %s", out.Price)
		})
	}
}
