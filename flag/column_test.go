package flag

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTableColumnTypeValues(t *testing.T) {
	tests := []struct {
		typ  TableColumnType
		code uint8
	}{
		{MySQLTypeTypedArray, 20},
		{MySQLTypeInvalid, 243},
		{MySQLTypeJson, 245},
		{MySQLTypeNewDecimal, 246},
		{MySQLTypeSet, 248},
		{MySQLTypeBlob, 252},
		{MySQLTypeGeometry, 255},
	}
	for _, test := range tests {
		assert.Equal(t, test.code, uint8(test.typ), test.typ.String())
	}
	assert.True(t, MySQLTypeNewDecimal.HasSignedness())
	assert.True(t, MySQLTypeBlob.IsCharacter())
}
