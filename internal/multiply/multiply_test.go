package multiply

import (
	"testing"

	"github.com/dnslab/recursor/internal/wire"
	"github.com/stretchr/testify/assert"
)

func q(name string) wire.Question {
	return wire.Question{Name: name, Type: wire.TypeA, Class: wire.ClassIN}
}

func TestMatches(t *testing.T) {
	assert.True(t, Matches("2.3.5.multiply.example"))
	assert.True(t, Matches("2.3.5.MULTIPLY.example"))
	assert.False(t, Matches("www.example.com"))
}

func TestAnswerSimpleProduct(t *testing.T) {
	rec := Answer(q("2.3.5.multiply.example"))
	assert.Equal(t, "127.0.0.30", rec.Data)
	assert.Equal(t, uint32(300), rec.TTL)
	assert.Equal(t, wire.TypeA, rec.Type)
	assert.Equal(t, "2.3.5.multiply.example", rec.Name)
}

func TestAnswerProductModulo256(t *testing.T) {
	rec := Answer(q("10.10.10.multiply.x"))
	assert.Equal(t, "127.0.0.232", rec.Data)
}

func TestAnswerNoNumericLabelsYieldsZero(t *testing.T) {
	rec := Answer(q("foo.bar.multiply.example"))
	assert.Equal(t, "127.0.0.0", rec.Data)
}

func TestAnswerNonIntegerLabelsAreFiltered(t *testing.T) {
	rec := Answer(q("2.foo.3.multiply.example"))
	assert.Equal(t, "127.0.0.6", rec.Data)
}

func TestAnswerSingleLabel(t *testing.T) {
	rec := Answer(q("7.multiply.example"))
	assert.Equal(t, "127.0.0.7", rec.Data)
}
