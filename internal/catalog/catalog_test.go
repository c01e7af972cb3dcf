package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"19.99", "19.99"},
		{"10", "10.00"},
		{" 5.5 ", "5.50"},
		{"12.345", "12.35"},
		{"12.50 USD", "12.50"},
		{"7.", "7.00"},
		{"", "0.00"},
		{"abc", "0.00"},
		{"$10", "0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizePrice(tt.in))
		})
	}
}

func TestCapTagsKeepsFirstEntriesInOrder(t *testing.T) {
	tags := make([]string, 300)
	for i := range tags {
		tags[i] = fmt.Sprintf("tag-%d", i)
	}

	capped := CapTags(tags)

	assert.Len(t, capped, MaxTags)
	assert.Equal(t, "tag-0", capped[0])
	assert.Equal(t, "tag-249", capped[MaxTags-1])
}

func TestSplitTags(t *testing.T) {
	assert.Equal(t, []string{"red", "summer sale", "cotton"}, SplitTags(" red, summer sale ,,cotton"))
	assert.Nil(t, SplitTags(""))
}

func TestCloneDoesNotShareState(t *testing.T) {
	barcode := "123"
	p := Product{
		Tags:     []string{"a"},
		Variants: []Variant{{Price: "1.00", Barcode: &barcode}},
		Extra:    map[string]interface{}{"color": "red"},
	}

	c := p.Clone()
	c.Tags[0] = "b"
	c.Variants[0].Price = "2.00"
	*c.Variants[0].Barcode = "456"
	c.Extra["color"] = "blue"

	assert.Equal(t, "a", p.Tags[0])
	assert.Equal(t, "1.00", p.Variants[0].Price)
	assert.Equal(t, "123", *p.Variants[0].Barcode)
	assert.Equal(t, "red", p.Extra["color"])
}

func TestPrimaryPriceFallsBackToProduct(t *testing.T) {
	assert.Equal(t, "3.00", Product{Price: "3.00"}.PrimaryPrice())
	assert.Equal(t, "4.00", Product{Price: "3.00", Variants: []Variant{{Price: "4.00"}}}.PrimaryPrice())

	moved := Product{Price: "3.00"}.WithPrimaryPrice("5.00")
	assert.Equal(t, "5.00", moved.Price)
}
