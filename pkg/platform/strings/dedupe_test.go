package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDedupeAndTrim(t *testing.T) {
	assert.Equal(t, []string{"foo", "bar"}, DedupeAndTrim([]string{"  foo ", "bar", "foo", "", "  "}))
	assert.Empty(t, DedupeAndTrim(nil))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, SplitList("b1:9092, b2:9092,b1:9092,"))
	assert.Nil(t, SplitList("   "))
}

func TestContainsFold(t *testing.T) {
	assert.True(t, ContainsFold([]string{"approver", "editor"}, "APPROVER"))
	assert.False(t, ContainsFold([]string{"editor"}, "system"))
}
