package discovery

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ptw/internal/domain"
)

func collectionOf(files ...string) domain.Collection {
	var tests []domain.Test
	for _, f := range files {
		tests = append(tests, domain.Test{ID: TestID(f, "testIt"), Group: f, Method: "testIt", File: f})
	}
	return domain.NewCollection(tests...)
}

func TestFilterByName(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		pattern  string
		expected int // Expected number of matches
	}{
		{
			name:     "empty pattern returns all",
			files:    []string{"UserTest.php", "PaymentTest.php", "OrderTest.php"},
			pattern:  "",
			expected: 3,
		},
		{
			name:     "wildcard pattern matches suffix",
			files:    []string{"UserTest.php", "PaymentTest.php", "OrderTest.php"},
			pattern:  "*UserTest.php",
			expected: 1,
		},
		{
			name:     "wildcard pattern matches substring",
			files:    []string{"UserTest.php", "PaymentTest.php", "OrderTest.php", "PaymentServiceTest.php"},
			pattern:  "*Payment*",
			expected: 2,
		},
		{
			name:     "simple contains match",
			files:    []string{"UserTest.php", "PaymentTest.php", "OrderTest.php"},
			pattern:  "Payment",
			expected: 1,
		},
		{
			name:     "no matches",
			files:    []string{"UserTest.php", "PaymentTest.php"},
			pattern:  "*NonExistent*",
			expected: 0,
		},
		{
			name:     "full path with wildcard",
			files:    []string{"/path/to/UserTest.php", "/path/to/PaymentTest.php"},
			pattern:  "*UserTest.php",
			expected: 1,
		},
		{
			name:     "parts must appear in order",
			files:    []string{"UserServiceTest.php", "UserControllerTest.php", "ServiceUserTest.php"},
			pattern:  "*User*Service*",
			expected: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FilterByName(collectionOf(tt.files...), tt.pattern)
			assert.Equal(t, tt.expected, result.Len())
		})
	}
}

func TestByGroups(t *testing.T) {
	all := domain.NewCollection(
		domain.Test{ID: "a1", Group: "A"},
		domain.Test{ID: "b1", Group: "B"},
		domain.Test{ID: "a2", Group: "A"},
		domain.Test{ID: "c1", Group: "C"},
	)

	t.Run("keeps order of selected groups", func(t *testing.T) {
		got := ByGroups(all, domain.NewGroupSet("A", "C"))
		var ids []string
		for _, tc := range got.Tests() {
			ids = append(ids, tc.ID)
		}
		assert.Equal(t, []string{"a1", "a2", "c1"}, ids)
	})

	t.Run("is idempotent", func(t *testing.T) {
		groups := domain.NewGroupSet("B", "C")
		once := ByGroups(all, groups)
		twice := ByGroups(once, groups)
		assert.Equal(t, once.Tests(), twice.Tests())
	})

	t.Run("empty set selects nothing", func(t *testing.T) {
		assert.Zero(t, ByGroups(all, domain.NewGroupSet()).Len())
	})

	t.Run("does not modify the input", func(t *testing.T) {
		_ = ByGroups(all, domain.NewGroupSet("A"))
		assert.Equal(t, 4, all.Len())
	})
}
