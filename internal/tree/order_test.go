package tree

import (
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/macrame/admin/pkg/errors"
)

func TestJoinPath(t *testing.T) {
	require.Equal(t, "/home/about", JoinPath([]string{"home", "about"}))
	require.Equal(t, "/about", JoinPath([]string{"", "about"}))
	require.Equal(t, "/", JoinPath(nil))
	require.Equal(t, "/a/b", JoinPath([]string{"/a/", "b/"}))
}

func TestFlattenNested(t *testing.T) {
	root := "root"
	placements, err := Flatten(&root, []OrderItem{
		{ID: "a", Children: []OrderItem{{ID: "a1"}, {ID: "a2"}}},
		{ID: "b"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "a1", "a2", "b"}, IDs(placements))

	require.Equal(t, "root", *placements[0].ParentID)
	require.Equal(t, 0, placements[0].Order)
	require.Equal(t, "a", *placements[1].ParentID)
	require.Equal(t, 1, placements[2].Order)
	require.Equal(t, 1, placements[3].Order)
}

func TestFlattenRejectsInvalidItems(t *testing.T) {
	_, err := Flatten(nil, []OrderItem{{ID: "a"}, {ID: " "}})
	require.ErrorIs(t, err, apperrors.ErrInvalidOrder)

	_, err = Flatten(nil, []OrderItem{{ID: "a", Children: []OrderItem{{ID: "a"}}}})
	require.ErrorIs(t, err, apperrors.ErrInvalidOrder)

	parent := "a"
	_, err = Flatten(&parent, []OrderItem{{ID: "a"}})
	require.ErrorIs(t, err, apperrors.ErrCycle)
}

func TestHasCycle(t *testing.T) {
	a, b := "a", "b"
	require.True(t, hasCycle(map[string]*string{"a": &b, "b": &a}, "a"))
	require.False(t, hasCycle(map[string]*string{"a": &b, "b": nil}, "a"))
	require.False(t, hasCycle(map[string]*string{"a": &b}, "a"))
}
