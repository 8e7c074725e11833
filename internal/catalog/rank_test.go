package catalog

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodePosition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		page  int
		index int
		want  int
	}{
		{1, 1, 1},
		{1, 7, 7},
		{1, 15, 15},
		{2, 15, 215},
		{3, 1, 301},
		{3, 7, 307},
		{21, 5, 2105},
		{60, 99, 6099},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("page%d_index%d", tc.page, tc.index), func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, EncodePosition(tc.page, tc.index))
		})
	}
}

func TestEncodePositionPageOneSortsFirst(t *testing.T) {
	t.Parallel()
	// Any page-1 rank sorts below any rank on page 2 and beyond.
	require.Less(t, EncodePosition(1, 99), EncodePosition(2, 1))
}

func TestAssetURL(t *testing.T) {
	t.Parallel()

	// vol 123 -> first bucket.
	require.Equal(t,
		"https://basket-01.wbbasket.ru/vol123/part12345/12345678/images/c246x328/1.webp",
		AssetURL(12345678),
	)
	// vol 200 -> second bucket.
	require.Equal(t,
		"https://basket-02.wbbasket.ru/vol200/part20000/20000000/images/c246x328/1.webp",
		AssetURL(20000000),
	)
	// Past the last bound -> final shard.
	require.Equal(t,
		"https://basket-14.wbbasket.ru/vol3000/part300000/300000000/images/c246x328/1.webp",
		AssetURL(300000000),
	)
}

func TestAssetURLBucketBoundary(t *testing.T) {
	t.Parallel()
	// vol 143 stays on shard 1, vol 144 moves to shard 2.
	require.Contains(t, AssetURL(14399999), "basket-01")
	require.Contains(t, AssetURL(14400000), "basket-02")
}
